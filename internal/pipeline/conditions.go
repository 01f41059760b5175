package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/flows"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/inventory"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/orders"
)

// StockVerifier is the slice of the inventory service the evaluator
// consumes.
type StockVerifier interface {
	Verify(ctx context.Context, lines []inventory.LineItem, inventoryID string) (inventory.Verification, error)
	DefaultInventoryID() string
}

// Evaluator answers condition predicates against an order.
type Evaluator struct {
	stock        StockVerifier
	logger       *slog.Logger
	installments int
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(stock StockVerifier, logger *slog.Logger, installments int) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{stock: stock, logger: logger, installments: installments}
}

// Outcome is the aggregate result of evaluating a condition list.
type Outcome struct {
	Passed  bool     `json:"passed"`
	Missing []string `json:"missing"`
}

// Evaluate answers one condition for one order. Unknown kinds and empty
// descriptors are permissively true so new configuration never blocks
// existing orders.
func (e *Evaluator) Evaluate(ctx context.Context, cond flows.Condition, o *orders.Order) bool {
	if cond.Kind == "" {
		return true
	}
	switch cond.Kind {
	case flows.KindDesignerAssigned:
		return strings.TrimSpace(o.Design.Designer) != ""
	case flows.KindImageURLSet:
		return strings.TrimSpace(o.Design.ImageURL) != ""
	case flows.KindSizesSet:
		return strings.TrimSpace(o.SizeSpec) != "" || len(o.Garments) > 0
	case flows.KindHasComment:
		return strings.TrimSpace(o.DesignNote) != ""
	case flows.KindBalanceCleared:
		return orders.ComputeBalance(o, e.installments) <= 0
	case flows.KindStockAvailable:
		return e.stockAvailable(ctx, cond, o)
	case flows.KindStockUnavailable:
		return !e.stockAvailable(ctx, cond, o)
	case flows.KindOperatorAssigned:
		if key := cond.Params.StageKey; key != "" {
			rec := o.StageRecordFor(orders.StageKey(key))
			return rec != nil && strings.TrimSpace(rec.Operator) != ""
		}
		for _, key := range []orders.StageKey{orders.StagePreparation, orders.StagePrinting, orders.StagePackaging} {
			if strings.TrimSpace(o.StageRecordFor(key).Operator) != "" {
				return true
			}
		}
		return false
	case flows.KindDelivererAssigned:
		return strings.TrimSpace(o.Delivery.Deliverer) != ""
	case flows.KindStageReady:
		key := orders.StageKey(cond.Params.StageKey)
		if key == "" {
			key = orders.StagePreparation
		}
		rec := o.StageRecordFor(key)
		return rec != nil && strings.EqualFold(rec.State, "READY")
	case flows.KindDelivered:
		return strings.EqualFold(o.Delivery.State, "DELIVERED")
	}
	return true
}

// EvaluateAll checks only required conditions; Missing collects the
// display names of the failed ones in input order. Non-required
// conditions are informational and never block.
func (e *Evaluator) EvaluateAll(ctx context.Context, conds []flows.Condition, o *orders.Order) Outcome {
	missing := []string{}
	for _, c := range conds {
		if !c.Required {
			continue
		}
		if !e.Evaluate(ctx, c, o) {
			missing = append(missing, c.Kind.DisplayName())
		}
	}
	return Outcome{Passed: len(missing) == 0, Missing: missing}
}

// stockAvailable consults the verifier. A store failure counts as
// unavailable; holding the order is recoverable, advancing it on a
// failed read is not.
func (e *Evaluator) stockAvailable(ctx context.Context, cond flows.Condition, o *orders.Order) bool {
	lines, dropped := o.RequiredLineItems()
	if len(dropped) > 0 {
		e.logger.Warn("unparsable size segments dropped", "order_id", o.ID, "segments", dropped)
	}
	inventoryID := cond.Params.InventoryID
	if inventoryID == "" {
		inventoryID = e.stock.DefaultInventoryID()
	}
	v, err := e.stock.Verify(ctx, lines, inventoryID)
	if err != nil {
		e.logger.Error("stock verification failed", "order_id", o.ID, "inventory_id", inventoryID, "error", err)
		return false
	}
	return v.Available
}
