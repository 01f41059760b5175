package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/flows"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/inventory"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/orders"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
)

// StockPort is the slice of the inventory service the engine consumes.
type StockPort interface {
	StockVerifier
	Reserve(ctx context.Context, input inventory.ReserveInput) (inventory.ReserveResult, error)
}

// LockPort serializes mutations per order.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EngineConfig groups engine settings.
type EngineConfig struct {
	FlowID string
}

// Engine is the stage-transition orchestrator. It owns no state; every
// invocation reads the order, evaluates the configured gates and applies
// at most one persisted mutation.
type Engine struct {
	orders orders.RepositoryPort
	flows  flows.RepositoryPort
	stock  StockPort
	eval   *Evaluator
	locks  LockPort
	audit  AuditPort
	logger *slog.Logger
	cfg    EngineConfig
}

// NewEngine builds an Engine.
func NewEngine(ordersRepo orders.RepositoryPort, flowsRepo flows.RepositoryPort, stock StockPort, eval *Evaluator, locks LockPort, audit AuditPort, logger *slog.Logger, cfg EngineConfig) *Engine {
	if cfg.FlowID == "" {
		cfg.FlowID = flows.DefaultFlowID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{orders: ordersRepo, flows: flowsRepo, stock: stock, eval: eval, locks: locks, audit: audit, logger: logger, cfg: cfg}
}

// Result reports the outcome of an advance or recheck request. Blocking
// outcomes carry a message saying why; callers never see a bare bool.
type Result struct {
	OrderID   string          `json:"order_id"`
	FromStage orders.StageKey `json:"from_stage,omitempty"`
	ToStage   orders.StageKey `json:"to_stage,omitempty"`
	NewState  string          `json:"new_state,omitempty"`
	Advanced  bool            `json:"advanced"`
	OnHold    bool            `json:"on_hold"`
	Reserved  bool            `json:"reserved"`
	Message   string          `json:"message"`
	Missing   []string        `json:"missing,omitempty"`
}

// ErrUnknownStage indicates the order's status does not match any stage
// configured for the flow.
var ErrUnknownStage = errors.New("pipeline: unknown stage")

// ErrCompleted indicates the order already reached the final stage.
var ErrCompleted = errors.New("pipeline: order already completed")

// AdvanceStage moves one order to its successor stage. Exit conditions
// gate the move; the billing boundary additionally verifies and reserves
// stock, holding the order when inventory is missing or unconfigured.
// The whole mutation is applied once, under a per-order lock and a
// version check.
func (e *Engine) AdvanceStage(ctx context.Context, orderID, actor string) (*Result, error) {
	release, err := e.locks.Acquire(ctx, shared.OrderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == orders.StageCompleted {
		return nil, fmt.Errorf("%w: %s", ErrCompleted, orderID)
	}

	stages, err := e.flows.ListStages(ctx, e.cfg.FlowID)
	if err != nil {
		return nil, err
	}
	idx := stageIndex(stages, order.Status)
	if idx < 0 || idx+1 >= len(stages) {
		return nil, fmt.Errorf("%w: %s for flow %s", ErrUnknownStage, order.Status, e.cfg.FlowID)
	}
	current, successor := stages[idx], stages[idx+1]

	// Stock is verified separately below; every other exit gate blocks
	// without mutating.
	nonStock := make([]flows.Condition, 0, len(current.ExitConditions))
	for _, c := range current.ExitConditions {
		if !c.Kind.NeedsInventory() {
			nonStock = append(nonStock, c)
		}
	}
	outcome := e.eval.EvaluateAll(ctx, nonStock, order)
	if !outcome.Passed {
		return &Result{
			OrderID:   orderID,
			FromStage: order.Status,
			Advanced:  false,
			Message:   fmt.Sprintf("cannot leave %s: required conditions not met", current.Name),
			Missing:   outcome.Missing,
		}, nil
	}

	result := &Result{OrderID: orderID, FromStage: order.Status}
	successorKey := orders.StageKey(successor.PermissionModule)

	if successorKey == orders.StagePreparation {
		if err := e.applyStockGate(ctx, order, current, actor, result); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	closeStage(order, order.Status, now)
	entryState := ""
	switch {
	case result.OnHold:
		entryState = orders.StageStateOnHold
	case result.Reserved:
		entryState = orders.StageStateReady
	}
	openStage(order, successorKey, now, entryState)
	order.Status = successorKey
	if result.OnHold {
		order.OverallState = orders.StateOnHoldStock
	} else {
		order.OverallState = orders.StateForStage(successorKey)
	}
	order.AppendHistory(orders.HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		ActorID:   actor,
		Action:    "stage.advanced",
		Detail:    fmt.Sprintf("moved from %s to %s (%s)", result.FromStage, successorKey, order.OverallState),
	})

	if !result.OnHold {
		if err := e.applyEntrySkips(ctx, order, stages, successor, actor); err != nil {
			return nil, err
		}
	}

	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	result.Advanced = true
	result.ToStage = order.Status
	result.NewState = order.OverallState
	if result.Message == "" {
		result.Message = fmt.Sprintf("order advanced to %s", order.OverallState)
	}
	e.recordAudit(ctx, actor, "stage.advanced", order.ID, map[string]any{
		"from": string(result.FromStage), "to": string(order.Status), "on_hold": result.OnHold,
	})
	return result, nil
}

// applyStockGate resolves the inventory from the stage's stock exit
// conditions and reserves the order's line items. Absence of
// configuration never silently proceeds; it holds the order with a
// message naming the gap.
func (e *Engine) applyStockGate(ctx context.Context, order *orders.Order, stage flows.Stage, actor string, result *Result) error {
	inventoryID := stockInventoryID(stage.ExitConditions)
	if inventoryID == "" {
		result.OnHold = true
		result.Message = fmt.Sprintf("no inventory configured in the exit conditions of %s; order moved to %s", stage.Name, orders.StateOnHoldStock)
		return nil
	}

	lines, dropped := order.RequiredLineItems()
	if len(dropped) > 0 {
		e.logger.Warn("unparsable size segments dropped", "order_id", order.ID, "segments", dropped)
	}
	res, err := e.stock.Reserve(ctx, inventory.ReserveInput{
		OrderID:     order.ID,
		Lines:       lines,
		InventoryID: inventoryID,
		ActorID:     actor,
	})
	if err != nil {
		return err
	}
	if !res.Reserved {
		result.OnHold = true
		switch res.Verification.Reason {
		case inventory.ReasonItemNotFound:
			result.Message = fmt.Sprintf("required garments not found in inventory %q; order moved to %s", inventoryID, orders.StateOnHoldStock)
		case inventory.ReasonInsufficientStock:
			result.Message = fmt.Sprintf("insufficient stock in inventory %q; order moved to %s", inventoryID, orders.StateOnHoldStock)
		default:
			result.Message = fmt.Sprintf("no stock available in inventory %q (%s); order moved to %s", inventoryID, res.Verification.Reason, orders.StateOnHoldStock)
		}
		return nil
	}
	result.Reserved = true
	result.Message = fmt.Sprintf("stock reserved from inventory %q; order ready to prepare", inventoryID)
	return nil
}

// applyEntrySkips re-runs the entry-skip resolver on every entered stage
// until no skip fires. The visited set terminates cyclic configurations.
func (e *Engine) applyEntrySkips(ctx context.Context, order *orders.Order, stages []flows.Stage, entered flows.Stage, actor string) error {
	visited := map[string]bool{}
	for {
		visited[entered.ID] = true
		skip, err := e.ResolveEntrySkip(ctx, entered.ID, order)
		if err != nil {
			return err
		}
		if !skip.ShouldSkip {
			return nil
		}
		target, ok := stageByID(stages, skip.TargetStageID)
		if !ok {
			e.logger.Warn("skip target not in flow", "stage_id", entered.ID, "target", skip.TargetStageID)
			return nil
		}
		if visited[target.ID] {
			e.logger.Warn("cyclic skip configuration stopped", "stage_id", entered.ID, "target", target.ID)
			return nil
		}

		now := time.Now().UTC()
		fromKey := orders.StageKey(entered.PermissionModule)
		targetKey := orders.StageKey(target.PermissionModule)
		closeStage(order, fromKey, now)
		openStage(order, targetKey, now, "")
		order.Status = targetKey
		order.OverallState = orders.StateForStage(targetKey)
		order.AppendHistory(orders.HistoryEntry{
			ID:        uuid.NewString(),
			Timestamp: now,
			ActorID:   actor,
			Action:    "stage.skipped",
			Detail:    fmt.Sprintf("entry conditions of %s redirected to %s", entered.Name, target.Name),
		})
		entered = target
	}
}

// RecheckHold re-verifies stock for an on-hold order and releases the
// hold when inventory has appeared. Restocking plus this call is how an
// operator clears the hold state.
func (e *Engine) RecheckHold(ctx context.Context, orderID, actor string) (*Result, error) {
	release, err := e.locks.Acquire(ctx, shared.OrderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OverallState != orders.StateOnHoldStock {
		return &Result{OrderID: orderID, FromStage: order.Status, Message: "order is not on hold"}, nil
	}

	stages, err := e.flows.ListStages(ctx, e.cfg.FlowID)
	if err != nil {
		return nil, err
	}
	idx := stageIndex(stages, order.Status)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s for flow %s", ErrUnknownStage, order.Status, e.cfg.FlowID)
	}
	// The stock gate lives on the predecessor's exit conditions.
	inventoryID := ""
	if idx > 0 {
		inventoryID = stockInventoryID(stages[idx-1].ExitConditions)
	}
	if inventoryID == "" {
		return &Result{
			OrderID:   orderID,
			FromStage: order.Status,
			OnHold:    true,
			Message:   "no inventory configured; order stays on hold",
		}, nil
	}

	lines, dropped := order.RequiredLineItems()
	if len(dropped) > 0 {
		e.logger.Warn("unparsable size segments dropped", "order_id", order.ID, "segments", dropped)
	}
	res, err := e.stock.Reserve(ctx, inventory.ReserveInput{
		OrderID:     order.ID,
		Lines:       lines,
		InventoryID: inventoryID,
		ActorID:     actor,
	})
	if err != nil {
		return nil, err
	}
	if !res.Reserved {
		return &Result{
			OrderID:   orderID,
			FromStage: order.Status,
			OnHold:    true,
			Message:   fmt.Sprintf("stock still unavailable (%s); order stays on hold", res.Verification.Reason),
		}, nil
	}

	now := time.Now().UTC()
	if rec := order.StageRecordFor(order.Status); rec != nil && rec.State == orders.StageStateOnHold {
		rec.State = orders.StageStateReady
	}
	order.OverallState = orders.StateForStage(order.Status)
	order.AppendHistory(orders.HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		ActorID:   actor,
		Action:    "stage.hold_cleared",
		Detail:    fmt.Sprintf("stock reserved from inventory %q, hold released", inventoryID),
	})
	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	e.recordAudit(ctx, actor, "stage.hold_cleared", order.ID, map[string]any{"inventory_id": inventoryID})
	return &Result{
		OrderID:   orderID,
		FromStage: order.Status,
		ToStage:   order.Status,
		NewState:  order.OverallState,
		Advanced:  true,
		Reserved:  true,
		Message:   fmt.Sprintf("stock reserved from inventory %q; hold released", inventoryID),
	}, nil
}

// ListOnHold returns every order currently held on stock.
func (e *Engine) ListOnHold(ctx context.Context) ([]orders.Order, error) {
	return e.orders.List(ctx, orders.ListFilter{OverallState: orders.StateOnHoldStock})
}

func (e *Engine) recordAudit(ctx context.Context, actor, action, orderID string, meta map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "order",
		EntityID: orderID,
		Meta:     meta,
	}); err != nil {
		e.logger.Warn("audit record failed", "order_id", orderID, "error", err)
	}
}

// closeStage stamps the exit timestamp and duration on an open record.
func closeStage(o *orders.Order, key orders.StageKey, now time.Time) {
	rec := o.StageRecordFor(key)
	if !rec.Open() {
		return
	}
	rec.ExitedAt = &now
	rec.DurationHours = now.Sub(*rec.EnteredAt).Hours()
}

// openStage opens the record of the entered stage. The completed
// pseudo-stage keeps no record.
func openStage(o *orders.Order, key orders.StageKey, now time.Time, state string) {
	rec := o.StageRecordFor(key)
	if rec == nil {
		return
	}
	rec.EnteredAt = &now
	rec.ExitedAt = nil
	rec.DurationHours = 0
	rec.State = state
}

// stockInventoryID returns the inventory named by the first stock-kind
// condition, empty when none is configured or the parameter is blank.
func stockInventoryID(conds []flows.Condition) string {
	for _, c := range conds {
		if c.Kind.NeedsInventory() {
			return c.Params.InventoryID
		}
	}
	return ""
}

func stageIndex(stages []flows.Stage, key orders.StageKey) int {
	for i, s := range stages {
		if orders.StageKey(s.PermissionModule) == key {
			return i
		}
	}
	return -1
}

func stageByID(stages []flows.Stage, id string) (flows.Stage, bool) {
	for _, s := range stages {
		if s.ID == id {
			return s, true
		}
	}
	return flows.Stage{}, false
}
