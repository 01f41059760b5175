package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/orders"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/pipeline"
)

// StockEngine is the slice of the pipeline engine the sweep consumes.
type StockEngine interface {
	ListOnHold(ctx context.Context) ([]orders.Order, error)
	RecheckHold(ctx context.Context, orderID, actor string) (*pipeline.Result, error)
}

// NewStockRecheckHandler builds the handler for TaskStockRecheck. It
// sweeps every on-hold order and re-runs verification; orders whose
// stock appeared are released, the rest stay held. Individual failures
// do not abort the sweep.
func NewStockRecheckHandler(engine StockEngine, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload StockRecheckPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		held, err := engine.ListOnHold(ctx)
		if err != nil {
			return err
		}
		released := 0
		for _, o := range held {
			result, err := engine.RecheckHold(ctx, o.ID, "stock-recheck")
			if err != nil {
				logger.Warn("hold recheck failed", "order_id", o.ID, "error", err)
				continue
			}
			if result.Advanced {
				released++
			}
		}
		logger.Info("stock recheck sweep done",
			"triggered_by", payload.TriggeredBy,
			"held", len(held),
			"released", released,
		)
		return nil
	}
}
