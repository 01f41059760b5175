package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/orders"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/pipeline"
)

type fakeEngine struct {
	held     []orders.Order
	released map[string]bool
	checked  []string
}

func (f *fakeEngine) ListOnHold(ctx context.Context) ([]orders.Order, error) {
	return f.held, nil
}

func (f *fakeEngine) RecheckHold(ctx context.Context, orderID, actor string) (*pipeline.Result, error) {
	f.checked = append(f.checked, orderID)
	return &pipeline.Result{OrderID: orderID, Advanced: f.released[orderID]}, nil
}

func TestStockRecheckSweep(t *testing.T) {
	engine := &fakeEngine{
		held: []orders.Order{
			{ID: "0001", OverallState: orders.StateOnHoldStock},
			{ID: "0002", OverallState: orders.StateOnHoldStock},
		},
		released: map[string]bool{"0001": true},
	}
	handler := NewStockRecheckHandler(engine, slog.Default())

	task, err := NewStockRecheckTask("intake", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, []string{"0001", "0002"}, engine.checked)
}

func TestStockRecheckMalformedPayloadSkipsRetry(t *testing.T) {
	handler := NewStockRecheckHandler(&fakeEngine{}, slog.Default())
	task := asynq.NewTask(TaskStockRecheck, []byte("{not json"))
	err := handler(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
