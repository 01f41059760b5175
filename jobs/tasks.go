package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockRecheck re-verifies stock for every on-hold order.
	TaskStockRecheck = "stock:recheck"
)

// StockRecheckPayload carries scheduling metadata for the sweep.
type StockRecheckPayload struct {
	TriggeredBy  string    `json:"triggered_by"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStockRecheckTask constructs an Asynq task for the on-hold sweep.
func NewStockRecheckTask(triggeredBy string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StockRecheckPayload{TriggeredBy: triggeredBy, ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockRecheck, body, asynq.Queue(QueueDefault)), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueStockRecheck enqueues an on-hold sweep, typically right after a
// stock intake so held orders clear without waiting for the cron run.
func (c *Client) EnqueueStockRecheck(ctx context.Context, triggeredBy string) (*asynq.TaskInfo, error) {
	task, err := NewStockRecheckTask(triggeredBy, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
