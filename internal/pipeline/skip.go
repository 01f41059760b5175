package pipeline

import (
	"context"
	"fmt"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/orders"
)

// Skip is the result of an entry-condition check.
type Skip struct {
	ShouldSkip    bool   `json:"should_skip"`
	TargetStageID string `json:"target_stage_id,omitempty"`
}

// ResolveEntrySkip checks a stage's entry conditions on arrival. The
// first condition in configured order with AutoSkip set that evaluates
// true wins; conditions after it are not consulted. The resolver returns
// a single hop; chained skips are handled by re-running it on each
// entered stage.
func (e *Engine) ResolveEntrySkip(ctx context.Context, stageID string, o *orders.Order) (Skip, error) {
	stage, err := e.flows.GetStage(ctx, stageID)
	if err != nil {
		return Skip{}, fmt.Errorf("pipeline: entry conditions for %s: %w", stageID, err)
	}
	for _, cond := range stage.EntryConditions {
		if !cond.AutoSkip {
			continue
		}
		if e.eval.Evaluate(ctx, cond, o) {
			return Skip{ShouldSkip: true, TargetStageID: cond.Params.TargetStageID}, nil
		}
	}
	return Skip{}, nil
}
