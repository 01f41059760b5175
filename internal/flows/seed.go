package flows

import (
	"fmt"
	"time"
)

// DefaultFlowID identifies the built-in order pipeline.
const DefaultFlowID = "flow-orders"

// orderedStages is the built-in pipeline in order. The permission module
// matches the stage key, so default exit conditions attach by module.
var orderedStages = []struct {
	Key  string
	Name string
}{
	{"sales", "Sales"},
	{"design", "Design"},
	{"billing", "Billing"},
	{"preparation", "Preparation"},
	{"printing", "Printing"},
	{"packaging", "Packaging"},
	{"delivery", "Delivery"},
	{"completed", "Completed"},
}

// DefaultExitConditions returns the built-in exit conditions for a stage
// so editors see the effective gates instead of an empty list.
func DefaultExitConditions(stageID, permissionModule string) []Condition {
	defaults := map[string][]ConditionKind{
		"design":      {KindImageURLSet, KindSizesSet},
		"preparation": {KindOperatorAssigned},
		"printing":    {KindOperatorAssigned},
		"packaging":   {KindOperatorAssigned},
		"delivery":    {KindDelivererAssigned},
	}
	kinds := defaults[permissionModule]
	if len(kinds) == 0 {
		return nil
	}
	out := make([]Condition, 0, len(kinds))
	for i, kind := range kinds {
		cond := Condition{
			ID:       fmt.Sprintf("condition-%s-%s-%d", stageID, kind, i),
			Kind:     kind,
			Required: true,
		}
		if kind == KindOperatorAssigned || kind == KindStageReady {
			cond.Params.StageKey = permissionModule
		}
		out = append(out, cond)
	}
	return out
}

// StageID builds the canonical id of a built-in stage.
func StageID(key string) string {
	return fmt.Sprintf("stage-%s-%s", DefaultFlowID, key)
}

// DefaultFlow builds the built-in eight-stage order flow. The first
// stage is pinned initial and the last final; middle stages may be
// reordered by configuration later.
func DefaultFlow(now time.Time) (Flow, []Stage) {
	stages := make([]Stage, 0, len(orderedStages))
	ids := make([]string, 0, len(orderedStages))
	last := len(orderedStages) - 1
	for i, def := range orderedStages {
		id := StageID(def.Key)
		stage := Stage{
			ID:               id,
			FlowID:           DefaultFlowID,
			Name:             def.Name,
			Order:            i,
			PermissionModule: def.Key,
			Mandatory:        i == 0 || i == last,
			ExitConditions:   DefaultExitConditions(id, def.Key),
			EntryConditions:  nil,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		switch i {
		case 0:
			stage.MandatoryKind = MandatoryInitial
		case last:
			stage.MandatoryKind = MandatoryFinal
		}
		stages = append(stages, stage)
		ids = append(ids, id)
	}
	flow := Flow{
		ID:        DefaultFlowID,
		Name:      "Order Flow",
		Active:    true,
		Order:     0,
		StageIDs:  ids,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return flow, stages
}
