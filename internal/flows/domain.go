package flows

import "time"

// ConditionKind enumerates the closed set of predicate kinds a stage may
// gate on. Unknown kinds evaluate permissively and never block.
type ConditionKind string

const (
	KindDesignerAssigned  ConditionKind = "designer_assigned"
	KindImageURLSet       ConditionKind = "image_url_set"
	KindSizesSet          ConditionKind = "sizes_set"
	KindHasComment        ConditionKind = "has_comment"
	KindBalanceCleared    ConditionKind = "balance_cleared"
	KindStockAvailable    ConditionKind = "stock_available"
	KindStockUnavailable  ConditionKind = "stock_unavailable"
	KindOperatorAssigned  ConditionKind = "operator_assigned"
	KindDelivererAssigned ConditionKind = "deliverer_assigned"
	KindStageReady        ConditionKind = "stage_ready"
	KindDelivered         ConditionKind = "delivered"
)

// displayNames are the human-readable condition names surfaced in
// missing-condition lists.
var displayNames = map[ConditionKind]string{
	KindDesignerAssigned:  "Designer Assigned",
	KindImageURLSet:       "Image URL Set",
	KindSizesSet:          "Sizes Set",
	KindHasComment:        "Comment Added",
	KindBalanceCleared:    "Balance Cleared",
	KindStockAvailable:    "Stock Available",
	KindStockUnavailable:  "No Stock",
	KindOperatorAssigned:  "Operator Assigned",
	KindDelivererAssigned: "Deliverer Assigned",
	KindStageReady:        "Stage Ready",
	KindDelivered:         "Delivered",
}

// DisplayName returns the human-readable name of a kind; unknown kinds
// fall back to the raw string.
func (k ConditionKind) DisplayName() string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return string(k)
}

// Known reports whether the kind belongs to the closed enum.
func (k ConditionKind) Known() bool {
	_, ok := displayNames[k]
	return ok
}

// NeedsInventory reports whether the kind consults stock.
func (k ConditionKind) NeedsInventory() bool {
	return k == KindStockAvailable || k == KindStockUnavailable
}

// MandatoryKind marks the pinned position of a mandatory stage.
type MandatoryKind string

const (
	MandatoryInitial MandatoryKind = "initial"
	MandatoryFinal   MandatoryKind = "final"
)

// Params carries the kind-specific condition parameters. Which fields
// apply is validated at configuration-load time, not at evaluation time.
type Params struct {
	// InventoryID names the inventory consulted by stock kinds. An
	// empty value on a stock kind means unconfigured; the engine
	// resolves that to the on-hold safe default rather than a pass.
	InventoryID string `json:"inventory_id,omitempty"`
	// StageKey names the stage whose record operator_assigned and
	// stage_ready inspect.
	StageKey string `json:"stage_key,omitempty"`
	// TargetStageID is where an auto-skip condition redirects to.
	TargetStageID string `json:"target_stage_id,omitempty"`
}

// Condition is one named, parameterized predicate over an order.
type Condition struct {
	ID       string        `json:"id"`
	Kind     ConditionKind `json:"kind"`
	Required bool          `json:"required"`
	AutoSkip bool          `json:"auto_skip,omitempty"`
	Params   Params        `json:"params"`
}

// Stage is one configured step of a flow. Read-only to the engine.
type Stage struct {
	ID               string        `json:"id" validate:"required"`
	FlowID           string        `json:"flow_id" validate:"required"`
	Name             string        `json:"name" validate:"required"`
	Order            int           `json:"order"`
	PermissionModule string        `json:"permission_module"`
	Mandatory        bool          `json:"mandatory"`
	MandatoryKind    MandatoryKind `json:"mandatory_kind,omitempty" validate:"omitempty,oneof=initial final"`
	ExitConditions   []Condition   `json:"exit_conditions"`
	EntryConditions  []Condition   `json:"entry_conditions"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Flow groups an ordered list of stages.
type Flow struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Active    bool      `json:"active"`
	Order     int       `json:"order"`
	StageIDs  []string  `json:"stage_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
