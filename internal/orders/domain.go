package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/inventory"
)

// Validation sentinels returned by Service operations.
var (
	ErrInvalidField       = errors.New("orders: invalid field")
	ErrInvalidAmount      = errors.New("orders: invalid amount")
	ErrInvalidInstallment = errors.New("orders: invalid installment")
)

// StageKey identifies one step of the fulfillment pipeline.
type StageKey string

const (
	// StageSales is the initial stage where an order is captured.
	StageSales StageKey = "sales"
	// StageDesign covers artwork and size capture.
	StageDesign StageKey = "design"
	// StageBilling collects the advance and installment payments.
	StageBilling StageKey = "billing"
	// StagePreparation readies blank garments for printing.
	StagePreparation StageKey = "preparation"
	// StagePrinting is the stamping step.
	StagePrinting StageKey = "printing"
	// StagePackaging packs the finished garments.
	StagePackaging StageKey = "packaging"
	// StageDelivery hands the package to a deliverer.
	StageDelivery StageKey = "delivery"
	// StageCompleted is the terminal stage.
	StageCompleted StageKey = "completed"
)

// Overall-state labels mirrored from the active stage.
const (
	StateInSales        = "In Sales"
	StateInDesign       = "In Design"
	StateInBilling      = "In Billing"
	StateReadyToPrepare = "Ready to Prepare"
	StateOnHoldStock    = "On Hold — Stock"
	StateInPrinting     = "In Printing"
	StateInPackaging    = "In Packaging"
	StateInDelivery     = "In Delivery"
	StateCompleted      = "Completed"
)

// StageStateOnHold marks a stage record opened while waiting on stock.
const StageStateOnHold = "on_hold_stock"

// StageStateReady marks a stage record opened with stock reserved.
const StageStateReady = "ready_for_next"

// StateForStage maps a stage key to the overall-state label mirrored on
// the order. Unknown keys pass through unchanged.
func StateForStage(key StageKey) string {
	switch key {
	case StageSales:
		return StateInSales
	case StageDesign:
		return StateInDesign
	case StageBilling:
		return StateInBilling
	case StagePreparation:
		return StateReadyToPrepare
	case StagePrinting:
		return StateInPrinting
	case StagePackaging:
		return StateInPackaging
	case StageDelivery:
		return StateInDelivery
	case StageCompleted:
		return StateCompleted
	}
	return string(key)
}

var overallStateLabels = []string{
	StateInSales, StateInDesign, StateInBilling, StateReadyToPrepare,
	StateOnHoldStock, StateInPrinting, StateInPackaging, StateInDelivery,
	StateCompleted,
}

// NormalizeOverallState canonicalizes caller-supplied state filters:
// stage keys, the on_hold_stock marker and differently-cased labels all
// resolve to the stored label. Unrecognized input passes through.
func NormalizeOverallState(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.EqualFold(s, StageStateOnHold) {
		return StateOnHoldStock
	}
	lower := strings.ToLower(s)
	if label := StateForStage(StageKey(lower)); label != lower {
		return label
	}
	for _, label := range overallStateLabels {
		if strings.EqualFold(s, label) {
			return label
		}
	}
	return s
}

// StageRecord is the sub-document every pipeline stage keeps on the
// order. At most one record is open (entered without exit) at a time.
type StageRecord struct {
	EnteredAt     *time.Time `json:"entered_at,omitempty"`
	ExitedAt      *time.Time `json:"exited_at,omitempty"`
	Operator      string     `json:"operator,omitempty"`
	State         string     `json:"state,omitempty"`
	DurationHours float64    `json:"duration_hours,omitempty"`
}

// Open reports whether the stage has been entered but not exited.
func (r *StageRecord) Open() bool {
	return r != nil && r.EnteredAt != nil && r.ExitedAt == nil
}

// DesignRecord extends StageRecord with design-specific fields.
type DesignRecord struct {
	StageRecord
	Designer string `json:"designer,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// BillingRecord extends StageRecord with installment payments. Payments
// are indexed by installment number; the configured installment count
// bounds how many the balance considers.
type BillingRecord struct {
	StageRecord
	Payments []float64 `json:"payments,omitempty"`
}

// DeliveryRecord extends StageRecord with the assigned deliverer.
type DeliveryRecord struct {
	StageRecord
	Deliverer string `json:"deliverer,omitempty"`
}

// HistoryEntry is one append-only modification record.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
}

// Order is the central mutable aggregate.
type Order struct {
	ID            string               `json:"id"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone,omitempty"`
	Seller        string               `json:"seller,omitempty"`
	TotalAmount   float64              `json:"total_amount"`
	AdvanceAmount float64              `json:"advance_amount"`
	SizeSpec      string               `json:"size_spec,omitempty"`
	Garments      []inventory.LineItem `json:"garments,omitempty"`
	DesignNote    string               `json:"design_note,omitempty"`

	Status       StageKey `json:"status"`
	OverallState string   `json:"overall_state"`

	Sales       StageRecord    `json:"sales"`
	Design      DesignRecord   `json:"design"`
	Billing     BillingRecord  `json:"billing"`
	Preparation StageRecord    `json:"preparation"`
	Printing    StageRecord    `json:"printing"`
	Packaging   StageRecord    `json:"packaging"`
	Delivery    DeliveryRecord `json:"delivery"`

	History []HistoryEntry `json:"history"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageRecordFor returns the shared record view for a stage key, or nil
// for unknown keys (the completed pseudo-stage keeps no record).
func (o *Order) StageRecordFor(key StageKey) *StageRecord {
	switch key {
	case StageSales:
		return &o.Sales
	case StageDesign:
		return &o.Design.StageRecord
	case StageBilling:
		return &o.Billing.StageRecord
	case StagePreparation:
		return &o.Preparation
	case StagePrinting:
		return &o.Printing
	case StagePackaging:
		return &o.Packaging
	case StageDelivery:
		return &o.Delivery.StageRecord
	}
	return nil
}

// stageKeys in pipeline order; completed keeps no record.
var stageKeys = []StageKey{StageSales, StageDesign, StageBilling, StagePreparation, StagePrinting, StagePackaging, StageDelivery}

// OpenStage returns the currently open stage, if any.
func (o *Order) OpenStage() (StageKey, bool) {
	for _, key := range stageKeys {
		if o.StageRecordFor(key).Open() {
			return key, true
		}
	}
	return "", false
}

// RequiredLineItems returns the order's structured garment list verbatim
// when present, otherwise parses the encoded size string. dropped names
// segments the parser could not read.
func (o *Order) RequiredLineItems() (lines []inventory.LineItem, dropped []string) {
	if len(o.Garments) > 0 {
		return o.Garments, nil
	}
	return inventory.ParseLineItems(o.SizeSpec)
}

// AppendHistory records one mutation. Every engine mutation appends
// exactly one entry.
func (o *Order) AppendHistory(entry HistoryEntry) {
	o.History = append(o.History, entry)
}
