package inventory

import (
	"errors"
	"time"
)

// CollectionGarments is the default physical inventory for orders.
const CollectionGarments = "inventarioPrendas"

// CollectionProducts holds finished products rather than blank garments.
const CollectionProducts = "inventarioProductos"

// Item is one stocked inventory row. Items are created by intake, mutated
// by reservations and manual adjustments, and never deleted while
// movements reference them.
type Item struct {
	ID             string
	Collection     string
	GarmentType    string
	Color          string
	Size           string
	QuantityOnHand int
	QuantityIn     int
	QuantityOut    int
	UnitCost       float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LineItem is one required (garment type, color, size, quantity) tuple
// derived from an order.
type LineItem struct {
	GarmentType string `json:"garment_type"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	Quantity    int    `json:"quantity"`
}

// MovementKind enumerates stock movements.
type MovementKind string

const (
	// MovementIntake is an inbound restock.
	MovementIntake MovementKind = "INTAKE"
	// MovementReservation is an outbound decrement committed to an order.
	MovementReservation MovementKind = "RESERVATION"
	// MovementAdjust is a manual correction.
	MovementAdjust MovementKind = "ADJUST"
)

// Movement records one stock mutation against an item.
type Movement struct {
	ID         string
	Code       string
	Kind       MovementKind
	Collection string
	ItemID     string
	Qty        int
	OrderID    string
	Note       string
	ActorID    string
	PostedAt   time.Time
}

// Reason explains why verification failed, in the order checks run.
type Reason string

const (
	// ReasonOK means every required line item is stocked.
	ReasonOK Reason = "ok"
	// ReasonInventoryEmpty means the resolved collection has no items.
	ReasonInventoryEmpty Reason = "inventory_empty"
	// ReasonNoLineItems means the order has no parseable line items.
	ReasonNoLineItems Reason = "no_line_items"
	// ReasonItemNotFound means a required line item has no matching stock.
	ReasonItemNotFound Reason = "item_not_found"
	// ReasonInsufficientStock means a matched item cannot cover the quantity.
	ReasonInsufficientStock Reason = "insufficient_stock"
)

// Verification is the outcome of a stock check for one order.
type Verification struct {
	Available   bool     `json:"available"`
	Reason      Reason   `json:"reason"`
	InventoryID string   `json:"inventory_id"`
	Missing     *LineItem `json:"missing,omitempty"`
}

// IntakeInput describes a restock posting.
type IntakeInput struct {
	InventoryID string
	GarmentType string
	Color       string
	Size        string
	Qty         int
	UnitCost    float64
	Note        string
	ActorID     string
}

// ReserveInput describes a reservation request for one order.
type ReserveInput struct {
	OrderID     string
	Lines       []LineItem
	InventoryID string
	ActorID     string
}

// ReserveResult reports a reservation attempt. A failed verification is
// not an error; callers read Verification.Reason.
type ReserveResult struct {
	Reserved     bool         `json:"reserved"`
	Message      string       `json:"message"`
	Verification Verification `json:"verification"`
	ItemsUpdated int          `json:"items_updated"`
}

// ErrInvalidQuantity indicates a zero or negative quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitCost indicates a negative cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
