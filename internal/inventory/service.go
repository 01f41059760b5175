package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
)

// RepositoryPort abstracts the store behind the service.
type RepositoryPort interface {
	List(ctx context.Context, collection string) ([]Item, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is the transaction-scoped surface. ListForUpdate must hold
// row locks until the transaction ends so verify-then-decrement cannot
// race a concurrent reservation.
type TxRepository interface {
	ListForUpdate(ctx context.Context, collection string) ([]Item, error)
	InsertItem(ctx context.Context, item Item) error
	UpdateQuantities(ctx context.Context, collection, itemID string, onHand, in, out int) error
	InsertMovement(ctx context.Context, m Movement) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// DefaultInventoryID backs stock conditions that carry no inventory
	// parameter.
	DefaultInventoryID string
}

// Service implements stock verification and reservation.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cfg   ServiceConfig
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	if cfg.DefaultInventoryID == "" {
		cfg.DefaultInventoryID = CollectionGarments
	}
	return &Service{repo: repo, audit: audit, cfg: cfg}
}

// DefaultInventoryID exposes the configured fallback inventory.
func (s *Service) DefaultInventoryID() string {
	return s.cfg.DefaultInventoryID
}

// List returns the items of a logical inventory.
func (s *Service) List(ctx context.Context, inventoryID string) ([]Item, error) {
	collection := s.collectionFor(inventoryID)
	items, err := s.repo.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("inventory: list %s: %w", collection, err)
	}
	return items, nil
}

// Verify checks whether every required line item is individually covered
// by stock. The check is all-or-nothing and returns on the first failing
// line item.
func (s *Service) Verify(ctx context.Context, lines []LineItem, inventoryID string) (Verification, error) {
	collection := s.collectionFor(inventoryID)
	items, err := s.repo.List(ctx, collection)
	if err != nil {
		return Verification{}, fmt.Errorf("inventory: list %s: %w", collection, err)
	}
	return verifyAgainst(items, lines, collection), nil
}

// Reserve decrements stock for a confirmed advance. Verification and the
// decrements run inside one repository transaction, so two concurrent
// reservations against the same item cannot both succeed.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (ReserveResult, error) {
	if input.OrderID == "" {
		return ReserveResult{}, errors.New("inventory: order id required")
	}
	collection := s.collectionFor(input.InventoryID)
	now := time.Now().UTC()

	var result ReserveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items, err := tx.ListForUpdate(ctx, collection)
		if err != nil {
			return err
		}
		verification := verifyAgainst(items, input.Lines, collection)
		result.Verification = verification
		if !verification.Available {
			result.Message = fmt.Sprintf("insufficient stock: %s", verification.Reason)
			return nil
		}
		for _, line := range input.Lines {
			item := Match(items, line)
			qty := line.Quantity
			if qty <= 0 {
				qty = 1
			}
			item.QuantityOnHand -= qty
			item.QuantityOut += qty
			if err := tx.UpdateQuantities(ctx, collection, item.ID, item.QuantityOnHand, item.QuantityIn, item.QuantityOut); err != nil {
				return err
			}
			movement := Movement{
				ID:         uuid.NewString(),
				Code:       fmt.Sprintf("RSV-%s-%d", input.OrderID, now.UnixNano()),
				Kind:       MovementReservation,
				Collection: collection,
				ItemID:     item.ID,
				Qty:        -qty,
				OrderID:    input.OrderID,
				Note:       fmt.Sprintf("reserved for order %s", input.OrderID),
				ActorID:    input.ActorID,
				PostedAt:   now,
			}
			if err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
			result.ItemsUpdated++
		}
		result.Reserved = true
		result.Message = fmt.Sprintf("stock reduced for %d items", result.ItemsUpdated)
		return nil
	})
	if err != nil {
		return ReserveResult{}, fmt.Errorf("inventory: reserve for order %s: %w", input.OrderID, err)
	}

	if result.Reserved && s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "inventory:reserve",
			Entity:   "order",
			EntityID: input.OrderID,
			Meta: map[string]any{
				"collection": collection,
				"items":      result.ItemsUpdated,
			},
		})
	}
	return result, nil
}

// PostIntake registers restocked quantities, creating the item row when
// the (type, color, size) tuple is new to the collection.
func (s *Service) PostIntake(ctx context.Context, input IntakeInput) (Item, error) {
	if input.Qty <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return Item{}, ErrInvalidUnitCost
	}
	collection := s.collectionFor(input.InventoryID)
	now := time.Now().UTC()

	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items, err := tx.ListForUpdate(ctx, collection)
		if err != nil {
			return err
		}
		line := LineItem{GarmentType: input.GarmentType, Color: input.Color, Size: input.Size}
		item := Match(items, line)
		created := false
		if item == nil {
			created = true
			item = &Item{
				ID:          uuid.NewString(),
				Collection:  collection,
				GarmentType: input.GarmentType,
				Color:       input.Color,
				Size:        input.Size,
				UnitCost:    input.UnitCost,
				CreatedAt:   now,
			}
		}
		item.QuantityOnHand += input.Qty
		item.QuantityIn += input.Qty
		if input.UnitCost > 0 {
			item.UnitCost = input.UnitCost
		}
		if created {
			if err := tx.InsertItem(ctx, *item); err != nil {
				return err
			}
		} else if err := tx.UpdateQuantities(ctx, collection, item.ID, item.QuantityOnHand, item.QuantityIn, item.QuantityOut); err != nil {
			return err
		}
		movement := Movement{
			ID:         uuid.NewString(),
			Code:       fmt.Sprintf("ING-%d", now.UnixNano()),
			Kind:       MovementIntake,
			Collection: collection,
			ItemID:     item.ID,
			Qty:        input.Qty,
			Note:       input.Note,
			ActorID:    input.ActorID,
			PostedAt:   now,
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		updated = *item
		return nil
	})
	if err != nil {
		return Item{}, fmt.Errorf("inventory: intake: %w", err)
	}
	return updated, nil
}

func (s *Service) collectionFor(inventoryID string) string {
	if inventoryID == "" {
		inventoryID = s.cfg.DefaultInventoryID
	}
	return ResolveCollection(inventoryID)
}

func verifyAgainst(items []Item, lines []LineItem, collection string) Verification {
	if len(items) == 0 {
		return Verification{Reason: ReasonInventoryEmpty, InventoryID: collection}
	}
	if len(lines) == 0 {
		return Verification{Reason: ReasonNoLineItems, InventoryID: collection}
	}
	for _, line := range lines {
		item := Match(items, line)
		if item == nil {
			missing := line
			return Verification{Reason: ReasonItemNotFound, InventoryID: collection, Missing: &missing}
		}
		required := line.Quantity
		if required <= 0 {
			required = 1
		}
		if item.QuantityOnHand < required {
			missing := line
			return Verification{Reason: ReasonInsufficientStock, InventoryID: collection, Missing: &missing}
		}
	}
	return Verification{Available: true, Reason: ReasonOK, InventoryID: collection}
}
