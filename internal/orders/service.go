package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/inventory"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// Installments bounds how many installment payments count toward
	// the balance. Out-of-range values fall back to the default.
	Installments int
}

// Service implements order capture and field mutations. Every mutation
// appends exactly one history entry and bumps the document version, so
// two actors editing the same order cannot silently overwrite each
// other.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	cfg    ServiceConfig
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.Installments < 1 || cfg.Installments > MaxInstallments {
		cfg.Installments = DefaultInstallments
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, cfg: cfg}
}

// Installments exposes the configured installment count.
func (s *Service) Installments() int {
	return s.cfg.Installments
}

// CreateInput carries the fields captured at sales time. Amounts arrive
// as raw strings and are parsed leniently.
type CreateInput struct {
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerPhone string `json:"customer_phone"`
	Seller        string `json:"seller"`
	TotalAmount   string `json:"total_amount" validate:"required"`
	AdvanceAmount string `json:"advance_amount"`
	SizeSpec      string `json:"size_spec"`
	DesignNote    string `json:"design_note"`

	Garments []inventory.LineItem `json:"garments"`
}

// Create captures a new order in the sales stage.
func (s *Service) Create(ctx context.Context, in CreateInput, actor string) (*Order, error) {
	total := shared.ParseAmount(in.TotalAmount)
	advance := shared.ParseAmount(in.AdvanceAmount)

	id, err := s.repo.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("orders: allocate id: %w", err)
	}

	now := time.Now().UTC()
	order := &Order{
		ID:            id,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Seller:        in.Seller,
		TotalAmount:   total,
		AdvanceAmount: advance,
		SizeSpec:      in.SizeSpec,
		Garments:      in.Garments,
		DesignNote:    in.DesignNote,
		Status:        StageSales,
		OverallState:  StateInSales,
		Sales:         StageRecord{EnteredAt: &now},
		CreatedAt:     now,
	}
	order.AppendHistory(HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		ActorID:   actor,
		Action:    "order.created",
		Detail:    fmt.Sprintf("total %.2f advance %.2f", total, advance),
	})

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("orders: create: %w", err)
	}
	s.recordAudit(ctx, actor, "order.created", order.ID, map[string]any{"total": total})
	return order, nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.List(ctx, filter)
}

// Balance computes the outstanding amount with the configured
// installment count.
func (s *Service) Balance(o *Order) float64 {
	return ComputeBalance(o, s.cfg.Installments)
}

// RecordPayment sets the payment for one installment (1-based). Setting
// an installment overwrites its previous value; corrections re-post the
// same slot.
func (s *Service) RecordPayment(ctx context.Context, id string, installment int, amount float64, actor string) (*Order, error) {
	if installment < 1 || installment > s.cfg.Installments {
		return nil, fmt.Errorf("orders: installment %d out of range 1..%d: %w", installment, s.cfg.Installments, ErrInvalidInstallment)
	}
	if amount < 0 {
		return nil, fmt.Errorf("orders: negative payment: %w", ErrInvalidAmount)
	}
	detail := fmt.Sprintf("installment %d = %.2f", installment, amount)
	return s.mutate(ctx, id, actor, "order.payment_recorded", detail, func(o *Order) error {
		for len(o.Billing.Payments) < installment {
			o.Billing.Payments = append(o.Billing.Payments, 0)
		}
		o.Billing.Payments[installment-1] = amount
		return nil
	})
}

// AssignDesigner sets the designer on the design record.
func (s *Service) AssignDesigner(ctx context.Context, id, designer, actor string) (*Order, error) {
	designer = strings.TrimSpace(designer)
	if designer == "" {
		return nil, fmt.Errorf("orders: designer required: %w", ErrInvalidField)
	}
	return s.mutate(ctx, id, actor, "order.designer_assigned", designer, func(o *Order) error {
		o.Design.Designer = designer
		return nil
	})
}

// SetImageURL records the approved design artwork location.
func (s *Service) SetImageURL(ctx context.Context, id, url, actor string) (*Order, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("orders: image url required: %w", ErrInvalidField)
	}
	return s.mutate(ctx, id, actor, "order.image_set", url, func(o *Order) error {
		o.Design.ImageURL = url
		return nil
	})
}

// SetSizes replaces the size specification. A structured garment list
// may accompany it; when present it takes precedence over parsing the
// string at verification time.
func (s *Service) SetSizes(ctx context.Context, id, sizeSpec string, garments []inventory.LineItem, actor string) (*Order, error) {
	if strings.TrimSpace(sizeSpec) == "" && len(garments) == 0 {
		return nil, fmt.Errorf("orders: sizes required: %w", ErrInvalidField)
	}
	return s.mutate(ctx, id, actor, "order.sizes_set", sizeSpec, func(o *Order) error {
		o.SizeSpec = sizeSpec
		o.Garments = garments
		return nil
	})
}

// SetDesignNote records the sales comment the design stage reads.
func (s *Service) SetDesignNote(ctx context.Context, id, note, actor string) (*Order, error) {
	return s.mutate(ctx, id, actor, "order.note_set", note, func(o *Order) error {
		o.DesignNote = note
		return nil
	})
}

// AssignOperator sets the operator on one stage record.
func (s *Service) AssignOperator(ctx context.Context, id string, stage StageKey, operator, actor string) (*Order, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, fmt.Errorf("orders: operator required: %w", ErrInvalidField)
	}
	detail := fmt.Sprintf("%s: %s", stage, operator)
	return s.mutate(ctx, id, actor, "order.operator_assigned", detail, func(o *Order) error {
		rec := o.StageRecordFor(stage)
		if rec == nil {
			return fmt.Errorf("orders: unknown stage %q: %w", stage, ErrInvalidField)
		}
		rec.Operator = operator
		return nil
	})
}

// AssignDeliverer sets the deliverer on the delivery record.
func (s *Service) AssignDeliverer(ctx context.Context, id, deliverer, actor string) (*Order, error) {
	deliverer = strings.TrimSpace(deliverer)
	if deliverer == "" {
		return nil, fmt.Errorf("orders: deliverer required: %w", ErrInvalidField)
	}
	return s.mutate(ctx, id, actor, "order.deliverer_assigned", deliverer, func(o *Order) error {
		o.Delivery.Deliverer = deliverer
		return nil
	})
}

// SetStageState tags the stage record with a free-form state marker such
// as ready or delivered.
func (s *Service) SetStageState(ctx context.Context, id string, stage StageKey, state, actor string) (*Order, error) {
	detail := fmt.Sprintf("%s: %s", stage, state)
	return s.mutate(ctx, id, actor, "order.stage_state_set", detail, func(o *Order) error {
		rec := o.StageRecordFor(stage)
		if rec == nil {
			return fmt.Errorf("orders: unknown stage %q: %w", stage, ErrInvalidField)
		}
		rec.State = state
		return nil
	})
}

// mutateRetries bounds the re-read loop on version conflicts.
const mutateRetries = 3

// mutate runs get, apply, append-history, update, retrying on a stale
// version. Field mutations commute with stage transitions, so a fresh
// re-read and re-apply is safe.
func (s *Service) mutate(ctx context.Context, id, actor, action, detail string, fn func(*Order) error) (*Order, error) {
	var lastErr error
	for attempt := 0; attempt < mutateRetries; attempt++ {
		order, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(order); err != nil {
			return nil, err
		}
		order.AppendHistory(HistoryEntry{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC(),
			ActorID:   actor,
			Action:    action,
			Detail:    detail,
		})
		err = s.repo.Update(ctx, order)
		if err == nil {
			s.recordAudit(ctx, actor, action, order.ID, map[string]any{"detail": detail})
			return order, nil
		}
		if !errors.Is(err, shared.ErrStaleOrder) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("order mutation conflict, retrying", "order_id", id, "attempt", attempt+1)
	}
	return nil, lastErr
}

func (s *Service) recordAudit(ctx context.Context, actor, action, orderID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "order",
		EntityID: orderID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", "order_id", orderID, "error", err)
	}
}
