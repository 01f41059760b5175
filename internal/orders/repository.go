package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
)

// RepositoryPort abstracts order storage for the service and the
// pipeline engine.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	NextID(ctx context.Context) (string, error)
}

// ListFilter narrows List results.
type ListFilter struct {
	Status       StageKey
	OverallState string
	Limit        int
}

// Repository persists orders in PostgreSQL. The aggregate is stored as
// one JSONB document per row, the way the upstream system keeps one
// document per order; status, overall_state and version are mirrored
// into columns for filtering and the optimistic-concurrency check.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads one order by id.
func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	if r == nil {
		return nil, errors.New("orders repository not initialised")
	}
	var doc []byte
	var version int64
	err := r.pool.QueryRow(ctx, `SELECT doc, version FROM orders WHERE id=$1`, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("orders: %s: %w", id, shared.ErrNotFound)
		}
		return nil, storeErr(err)
	}
	var order Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return nil, fmt.Errorf("orders: decode %s: %w", id, err)
	}
	order.Version = version
	return &order, nil
}

// Create inserts a new order document.
func (r *Repository) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		return errors.New("orders: id required")
	}
	o.Version = 1
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("orders: encode %s: %w", o.ID, err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO orders (id, status, overall_state, version, doc, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, o.ID, string(o.Status), o.OverallState, o.Version, doc, o.CreatedAt, o.UpdatedAt)
	return storeErr(err)
}

// Update persists the whole document conditionally on the version the
// caller read. A concurrent writer makes the update fail with
// ErrStaleOrder; callers retry by re-reading.
func (r *Repository) Update(ctx context.Context, o *Order) error {
	readVersion := o.Version
	o.Version = readVersion + 1
	o.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("orders: encode %s: %w", o.ID, err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2, overall_state=$3, version=$4, doc=$5, updated_at=$6
WHERE id=$1 AND version=$7`, o.ID, string(o.Status), o.OverallState, o.Version, doc, o.UpdatedAt, readVersion)
	if err != nil {
		o.Version = readVersion
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		o.Version = readVersion
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, o.ID).Scan(&exists); err != nil {
			return storeErr(err)
		}
		if !exists {
			return fmt.Errorf("orders: %s: %w", o.ID, shared.ErrNotFound)
		}
		return fmt.Errorf("orders: %s: %w", o.ID, shared.ErrStaleOrder)
	}
	return nil
}

// List returns orders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT doc, version FROM orders
WHERE ($1 = '' OR status = $1) AND ($2 = '' OR overall_state = $2)
ORDER BY created_at DESC LIMIT $3`, string(filter.Status), filter.OverallState, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, storeErr(err)
		}
		var order Order
		if err := json.Unmarshal(doc, &order); err != nil {
			return nil, fmt.Errorf("orders: decode: %w", err)
		}
		order.Version = version
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// NextID allocates the next zero-padded order id.
func (r *Repository) NextID(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('orders_id_seq')`).Scan(&n); err != nil {
		return "", storeErr(err)
	}
	return fmt.Sprintf("%04d", n), nil
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", shared.ErrRepositoryUnavailable, err)
}
