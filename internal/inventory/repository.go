package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
)

// Repository persists inventory data in PostgreSQL. Logical collections
// share one table keyed by the collection column.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

const itemColumns = `id, collection, garment_type, color, size, qty_on_hand, qty_in, qty_out, unit_cost, created_at, updated_at`

// List returns all items of one collection.
func (r *Repository) List(ctx context.Context, collection string) ([]Item, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE collection=$1 ORDER BY garment_type, color, size`, collection)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *txRepository) ListForUpdate(ctx context.Context, collection string) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE collection=$1 ORDER BY garment_type, color, size FOR UPDATE`, collection)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_items (id, collection, garment_type, color, size, qty_on_hand, qty_in, qty_out, unit_cost, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())`,
		item.ID, item.Collection, item.GarmentType, item.Color, item.Size,
		item.QuantityOnHand, item.QuantityIn, item.QuantityOut, item.UnitCost, item.CreatedAt)
	return storeErr(err)
}

func (r *txRepository) UpdateQuantities(ctx context.Context, collection, itemID string, onHand, in, out int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET qty_on_hand=$1, qty_in=$2, qty_out=$3, updated_at=NOW() WHERE collection=$4 AND id=$5`,
		onHand, in, out, collection, itemID)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory: item %s/%s: %w", collection, itemID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_movements (id, code, kind, collection, item_id, qty, order_id, note, actor_id, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.Code, string(m.Kind), m.Collection, m.ItemID, m.Qty, nullStr(m.OrderID), m.Note, m.ActorID, m.PostedAt)
	return storeErr(err)
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	items := []Item{}
	for rows.Next() {
		var it Item
		var createdAt, updatedAt *time.Time
		if err := rows.Scan(&it.ID, &it.Collection, &it.GarmentType, &it.Color, &it.Size,
			&it.QuantityOnHand, &it.QuantityIn, &it.QuantityOut, &it.UnitCost, &createdAt, &updatedAt); err != nil {
			return nil, storeErr(err)
		}
		if createdAt != nil {
			it.CreatedAt = *createdAt
		}
		if updatedAt != nil {
			it.UpdatedAt = *updatedAt
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", shared.ErrRepositoryUnavailable, err)
}
