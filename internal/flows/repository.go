package flows

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

// RepositoryPort is the read surface the engine consumes. Configuration
// is mutated only through administrative endpoints, never by order
// processing.
type RepositoryPort interface {
	GetFlow(ctx context.Context, id string) (*Flow, error)
	ListStages(ctx context.Context, flowID string) ([]Stage, error)
	GetStage(ctx context.Context, id string) (*Stage, error)
}

// Repository persists flows and stages in PostgreSQL, one JSONB document
// per row like the order store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetFlow loads one flow by id.
func (r *Repository) GetFlow(ctx context.Context, id string) (*Flow, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM flows WHERE id=$1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("flows: %s: %w", id, shared.ErrNotFound)
		}
		return nil, storeErr(err)
	}
	var flow Flow
	if err := json.Unmarshal(doc, &flow); err != nil {
		return nil, fmt.Errorf("flows: decode %s: %w", id, err)
	}
	return &flow, nil
}

// ListStages returns the stages of a flow in configured order.
func (r *Repository) ListStages(ctx context.Context, flowID string) ([]Stage, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc FROM flow_stages WHERE flow_id=$1 ORDER BY stage_order`, flowID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []Stage{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, storeErr(err)
		}
		var stage Stage
		if err := json.Unmarshal(doc, &stage); err != nil {
			return nil, fmt.Errorf("flows: decode stage: %w", err)
		}
		out = append(out, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// GetStage loads one stage by id.
func (r *Repository) GetStage(ctx context.Context, id string) (*Stage, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM flow_stages WHERE id=$1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("flows: stage %s: %w", id, shared.ErrNotFound)
		}
		return nil, storeErr(err)
	}
	var stage Stage
	if err := json.Unmarshal(doc, &stage); err != nil {
		return nil, fmt.Errorf("flows: decode stage %s: %w", id, err)
	}
	return &stage, nil
}

// SeedDefaultFlow inserts the built-in order flow when it is not present
// yet. Runs at startup; existing configuration is never overwritten.
func (r *Repository) SeedDefaultFlow(ctx context.Context) error {
	flow, stages := DefaultFlow(time.Now().UTC())
	if err := ValidateFlow(flow, stages); err != nil {
		return err
	}
	flowDoc, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("flows: encode seed flow: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO flows (id, doc) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING`, flow.ID, flowDoc)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	for _, stage := range stages {
		doc, err := json.Marshal(stage)
		if err != nil {
			return fmt.Errorf("flows: encode seed stage %s: %w", stage.ID, err)
		}
		_, err = r.pool.Exec(ctx, `INSERT INTO flow_stages (id, flow_id, stage_order, doc)
VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`, stage.ID, stage.FlowID, stage.Order, doc)
		if err != nil {
			return storeErr(err)
		}
	}
	return nil
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", shared.ErrRepositoryUnavailable, err)
}
