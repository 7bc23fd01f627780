package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PipelineHistory is an append-only record of a single stage transition.
type PipelineHistory struct {
	ID         uuid.UUID
	ProspectID uuid.UUID
	FromStage  string
	ToStage    string
	ChangedBy  *uuid.UUID
	Notes      string
	ChangedAt  time.Time
}

type AppendHistoryParams struct {
	ProspectID uuid.UUID
	FromStage  string
	ToStage    string
	ChangedBy  *uuid.UUID
	Notes      string
	ChangedAt  time.Time
}

func (r *Repository) AppendHistory(ctx context.Context, params AppendHistoryParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pipeline_history (prospect_id, from_stage, to_stage, changed_by, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.ProspectID, params.FromStage, params.ToStage, params.ChangedBy, params.Notes, params.ChangedAt)
	return err
}

func (r *Repository) ListHistory(ctx context.Context, prospectID uuid.UUID) ([]PipelineHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prospect_id, from_stage, to_stage, changed_by, notes, changed_at
		FROM pipeline_history
		WHERE prospect_id = $1
		ORDER BY changed_at DESC
	`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]PipelineHistory, 0)
	for rows.Next() {
		var h PipelineHistory
		if err := rows.Scan(&h.ID, &h.ProspectID, &h.FromStage, &h.ToStage, &h.ChangedBy, &h.Notes, &h.ChangedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
