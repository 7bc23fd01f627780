package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Activity types recorded in the CRM feed.
const (
	ActivityStageChanged = "stage_changed"
	ActivityAutoFollowUp = "auto_follow_up"
	ActivityAutoThankYou = "auto_thank_you"
	ActivityNote         = "note"
)

// Activity is a single append-only CRM feed entry. TemplateID is set on
// automation entries that originated from a stored email template.
type Activity struct {
	ID         uuid.UUID
	ProspectID uuid.UUID
	Type       string
	Subject    string
	Detail     string
	TemplateID *uuid.UUID
	ActorID    *uuid.UUID
	Automated  bool
	CreatedAt  time.Time
}

type CreateActivityParams struct {
	ProspectID uuid.UUID
	Type       string
	Subject    string
	Detail     string
	TemplateID *uuid.UUID
	ActorID    *uuid.UUID
	Automated  bool
	CreatedAt  time.Time
}

func (r *Repository) CreateActivity(ctx context.Context, params CreateActivityParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm_activities (prospect_id, activity_type, subject, detail, template_id, actor_id, automated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, params.ProspectID, params.Type, params.Subject, params.Detail, params.TemplateID, params.ActorID, params.Automated, params.CreatedAt)
	return err
}

const activitySelectCols = `
	id, prospect_id, activity_type, subject, detail, template_id, actor_id, automated, created_at`

func scanActivity(s prospectRowScanner) (Activity, error) {
	var a Activity
	if err := s.Scan(&a.ID, &a.ProspectID, &a.Type, &a.Subject, &a.Detail, &a.TemplateID, &a.ActorID, &a.Automated, &a.CreatedAt); err != nil {
		return Activity{}, err
	}
	return a, nil
}

func (r *Repository) ListActivities(ctx context.Context, prospectID uuid.UUID) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+activitySelectCols+`
		FROM crm_activities
		WHERE prospect_id = $1
		ORDER BY created_at DESC
	`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// ListAutomatedActivities returns the most recent automation-generated
// entries across all prospects, newest first.
func (r *Repository) ListAutomatedActivities(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+activitySelectCols+`
		FROM crm_activities
		WHERE automated = TRUE
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

func collectActivities(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Activity, error) {
	items := make([]Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
