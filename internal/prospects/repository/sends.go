package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Template send statuses.
const (
	SendStatusSent    = "sent"
	SendStatusOpened  = "opened"
	SendStatusReplied = "replied"
	SendStatusBounced = "bounced"
)

var ErrSendNotFound = errors.New("template send not found")

// TemplateSend records a single outbound automated email. SentBy is nil for
// timer-driven sends and carries the operator id when a person triggered the
// run; Automated distinguishes processor sends from any future manual path.
type TemplateSend struct {
	ID         uuid.UUID
	ProspectID uuid.UUID
	TemplateID uuid.UUID
	Trigger    string
	Recipient  string
	Subject    string
	MessageID  string
	Status     string
	Sentiment  *string
	SentBy     *uuid.UUID
	Automated  bool
	SentAt     time.Time
	UpdatedAt  time.Time
}

type CreateSendParams struct {
	ProspectID uuid.UUID
	TemplateID uuid.UUID
	Trigger    string
	Recipient  string
	Subject    string
	MessageID  string
	SentBy     *uuid.UUID
	Automated  bool
	SentAt     time.Time
}

func (r *Repository) CreateSend(ctx context.Context, params CreateSendParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO template_sends (prospect_id, template_id, trigger_name, recipient, subject, message_id, status, sent_by, is_automated, sent_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, params.ProspectID, params.TemplateID, params.Trigger, params.Recipient, params.Subject, params.MessageID, SendStatusSent, params.SentBy, params.Automated, params.SentAt)
	return err
}

const sendSelectCols = `
	id, prospect_id, template_id, trigger_name, recipient, subject, message_id, status, sentiment, sent_by, is_automated, sent_at, updated_at`

func scanSend(s prospectRowScanner) (TemplateSend, error) {
	var ts TemplateSend
	if err := s.Scan(&ts.ID, &ts.ProspectID, &ts.TemplateID, &ts.Trigger, &ts.Recipient, &ts.Subject, &ts.MessageID, &ts.Status, &ts.Sentiment, &ts.SentBy, &ts.Automated, &ts.SentAt, &ts.UpdatedAt); err != nil {
		return TemplateSend{}, err
	}
	return ts, nil
}

func (r *Repository) ListSends(ctx context.Context, prospectID uuid.UUID) ([]TemplateSend, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+sendSelectCols+`
		FROM template_sends
		WHERE prospect_id = $1
		ORDER BY sent_at DESC
	`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]TemplateSend, 0)
	for rows.Next() {
		ts, err := scanSend(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateSendStatus moves a send record through its delivery lifecycle.
// Sentiment is only meaningful for replied sends and may be nil.
func (r *Repository) UpdateSendStatus(ctx context.Context, id uuid.UUID, status string, sentiment *string) (TemplateSend, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE template_sends
		SET status = $2, sentiment = $3, updated_at = now()
		WHERE id = $1
		RETURNING`+sendSelectCols+`
	`, id, status, sentiment)

	ts, err := scanSend(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TemplateSend{}, ErrSendNotFound
		}
		return TemplateSend{}, err
	}
	return ts, nil
}
