package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrTemplateNotFound = errors.New("email template not found")

// EmailTemplate holds a subject/body pair with {{merge_tag}} placeholders.
type EmailTemplate struct {
	ID        uuid.UUID
	Name      string
	Subject   string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const templateSelectCols = `
	id, name, subject, body, created_at, updated_at`

func scanTemplate(s prospectRowScanner) (EmailTemplate, error) {
	var tmpl EmailTemplate
	if err := s.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Subject, &tmpl.Body, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		return EmailTemplate{}, err
	}
	return tmpl, nil
}

type CreateTemplateParams struct {
	Name    string
	Subject string
	Body    string
}

func (r *Repository) CreateTemplate(ctx context.Context, params CreateTemplateParams) (EmailTemplate, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO email_templates (name, subject, body)
		VALUES ($1, $2, $3)
		RETURNING`+templateSelectCols+`
	`, params.Name, params.Subject, params.Body)
	return scanTemplate(row)
}

func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (EmailTemplate, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+templateSelectCols+`
		FROM email_templates
		WHERE id = $1
	`, id)

	tmpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EmailTemplate{}, ErrTemplateNotFound
		}
		return EmailTemplate{}, err
	}
	return tmpl, nil
}

func (r *Repository) ListTemplates(ctx context.Context) ([]EmailTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+templateSelectCols+`
		FROM email_templates
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]EmailTemplate, 0)
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type UpdateTemplateParams struct {
	Name    *string
	Subject *string
	Body    *string
}

func (r *Repository) UpdateTemplate(ctx context.Context, id uuid.UUID, params UpdateTemplateParams) (EmailTemplate, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if params.Name != nil {
		args = append(args, *params.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if params.Subject != nil {
		args = append(args, *params.Subject)
		sets = append(sets, fmt.Sprintf("subject = $%d", len(args)))
	}
	if params.Body != nil {
		args = append(args, *params.Body)
		sets = append(sets, fmt.Sprintf("body = $%d", len(args)))
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE email_templates
		SET %s
		WHERE id = $1
		RETURNING%s
	`, strings.Join(sets, ", "), templateSelectCols), args...)

	tmpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EmailTemplate{}, ErrTemplateNotFound
		}
		return EmailTemplate{}, err
	}
	return tmpl, nil
}

func (r *Repository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM email_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
