package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coast_crm_backend/internal/prospects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("prospect not found")
	ErrDuplicate = errors.New("prospect already exists for this business and market")
)

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Prospect is a sales lead tracked through the pipeline. The four
// flag/timestamp pairs are derived from stage transitions, and the cadence
// fields are owned by the automation processors.
type Prospect struct {
	ID           uuid.UUID
	BusinessName string
	Market       string
	Category     string
	OwnerName    *string
	Email        *string
	Phone        *string
	Website      *string
	AssignedToID *uuid.UUID

	PipelineStage    string
	Contacted        bool
	ContactedAt      *time.Time
	Responded        bool
	RespondedAt      *time.Time
	DealClosed       bool
	DealClosedAt     *time.Time
	ProjectStarted   bool
	ProjectStartedAt *time.Time

	FollowUpStep    int
	LastAutoEmailAt *time.Time
	FollowUpPaused  bool
	NurtureDate     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

const prospectSelectCols = `
	id, business_name, market, category, owner_name, email, phone, website, assigned_to_id,
	pipeline_stage, contacted, contacted_at, responded, responded_at,
	deal_closed, deal_closed_at, project_started, project_started_at,
	follow_up_step, last_auto_email_at, follow_up_paused, nurture_date,
	created_at, updated_at`

// prospectRowScanner is satisfied by pgx.Rows and pgx.Row so that
// scanProspect can be shared between single-row and multi-row queries.
type prospectRowScanner interface {
	Scan(dest ...any) error
}

// scanProspect populates a Prospect from a standard SELECT row.
// Column order must match prospectSelectCols.
func scanProspect(s prospectRowScanner) (Prospect, error) {
	var p Prospect
	if err := s.Scan(
		&p.ID, &p.BusinessName, &p.Market, &p.Category, &p.OwnerName, &p.Email, &p.Phone, &p.Website, &p.AssignedToID,
		&p.PipelineStage, &p.Contacted, &p.ContactedAt, &p.Responded, &p.RespondedAt,
		&p.DealClosed, &p.DealClosedAt, &p.ProjectStarted, &p.ProjectStartedAt,
		&p.FollowUpStep, &p.LastAutoEmailAt, &p.FollowUpPaused, &p.NurtureDate,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return Prospect{}, err
	}
	return p, nil
}

type CreateProspectParams struct {
	BusinessName string
	Market       string
	Category     string
	OwnerName    *string
	Email        *string
	Phone        *string
	Website      *string
	AssignedToID *uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateProspectParams) (Prospect, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO prospects (business_name, market, category, owner_name, email, phone, website, assigned_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING`+prospectSelectCols+`
	`, params.BusinessName, params.Market, params.Category, params.OwnerName, params.Email, params.Phone, params.Website, params.AssignedToID)

	prospect, err := scanProspect(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Prospect{}, ErrDuplicate
		}
		return Prospect{}, err
	}
	return prospect, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Prospect, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+prospectSelectCols+`
		FROM prospects
		WHERE id = $1
	`, id)

	prospect, err := scanProspect(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Prospect{}, ErrNotFound
		}
		return Prospect{}, err
	}
	return prospect, nil
}

type ListProspectsParams struct {
	Stage  *string
	Search *string
	Limit  int
	Offset int
}

func (r *Repository) List(ctx context.Context, params ListProspectsParams) ([]Prospect, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)

	if params.Stage != nil && *params.Stage != "" {
		args = append(args, *params.Stage)
		clauses = append(clauses, fmt.Sprintf("pipeline_stage = $%d", len(args)))
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(*params.Search)+"%")
		clauses = append(clauses, fmt.Sprintf("(business_name ILIKE $%d OR market ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, params.Offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT%s
		FROM prospects
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, prospectSelectCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectProspects(rows)
}

// ListFollowUpCandidates returns prospects eligible to receive an automated
// follow-up nudge: contacted but unresponsive, cadence not paused, still in a
// contactable stage, and with an email address on file.
func (r *Repository) ListFollowUpCandidates(ctx context.Context) ([]Prospect, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+prospectSelectCols+`
		FROM prospects
		WHERE contacted = true
		  AND responded = false
		  AND follow_up_paused = false
		  AND pipeline_stage IN ($1, $2)
		  AND email IS NOT NULL
		  AND email <> ''
	`, domain.StageContacted, domain.StageFollowUp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectProspects(rows)
}

func collectProspects(rows pgx.Rows) ([]Prospect, error) {
	items := make([]Prospect, 0)
	for rows.Next() {
		prospect, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, prospect)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// StageChangeParams carries the stage value plus the side-effect flag pairs
// derived from the stage registry. Only flags set true are written; their
// companion timestamps receive At.
type StageChangeParams struct {
	Stage             string
	SetContacted      bool
	SetResponded      bool
	SetDealClosed     bool
	SetProjectStarted bool
	At                time.Time
}

func (r *Repository) ApplyStageChange(ctx context.Context, id uuid.UUID, params StageChangeParams) error {
	sets := []string{"pipeline_stage = $2", "updated_at = $3"}
	args := []any{id, params.Stage, params.At}

	appendFlag := func(flag, stamp string) {
		args = append(args, params.At)
		sets = append(sets, fmt.Sprintf("%s = true, %s = $%d", flag, stamp, len(args)))
	}
	if params.SetContacted {
		appendFlag("contacted", "contacted_at")
	}
	if params.SetResponded {
		appendFlag("responded", "responded_at")
	}
	if params.SetDealClosed {
		appendFlag("deal_closed", "deal_closed_at")
	}
	if params.SetProjectStarted {
		appendFlag("project_started", "project_started_at")
	}

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE prospects SET %s WHERE id = $1
	`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAutoEmailSent records a successful cadence send: stamps the rate-limit
// timestamp, advances the step counter, and moves the prospect to the given
// stage.
func (r *Repository) MarkAutoEmailSent(ctx context.Context, id uuid.UUID, at time.Time, step int, stage string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects
		SET last_auto_email_at = $2, follow_up_step = $3, pipeline_stage = $4, updated_at = $2
		WHERE id = $1
	`, id, at, step, stage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastAutoEmailAt stamps only the rate-limit timestamp. Used by the ad-hoc
// trigger path, which does not advance the cadence step.
func (r *Repository) SetLastAutoEmailAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects
		SET last_auto_email_at = $2, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveToNurture parks a prospect whose cadence is exhausted.
func (r *Repository) MoveToNurture(ctx context.Context, id uuid.UUID, nurtureDate time.Time, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects
		SET pipeline_stage = $2, nurture_date = $3, updated_at = $4
		WHERE id = $1
	`, id, domain.StageNurture, nurtureDate, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetFollowUpPaused(ctx context.Context, id uuid.UUID, paused bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects
		SET follow_up_paused = $2, updated_at = now()
		WHERE id = $1
	`, id, paused)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// StageCount is one row of the pipeline summary aggregate.
type StageCount struct {
	Stage string
	Count int
}

// CountByStage returns the number of prospects in each pipeline stage.
func (r *Repository) CountByStage(ctx context.Context) ([]StageCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pipeline_stage, count(*)
		FROM prospects
		GROUP BY pipeline_stage
		ORDER BY pipeline_stage
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]StageCount, 0)
	for rows.Next() {
		var item StageCount
		if err := rows.Scan(&item.Stage, &item.Count); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
