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

// FollowUpTriggerPrefix marks the config family that forms the cadence
// sequence. Everything else (thank_you_*) is a one-off trigger.
const FollowUpTriggerPrefix = "follow_up_day_"

var ErrConfigNotFound = errors.New("automation config not found")

// AutomationConfig is one named trigger row. A trigger with a nil TemplateID
// cannot fire.
type AutomationConfig struct {
	ID          uuid.UUID
	TriggerName string
	Enabled     bool
	TemplateID  *uuid.UUID
	DelayDays   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const configSelectCols = `
	id, trigger_name, enabled, template_id, delay_days, created_at, updated_at`

func scanConfig(s prospectRowScanner) (AutomationConfig, error) {
	var cfg AutomationConfig
	if err := s.Scan(&cfg.ID, &cfg.TriggerName, &cfg.Enabled, &cfg.TemplateID, &cfg.DelayDays, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return AutomationConfig{}, err
	}
	return cfg, nil
}

// ListConfigs returns every trigger row, follow-ups first in delay order.
func (r *Repository) ListConfigs(ctx context.Context) ([]AutomationConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+configSelectCols+`
		FROM automation_configs
		ORDER BY delay_days ASC, trigger_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// ListEnabledFollowUpConfigs returns the active cadence sequence: enabled
// follow_up_day_* triggers with a template attached, ascending by delay.
func (r *Repository) ListEnabledFollowUpConfigs(ctx context.Context) ([]AutomationConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+configSelectCols+`
		FROM automation_configs
		WHERE trigger_name LIKE $1
		  AND enabled = true
		  AND template_id IS NOT NULL
		ORDER BY delay_days ASC
	`, FollowUpTriggerPrefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// GetEnabledTrigger returns the enabled, templated config with the given
// trigger name, or ErrConfigNotFound.
func (r *Repository) GetEnabledTrigger(ctx context.Context, triggerName string) (AutomationConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+configSelectCols+`
		FROM automation_configs
		WHERE trigger_name = $1
		  AND enabled = true
		  AND template_id IS NOT NULL
	`, triggerName)

	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AutomationConfig{}, ErrConfigNotFound
		}
		return AutomationConfig{}, err
	}
	return cfg, nil
}

type UpdateConfigParams struct {
	Enabled    *bool
	TemplateID *uuid.UUID
	DelayDays  *int
}

// UpdateConfig patches the given fields of one trigger row. Passing a
// TemplateID pointing at uuid.Nil clears the template.
func (r *Repository) UpdateConfig(ctx context.Context, id uuid.UUID, params UpdateConfigParams) (AutomationConfig, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if params.Enabled != nil {
		args = append(args, *params.Enabled)
		sets = append(sets, fmt.Sprintf("enabled = $%d", len(args)))
	}
	if params.TemplateID != nil {
		if *params.TemplateID == uuid.Nil {
			sets = append(sets, "template_id = NULL")
		} else {
			args = append(args, *params.TemplateID)
			sets = append(sets, fmt.Sprintf("template_id = $%d", len(args)))
		}
	}
	if params.DelayDays != nil {
		args = append(args, *params.DelayDays)
		sets = append(sets, fmt.Sprintf("delay_days = $%d", len(args)))
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE automation_configs
		SET %s
		WHERE id = $1
		RETURNING%s
	`, strings.Join(sets, ", "), configSelectCols), args...)

	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AutomationConfig{}, ErrConfigNotFound
		}
		return AutomationConfig{}, err
	}
	return cfg, nil
}

// defaultConfigSeed is the initial trigger set: four cadence steps and four
// one-off thank-you triggers. All start enabled but without a template, so
// nothing fires until an operator attaches templates.
var defaultConfigSeed = []struct {
	triggerName string
	delayDays   int
}{
	{FollowUpTriggerPrefix + "3", 3},
	{FollowUpTriggerPrefix + "7", 7},
	{FollowUpTriggerPrefix + "14", 14},
	{FollowUpTriggerPrefix + "30", 30},
	{"thank_you_responded", 0},
	{"thank_you_interested", 0},
	{"thank_you_won", 0},
	{"thank_you_project_started", 0},
}

// SeedDefaultConfigs inserts the default trigger set. It is a no-op if any
// config row already exists.
func (r *Repository) SeedDefaultConfigs(ctx context.Context) error {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM automation_configs`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, seed := range defaultConfigSeed {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO automation_configs (trigger_name, enabled, delay_days)
			VALUES ($1, true, $2)
			ON CONFLICT (trigger_name) DO NOTHING
		`, seed.triggerName, seed.delayDays); err != nil {
			return err
		}
	}
	return nil
}

func collectConfigs(rows pgx.Rows) ([]AutomationConfig, error) {
	items := make([]AutomationConfig, 0)
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
