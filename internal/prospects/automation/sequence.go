// Package automation implements the follow-up cadence processor and the
// ad-hoc thank-you trigger processor.
package automation

import (
	"sort"

	"coast_crm_backend/internal/prospects/repository"

	"github.com/google/uuid"
)

// StepConfig is one firing step of the cadence: which template to send and
// how many whole days must have elapsed since the reference time.
type StepConfig struct {
	ConfigID   uuid.UUID
	Trigger    string
	TemplateID uuid.UUID
	DelayDays  int
}

// CadenceSequence is the ordered list of active follow-up steps. A prospect's
// follow_up_step indexes into it; an index past the end means the cadence is
// exhausted.
type CadenceSequence struct {
	steps []StepConfig
}

// NewCadenceSequence builds the sequence from enabled, templated follow-up
// configs, ordered ascending by delay. Rows without a template are dropped
// even if the store query missed them.
func NewCadenceSequence(configs []repository.AutomationConfig) CadenceSequence {
	steps := make([]StepConfig, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled || cfg.TemplateID == nil {
			continue
		}
		steps = append(steps, StepConfig{
			ConfigID:   cfg.ID,
			Trigger:    cfg.TriggerName,
			TemplateID: *cfg.TemplateID,
			DelayDays:  cfg.DelayDays,
		})
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].DelayDays < steps[j].DelayDays
	})
	return CadenceSequence{steps: steps}
}

// ConfigForStep returns the step config at the given zero-based position, or
// false when the position is past the end of the sequence.
func (s CadenceSequence) ConfigForStep(step int) (StepConfig, bool) {
	if step < 0 || step >= len(s.steps) {
		return StepConfig{}, false
	}
	return s.steps[step], true
}

// Len returns the number of active steps.
func (s CadenceSequence) Len() int {
	return len(s.steps)
}
