package automation

import (
	"testing"

	"coast_crm_backend/internal/prospects/repository"

	"github.com/google/uuid"
)

func cadenceConfig(trigger string, delayDays int, enabled bool, templated bool) repository.AutomationConfig {
	cfg := repository.AutomationConfig{
		ID:          uuid.New(),
		TriggerName: trigger,
		Enabled:     enabled,
		DelayDays:   delayDays,
	}
	if templated {
		tid := uuid.New()
		cfg.TemplateID = &tid
	}
	return cfg
}

func TestNewCadenceSequence_SortsByDelay(t *testing.T) {
	seq := NewCadenceSequence([]repository.AutomationConfig{
		cadenceConfig("follow_up_day_30", 30, true, true),
		cadenceConfig("follow_up_day_3", 3, true, true),
		cadenceConfig("follow_up_day_14", 14, true, true),
		cadenceConfig("follow_up_day_7", 7, true, true),
	})

	if seq.Len() != 4 {
		t.Fatalf("expected 4 steps, got %d", seq.Len())
	}
	wantDelays := []int{3, 7, 14, 30}
	for i, want := range wantDelays {
		step, ok := seq.ConfigForStep(i)
		if !ok {
			t.Fatalf("expected step %d to exist", i)
		}
		if step.DelayDays != want {
			t.Fatalf("step %d: expected delay %d, got %d", i, want, step.DelayDays)
		}
	}
}

func TestNewCadenceSequence_FiltersDisabledAndUntemplated(t *testing.T) {
	seq := NewCadenceSequence([]repository.AutomationConfig{
		cadenceConfig("follow_up_day_3", 3, true, true),
		cadenceConfig("follow_up_day_7", 7, false, true),
		cadenceConfig("follow_up_day_14", 14, true, false),
	})

	if seq.Len() != 1 {
		t.Fatalf("expected 1 step, got %d", seq.Len())
	}
	step, _ := seq.ConfigForStep(0)
	if step.DelayDays != 3 {
		t.Fatalf("expected delay 3, got %d", step.DelayDays)
	}
}

func TestConfigForStep_OutOfRange(t *testing.T) {
	seq := NewCadenceSequence([]repository.AutomationConfig{
		cadenceConfig("follow_up_day_3", 3, true, true),
	})

	if _, ok := seq.ConfigForStep(1); ok {
		t.Fatal("expected step past the end to be absent")
	}
	if _, ok := seq.ConfigForStep(-1); ok {
		t.Fatal("expected negative step to be absent")
	}
}

func TestConfigForStep_EmptySequence(t *testing.T) {
	seq := NewCadenceSequence(nil)
	if seq.Len() != 0 {
		t.Fatalf("expected empty sequence, got %d steps", seq.Len())
	}
	if _, ok := seq.ConfigForStep(0); ok {
		t.Fatal("expected no step in empty sequence")
	}
}
