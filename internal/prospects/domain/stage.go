// Package domain holds the pipeline vocabulary for the prospects bounded
// context: stage names, the stage side-effect registry, and merge-tag
// rendering. It has no dependencies on storage or transport.
package domain

import "strings"

const (
	StageNewLead        = "new_lead"
	StageResearched     = "researched"
	StageContacted      = "contacted"
	StageFollowUp       = "follow_up"
	StageResponded      = "responded"
	StageInterested     = "interested"
	StageProposalSent   = "proposal_sent"
	StageWon            = "won"
	StageLost           = "lost"
	StageProjectStarted = "project_started"
	StageNurture        = "nurture"
)

var knownStages = map[string]struct{}{
	StageNewLead:        {},
	StageResearched:     {},
	StageContacted:      {},
	StageFollowUp:       {},
	StageResponded:      {},
	StageInterested:     {},
	StageProposalSent:   {},
	StageWon:            {},
	StageLost:           {},
	StageProjectStarted: {},
	StageNurture:        {},
}

// IsKnownStage reports whether stage is one of the pipeline stages.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[stage]
	return ok
}

// StageTitle converts a stage name to its display form,
// e.g. "new_lead" becomes "New Lead".
func StageTitle(stage string) string {
	parts := strings.Split(stage, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// SideEffect names a boolean/timestamp pair on the prospect that entering a
// stage flips on. The flag is set true and its companion timestamp to the
// transition time.
type SideEffect string

const (
	EffectContacted      SideEffect = "contacted"
	EffectResponded      SideEffect = "responded"
	EffectDealClosed     SideEffect = "deal_closed"
	EffectProjectStarted SideEffect = "project_started"
)

// EffectTable maps a stage to the side effects applied upon entering it.
// The table is injected into the stage transition engine so tests can
// substitute alternate mappings.
type EffectTable map[string][]SideEffect

// DefaultEffects returns the production stage side-effect registry.
// Stages absent from the table carry no side effects.
func DefaultEffects() EffectTable {
	return EffectTable{
		StageContacted:      {EffectContacted},
		StageResponded:      {EffectResponded},
		StageWon:            {EffectDealClosed},
		StageProjectStarted: {EffectProjectStarted},
	}
}
