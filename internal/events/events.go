// Package events defines the domain events emitted by the prospects module
// and re-exports the platform bus types so modules depend on one import.
package events

import (
	"coast_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-exported bus types.
type (
	Event       = events.Event
	BaseEvent   = events.BaseEvent
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	Bus         = events.Bus
)

var NewBaseEvent = events.NewBaseEvent

// Event names.
const (
	ProspectCreatedName      = "prospect.created"
	ProspectStageChangedName = "prospect.stage_changed"
	AutoFollowUpSentName     = "automation.follow_up_sent"
	AutoThankYouSentName     = "automation.thank_you_sent"
)

// ProspectCreated fires when a new prospect enters the pipeline.
type ProspectCreated struct {
	BaseEvent
	ProspectID   uuid.UUID `json:"prospect_id"`
	BusinessName string    `json:"business_name"`
	Market       string    `json:"market"`
}

func (ProspectCreated) EventName() string { return ProspectCreatedName }

// ProspectStageChanged fires after a stage transition is persisted.
type ProspectStageChanged struct {
	BaseEvent
	ProspectID uuid.UUID  `json:"prospect_id"`
	FromStage  string     `json:"from_stage"`
	ToStage    string     `json:"to_stage"`
	ChangedBy  *uuid.UUID `json:"changed_by,omitempty"`
}

func (ProspectStageChanged) EventName() string { return ProspectStageChangedName }

// AutoFollowUpSent fires after a cadence email is delivered to the provider.
type AutoFollowUpSent struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospect_id"`
	Step       int       `json:"step"`
	Trigger    string    `json:"trigger"`
	Recipient  string    `json:"recipient"`
}

func (AutoFollowUpSent) EventName() string { return AutoFollowUpSentName }

// AutoThankYouSent fires after a stage-triggered thank-you email is delivered.
type AutoThankYouSent struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospect_id"`
	Trigger    string    `json:"trigger"`
	Recipient  string    `json:"recipient"`
}

func (AutoThankYouSent) EventName() string { return AutoThankYouSentName }
