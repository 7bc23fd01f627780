// Package transport defines the request and response DTOs for the prospects
// HTTP surface.
package transport

import (
	"time"

	"coast_crm_backend/internal/prospects/management"
	"coast_crm_backend/internal/prospects/repository"

	"github.com/google/uuid"
)

type CreateProspectRequest struct {
	BusinessName string  `json:"businessName" validate:"required,min=1,max=255"`
	Market       string  `json:"market" validate:"required,min=1,max=120"`
	Category     string  `json:"category" validate:"required,min=1,max=120"`
	OwnerName    *string `json:"ownerName,omitempty" validate:"omitempty,max=120"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Website      *string `json:"website,omitempty" validate:"omitempty,url"`
	AssignedToID *string `json:"assignedToId,omitempty" validate:"omitempty,uuid"`
}

type ChangeStageRequest struct {
	Stage string `json:"stage" validate:"required,min=1,max=40"`
	Notes string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type SetPausedRequest struct {
	Paused bool `json:"paused"`
}

type CreateTemplateRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=120"`
	Subject string `json:"subject" validate:"required,min=1,max=255"`
	Body    string `json:"body" validate:"required,min=1"`
}

type UpdateTemplateRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Subject *string `json:"subject,omitempty" validate:"omitempty,min=1,max=255"`
	Body    *string `json:"body,omitempty" validate:"omitempty,min=1"`
}

type UpdateConfigRequest struct {
	Enabled    *bool   `json:"enabled,omitempty"`
	TemplateID *string `json:"templateId,omitempty"` // empty string clears the template
	DelayDays  *int    `json:"delayDays,omitempty" validate:"omitempty,min=0,max=365"`
}

type UpdateSendStatusRequest struct {
	Status    string  `json:"status" validate:"required,oneof=sent opened replied bounced"`
	Sentiment *string `json:"sentiment,omitempty" validate:"omitempty,oneof=positive neutral negative"`
}

type ProspectResponse struct {
	ID           uuid.UUID `json:"id"`
	BusinessName string    `json:"businessName"`
	Market       string    `json:"market"`
	Category     string    `json:"category"`
	OwnerName    *string   `json:"ownerName,omitempty"`
	Email        *string   `json:"email,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Website      *string   `json:"website,omitempty"`

	PipelineStage    string     `json:"pipelineStage"`
	Contacted        bool       `json:"contacted"`
	ContactedAt      *time.Time `json:"contactedAt,omitempty"`
	Responded        bool       `json:"responded"`
	RespondedAt      *time.Time `json:"respondedAt,omitempty"`
	DealClosed       bool       `json:"dealClosed"`
	DealClosedAt     *time.Time `json:"dealClosedAt,omitempty"`
	ProjectStarted   bool       `json:"projectStarted"`
	ProjectStartedAt *time.Time `json:"projectStartedAt,omitempty"`

	FollowUpStep    int        `json:"followUpStep"`
	LastAutoEmailAt *time.Time `json:"lastAutoEmailAt,omitempty"`
	FollowUpPaused  bool       `json:"followUpPaused"`
	NurtureDate     *time.Time `json:"nurtureDate,omitempty"`

	AssignedToID *uuid.UUID          `json:"assignedToId,omitempty"`
	AssignedTo   *TeamMemberResponse `json:"assignedTo,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TeamMemberResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func ToProspectResponse(p repository.Prospect) ProspectResponse {
	return ProspectResponse{
		ID:               p.ID,
		BusinessName:     p.BusinessName,
		Market:           p.Market,
		Category:         p.Category,
		OwnerName:        p.OwnerName,
		Email:            p.Email,
		Phone:            p.Phone,
		Website:          p.Website,
		PipelineStage:    p.PipelineStage,
		Contacted:        p.Contacted,
		ContactedAt:      p.ContactedAt,
		Responded:        p.Responded,
		RespondedAt:      p.RespondedAt,
		DealClosed:       p.DealClosed,
		DealClosedAt:     p.DealClosedAt,
		ProjectStarted:   p.ProjectStarted,
		ProjectStartedAt: p.ProjectStartedAt,
		FollowUpStep:     p.FollowUpStep,
		LastAutoEmailAt:  p.LastAutoEmailAt,
		FollowUpPaused:   p.FollowUpPaused,
		NurtureDate:      p.NurtureDate,
		AssignedToID:     p.AssignedToID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func ToProspectDetailResponse(detail management.ProspectDetail) ProspectResponse {
	resp := ToProspectResponse(detail.Prospect)
	if member, ok := detail.AssignedTo.Expanded(); ok {
		resp.AssignedTo = &TeamMemberResponse{ID: member.ID, Name: member.Name, Email: member.Email}
	}
	return resp
}

type ProspectListResponse struct {
	Items []ProspectResponse `json:"items"`
}

type TemplateResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ToTemplateResponse(t repository.EmailTemplate) TemplateResponse {
	return TemplateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Subject:   t.Subject,
		Body:      t.Body,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type ConfigResponse struct {
	ID          uuid.UUID  `json:"id"`
	TriggerName string     `json:"triggerName"`
	Enabled     bool       `json:"enabled"`
	TemplateID  *uuid.UUID `json:"templateId,omitempty"`
	DelayDays   int        `json:"delayDays"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func ToConfigResponse(c repository.AutomationConfig) ConfigResponse {
	return ConfigResponse{
		ID:          c.ID,
		TriggerName: c.TriggerName,
		Enabled:     c.Enabled,
		TemplateID:  c.TemplateID,
		DelayDays:   c.DelayDays,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type TimelineEntryResponse struct {
	Kind        string                `json:"kind"`
	At          time.Time             `json:"at"`
	StageChange *StageChangeResponse  `json:"stageChange,omitempty"`
	Activity    *ActivityResponse     `json:"activity,omitempty"`
	Send        *TemplateSendResponse `json:"send,omitempty"`
}

type StageChangeResponse struct {
	FromStage string     `json:"fromStage"`
	ToStage   string     `json:"toStage"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	ChangedAt time.Time  `json:"changedAt"`
}

type ActivityResponse struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Subject    string     `json:"subject"`
	Detail     string     `json:"detail,omitempty"`
	TemplateID *uuid.UUID `json:"templateId,omitempty"`
	ActorID    *uuid.UUID `json:"actorId,omitempty"`
	Automated  bool       `json:"automated"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type TemplateSendResponse struct {
	ID         uuid.UUID  `json:"id"`
	TemplateID uuid.UUID  `json:"templateId"`
	Trigger    string     `json:"trigger"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject"`
	Status     string     `json:"status"`
	Sentiment  *string    `json:"sentiment,omitempty"`
	SentBy     *uuid.UUID `json:"sentBy,omitempty"`
	Automated  bool       `json:"automated"`
	SentAt     time.Time  `json:"sentAt"`
}

func ToTimelineResponse(entries []management.TimelineEntry) []TimelineEntryResponse {
	items := make([]TimelineEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := TimelineEntryResponse{Kind: e.Kind, At: e.At}
		if e.StageChange != nil {
			resp.StageChange = &StageChangeResponse{
				FromStage: e.StageChange.FromStage,
				ToStage:   e.StageChange.ToStage,
				ChangedBy: e.StageChange.ChangedBy,
				Notes:     e.StageChange.Notes,
				ChangedAt: e.StageChange.ChangedAt,
			}
		}
		if e.Activity != nil {
			resp.Activity = &ActivityResponse{
				ID:         e.Activity.ID,
				Type:       e.Activity.Type,
				Subject:    e.Activity.Subject,
				Detail:     e.Activity.Detail,
				TemplateID: e.Activity.TemplateID,
				ActorID:    e.Activity.ActorID,
				Automated:  e.Activity.Automated,
				CreatedAt:  e.Activity.CreatedAt,
			}
		}
		if e.Send != nil {
			resp.Send = &TemplateSendResponse{
				ID:         e.Send.ID,
				TemplateID: e.Send.TemplateID,
				Trigger:    e.Send.Trigger,
				Recipient:  e.Send.Recipient,
				Subject:    e.Send.Subject,
				Status:     e.Send.Status,
				Sentiment:  e.Send.Sentiment,
				SentBy:     e.Send.SentBy,
				Automated:  e.Send.Automated,
				SentAt:     e.Send.SentAt,
			}
		}
		items = append(items, resp)
	}
	return items
}

type ThankYouResponse struct {
	Sent bool `json:"sent"`
}
