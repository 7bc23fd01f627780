package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coast_crm_backend/internal/email"
	"coast_crm_backend/internal/events"
	"coast_crm_backend/internal/prospects/domain"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/platform/apperr"
	"coast_crm_backend/platform/config"
	"coast_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the processors need.
// *repository.Repository satisfies it.
type Store interface {
	ListEnabledFollowUpConfigs(ctx context.Context) ([]repository.AutomationConfig, error)
	ListFollowUpCandidates(ctx context.Context) ([]repository.Prospect, error)
	GetEnabledTrigger(ctx context.Context, triggerName string) (repository.AutomationConfig, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Prospect, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (repository.EmailTemplate, error)
	MarkAutoEmailSent(ctx context.Context, id uuid.UUID, at time.Time, step int, stage string) error
	SetLastAutoEmailAt(ctx context.Context, id uuid.UUID, at time.Time) error
	MoveToNurture(ctx context.Context, id uuid.UUID, nurtureDate time.Time, at time.Time) error
	CreateActivity(ctx context.Context, params repository.CreateActivityParams) error
	CreateSend(ctx context.Context, params repository.CreateSendParams) error
}

// BatchResult summarizes one cadence run. Errors holds human-readable
// per-prospect failure strings; a failed send is neither sent nor skipped.
type BatchResult struct {
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

type Service struct {
	store    Store
	sender   email.Sender
	bus      events.Bus
	log      *logger.Logger
	cooldown time.Duration
	nurture  int
	teamName string
	now      func() time.Time
}

func NewService(store Store, sender email.Sender, bus events.Bus, log *logger.Logger, cfg config.AutomationConfig, teamName string) *Service {
	return &Service{
		store:    store,
		sender:   sender,
		bus:      bus,
		log:      log,
		cooldown: cfg.GetAutoEmailCooldown(),
		nurture:  cfg.GetNurtureCooloffDays(),
		teamName: teamName,
		now:      time.Now,
	}
}

// ProcessFollowUps runs one cadence batch: every contacted-but-unresponsive
// prospect is checked against the rate limit, its step position, and the
// step's delay gate, and sent the step's template when due. The batch never
// fails as a whole; per-prospect problems land in the result's Errors and
// processing moves on.
func (s *Service) ProcessFollowUps(ctx context.Context, actorID *uuid.UUID) BatchResult {
	var res BatchResult

	configs, err := s.store.ListEnabledFollowUpConfigs(ctx)
	if err != nil {
		s.log.DatabaseError("automation.ListEnabledFollowUpConfigs", err)
		res.Errors = append(res.Errors, fmt.Sprintf("Error loading follow-up configs: %v", err))
		return res
	}
	seq := NewCadenceSequence(configs)
	if seq.Len() == 0 {
		return res
	}

	candidates, err := s.store.ListFollowUpCandidates(ctx)
	if err != nil {
		s.log.DatabaseError("automation.ListFollowUpCandidates", err)
		res.Errors = append(res.Errors, fmt.Sprintf("Error loading candidates: %v", err))
		return res
	}

	for _, prospect := range candidates {
		outcome, err := s.processCandidate(ctx, prospect, seq, actorID)
		switch outcome {
		case outcomeSent:
			res.Sent++
		case outcomeSendFailed:
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to send to %s: %v", prospect.BusinessName, err))
		case outcomeSkipped:
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("Error processing %s: %v", prospect.BusinessName, err))
			} else {
				res.Skipped++
			}
		}
	}

	s.log.AutomationRun(res.Sent, res.Skipped, len(res.Errors))
	return res
}

type candidateOutcome int

const (
	outcomeSkipped candidateOutcome = iota
	outcomeSent
	outcomeSendFailed
)

func (s *Service) processCandidate(ctx context.Context, prospect repository.Prospect, seq CadenceSequence, actorID *uuid.UUID) (candidateOutcome, error) {
	now := s.now()

	if prospect.LastAutoEmailAt != nil && now.Sub(*prospect.LastAutoEmailAt) < s.cooldown {
		return outcomeSkipped, nil
	}

	step, ok := seq.ConfigForStep(prospect.FollowUpStep)
	if !ok {
		// Cadence exhausted: park the prospect for a cool-off period.
		nurtureDate := now.AddDate(0, 0, s.nurture)
		if err := s.store.MoveToNurture(ctx, prospect.ID, nurtureDate, now); err != nil {
			return outcomeSkipped, err
		}
		return outcomeSkipped, nil
	}

	reference := prospect.LastAutoEmailAt
	if reference == nil {
		reference = prospect.ContactedAt
	}
	if reference == nil {
		return outcomeSkipped, nil
	}
	daysElapsed := int(now.Sub(*reference).Hours() / 24)
	if daysElapsed < step.DelayDays {
		return outcomeSkipped, nil
	}

	template, err := s.store.GetTemplate(ctx, step.TemplateID)
	if err != nil {
		return outcomeSkipped, err
	}

	data := s.mergeDataFor(prospect)
	subject := domain.RenderMergeTags(template.Subject, data)
	body := domain.RenderMergeTags(template.Body, data)

	messageID, err := s.sender.SendEmail(ctx, *prospect.Email, subject, body)
	if err != nil {
		s.log.EmailFailed(step.Trigger, prospect.BusinessName, err)
		return outcomeSendFailed, err
	}

	if err := s.store.MarkAutoEmailSent(ctx, prospect.ID, now, prospect.FollowUpStep+1, domain.StageFollowUp); err != nil {
		// The email is already out; count it sent and surface the bookkeeping failure.
		s.log.DatabaseError("automation.MarkAutoEmailSent", err)
	}
	s.recordSend(ctx, prospect, step.TemplateID, step.Trigger, subject, messageID, actorID, now,
		repository.ActivityAutoFollowUp, fmt.Sprintf("Auto follow-up #%d sent", prospect.FollowUpStep+1))

	s.bus.Publish(ctx, events.AutoFollowUpSent{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: prospect.ID,
		Step:       prospect.FollowUpStep + 1,
		Trigger:    step.Trigger,
		Recipient:  *prospect.Email,
	})
	s.log.EmailSent(step.Trigger, prospect.BusinessName)
	return outcomeSent, nil
}

// ProcessThankYou fires one stage-triggered email at a single prospect. It is
// invoked by the transport layer right after a qualifying stage transition.
// The cadence step counter is untouched; only the rate-limit timestamp moves.
func (s *Service) ProcessThankYou(ctx context.Context, prospectID uuid.UUID, triggerName string, actorID *uuid.UUID) error {
	cfg, err := s.store.GetEnabledTrigger(ctx, triggerName)
	if err != nil {
		if errors.Is(err, repository.ErrConfigNotFound) {
			return apperr.NotFound("No config found or disabled").WithOp("automation.ProcessThankYou")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load trigger config", err).WithOp("automation.ProcessThankYou")
	}

	prospect, err := s.store.GetByID(ctx, prospectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Prospect not found or no email").WithOp("automation.ProcessThankYou")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load prospect", err).WithOp("automation.ProcessThankYou")
	}
	if prospect.Email == nil || *prospect.Email == "" {
		return apperr.NotFound("Prospect not found or no email").WithOp("automation.ProcessThankYou")
	}

	now := s.now()
	if prospect.LastAutoEmailAt != nil && now.Sub(*prospect.LastAutoEmailAt) < s.cooldown {
		return apperr.RateLimited("Rate limited — already sent today").WithOp("automation.ProcessThankYou")
	}

	template, err := s.store.GetTemplate(ctx, *cfg.TemplateID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load template", err).WithOp("automation.ProcessThankYou")
	}

	data := s.mergeDataFor(prospect)
	subject := domain.RenderMergeTags(template.Subject, data)
	body := domain.RenderMergeTags(template.Body, data)

	messageID, err := s.sender.SendEmail(ctx, *prospect.Email, subject, body)
	if err != nil {
		s.log.EmailFailed(triggerName, prospect.BusinessName, err)
		return apperr.Wrap(apperr.KindInternal, err.Error(), err).WithOp("automation.ProcessThankYou")
	}

	if err := s.store.SetLastAutoEmailAt(ctx, prospect.ID, now); err != nil {
		s.log.DatabaseError("automation.SetLastAutoEmailAt", err)
	}
	s.recordSend(ctx, prospect, *cfg.TemplateID, triggerName, subject, messageID, actorID, now,
		repository.ActivityAutoThankYou, fmt.Sprintf("Auto thank-you sent (%s)", strings.ReplaceAll(triggerName, "_", " ")))

	s.bus.Publish(ctx, events.AutoThankYouSent{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: prospect.ID,
		Trigger:    triggerName,
		Recipient:  *prospect.Email,
	})
	s.log.EmailSent(triggerName, prospect.BusinessName)
	return nil
}

// recordSend appends the activity and send records for a delivered email.
// Both are best effort once the email is on the wire.
func (s *Service) recordSend(ctx context.Context, prospect repository.Prospect, templateID uuid.UUID, trigger, subject, messageID string, actorID *uuid.UUID, at time.Time, activityType, activitySubject string) {
	if err := s.store.CreateActivity(ctx, repository.CreateActivityParams{
		ProspectID: prospect.ID,
		Type:       activityType,
		Subject:    activitySubject,
		TemplateID: &templateID,
		ActorID:    actorID,
		Automated:  true,
		CreatedAt:  at,
	}); err != nil {
		s.log.DatabaseError("automation.CreateActivity", err)
	}
	if err := s.store.CreateSend(ctx, repository.CreateSendParams{
		ProspectID: prospect.ID,
		TemplateID: templateID,
		Trigger:    trigger,
		Recipient:  *prospect.Email,
		Subject:    subject,
		MessageID:  messageID,
		SentBy:     actorID,
		Automated:  true,
		SentAt:     at,
	}); err != nil {
		s.log.DatabaseError("automation.CreateSend", err)
	}
}

func (s *Service) mergeDataFor(prospect repository.Prospect) domain.MergeData {
	owner := ""
	if prospect.OwnerName != nil {
		owner = *prospect.OwnerName
	}
	return domain.MergeData{
		OwnerName:      owner,
		BusinessName:   prospect.BusinessName,
		Category:       prospect.Category,
		AssignedToName: s.teamName,
	}
}
