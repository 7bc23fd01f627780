// Package management covers the non-automation prospect operations: intake,
// lookup with assignee expansion, listing, cadence pause control, and the
// timeline and pipeline summary read models.
package management

import (
	"context"
	"errors"
	"sort"
	"time"

	"coast_crm_backend/internal/events"
	"coast_crm_backend/internal/prospects/domain"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/platform/apperr"
	"coast_crm_backend/platform/logger"
	"coast_crm_backend/platform/phone"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
// *repository.Repository satisfies it.
type Store interface {
	Create(ctx context.Context, params repository.CreateProspectParams) (repository.Prospect, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Prospect, error)
	List(ctx context.Context, params repository.ListProspectsParams) ([]repository.Prospect, error)
	SetFollowUpPaused(ctx context.Context, id uuid.UUID, paused bool) error
	GetTeamMember(ctx context.Context, id uuid.UUID) (repository.TeamMember, error)
	ListTeamMembers(ctx context.Context) ([]repository.TeamMember, error)
	ListHistory(ctx context.Context, prospectID uuid.UUID) ([]repository.PipelineHistory, error)
	ListActivities(ctx context.Context, prospectID uuid.UUID) ([]repository.Activity, error)
	ListSends(ctx context.Context, prospectID uuid.UUID) ([]repository.TemplateSend, error)
	CountByStage(ctx context.Context) ([]repository.StageCount, error)
}

type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

func NewService(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

type CreateProspectInput struct {
	BusinessName string
	Market       string
	Category     string
	OwnerName    *string
	Email        *string
	Phone        *string
	Website      *string
	AssignedToID *uuid.UUID
}

func (s *Service) Create(ctx context.Context, input CreateProspectInput) (repository.Prospect, error) {
	params := repository.CreateProspectParams{
		BusinessName: input.BusinessName,
		Market:       input.Market,
		Category:     input.Category,
		OwnerName:    input.OwnerName,
		Email:        input.Email,
		Website:      input.Website,
		AssignedToID: input.AssignedToID,
	}
	if input.Phone != nil && *input.Phone != "" {
		normalized := phone.NormalizeE164(*input.Phone)
		params.Phone = &normalized
	}

	prospect, err := s.store.Create(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return repository.Prospect{}, apperr.Conflict("prospect already exists for this business and market").WithOp("management.Create")
		}
		return repository.Prospect{}, apperr.Wrap(apperr.KindInternal, "failed to create prospect", err).WithOp("management.Create")
	}

	s.bus.Publish(ctx, events.ProspectCreated{
		BaseEvent:    events.NewBaseEvent(),
		ProspectID:   prospect.ID,
		BusinessName: prospect.BusinessName,
		Market:       prospect.Market,
	})
	return prospect, nil
}

// ProspectDetail is a prospect with its assignee resolved when one is set.
type ProspectDetail struct {
	repository.Prospect
	AssignedTo domain.Reference[repository.TeamMember]
}

// Get loads one prospect and expands its assignee reference. A dangling
// assignee id degrades to an unexpanded reference rather than failing the
// read.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (ProspectDetail, error) {
	prospect, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ProspectDetail{}, apperr.NotFound("prospect not found").WithOp("management.Get")
		}
		return ProspectDetail{}, apperr.Wrap(apperr.KindInternal, "failed to load prospect", err).WithOp("management.Get")
	}

	detail := ProspectDetail{Prospect: prospect}
	if prospect.AssignedToID != nil {
		member, err := s.store.GetTeamMember(ctx, *prospect.AssignedToID)
		if err != nil {
			if !errors.Is(err, repository.ErrTeamMemberNotFound) {
				s.log.DatabaseError("management.GetTeamMember", err)
			}
			detail.AssignedTo = domain.RefID[repository.TeamMember](*prospect.AssignedToID)
		} else {
			detail.AssignedTo = domain.RefExpanded(member.ID, member)
		}
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, params repository.ListProspectsParams) ([]repository.Prospect, error) {
	items, err := s.store.List(ctx, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list prospects", err).WithOp("management.List")
	}
	return items, nil
}

// SetFollowUpPaused flips the cadence pause flag. Paused prospects are
// invisible to the follow-up processor until resumed.
func (s *Service) SetFollowUpPaused(ctx context.Context, id uuid.UUID, paused bool) error {
	if err := s.store.SetFollowUpPaused(ctx, id, paused); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("prospect not found").WithOp("management.SetFollowUpPaused")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to update pause flag", err).WithOp("management.SetFollowUpPaused")
	}
	return nil
}

func (s *Service) ListTeamMembers(ctx context.Context) ([]repository.TeamMember, error) {
	items, err := s.store.ListTeamMembers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list team members", err).WithOp("management.ListTeamMembers")
	}
	return items, nil
}

// Timeline entry kinds.
const (
	TimelineStageChange = "stage_change"
	TimelineActivity    = "activity"
	TimelineSend        = "email_send"
)

// TimelineEntry is one row of the merged prospect timeline. Exactly one of
// the payload pointers is set, matched by Kind.
type TimelineEntry struct {
	Kind        string
	At          time.Time
	StageChange *repository.PipelineHistory
	Activity    *repository.Activity
	Send        *repository.TemplateSend
}

// Timeline merges the prospect's history, activity, and send records into one
// reverse-chronological list.
func (s *Service) Timeline(ctx context.Context, prospectID uuid.UUID) ([]TimelineEntry, error) {
	if _, err := s.store.GetByID(ctx, prospectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("prospect not found").WithOp("management.Timeline")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load prospect", err).WithOp("management.Timeline")
	}

	history, err := s.store.ListHistory(ctx, prospectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load pipeline history", err).WithOp("management.Timeline")
	}
	activities, err := s.store.ListActivities(ctx, prospectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load activities", err).WithOp("management.Timeline")
	}
	sends, err := s.store.ListSends(ctx, prospectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load template sends", err).WithOp("management.Timeline")
	}

	entries := make([]TimelineEntry, 0, len(history)+len(activities)+len(sends))
	for i := range history {
		entries = append(entries, TimelineEntry{Kind: TimelineStageChange, At: history[i].ChangedAt, StageChange: &history[i]})
	}
	for i := range activities {
		entries = append(entries, TimelineEntry{Kind: TimelineActivity, At: activities[i].CreatedAt, Activity: &activities[i]})
	}
	for i := range sends {
		entries = append(entries, TimelineEntry{Kind: TimelineSend, At: sends[i].SentAt, Send: &sends[i]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.After(entries[j].At)
	})
	return entries, nil
}

// StageSummary is the pipeline overview: a count for every known stage,
// including zeroes for empty stages.
type StageSummary struct {
	Stage string `json:"stage"`
	Title string `json:"title"`
	Count int    `json:"count"`
}

func (s *Service) PipelineSummary(ctx context.Context) ([]StageSummary, error) {
	counts, err := s.store.CountByStage(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to aggregate pipeline", err).WithOp("management.PipelineSummary")
	}

	byStage := make(map[string]int, len(counts))
	for _, c := range counts {
		byStage[c.Stage] = c.Count
	}

	ordered := []string{
		domain.StageNewLead, domain.StageResearched, domain.StageContacted,
		domain.StageFollowUp, domain.StageResponded, domain.StageInterested,
		domain.StageProposalSent, domain.StageWon, domain.StageLost,
		domain.StageProjectStarted, domain.StageNurture,
	}
	summary := make([]StageSummary, 0, len(ordered))
	for _, stage := range ordered {
		summary = append(summary, StageSummary{
			Stage: stage,
			Title: domain.StageTitle(stage),
			Count: byStage[stage],
		})
	}
	return summary, nil
}
