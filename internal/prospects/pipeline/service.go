// Package pipeline implements the prospect stage transition engine: it
// validates the target stage, applies the stage's side-effect flags, and
// records the transition in the history and activity feeds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coast_crm_backend/internal/events"
	"coast_crm_backend/internal/prospects/domain"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/platform/apperr"
	"coast_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the engine needs. *repository.Repository
// satisfies it.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Prospect, error)
	ApplyStageChange(ctx context.Context, id uuid.UUID, params repository.StageChangeParams) error
	AppendHistory(ctx context.Context, params repository.AppendHistoryParams) error
	CreateActivity(ctx context.Context, params repository.CreateActivityParams) error
}

type Service struct {
	store   Store
	effects domain.EffectTable
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

func NewService(store Store, effects domain.EffectTable, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		effects: effects,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// ChangeStage moves a prospect to newStage. Side-effect flags for the stage
// are set alongside the stage itself in one update; flags already set stay
// set, and their timestamps are never overwritten by later transitions
// because the flag columns are only written when the registry fires them.
//
// The prospect update is the one write that can fail the operation. History
// and activity appends run after it; if either fails the transition stands
// and the failure is logged.
func (s *Service) ChangeStage(ctx context.Context, prospectID uuid.UUID, newStage string, actorID *uuid.UUID, notes string) (repository.Prospect, error) {
	if !domain.IsKnownStage(newStage) {
		return repository.Prospect{}, apperr.Validation(fmt.Sprintf("unknown pipeline stage: %s", newStage)).WithOp("pipeline.ChangeStage")
	}

	prospect, err := s.store.GetByID(ctx, prospectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Prospect{}, apperr.NotFound("prospect not found").WithOp("pipeline.ChangeStage")
		}
		return repository.Prospect{}, apperr.Wrap(apperr.KindInternal, "failed to load prospect", err).WithOp("pipeline.ChangeStage")
	}

	if prospect.PipelineStage == newStage {
		return prospect, nil
	}

	now := s.now()
	fromStage := prospect.PipelineStage

	params := repository.StageChangeParams{Stage: newStage, At: now}
	for _, effect := range s.effects[newStage] {
		switch effect {
		case domain.EffectContacted:
			params.SetContacted = true
		case domain.EffectResponded:
			params.SetResponded = true
		case domain.EffectDealClosed:
			params.SetDealClosed = true
		case domain.EffectProjectStarted:
			params.SetProjectStarted = true
		}
	}

	if err := s.store.ApplyStageChange(ctx, prospectID, params); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Prospect{}, apperr.NotFound("prospect not found").WithOp("pipeline.ChangeStage")
		}
		return repository.Prospect{}, apperr.Wrap(apperr.KindInternal, "failed to update prospect stage", err).WithOp("pipeline.ChangeStage")
	}

	if err := s.store.AppendHistory(ctx, repository.AppendHistoryParams{
		ProspectID: prospectID,
		FromStage:  fromStage,
		ToStage:    newStage,
		ChangedBy:  actorID,
		Notes:      notes,
		ChangedAt:  now,
	}); err != nil {
		s.log.DatabaseError("pipeline.AppendHistory", err)
	}

	if err := s.store.CreateActivity(ctx, repository.CreateActivityParams{
		ProspectID: prospectID,
		Type:       repository.ActivityStageChanged,
		Subject:    fmt.Sprintf("Stage changed from %s to %s", domain.StageTitle(fromStage), domain.StageTitle(newStage)),
		ActorID:    actorID,
		Automated:  actorID == nil,
		CreatedAt:  now,
	}); err != nil {
		s.log.DatabaseError("pipeline.CreateActivity", err)
	}

	event := events.ProspectStageChanged{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: prospectID,
		FromStage:  fromStage,
		ToStage:    newStage,
		ChangedBy:  actorID,
	}
	s.bus.Publish(ctx, event)

	updated, err := s.store.GetByID(ctx, prospectID)
	if err != nil {
		// The transition is committed; fall back to patching the copy we have.
		prospect.PipelineStage = newStage
		prospect.UpdatedAt = now
		return prospect, nil
	}
	return updated, nil
}
