package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"coast_crm_backend/internal/events"
	"coast_crm_backend/internal/prospects/domain"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/platform/apperr"
	"coast_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type testBus struct {
	published []events.Event
}

func (b *testBus) Publish(_ context.Context, event events.Event) { b.published = append(b.published, event) }
func (b *testBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *testBus) Subscribe(string, events.Handler) {}

type fakeStore struct {
	prospects map[uuid.UUID]repository.Prospect

	stageChanges []repository.StageChangeParams
	history      []repository.AppendHistoryParams
	activities   []repository.CreateActivityParams

	historyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{prospects: make(map[uuid.UUID]repository.Prospect)}
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Prospect, error) {
	p, ok := s.prospects[id]
	if !ok {
		return repository.Prospect{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ApplyStageChange(_ context.Context, id uuid.UUID, params repository.StageChangeParams) error {
	p, ok := s.prospects[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.stageChanges = append(s.stageChanges, params)
	p.PipelineStage = params.Stage
	if params.SetContacted {
		p.Contacted = true
		p.ContactedAt = &params.At
	}
	if params.SetResponded {
		p.Responded = true
		p.RespondedAt = &params.At
	}
	if params.SetDealClosed {
		p.DealClosed = true
		p.DealClosedAt = &params.At
	}
	if params.SetProjectStarted {
		p.ProjectStarted = true
		p.ProjectStartedAt = &params.At
	}
	s.prospects[id] = p
	return nil
}

func (s *fakeStore) AppendHistory(_ context.Context, params repository.AppendHistoryParams) error {
	if s.historyErr != nil {
		return s.historyErr
	}
	s.history = append(s.history, params)
	return nil
}

func (s *fakeStore) CreateActivity(_ context.Context, params repository.CreateActivityParams) error {
	s.activities = append(s.activities, params)
	return nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore) (*Service, *testBus) {
	bus := &testBus{}
	svc := NewService(store, domain.DefaultEffects(), bus, logger.New("development"))
	svc.now = func() time.Time { return testNow }
	return svc, bus
}

func seedProspect(store *fakeStore, stage string) repository.Prospect {
	p := repository.Prospect{
		ID:            uuid.New(),
		BusinessName:  "Acme",
		Market:        "portland",
		PipelineStage: stage,
	}
	store.prospects[p.ID] = p
	return p
}

func TestChangeStage_AppliesSideEffects(t *testing.T) {
	store := newFakeStore()
	p := seedProspect(store, domain.StageProposalSent)
	svc, bus := newTestService(store)
	actor := uuid.New()

	updated, err := svc.ChangeStage(context.Background(), p.ID, domain.StageWon, &actor, "Signed the proposal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.PipelineStage != domain.StageWon {
		t.Fatalf("expected stage %q, got %q", domain.StageWon, updated.PipelineStage)
	}
	if !updated.DealClosed {
		t.Fatal("expected deal_closed flag set")
	}
	if updated.DealClosedAt == nil || !updated.DealClosedAt.Equal(testNow) {
		t.Fatalf("expected deal_closed_at %v, got %v", testNow, updated.DealClosedAt)
	}
	if updated.Contacted {
		t.Fatal("unrelated flags must not be touched")
	}

	if len(store.history) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(store.history))
	}
	h := store.history[0]
	if h.FromStage != domain.StageProposalSent || h.ToStage != domain.StageWon {
		t.Fatalf("unexpected history %+v", h)
	}
	if h.ChangedBy == nil || *h.ChangedBy != actor {
		t.Fatal("expected actor recorded on history")
	}
	if h.Notes != "Signed the proposal" {
		t.Fatalf("unexpected history notes %q", h.Notes)
	}

	if len(store.activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(store.activities))
	}
	if store.activities[0].Subject != "Stage changed from Proposal Sent to Won" {
		t.Fatalf("unexpected activity subject %q", store.activities[0].Subject)
	}
	if store.activities[0].Automated {
		t.Fatal("operator-driven change must not be marked automated")
	}

	if len(bus.published) != 1 || bus.published[0].EventName() != events.ProspectStageChangedName {
		t.Fatalf("unexpected events: %+v", bus.published)
	}
}

func TestChangeStage_SameStageIsIdempotent(t *testing.T) {
	store := newFakeStore()
	p := seedProspect(store, domain.StageContacted)
	svc, bus := newTestService(store)

	updated, err := svc.ChangeStage(context.Background(), p.ID, domain.StageContacted, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PipelineStage != domain.StageContacted {
		t.Fatalf("unexpected stage %q", updated.PipelineStage)
	}
	if len(store.stageChanges) != 0 || len(store.history) != 0 || len(store.activities) != 0 {
		t.Fatal("same-stage transition must perform no writes")
	}
	if len(bus.published) != 0 {
		t.Fatal("same-stage transition must publish nothing")
	}
}

func TestChangeStage_UnknownStage(t *testing.T) {
	store := newFakeStore()
	p := seedProspect(store, domain.StageNewLead)
	svc, _ := newTestService(store)

	_, err := svc.ChangeStage(context.Background(), p.ID, "archived", nil, "")
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.stageChanges) != 0 {
		t.Fatal("invalid stage must perform no writes")
	}
}

func TestChangeStage_ProspectNotFound(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	_, err := svc.ChangeStage(context.Background(), uuid.New(), domain.StageContacted, nil, "")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestChangeStage_NoEffectStageOnlyMovesStage(t *testing.T) {
	store := newFakeStore()
	p := seedProspect(store, domain.StageNewLead)
	svc, _ := newTestService(store)

	updated, err := svc.ChangeStage(context.Background(), p.ID, domain.StageResearched, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PipelineStage != domain.StageResearched {
		t.Fatalf("unexpected stage %q", updated.PipelineStage)
	}
	change := store.stageChanges[0]
	if change.SetContacted || change.SetResponded || change.SetDealClosed || change.SetProjectStarted {
		t.Fatalf("expected no side effects, got %+v", change)
	}
}

func TestChangeStage_HistoryFailureDoesNotFailTransition(t *testing.T) {
	store := newFakeStore()
	store.historyErr = errors.New("write failed")
	p := seedProspect(store, domain.StageNewLead)
	svc, _ := newTestService(store)

	updated, err := svc.ChangeStage(context.Background(), p.ID, domain.StageContacted, nil, "")
	if err != nil {
		t.Fatalf("transition must stand when history append fails, got %v", err)
	}
	if updated.PipelineStage != domain.StageContacted {
		t.Fatalf("unexpected stage %q", updated.PipelineStage)
	}
	// The activity append still runs after the failed history append.
	if len(store.activities) != 1 {
		t.Fatalf("expected activity despite history failure, got %d", len(store.activities))
	}
}
