package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"coast_crm_backend/internal/events"
	"coast_crm_backend/internal/prospects/domain"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/platform/apperr"
	"coast_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type testAutomationConfig struct{}

func (testAutomationConfig) GetAutoEmailCooldown() time.Duration { return 24 * time.Hour }
func (testAutomationConfig) GetNurtureCooloffDays() int          { return 30 }

type testBus struct {
	published []events.Event
}

func (b *testBus) Publish(_ context.Context, event events.Event)          { b.published = append(b.published, event) }
func (b *testBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *testBus) Subscribe(string, events.Handler) {}

type testSender struct {
	sent    []string
	failFor map[string]error
}

func (s *testSender) SendEmail(_ context.Context, to, subject, html string) (string, error) {
	if err, ok := s.failFor[to]; ok {
		return "", err
	}
	s.sent = append(s.sent, to)
	return "msg-" + to, nil
}

type markCall struct {
	id    uuid.UUID
	at    time.Time
	step  int
	stage string
}

type fakeStore struct {
	configs    []repository.AutomationConfig
	candidates []repository.Prospect
	templates  map[uuid.UUID]repository.EmailTemplate
	prospects  map[uuid.UUID]repository.Prospect

	candidatesErr error

	marked       []markCall
	lastStamped  []uuid.UUID
	nurtured     []uuid.UUID
	nurtureDates []time.Time
	activities   []repository.CreateActivityParams
	sends        []repository.CreateSendParams
}

func (s *fakeStore) ListEnabledFollowUpConfigs(context.Context) ([]repository.AutomationConfig, error) {
	return s.configs, nil
}

func (s *fakeStore) ListFollowUpCandidates(context.Context) ([]repository.Prospect, error) {
	if s.candidatesErr != nil {
		return nil, s.candidatesErr
	}
	return s.candidates, nil
}

func (s *fakeStore) GetEnabledTrigger(_ context.Context, name string) (repository.AutomationConfig, error) {
	for _, cfg := range s.configs {
		if cfg.TriggerName == name && cfg.Enabled && cfg.TemplateID != nil {
			return cfg, nil
		}
	}
	return repository.AutomationConfig{}, repository.ErrConfigNotFound
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Prospect, error) {
	p, ok := s.prospects[id]
	if !ok {
		return repository.Prospect{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GetTemplate(_ context.Context, id uuid.UUID) (repository.EmailTemplate, error) {
	tmpl, ok := s.templates[id]
	if !ok {
		return repository.EmailTemplate{}, repository.ErrTemplateNotFound
	}
	return tmpl, nil
}

func (s *fakeStore) MarkAutoEmailSent(_ context.Context, id uuid.UUID, at time.Time, step int, stage string) error {
	s.marked = append(s.marked, markCall{id: id, at: at, step: step, stage: stage})
	return nil
}

func (s *fakeStore) SetLastAutoEmailAt(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.lastStamped = append(s.lastStamped, id)
	return nil
}

func (s *fakeStore) MoveToNurture(_ context.Context, id uuid.UUID, nurtureDate time.Time, _ time.Time) error {
	s.nurtured = append(s.nurtured, id)
	s.nurtureDates = append(s.nurtureDates, nurtureDate)
	return nil
}

func (s *fakeStore) CreateActivity(_ context.Context, params repository.CreateActivityParams) error {
	s.activities = append(s.activities, params)
	return nil
}

func (s *fakeStore) CreateSend(_ context.Context, params repository.CreateSendParams) error {
	s.sends = append(s.sends, params)
	return nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, sender *testSender) (*Service, *testBus) {
	bus := &testBus{}
	svc := NewService(store, sender, bus, logger.New("development"), testAutomationConfig{}, "The Coast Team")
	svc.now = func() time.Time { return testNow }
	return svc, bus
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func candidate(name string, step int, lastAuto, contactedAt *time.Time) repository.Prospect {
	return repository.Prospect{
		ID:              uuid.New(),
		BusinessName:    name,
		Market:          "portland",
		Category:        "plumbing",
		Email:           strPtr(strings.ToLower(name) + "@example.com"),
		PipelineStage:   domain.StageContacted,
		Contacted:       true,
		ContactedAt:     contactedAt,
		FollowUpStep:    step,
		LastAutoEmailAt: lastAuto,
	}
}

func cadenceFixture(store *fakeStore, delays ...int) {
	for _, d := range delays {
		tid := uuid.New()
		store.templates[tid] = repository.EmailTemplate{
			ID:      tid,
			Subject: "Checking in with {{business_name}}",
			Body:    "Hi {{owner_name}}, {{assigned_to_name}} here.",
		}
		store.configs = append(store.configs, repository.AutomationConfig{
			ID:          uuid.New(),
			TriggerName: fmt.Sprintf("follow_up_day_%d", d),
			Enabled:     true,
			TemplateID:  &tid,
			DelayDays:   d,
		})
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates: make(map[uuid.UUID]repository.EmailTemplate),
		prospects: make(map[uuid.UUID]repository.Prospect),
	}
}

func TestProcessFollowUps_EmptySequenceIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.candidates = []repository.Prospect{
		candidate("Acme", 0, nil, timePtr(testNow.Add(-96*time.Hour))),
	}
	sender := &testSender{}
	svc, _ := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 0 || res.Skipped != 0 || len(res.Errors) != 0 {
		t.Fatalf("expected zero result, got %+v", res)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no sends without configured steps")
	}
}

func TestProcessFollowUps_SendsDueStep(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 3, 7)
	p := candidate("Acme", 0, nil, timePtr(testNow.Add(-4*24*time.Hour)))
	store.candidates = []repository.Prospect{p}
	sender := &testSender{}
	svc, bus := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 1 || res.Skipped != 0 || len(res.Errors) != 0 {
		t.Fatalf("expected 1 sent, got %+v", res)
	}
	if len(store.marked) != 1 {
		t.Fatalf("expected 1 prospect update, got %d", len(store.marked))
	}
	mark := store.marked[0]
	if mark.step != 1 {
		t.Fatalf("expected step advanced to 1, got %d", mark.step)
	}
	if mark.stage != domain.StageFollowUp {
		t.Fatalf("expected stage %q, got %q", domain.StageFollowUp, mark.stage)
	}
	if !mark.at.Equal(testNow) {
		t.Fatalf("expected last_auto_email_at %v, got %v", testNow, mark.at)
	}
	if len(store.activities) != 1 || store.activities[0].Subject != "Auto follow-up #1 sent" {
		t.Fatalf("unexpected activities: %+v", store.activities)
	}
	if !store.activities[0].Automated {
		t.Fatal("expected automated activity")
	}
	if store.activities[0].TemplateID == nil || *store.activities[0].TemplateID != *store.configs[0].TemplateID {
		t.Fatalf("expected activity linked to the step template, got %v", store.activities[0].TemplateID)
	}
	if len(store.sends) != 1 {
		t.Fatalf("expected 1 send record, got %d", len(store.sends))
	}
	if store.sends[0].Subject != "Checking in with Acme" {
		t.Fatalf("merge tags not rendered in subject: %q", store.sends[0].Subject)
	}
	if !store.sends[0].Automated {
		t.Fatal("expected send flagged automated")
	}
	if store.sends[0].SentBy != nil {
		t.Fatalf("timer-driven run must record no sender, got %v", store.sends[0].SentBy)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.published))
	}
	if bus.published[0].EventName() != events.AutoFollowUpSentName {
		t.Fatalf("unexpected event %q", bus.published[0].EventName())
	}
}

func TestProcessFollowUps_RateLimitSkips(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 3)
	store.candidates = []repository.Prospect{
		candidate("Acme", 0, timePtr(testNow.Add(-2*time.Hour)), timePtr(testNow.Add(-10*24*time.Hour))),
	}
	sender := &testSender{}
	svc, _ := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 0 || res.Skipped != 1 {
		t.Fatalf("expected rate-limited skip, got %+v", res)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no send inside cooldown window")
	}
}

func TestProcessFollowUps_DelayGateNotYetDue(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 7)
	store.candidates = []repository.Prospect{
		candidate("Acme", 0, nil, timePtr(testNow.Add(-5*24*time.Hour))),
	}
	sender := &testSender{}
	svc, _ := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 0 || res.Skipped != 1 {
		t.Fatalf("expected not-yet-due skip, got %+v", res)
	}
}

func TestProcessFollowUps_DelayGateUsesLastAutoEmailWhenSet(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 3, 7)
	// Step 1 requires 7 days since the previous auto email; only 5 elapsed.
	store.candidates = []repository.Prospect{
		candidate("Acme", 1, timePtr(testNow.Add(-5*24*time.Hour)), timePtr(testNow.Add(-30*24*time.Hour))),
	}
	sender := &testSender{}
	svc, _ := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 0 || res.Skipped != 1 {
		t.Fatalf("expected skip against last auto email reference, got %+v", res)
	}
}

func TestProcessFollowUps_NoReferenceTimeSkips(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 3)
	store.candidates = []repository.Prospect{
		candidate("Acme", 0, nil, nil),
	}
	sender := &testSender{}
	svc, _ := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 0 || res.Skipped != 1 || len(res.Errors) != 0 {
		t.Fatalf("expected skip without reference time, got %+v", res)
	}
}

func TestProcessFollowUps_ExhaustedCadenceMovesToNurture(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 3)
	p := candidate("Acme", 1, timePtr(testNow.Add(-48*time.Hour)), timePtr(testNow.Add(-60*24*time.Hour)))
	store.candidates = []repository.Prospect{p}
	sender := &testSender{}
	svc, _ := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 0 || res.Skipped != 1 {
		t.Fatalf("expected nurture skip, got %+v", res)
	}
	if len(store.nurtured) != 1 || store.nurtured[0] != p.ID {
		t.Fatalf("expected prospect parked in nurture, got %v", store.nurtured)
	}
	want := testNow.AddDate(0, 0, 30)
	if !store.nurtureDates[0].Equal(want) {
		t.Fatalf("expected nurture date %v, got %v", want, store.nurtureDates[0])
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no send for exhausted cadence")
	}
}

func TestProcessFollowUps_SendFailureIsolated(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 3)
	bad := candidate("Broken", 0, nil, timePtr(testNow.Add(-10*24*time.Hour)))
	good := candidate("Acme", 0, nil, timePtr(testNow.Add(-10*24*time.Hour)))
	store.candidates = []repository.Prospect{bad, good}
	sender := &testSender{failFor: map[string]error{
		*bad.Email: errors.New("mailbox unavailable"),
	}}
	svc, _ := newTestService(store, sender)

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 1 {
		t.Fatalf("expected the healthy prospect to still be sent, got %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", res.Errors)
	}
	want := "Failed to send to Broken: mailbox unavailable"
	if res.Errors[0] != want {
		t.Fatalf("got error %q, want %q", res.Errors[0], want)
	}
	// Failed send must not advance the failed prospect's state.
	for _, mark := range store.marked {
		if mark.id == bad.ID {
			t.Fatal("failed send must not mutate prospect state")
		}
	}
}

func TestProcessFollowUps_CandidateLoadFailure(t *testing.T) {
	store := newFakeStore()
	cadenceFixture(store, 3)
	store.candidatesErr = errors.New("connection refused")
	svc, _ := newTestService(store, &testSender{})

	res := svc.ProcessFollowUps(context.Background(), nil)

	if res.Sent != 0 || len(res.Errors) != 1 {
		t.Fatalf("expected load failure surfaced in errors, got %+v", res)
	}
}

func TestProcessThankYou_Success(t *testing.T) {
	store := newFakeStore()
	tid := uuid.New()
	store.templates[tid] = repository.EmailTemplate{
		ID:      tid,
		Subject: "Thanks {{owner_name}}!",
		Body:    "From {{assigned_to_name}}",
	}
	store.configs = []repository.AutomationConfig{{
		ID:          uuid.New(),
		TriggerName: "thank_you_won",
		Enabled:     true,
		TemplateID:  &tid,
	}}
	p := candidate("Acme", 2, nil, timePtr(testNow.Add(-10*24*time.Hour)))
	p.OwnerName = strPtr("Dana")
	store.prospects[p.ID] = p
	sender := &testSender{}
	svc, bus := newTestService(store, sender)
	actor := uuid.New()

	if err := svc.ProcessThankYou(context.Background(), p.ID, "thank_you_won", &actor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.sent))
	}
	if len(store.marked) != 0 {
		t.Fatal("thank-you must not advance the cadence step")
	}
	if len(store.lastStamped) != 1 || store.lastStamped[0] != p.ID {
		t.Fatal("expected only the rate-limit timestamp update")
	}
	if len(store.activities) != 1 || store.activities[0].Subject != "Auto thank-you sent (thank you won)" {
		t.Fatalf("unexpected activity: %+v", store.activities)
	}
	if store.activities[0].TemplateID == nil || *store.activities[0].TemplateID != tid {
		t.Fatalf("expected activity linked to template %s, got %v", tid, store.activities[0].TemplateID)
	}
	if store.sends[0].Subject != "Thanks Dana!" {
		t.Fatalf("merge tags not rendered: %q", store.sends[0].Subject)
	}
	if store.sends[0].SentBy == nil || *store.sends[0].SentBy != actor {
		t.Fatalf("expected sender %s recorded on send, got %v", actor, store.sends[0].SentBy)
	}
	if !store.sends[0].Automated {
		t.Fatal("expected send flagged automated")
	}
	if len(bus.published) != 1 || bus.published[0].EventName() != events.AutoThankYouSentName {
		t.Fatalf("unexpected events: %+v", bus.published)
	}
}

func TestProcessThankYou_NoConfig(t *testing.T) {
	store := newFakeStore()
	p := candidate("Acme", 0, nil, nil)
	store.prospects[p.ID] = p
	svc, _ := newTestService(store, &testSender{})

	err := svc.ProcessThankYou(context.Background(), p.ID, "thank_you_won", nil)
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found kind, got %v", apperr.GetKind(err))
	}
}

func TestProcessThankYou_ProspectWithoutEmail(t *testing.T) {
	store := newFakeStore()
	tid := uuid.New()
	store.templates[tid] = repository.EmailTemplate{ID: tid}
	store.configs = []repository.AutomationConfig{{
		TriggerName: "thank_you_won", Enabled: true, TemplateID: &tid,
	}}
	p := candidate("Acme", 0, nil, nil)
	p.Email = nil
	store.prospects[p.ID] = p
	svc, _ := newTestService(store, &testSender{})

	err := svc.ProcessThankYou(context.Background(), p.ID, "thank_you_won", nil)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found kind, got %v", err)
	}
}

func TestProcessThankYou_RateLimited(t *testing.T) {
	store := newFakeStore()
	tid := uuid.New()
	store.templates[tid] = repository.EmailTemplate{ID: tid}
	store.configs = []repository.AutomationConfig{{
		TriggerName: "thank_you_won", Enabled: true, TemplateID: &tid,
	}}
	p := candidate("Acme", 0, timePtr(testNow.Add(-3*time.Hour)), nil)
	store.prospects[p.ID] = p
	sender := &testSender{}
	svc, _ := newTestService(store, sender)

	err := svc.ProcessThankYou(context.Background(), p.ID, "thank_you_won", nil)
	if apperr.GetKind(err) != apperr.KindRateLimited {
		t.Fatalf("expected rate limited kind, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no send inside cooldown window")
	}
	if len(store.lastStamped) != 0 {
		t.Fatal("rate-limited attempt must not mutate state")
	}
}

func TestProcessThankYou_TransportFailure(t *testing.T) {
	store := newFakeStore()
	tid := uuid.New()
	store.templates[tid] = repository.EmailTemplate{ID: tid, Subject: "s", Body: "b"}
	store.configs = []repository.AutomationConfig{{
		TriggerName: "thank_you_won", Enabled: true, TemplateID: &tid,
	}}
	p := candidate("Acme", 0, nil, nil)
	store.prospects[p.ID] = p
	sender := &testSender{failFor: map[string]error{*p.Email: errors.New("timeout")}}
	svc, _ := newTestService(store, sender)

	err := svc.ProcessThankYou(context.Background(), p.ID, "thank_you_won", nil)
	if err == nil {
		t.Fatal("expected transport failure")
	}
	if len(store.lastStamped) != 0 || len(store.sends) != 0 || len(store.activities) != 0 {
		t.Fatal("failed send must not mutate state")
	}
}
