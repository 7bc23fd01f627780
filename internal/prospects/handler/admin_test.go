package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coast_crm_backend/internal/scheduler"
	"coast_crm_backend/platform/httpkit"
	"coast_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeEnqueuer struct {
	payloads []scheduler.FollowUpRunPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueFollowUpRun(_ context.Context, payload scheduler.FollowUpRunPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func newAutomationRouter(enqueue scheduler.FollowUpEnqueuer, userID *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	if userID != nil {
		engine.Use(func(c *gin.Context) {
			c.Set(httpkit.ContextUserIDKey, *userID)
			c.Set(httpkit.ContextRolesKey, []string{"admin"})
			c.Next()
		})
	}
	admin := NewAdminHandler(nil, nil, enqueue, validator.New())
	admin.RegisterAutomationRoutes(engine.Group("/automation"))
	return engine
}

func TestEnqueueFollowUps_Queued(t *testing.T) {
	enqueue := &fakeEnqueuer{}
	operator := uuid.New()
	engine := newAutomationRouter(enqueue, &operator)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/run/async", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(enqueue.payloads) != 1 {
		t.Fatalf("expected 1 enqueued run, got %d", len(enqueue.payloads))
	}
	if enqueue.payloads[0].ActorID != operator.String() {
		t.Fatalf("expected operator %s on payload, got %q", operator, enqueue.payloads[0].ActorID)
	}
}

func TestEnqueueFollowUps_AnonymousRunHasNoActor(t *testing.T) {
	enqueue := &fakeEnqueuer{}
	engine := newAutomationRouter(enqueue, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/run/async", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if enqueue.payloads[0].ActorID != "" {
		t.Fatalf("expected empty actor, got %q", enqueue.payloads[0].ActorID)
	}
}

func TestEnqueueFollowUps_QueueNotConfigured(t *testing.T) {
	engine := newAutomationRouter(nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/run/async", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a task queue, got %d", rec.Code)
	}
}

func TestEnqueueFollowUps_EnqueueFailure(t *testing.T) {
	enqueue := &fakeEnqueuer{err: errors.New("redis down")}
	engine := newAutomationRouter(enqueue, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/automation/run/async", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on enqueue failure, got %d", rec.Code)
	}
}
