// Package prospects provides the prospect pipeline bounded context module.
// This file defines the module that encapsulates all prospects setup and
// route registration.
package prospects

import (
	"coast_crm_backend/internal/email"
	"coast_crm_backend/internal/events"
	apphttp "coast_crm_backend/internal/http"
	"coast_crm_backend/internal/prospects/automation"
	"coast_crm_backend/internal/prospects/domain"
	"coast_crm_backend/internal/prospects/handler"
	"coast_crm_backend/internal/prospects/management"
	"coast_crm_backend/internal/prospects/pipeline"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/internal/scheduler"
	"coast_crm_backend/platform/config"
	"coast_crm_backend/platform/httpkit"
	"coast_crm_backend/platform/logger"
	"coast_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the prospects bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	admin      *handler.AdminHandler
	repo       *repository.Repository
	management *management.Service
	pipeline   *pipeline.Service
	automation *automation.Service
}

// NewModule creates and initializes the prospects module with all its
// dependencies. enqueue may be nil when no task queue is configured.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, sender email.Sender, enqueue scheduler.FollowUpEnqueuer, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)

	pipeSvc := pipeline.NewService(repo, domain.DefaultEffects(), eventBus, log)
	autoSvc := automation.NewService(repo, sender, eventBus, log, cfg, cfg.GetEmailFromName())
	mgmtSvc := management.NewService(repo, eventBus, log)

	h := handler.New(mgmtSvc, pipeSvc, autoSvc, val, log)
	admin := handler.NewAdminHandler(repo, autoSvc, enqueue, val)

	return &Module{
		handler:    h,
		admin:      admin,
		repo:       repo,
		management: mgmtSvc,
		pipeline:   pipeSvc,
		automation: autoSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "prospects"
}

// AutomationService returns the cadence processor for the scheduler worker.
func (m *Module) AutomationService() *automation.Service {
	return m.automation
}

// Repository returns the prospects repository for startup tasks such as
// config seeding.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts prospects routes on the provided router context.
// The operator surface additionally requires the admin role.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All prospects routes require authentication
	m.handler.RegisterRoutes(ctx.Protected.Group("/prospects"))
	m.admin.RegisterTemplateRoutes(ctx.Protected.Group("/templates", httpkit.RequireRole("admin")))
	m.admin.RegisterAutomationRoutes(ctx.Protected.Group("/automation", httpkit.RequireRole("admin")))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
