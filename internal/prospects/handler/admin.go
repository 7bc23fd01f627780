package handler

import (
	"errors"
	"net/http"
	"strconv"

	"coast_crm_backend/internal/prospects/automation"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/internal/prospects/transport"
	"coast_crm_backend/internal/scheduler"
	"coast_crm_backend/platform/httpkit"
	"coast_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler covers the operator surface: email templates, trigger
// configuration, manual cadence runs, and the automated activity feed.
// enqueue is nil when Redis is not configured; the async run endpoint then
// reports the scheduler as unavailable.
type AdminHandler struct {
	repo    *repository.Repository
	auto    *automation.Service
	enqueue scheduler.FollowUpEnqueuer
	val     *validator.Validator
}

func NewAdminHandler(repo *repository.Repository, auto *automation.Service, enqueue scheduler.FollowUpEnqueuer, val *validator.Validator) *AdminHandler {
	return &AdminHandler{repo: repo, auto: auto, enqueue: enqueue, val: val}
}

func (h *AdminHandler) RegisterTemplateRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListTemplates)
	rg.POST("", h.CreateTemplate)
	rg.GET("/:id", h.GetTemplate)
	rg.PUT("/:id", h.UpdateTemplate)
	rg.DELETE("/:id", h.DeleteTemplate)
}

func (h *AdminHandler) RegisterAutomationRoutes(rg *gin.RouterGroup) {
	rg.GET("/configs", h.ListConfigs)
	rg.PATCH("/configs/:id", h.UpdateConfig)
	rg.POST("/configs/seed", h.SeedConfigs)
	rg.POST("/run", h.RunFollowUps)
	rg.POST("/run/async", h.EnqueueFollowUps)
	rg.GET("/activity", h.AutomatedActivity)
	rg.PATCH("/sends/:id/status", h.UpdateSendStatus)
}

func (h *AdminHandler) CreateTemplate(c *gin.Context) {
	var req transport.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	tmpl, err := h.repo.CreateTemplate(c.Request.Context(), repository.CreateTemplateParams{
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.Created(c, transport.ToTemplateResponse(tmpl))
}

func (h *AdminHandler) GetTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	tmpl, err := h.repo.GetTemplate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			httpkit.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, transport.ToTemplateResponse(tmpl))
}

func (h *AdminHandler) ListTemplates(c *gin.Context) {
	templates, err := h.repo.ListTemplates(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	items := make([]transport.TemplateResponse, 0, len(templates))
	for _, tmpl := range templates {
		items = append(items, transport.ToTemplateResponse(tmpl))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *AdminHandler) UpdateTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	tmpl, err := h.repo.UpdateTemplate(c.Request.Context(), id, repository.UpdateTemplateParams{
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			httpkit.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, transport.ToTemplateResponse(tmpl))
}

func (h *AdminHandler) DeleteTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.repo.DeleteTemplate(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			httpkit.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListConfigs(c *gin.Context) {
	configs, err := h.repo.ListConfigs(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	items := make([]transport.ConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		items = append(items, transport.ToConfigResponse(cfg))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *AdminHandler) UpdateConfig(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	params := repository.UpdateConfigParams{
		Enabled:   req.Enabled,
		DelayDays: req.DelayDays,
	}
	if req.TemplateID != nil {
		if *req.TemplateID == "" {
			nilID := uuid.Nil
			params.TemplateID = &nilID
		} else {
			templateID, err := uuid.Parse(*req.TemplateID)
			if err != nil {
				httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
				return
			}
			params.TemplateID = &templateID
		}
	}

	cfg, err := h.repo.UpdateConfig(c.Request.Context(), id, params)
	if err != nil {
		if errors.Is(err, repository.ErrConfigNotFound) {
			httpkit.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, transport.ToConfigResponse(cfg))
}

func (h *AdminHandler) SeedConfigs(c *gin.Context) {
	if err := h.repo.SeedDefaultConfigs(c.Request.Context()); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	configs, err := h.repo.ListConfigs(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	items := make([]transport.ConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		items = append(items, transport.ToConfigResponse(cfg))
	}
	httpkit.OK(c, gin.H{"items": items})
}

// RunFollowUps triggers one cadence batch synchronously. The scheduler runs
// the same batch on its interval; this endpoint exists for operators.
func (h *AdminHandler) RunFollowUps(c *gin.Context) {
	result := h.auto.ProcessFollowUps(c.Request.Context(), actorFromContext(c))
	httpkit.OK(c, result)
}

// EnqueueFollowUps hands one cadence batch to the worker instead of running
// it in the request. The enqueued task carries the operator id so the batch
// is attributed to them.
func (h *AdminHandler) EnqueueFollowUps(c *gin.Context) {
	if h.enqueue == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "task queue not configured", nil)
		return
	}

	payload := scheduler.FollowUpRunPayload{}
	if actorID := actorFromContext(c); actorID != nil {
		payload.ActorID = actorID.String()
	}

	if err := h.enqueue.EnqueueFollowUpRun(c.Request.Context(), payload); err != nil {
		httpkit.Error(c, http.StatusBadGateway, "failed to enqueue cadence run", nil)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": true})
}

func (h *AdminHandler) AutomatedActivity(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	activities, err := h.repo.ListAutomatedActivities(c.Request.Context(), limit)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	items := make([]transport.ActivityResponse, 0, len(activities))
	for _, a := range activities {
		items = append(items, transport.ActivityResponse{
			ID:         a.ID,
			Type:       a.Type,
			Subject:    a.Subject,
			Detail:     a.Detail,
			TemplateID: a.TemplateID,
			ActorID:    a.ActorID,
			Automated:  a.Automated,
			CreatedAt:  a.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *AdminHandler) UpdateSendStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateSendStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	send, err := h.repo.UpdateSendStatus(c.Request.Context(), id, req.Status, req.Sentiment)
	if err != nil {
		if errors.Is(err, repository.ErrSendNotFound) {
			httpkit.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, transport.TemplateSendResponse{
		ID:         send.ID,
		TemplateID: send.TemplateID,
		Trigger:    send.Trigger,
		Recipient:  send.Recipient,
		Subject:    send.Subject,
		Status:     send.Status,
		Sentiment:  send.Sentiment,
		SentBy:     send.SentBy,
		Automated:  send.Automated,
		SentAt:     send.SentAt,
	})
}
