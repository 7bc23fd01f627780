// Package handler exposes the prospects bounded context over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"coast_crm_backend/internal/prospects/automation"
	"coast_crm_backend/internal/prospects/domain"
	"coast_crm_backend/internal/prospects/management"
	"coast_crm_backend/internal/prospects/pipeline"
	"coast_crm_backend/internal/prospects/repository"
	"coast_crm_backend/internal/prospects/transport"
	"coast_crm_backend/platform/httpkit"
	"coast_crm_backend/platform/logger"
	"coast_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	mgmt *management.Service
	pipe *pipeline.Service
	auto *automation.Service
	val  *validator.Validator
	log  *logger.Logger
}

func New(mgmt *management.Service, pipe *pipeline.Service, auto *automation.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{mgmt: mgmt, pipe: pipe, auto: auto, val: val, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/summary", h.PipelineSummary)
	rg.GET("/team", h.ListTeamMembers)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/stage", h.ChangeStage)
	rg.PATCH("/:id/pause", h.SetPaused)
	rg.GET("/:id/timeline", h.Timeline)
	rg.POST("/:id/thank-you/:trigger", h.SendThankYou)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateProspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	input := management.CreateProspectInput{
		BusinessName: req.BusinessName,
		Market:       req.Market,
		Category:     req.Category,
		OwnerName:    req.OwnerName,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
	}
	if req.AssignedToID != nil && *req.AssignedToID != "" {
		assigneeID, err := uuid.Parse(*req.AssignedToID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		input.AssignedToID = &assigneeID
	}

	prospect, err := h.mgmt.Create(c.Request.Context(), input)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToProspectResponse(prospect))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	detail, err := h.mgmt.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProspectDetailResponse(detail))
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListProspectsParams{}
	if stage := c.Query("stage"); stage != "" {
		params.Stage = &stage
	}
	if search := c.Query("search"); search != "" {
		params.Search = &search
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			params.Offset = offset
		}
	}

	items, err := h.mgmt.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ProspectListResponse{Items: make([]transport.ProspectResponse, 0, len(items))}
	for _, p := range items {
		resp.Items = append(resp.Items, transport.ToProspectResponse(p))
	}
	httpkit.OK(c, resp)
}

// stageThankYouTriggers maps stages whose entry fires a one-off thank-you
// email to the trigger name looked up in the automation configs.
var stageThankYouTriggers = map[string]string{
	domain.StageResponded:      "thank_you_responded",
	domain.StageInterested:     "thank_you_interested",
	domain.StageWon:            "thank_you_won",
	domain.StageProjectStarted: "thank_you_project_started",
}

func (h *Handler) ChangeStage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ChangeStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actorID := actorFromContext(c)
	prospect, err := h.pipe.ChangeStage(c.Request.Context(), id, req.Stage, actorID, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}

	// Qualifying stages fire their one-off trigger after the transition is
	// persisted. A missing config or rate-limit hit does not fail the stage
	// change itself.
	thankYouSent := false
	if trigger, ok := stageThankYouTriggers[req.Stage]; ok {
		if err := h.auto.ProcessThankYou(c.Request.Context(), id, trigger, actorID); err != nil {
			h.log.Info("thank-you trigger not sent", "prospectId", id, "trigger", trigger, "reason", err.Error())
		} else {
			thankYouSent = true
		}
	}

	httpkit.OK(c, gin.H{
		"prospect":     transport.ToProspectResponse(prospect),
		"thankYouSent": thankYouSent,
	})
}

// SendThankYou fires a configured one-off trigger at a prospect on demand.
func (h *Handler) SendThankYou(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	trigger := c.Param("trigger")

	if err := h.auto.ProcessThankYou(c.Request.Context(), id, trigger, actorFromContext(c)); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ThankYouResponse{Sent: true})
}

func (h *Handler) SetPaused(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetPausedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.mgmt.SetFollowUpPaused(c.Request.Context(), id, req.Paused); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"paused": req.Paused})
}

func (h *Handler) Timeline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	entries, err := h.mgmt.Timeline(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToTimelineResponse(entries)})
}

func (h *Handler) PipelineSummary(c *gin.Context) {
	summary, err := h.mgmt.PipelineSummary(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"stages": summary})
}

func (h *Handler) ListTeamMembers(c *gin.Context) {
	members, err := h.mgmt.ListTeamMembers(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.TeamMemberResponse, 0, len(members))
	for _, m := range members {
		items = append(items, transport.TeamMemberResponse{ID: m.ID, Name: m.Name, Email: m.Email})
	}
	httpkit.OK(c, gin.H{"items": items})
}

func actorFromContext(c *gin.Context) *uuid.UUID {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return nil
	}
	id := identity.UserID()
	return &id
}
