package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	attributionapp "github.com/trafficlens/backend/internal/application/attribution"
	"github.com/trafficlens/backend/internal/domain/attribution"
)

// RuleHandler handles channel classification rule API endpoints
type RuleHandler struct {
	BaseHandler
	ruleService *attributionapp.ChannelRuleService
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(ruleService *attributionapp.ChannelRuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// Create godoc
// @Summary      Create a channel classification rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Router       /rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req attributionapp.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	rule, err := h.ruleService.CreateRule(c.Request.Context(), tenantID, req.Source, req.Medium, req.Channel)
	if err != nil {
		h.handleRuleError(c, err)
		return
	}

	h.Created(c, attributionapp.ToChannelRuleResponse(rule))
}

// Update godoc
// @Summary      Update a channel classification rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Router       /rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	var req attributionapp.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	rule, err := h.ruleService.UpdateRule(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.handleRuleError(c, err)
		return
	}

	h.Success(c, attributionapp.ToChannelRuleResponse(rule))
}

// Get godoc
// @Summary      Get a channel classification rule
// @Tags         rules
// @Produce      json
// @Router       /rules/{id} [get]
func (h *RuleHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	rule, err := h.ruleService.GetRule(c.Request.Context(), tenantID, id)
	if err != nil {
		h.handleRuleError(c, err)
		return
	}

	h.Success(c, attributionapp.ToChannelRuleResponse(rule))
}

// List godoc
// @Summary      List channel classification rules
// @Tags         rules
// @Produce      json
// @Router       /rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query attributionapp.RuleListFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := attribution.ChannelRuleFilter{
		IsActive: query.IsActive,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Channel != "" {
		filter.Channel = &query.Channel
	}

	rules, total, err := h.ruleService.ListRules(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.handleRuleError(c, err)
		return
	}

	responses := make([]attributionapp.ChannelRuleResponse, 0, len(rules))
	for i := range rules {
		responses = append(responses, attributionapp.ToChannelRuleResponse(&rules[i]))
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, responses, total, page, pageSize)
}

// Deactivate godoc
// @Summary      Deactivate a channel classification rule
// @Tags         rules
// @Router       /rules/{id} [delete]
func (h *RuleHandler) Deactivate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	if err := h.ruleService.DeactivateRule(c.Request.Context(), tenantID, id); err != nil {
		h.handleRuleError(c, err)
		return
	}

	h.NoContent(c)
}

// Seed godoc
// @Summary      Seed the default rule table for a tenant
// @Tags         rules
// @Produce      json
// @Router       /rules/seed [post]
func (h *RuleHandler) Seed(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	created, err := h.ruleService.SeedDefaultRules(c.Request.Context(), tenantID)
	if err != nil {
		h.handleRuleError(c, err)
		return
	}

	h.Success(c, gin.H{"created": created})
}

// Classify godoc
// @Summary      Preview the channel a source/medium pair classifies into
// @Tags         rules
// @Produce      json
// @Router       /rules/classify [get]
func (h *RuleHandler) Classify(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	source := c.Query("source")
	medium := c.Query("medium")

	preview, err := h.ruleService.ClassifyPair(c.Request.Context(), tenantID, source, medium)
	if err != nil {
		h.handleRuleError(c, err)
		return
	}

	h.Success(c, preview)
}

// handleRuleError maps attribution domain errors to HTTP responses
func (h *RuleHandler) handleRuleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attribution.ErrRuleNotFound):
		h.NotFound(c, "Rule not found")
	case errors.Is(err, attribution.ErrRuleDuplicate):
		h.Conflict(c, err.Error())
	case errors.Is(err, attribution.ErrRuleInvalidSource),
		errors.Is(err, attribution.ErrRuleInvalidMedium),
		errors.Is(err, attribution.ErrRuleInvalidChannel):
		h.BadRequest(c, err.Error())
	default:
		h.HandleError(c, err)
	}
}
