package attribution

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/backend/internal/domain/attribution"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// CreateRuleRequest represents a request to create a channel rule
type CreateRuleRequest struct {
	Source  string `json:"source" binding:"required"`
	Medium  string `json:"medium" binding:"required"`
	Channel string `json:"channel" binding:"required"`
}

// UpdateRuleRequest represents a partial update to a channel rule
type UpdateRuleRequest struct {
	Source   *string `json:"source,omitempty"`
	Medium   *string `json:"medium,omitempty"`
	Channel  *string `json:"channel,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// RuleListFilter represents filter options for listing rules
type RuleListFilter struct {
	Channel  string `form:"channel"`
	IsActive *bool  `form:"is_active"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// ChannelRuleResponse represents a channel rule in API responses
type ChannelRuleResponse struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	Medium    string    `json:"medium"`
	Channel   string    `json:"channel"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassifyPreviewResponse shows how one pair would be classified today
type ClassifyPreviewResponse struct {
	Source  string `json:"source"`
	Medium  string `json:"medium"`
	Channel string `json:"channel"`
}

// ToChannelRuleResponse converts a domain rule to a response DTO
func ToChannelRuleResponse(r *attribution.ChannelRule) ChannelRuleResponse {
	return ChannelRuleResponse{
		ID:        r.ID,
		Source:    r.Source,
		Medium:    r.Medium,
		Channel:   r.Channel,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// normalizePair lower-cases and trims a rule pair component.
func normalizePair(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
