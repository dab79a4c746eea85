package commerce

import (
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/backend/internal/domain/commerce"
)

// CreateConnectionRequest registers a new store connection.
type CreateConnectionRequest struct {
	Name           string `json:"name" binding:"required"`
	BaseURL        string `json:"base_url" binding:"required"`
	ConsumerKey    string `json:"consumer_key" binding:"required"`
	ConsumerSecret string `json:"consumer_secret" binding:"required"`
}

// UpdateConnectionRequest is a partial update; nil fields are untouched.
type UpdateConnectionRequest struct {
	Name           *string `json:"name"`
	BaseURL        *string `json:"base_url"`
	ConsumerKey    *string `json:"consumer_key"`
	ConsumerSecret *string `json:"consumer_secret"`
	IsEnabled      *bool   `json:"is_enabled"`
	TimeoutSeconds *int    `json:"timeout_seconds"`
}

// ConnectionResponse is the API view of a connection. Credentials are
// never echoed back.
type ConnectionResponse struct {
	ID             uuid.UUID `json:"id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	Name           string    `json:"name"`
	BaseURL        string    `json:"base_url"`
	IsEnabled      bool      `json:"is_enabled"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToConnectionResponse converts a domain connection to its API view.
func ToConnectionResponse(c *commerce.StoreConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:             c.ID,
		TenantID:       c.TenantID,
		Name:           c.Name,
		BaseURL:        c.BaseURL,
		IsEnabled:      c.IsEnabled,
		TimeoutSeconds: c.TimeoutSeconds,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
