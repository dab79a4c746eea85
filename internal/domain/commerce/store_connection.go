package commerce

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConnectionInvalidURL indicates a missing or malformed store URL
	ErrConnectionInvalidURL = errors.New("commerce: store base URL is missing or invalid")
	// ErrConnectionMissingCredentials indicates absent API credentials
	ErrConnectionMissingCredentials = errors.New("commerce: consumer key and secret are required")
	// ErrConnectionNotFound indicates the connection does not exist
	ErrConnectionNotFound = errors.New("commerce: store connection not found")
	// ErrConnectionDisabled indicates the connection is disabled
	ErrConnectionDisabled = errors.New("commerce: store connection is disabled")
)

// StoreConnection is the per-tenant configuration for one remote store:
// base URL plus REST credentials. The sync engine treats it as read-only.
type StoreConnection struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Name           string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	IsEnabled      bool
	TimeoutSeconds int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewStoreConnection creates a connection, validating URL and credentials.
func NewStoreConnection(tenantID uuid.UUID, name, baseURL, consumerKey, consumerSecret string) (*StoreConnection, error) {
	conn := &StoreConnection{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Name:           name,
		BaseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		IsEnabled:      true,
		TimeoutSeconds: 30,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return conn, nil
}

// Validate checks connection invariants.
func (c *StoreConnection) Validate() error {
	if c.BaseURL == "" {
		return ErrConnectionInvalidURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrConnectionInvalidURL
	}
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return ErrConnectionMissingCredentials
	}
	return nil
}

// Timeout returns the request timeout as a duration.
func (c *StoreConnection) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StoreConnectionRepository defines the interface for persisting connections
type StoreConnectionRepository interface {
	// Save creates or updates a connection
	Save(ctx context.Context, conn *StoreConnection) error

	// FindByID finds a connection by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StoreConnection, error)

	// FindAllForTenant returns all connections of a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]StoreConnection, error)

	// FindEnabled returns all enabled connections across tenants
	FindEnabled(ctx context.Context) ([]StoreConnection, error)

	// Delete removes a connection
	Delete(ctx context.Context, id uuid.UUID) error
}
