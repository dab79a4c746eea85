package commerce

import (
	"context"

	"github.com/google/uuid"

	"github.com/trafficlens/backend/internal/domain/commerce"
)

// ConnectionService manages per-tenant store connections.
type ConnectionService struct {
	connRepo commerce.StoreConnectionRepository
	platform commerce.StorePlatform
}

// NewConnectionService creates a new ConnectionService.
func NewConnectionService(connRepo commerce.StoreConnectionRepository, platform commerce.StorePlatform) *ConnectionService {
	return &ConnectionService{connRepo: connRepo, platform: platform}
}

// CreateConnection registers a new store connection.
func (s *ConnectionService) CreateConnection(ctx context.Context, tenantID uuid.UUID, name, baseURL, consumerKey, consumerSecret string) (*commerce.StoreConnection, error) {
	conn, err := commerce.NewStoreConnection(tenantID, name, baseURL, consumerKey, consumerSecret)
	if err != nil {
		return nil, err
	}
	if err := s.connRepo.Save(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// UpdateConnection applies a partial update to a connection.
func (s *ConnectionService) UpdateConnection(ctx context.Context, tenantID, id uuid.UUID, req UpdateConnectionRequest) (*commerce.StoreConnection, error) {
	conn, err := s.getOwned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		conn.Name = *req.Name
	}
	if req.BaseURL != nil {
		conn.BaseURL = *req.BaseURL
	}
	if req.ConsumerKey != nil {
		conn.ConsumerKey = *req.ConsumerKey
	}
	if req.ConsumerSecret != nil {
		conn.ConsumerSecret = *req.ConsumerSecret
	}
	if req.IsEnabled != nil {
		conn.IsEnabled = *req.IsEnabled
	}
	if req.TimeoutSeconds != nil {
		conn.TimeoutSeconds = *req.TimeoutSeconds
	}

	if err := conn.Validate(); err != nil {
		return nil, err
	}
	if err := s.connRepo.Save(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// GetConnection retrieves a connection by ID.
func (s *ConnectionService) GetConnection(ctx context.Context, tenantID, id uuid.UUID) (*commerce.StoreConnection, error) {
	return s.getOwned(ctx, tenantID, id)
}

// ListConnections lists a tenant's connections.
func (s *ConnectionService) ListConnections(ctx context.Context, tenantID uuid.UUID) ([]commerce.StoreConnection, error) {
	return s.connRepo.FindAllForTenant(ctx, tenantID)
}

// DeleteConnection removes a connection.
func (s *ConnectionService) DeleteConnection(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, tenantID, id); err != nil {
		return err
	}
	return s.connRepo.Delete(ctx, id)
}

// Ping verifies connectivity and credentials against the remote store.
func (s *ConnectionService) Ping(ctx context.Context, tenantID, id uuid.UUID) error {
	conn, err := s.getOwned(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return s.platform.Ping(ctx, conn)
}

func (s *ConnectionService) getOwned(ctx context.Context, tenantID, id uuid.UUID) (*commerce.StoreConnection, error) {
	conn, err := s.connRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.TenantID != tenantID {
		return nil, commerce.ErrConnectionNotFound
	}
	return conn, nil
}
