package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trafficlens/backend/internal/domain/commerce"
	"github.com/trafficlens/backend/internal/infrastructure/persistence/models"
)

// GormStoreConnectionRepository implements commerce.StoreConnectionRepository using GORM
type GormStoreConnectionRepository struct {
	db *gorm.DB
}

// NewGormStoreConnectionRepository creates a new GormStoreConnectionRepository
func NewGormStoreConnectionRepository(db *gorm.DB) *GormStoreConnectionRepository {
	return &GormStoreConnectionRepository{db: db}
}

// Save creates or updates a connection
func (r *GormStoreConnectionRepository) Save(ctx context.Context, conn *commerce.StoreConnection) error {
	model := models.StoreConnectionModelFromDomain(conn)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID finds a connection by its ID
func (r *GormStoreConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.StoreConnection, error) {
	var model models.StoreConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commerce.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns all connections of a tenant
func (r *GormStoreConnectionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]commerce.StoreConnection, error) {
	var connModels []models.StoreConnectionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&connModels).Error; err != nil {
		return nil, err
	}

	conns := make([]commerce.StoreConnection, len(connModels))
	for i, model := range connModels {
		conns[i] = *model.ToDomain()
	}
	return conns, nil
}

// FindEnabled returns all enabled connections across tenants
func (r *GormStoreConnectionRepository) FindEnabled(ctx context.Context) ([]commerce.StoreConnection, error) {
	var connModels []models.StoreConnectionModel
	if err := r.db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Order("created_at ASC").
		Find(&connModels).Error; err != nil {
		return nil, err
	}

	conns := make([]commerce.StoreConnection, len(connModels))
	for i, model := range connModels {
		conns[i] = *model.ToDomain()
	}
	return conns, nil
}

// Delete removes a connection
func (r *GormStoreConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.StoreConnectionModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return commerce.ErrConnectionNotFound
	}
	return nil
}

// Ensure GormStoreConnectionRepository implements StoreConnectionRepository
var _ commerce.StoreConnectionRepository = (*GormStoreConnectionRepository)(nil)
