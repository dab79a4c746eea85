package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trafficlens/backend/internal/domain/attribution"
	"github.com/trafficlens/backend/internal/infrastructure/persistence/models"
)

// GormChannelRuleRepository implements attribution.ChannelRuleRepository using GORM
type GormChannelRuleRepository struct {
	db *gorm.DB
}

// NewGormChannelRuleRepository creates a new GormChannelRuleRepository
func NewGormChannelRuleRepository(db *gorm.DB) *GormChannelRuleRepository {
	return &GormChannelRuleRepository{db: db}
}

// Save creates or updates a rule
func (r *GormChannelRuleRepository) Save(ctx context.Context, rule *attribution.ChannelRule) error {
	model := models.ChannelRuleModelFromDomain(rule)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return attribution.ErrRuleDuplicate
		}
		return err
	}
	return nil
}

// FindByID finds a rule by its ID
func (r *GormChannelRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*attribution.ChannelRule, error) {
	var model models.ChannelRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attribution.ErrRuleNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveForTenant returns all active rules for a tenant
func (r *GormChannelRuleRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]attribution.ChannelRule, error) {
	var ruleModels []models.ChannelRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("source ASC, medium ASC").
		Find(&ruleModels).Error; err != nil {
		return nil, err
	}

	rules := make([]attribution.ChannelRule, len(ruleModels))
	for i, model := range ruleModels {
		rules[i] = *model.ToDomain()
	}
	return rules, nil
}

// FindBySourceMedium finds an active rule by its lower-cased pair
func (r *GormChannelRuleRepository) FindBySourceMedium(ctx context.Context, tenantID uuid.UUID, source, medium string) (*attribution.ChannelRule, error) {
	var model models.ChannelRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source = ? AND medium = ? AND is_active = ?",
			tenantID, strings.ToLower(source), strings.ToLower(medium), true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attribution.ErrRuleNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists rules matching the filter
func (r *GormChannelRuleRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter attribution.ChannelRuleFilter) ([]attribution.ChannelRule, error) {
	var ruleModels []models.ChannelRuleModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.ChannelRuleModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("source ASC, medium ASC").Find(&ruleModels).Error; err != nil {
		return nil, err
	}

	rules := make([]attribution.ChannelRule, len(ruleModels))
	for i, model := range ruleModels {
		rules[i] = *model.ToDomain()
	}
	return rules, nil
}

// Count counts rules matching the filter
func (r *GormChannelRuleRepository) Count(ctx context.Context, tenantID uuid.UUID, filter attribution.ChannelRuleFilter) (int64, error) {
	var count int64
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.ChannelRuleModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes a rule permanently
func (r *GormChannelRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ChannelRuleModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return attribution.ErrRuleNotFound
	}
	return nil
}

// applyFilter applies filter criteria to the query
func (r *GormChannelRuleRepository) applyFilter(query *gorm.DB, filter attribution.ChannelRuleFilter) *gorm.DB {
	if filter.Channel != nil {
		query = query.Where("channel = ?", *filter.Channel)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// Ensure GormChannelRuleRepository implements ChannelRuleRepository
var _ attribution.ChannelRuleRepository = (*GormChannelRuleRepository)(nil)
