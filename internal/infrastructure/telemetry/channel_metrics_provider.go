// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormChannelMetricsProvider implements ChannelMetricsProvider using GORM.
// It queries the orders table directly for aggregated counts.
type GormChannelMetricsProvider struct {
	db *gorm.DB
}

// NewGormChannelMetricsProvider creates a new GormChannelMetricsProvider.
func NewGormChannelMetricsProvider(db *gorm.DB) *GormChannelMetricsProvider {
	return &GormChannelMetricsProvider{db: db}
}

// GetOrderCountByChannel returns total stored orders per channel for a tenant.
func (p *GormChannelMetricsProvider) GetOrderCountByChannel(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	type result struct {
		Channel string `gorm:"column:channel"`
		Count   int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("orders").
		Select("channel, COUNT(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("channel").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Channel] = r.Count
	}

	return m, nil
}

// GormTenantProvider implements TenantProvider using GORM. Tenants are
// discovered through their store connections rather than a tenants table.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns tenant IDs that have at least one enabled
// store connection.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("store_connections").
		Distinct("tenant_id").
		Where("is_enabled = ?", true).
		Find(&ids).Error

	return ids, err
}
