package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/trafficlens/backend/internal/domain/report"
)

// GormChannelReportRepository implements report.Repository using GORM
type GormChannelReportRepository struct {
	db *gorm.DB
}

// NewGormChannelReportRepository creates a new GormChannelReportRepository
func NewGormChannelReportRepository(db *gorm.DB) *GormChannelReportRepository {
	return &GormChannelReportRepository{db: db}
}

// SourceMediumAggregates returns per-(source, medium) order, session and
// revenue rollups for orders dated in [after, before). Orders without
// session data count as one session each. Channel assignment is left to the
// caller so the rollup stays valid across rule edits.
func (r *GormChannelReportRepository) SourceMediumAggregates(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]report.PairAggregate, error) {
	type aggregateResult struct {
		Source   string
		Medium   string
		Orders   int64
		Sessions int64
		Revenue  decimal.Decimal
	}

	var results []aggregateResult

	err := r.db.WithContext(ctx).Table("orders").
		Select(`
			source,
			medium,
			COUNT(*) as orders,
			COALESCE(SUM(GREATEST(session_count, 1)), 0) as sessions,
			COALESCE(SUM(total), 0) as revenue
		`).
		Where("tenant_id = ?", tenantID).
		Where("order_date >= ? AND order_date < ?", after, before).
		Group("source, medium").
		Order("orders DESC, source ASC, medium ASC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	aggregates := make([]report.PairAggregate, len(results))
	for i, res := range results {
		aggregates[i] = report.PairAggregate{
			Source:   res.Source,
			Medium:   res.Medium,
			Orders:   res.Orders,
			Sessions: res.Sessions,
			Revenue:  res.Revenue,
		}
	}
	return aggregates, nil
}

// Ensure GormChannelReportRepository implements report.Repository
var _ report.Repository = (*GormChannelReportRepository)(nil)
