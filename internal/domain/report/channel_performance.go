package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PairAggregate is the raw per-(source, medium) rollup for one reporting
// window. Aggregation stops at the pair level: channel assignment happens at
// report time against the rule table as it stands now, so a rule edit changes
// the next report without waiting for a re-sync.
//
// Sessions are summed with a floor of one per order: an order with no
// recorded session data still represents at least one visit.
type PairAggregate struct {
	Source   string
	Medium   string
	Orders   int64
	Sessions int64
	Revenue  decimal.Decimal
}

// ChannelMetrics is one set of performance metrics with period-over-period
// deltas against the comparison window, as percentages.
type ChannelMetrics struct {
	Orders   int64           `json:"orders"`
	Sessions int64           `json:"sessions"`
	Revenue  decimal.Decimal `json:"revenue"`

	// ConversionRate is orders per session, as a percentage
	ConversionRate decimal.Decimal `json:"conversion_rate"`
	// AvgOrderValue is revenue per order
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`

	OrdersDelta         decimal.Decimal `json:"orders_delta"`
	SessionsDelta       decimal.Decimal `json:"sessions_delta"`
	RevenueDelta        decimal.Decimal `json:"revenue_delta"`
	ConversionRateDelta decimal.Decimal `json:"conversion_rate_delta"`
	AvgOrderValueDelta  decimal.Decimal `json:"avg_order_value_delta"`
}

// ChannelPerformance is one channel's reporting row. A channel present in
// either window appears: activity only in the comparison window shows as a
// row of zeros with negative deltas.
type ChannelPerformance struct {
	Channel string `json:"channel"`
	ChannelMetrics
}

// PerformanceReport is the full channel performance report for a window.
type PerformanceReport struct {
	WindowAfter  time.Time `json:"window_after"`
	WindowBefore time.Time `json:"window_before"`

	Channels []ChannelPerformance `json:"channels"`

	Totals ChannelMetrics `json:"totals"`
}

// UnclassifiedPair is a (source, medium) pair no active rule or source
// override matches, ranked by order volume so operators know which rules to
// add first.
type UnclassifiedPair struct {
	Source string `json:"source"`
	Medium string `json:"medium"`
	Orders int64  `json:"orders"`
}

// Repository defines the aggregate query behind the channel reports.
type Repository interface {
	// SourceMediumAggregates returns per-pair order, session and revenue
	// rollups for orders dated in [after, before), ordered by descending
	// order count, then source and medium
	SourceMediumAggregates(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]PairAggregate, error)
}
