// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics provides business metrics for the order sync pipeline.
// It tracks sync job outcomes, per-order results, and channel distribution.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	syncJobTotal    *Counter
	syncOrderTotal  *Counter
	syncAmountTotal *Counter

	// Histogram metrics
	syncJobDuration *Histogram

	// Gauge metrics (point-in-time values)
	ordersByChannel *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	channelProvider ChannelMetricsProvider
}

// ChannelMetricsProvider provides channel distribution data for periodic
// metrics collection. This interface allows the telemetry layer to query
// order state without depending on the order domain directly.
type ChannelMetricsProvider interface {
	// GetOrderCountByChannel returns total synced orders per channel for a tenant
	GetOrderCountByChannel(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	ChannelProvider ChannelMetricsProvider
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		channelProvider: cfg.ChannelProvider,
	}

	var err error

	sm.syncJobTotal, err = NewCounter(
		cfg.Meter,
		"trafficlens_sync_job_total",
		"Total number of sync jobs by terminal status",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	sm.syncOrderTotal, err = NewCounter(
		cfg.Meter,
		"trafficlens_sync_order_total",
		"Total number of orders handled during sync by result",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	sm.syncAmountTotal, err = NewCounter(
		cfg.Meter,
		"trafficlens_sync_order_amount_total",
		"Total amount of synced orders in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	sm.syncJobDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "trafficlens_sync_job_duration_seconds",
		Description: "Wall-clock duration of sync jobs",
		Unit:        "s",
		Boundaries:  []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
	if err != nil {
		return nil, err
	}

	sm.ordersByChannel, err = NewGauge(
		cfg.Meter,
		"trafficlens_orders_by_channel",
		"Current number of stored orders per channel",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Sync Job Metrics
// =============================================================================

// SyncResult labels the outcome of a single order during sync.
type SyncResult string

const (
	SyncResultCreated SyncResult = "created"
	SyncResultUpdated SyncResult = "updated"
	SyncResultFailed  SyncResult = "failed"
)

// RecordJobCompleted records a sync job reaching a terminal status.
func (sm *SyncMetrics) RecordJobCompleted(ctx context.Context, tenantID uuid.UUID, status string, duration time.Duration) {
	sm.syncJobTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrJobStatus.String(status),
	)
	sm.syncJobDuration.RecordDuration(ctx, duration,
		AttrTenantID.String(tenantID.String()),
		AttrJobStatus.String(status),
	)
}

// RecordOrderResult records the outcome of one order within a sync job.
func (sm *SyncMetrics) RecordOrderResult(ctx context.Context, tenantID uuid.UUID, result SyncResult) {
	sm.syncOrderTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrSyncResult.String(string(result)),
	)
}

// RecordOrderAmount records the amount of a synced order.
// Amount should be in the smallest currency unit (cents).
func (sm *SyncMetrics) RecordOrderAmount(ctx context.Context, tenantID uuid.UUID, amountCents int64) {
	sm.syncAmountTotal.Add(ctx, amountCents,
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordOrderWithAmount is a convenience method that records both the order
// result and its amount.
func (sm *SyncMetrics) RecordOrderWithAmount(ctx context.Context, tenantID uuid.UUID, result SyncResult, amount decimal.Decimal) {
	sm.RecordOrderResult(ctx, tenantID, result)

	// Convert to cents (multiply by 100)
	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	sm.RecordOrderAmount(ctx, tenantID, amountCents)
}

// =============================================================================
// Channel Metrics
// =============================================================================

// RecordChannelCount records the current order count for one channel.
// This is a gauge metric that should be updated periodically.
func (sm *SyncMetrics) RecordChannelCount(ctx context.Context, tenantID uuid.UUID, channel string, count int64) {
	sm.ordersByChannel.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrChannel.String(channel),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects channel distribution metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go sm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	sm.collectChannelMetrics(ctx, tenantProvider)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			sm.collectChannelMetrics(ctx, tenantProvider)
		}
	}
}

// collectChannelMetrics collects channel gauge metrics for all tenants.
func (sm *SyncMetrics) collectChannelMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if sm.channelProvider == nil {
		sm.logger.Debug("No channel provider configured, skipping channel metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		sm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		counts, err := sm.channelProvider.GetOrderCountByChannel(ctx, tenantID)
		if err != nil {
			sm.logger.Warn("Failed to get channel counts for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		for channel, count := range counts {
			sm.RecordChannelCount(ctx, tenantID, channel, count)
		}
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
