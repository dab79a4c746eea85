package telemetry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/infrastructure/telemetry"
)

func TestNewSyncMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, sm)
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, sm)
	assert.Equal(t, "NewSyncMetrics: meter cannot be nil", err.Error())
}

func TestSyncMetrics_RecordJobCompleted(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()

	// Should not panic
	sm.RecordJobCompleted(ctx, tenantID, "COMPLETED", 42*time.Second)
	sm.RecordJobCompleted(ctx, tenantID, "FAILED", time.Second)
}

func TestSyncMetrics_RecordOrderWithAmount(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()

	sm.RecordOrderWithAmount(ctx, tenantID, telemetry.SyncResultCreated, decimal.NewFromFloat(123.45))
	sm.RecordOrderWithAmount(ctx, tenantID, telemetry.SyncResultUpdated, decimal.Zero)
	sm.RecordOrderResult(ctx, tenantID, telemetry.SyncResultFailed)
}

func TestSyncMetrics_RecordChannelCount(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordChannelCount(ctx, uuid.New(), "Paid Search", 17)
}

type stubTenantProvider struct {
	ids []uuid.UUID
}

func (p *stubTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	return p.ids, nil
}

type stubChannelProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *stubChannelProvider) GetOrderCountByChannel(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return map[string]int64{"Direct": 3, "Paid Search": 2}, nil
}

func (p *stubChannelProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestSyncMetrics_PeriodicCollection(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	provider := &stubChannelProvider{}

	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:           meter,
		ChannelProvider: provider,
	})
	require.NoError(t, err)
	defer sm.Stop()

	tenants := &stubTenantProvider{ids: []uuid.UUID{uuid.New()}}
	sm.StartPeriodicCollection(context.Background(), tenants, time.Hour)

	// Initial collection happens on start
	assert.Eventually(t, func() bool {
		return provider.callCount() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestSyncMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)
	defer sm.Stop()

	// Should not panic without a channel provider
	sm.StartPeriodicCollection(context.Background(), &stubTenantProvider{}, time.Hour)
	time.Sleep(20 * time.Millisecond)
}

func TestSyncMetrics_Stop_Idempotent(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	sm.Stop()
	sm.Stop()
}

func TestSyncResult_Values(t *testing.T) {
	assert.Equal(t, "created", string(telemetry.SyncResultCreated))
	assert.Equal(t, "updated", string(telemetry.SyncResultUpdated))
	assert.Equal(t, "failed", string(telemetry.SyncResultFailed))
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{Op: "Op", Err: "boom"}
	assert.Equal(t, "Op: boom", err.Error())
}
