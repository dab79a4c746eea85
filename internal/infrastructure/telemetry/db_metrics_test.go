package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func newMockGorm(t *testing.T) *gorm.DB {
	t.Helper()
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func sumValue(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return 0, false
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestDefaultDBMetricsConfig(t *testing.T) {
	cfg := DefaultDBMetricsConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.PoolStatsInterval)
}

func TestNewDBMetrics_AppliesDefaults(t *testing.T) {
	_, provider := newManualMeter(t)

	metrics, err := NewDBMetrics(provider.Meter("db.client"), DBMetricsConfig{Enabled: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, metrics.config.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, metrics.config.PoolStatsInterval)
	require.NotNil(t, metrics.logger)
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("counts and times every query", func(t *testing.T) {
		reader, provider := newManualMeter(t)
		metrics, err := NewDBMetrics(provider.Meter("db.client"), DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)

		metrics.RecordQuery(ctx, "SELECT", "orders", 50*time.Millisecond, nil)
		metrics.RecordQuery(ctx, "insert", "sync_jobs", 5*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		total, ok := sumValue(rm, "db_query_total")
		require.True(t, ok)
		assert.Equal(t, int64(2), total)
		assert.True(t, hasMetric(rm, "db_query_duration_seconds"))
	})

	t.Run("flags queries over the slow threshold by table", func(t *testing.T) {
		reader, provider := newManualMeter(t)
		metrics, err := NewDBMetrics(provider.Meter("db.client"), DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 100 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)

		// The window aggregation is over threshold, the rule lookup is not.
		metrics.RecordQuery(ctx, "SELECT", "orders", 250*time.Millisecond, nil)
		metrics.RecordQuery(ctx, "SELECT", "channel_rules", 2*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		slow, ok := sumValue(rm, "db_slow_query_total")
		require.True(t, ok)
		assert.Equal(t, int64(1), slow)
	})

	t.Run("empty operation and table fall back to placeholders", func(t *testing.T) {
		reader, provider := newManualMeter(t)
		metrics, err := NewDBMetrics(provider.Meter("db.client"), DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 10 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)

		metrics.RecordQuery(ctx, "", "", 50*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		total, ok := sumValue(rm, "db_query_total")
		require.True(t, ok)
		assert.Equal(t, int64(1), total)
		slow, ok := sumValue(rm, "db_slow_query_total")
		require.True(t, ok)
		assert.Equal(t, int64(1), slow)
	})
}

func TestDBMetrics_PoolStats(t *testing.T) {
	reader, provider := newManualMeter(t)
	metrics, err := NewDBMetrics(provider.Meter("db.client"), DBMetricsConfig{
		Enabled:           true,
		PoolStatsInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	metrics.SetSQLDB(mockDB)
	metrics.StartPoolStatsCollection(context.Background())
	defer metrics.Stop()

	require.Eventually(t, func() bool {
		rm := collectMetrics(t, reader)
		return hasMetric(rm, "db_pool_connections") && hasMetric(rm, "db_pool_connections_max")
	}, time.Second, 10*time.Millisecond)
}

func TestDBMetrics_StartWithoutSQLDB(t *testing.T) {
	_, provider := newManualMeter(t)
	metrics, err := NewDBMetrics(provider.Meter("db.client"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	// No sqlDB wired; must not spawn a sampler or panic.
	metrics.StartPoolStatsCollection(context.Background())
	metrics.Stop()
}

func TestDBMetrics_StopIdempotent(t *testing.T) {
	_, provider := newManualMeter(t)
	metrics, err := NewDBMetrics(provider.Meter("db.client"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	metrics.Stop()
	metrics.Stop()
}

func TestDBMetrics_ConcurrentRecordQuery(t *testing.T) {
	reader, provider := newManualMeter(t)
	metrics, err := NewDBMetrics(provider.Meter("db.client"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.RecordQuery(context.Background(), "SELECT", "orders", 10*time.Millisecond, nil)
		}()
	}
	wg.Wait()

	rm := collectMetrics(t, reader)
	total, ok := sumValue(rm, "db_query_total")
	require.True(t, ok)
	assert.Equal(t, int64(20), total)
}

func TestDBMetricsPlugin_RecordsRawQueries(t *testing.T) {
	reader, provider := newManualMeter(t)
	metrics, err := NewDBMetrics(provider.Meter("db.client"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	plugin := NewDBMetricsPlugin(metrics, zap.NewNop())
	assert.Equal(t, "db_metrics", plugin.Name())
	require.NoError(t, gormDB.Use(plugin))

	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	var count int64
	require.NoError(t, gormDB.Raw("SELECT count(*) FROM orders").Scan(&count).Error)
	assert.Equal(t, int64(7), count)

	rm := collectMetrics(t, reader)
	total, ok := sumValue(rm, "db_query_total")
	require.True(t, ok)
	assert.GreaterOrEqual(t, total, int64(1))
}

func TestDetectOperationType(t *testing.T) {
	cases := map[string]string{
		"SELECT channel, count(*) FROM orders GROUP BY channel": "SELECT",
		"  select * from sync_jobs":                             "SELECT",
		"INSERT INTO channel_rules VALUES ($1)":                 "INSERT",
		"update orders set channel = $1":                        "UPDATE",
		"DELETE FROM connections WHERE id = $1":                 "DELETE",
		"TRUNCATE orders":                                       "OTHER",
		"": "OTHER",
	}
	for sql, want := range cases {
		assert.Equal(t, want, detectOperationType(sql), sql)
	}
}

func TestRegisterDBMetrics(t *testing.T) {
	logger := zap.NewNop()

	t.Run("disabled config returns nil", func(t *testing.T) {
		metrics, err := RegisterDBMetrics(newMockGorm(t), nil, DBMetricsConfig{Enabled: false}, logger)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil meter provider returns nil", func(t *testing.T) {
		metrics, err := RegisterDBMetrics(newMockGorm(t), nil, DBMetricsConfig{Enabled: true}, logger)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("registers against an enabled provider", func(t *testing.T) {
		_, sdkProvider := newManualMeter(t)
		mp := &MeterProvider{
			provider: sdkProvider,
			logger:   logger,
			config:   MetricsConfig{Enabled: true},
		}

		metrics, err := RegisterDBMetrics(newMockGorm(t), mp, DefaultDBMetricsConfig(), logger)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		metrics.Stop()
	})
}
