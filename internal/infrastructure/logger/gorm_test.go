package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), logs
}

func traceQuery(l *GormLogger, ctx context.Context, elapsed time.Duration, sql string, rows int64, err error) {
	l.Trace(ctx, time.Now().Add(-elapsed), func() (string, int64) { return sql, rows }, err)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	const query = "SELECT * FROM orders WHERE tenant_id = $1"

	t.Run("query at info level", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Info)
		traceQuery(l, ctx, time.Millisecond, query, 3, nil)

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, "SQL Query", entries[0].Message)
		assert.Equal(t, query, entries[0].ContextMap()["sql"])
		assert.EqualValues(t, 3, entries[0].ContextMap()["rows"])
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Silent)
		traceQuery(l, ctx, time.Millisecond, query, 3, assert.AnError)
		assert.Empty(t, logs.TakeAll())
	})

	t.Run("error", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Error)
		traceQuery(l, ctx, time.Millisecond, query, 0, assert.AnError)

		entries := logs.FilterMessage("SQL Error").TakeAll()
		require.Len(t, entries, 1)
	})

	t.Run("record not found suppressed by default", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Error)
		traceQuery(l, ctx, time.Millisecond, query, 0, gormlogger.ErrRecordNotFound)
		assert.Empty(t, logs.TakeAll())
	})

	t.Run("record not found logged when configured", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))
		traceQuery(l, ctx, time.Millisecond, query, 0, gormlogger.ErrRecordNotFound)
		assert.Len(t, logs.FilterMessage("SQL Error").TakeAll(), 1)
	})

	t.Run("slow query warns", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		traceQuery(l, ctx, 50*time.Millisecond, query, 120, nil)

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Contains(t, entries[0].Message, "SLOW SQL")
	})

	t.Run("request id carried from context", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Info)
		reqCtx := context.WithValue(ctx, RequestIDKey, "req-77")
		traceQuery(l, reqCtx, time.Millisecond, query, 1, nil)

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-77", entries[0].ContextMap()["request_id"])
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	l, logs := newObservedGormLogger(gormlogger.Silent)

	noisy := l.LogMode(gormlogger.Info)
	traceQuery(noisy.(*GormLogger), context.Background(), time.Millisecond, "SELECT 1", 1, nil)
	assert.Len(t, logs.TakeAll(), 1)

	// The original stays silent.
	traceQuery(l, context.Background(), time.Millisecond, "SELECT 1", 1, nil)
	assert.Empty(t, logs.TakeAll())
}

func TestGormLogger_Levels(t *testing.T) {
	l, logs := newObservedGormLogger(gormlogger.Warn)
	ctx := context.Background()

	l.Info(ctx, "ignored at warn level")
	l.Warn(ctx, "connection pool near limit: %d", 95)
	l.Error(ctx, "migration failed: %v", assert.AnError)

	entries := logs.TakeAll()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestMapGormLogLevel(t *testing.T) {
	cases := map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"unknown": gormlogger.Warn,
		"":        gormlogger.Warn,
	}
	for input, want := range cases {
		assert.Equal(t, want, MapGormLogLevel(input), "level %q", input)
	}
}
