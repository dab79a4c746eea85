package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelsFromContext(ctx context.Context) map[string]string {
	got := map[string]string{}
	pprof.ForLabels(ctx, func(key, value string) bool {
		got[key] = value
		return true
	})
	return got
}

func TestWithProfilingLabels(t *testing.T) {
	t.Run("labels visible inside fn", func(t *testing.T) {
		var got map[string]string
		WithProfilingLabels(context.Background(), map[string]string{
			ProfilingLabelOperation: "sync_orders",
			ProfilingLabelTenantID:  "3f6e",
		}, func(ctx context.Context) {
			got = labelsFromContext(ctx)
		})

		assert.Equal(t, "sync_orders", got[ProfilingLabelOperation])
		assert.Equal(t, "3f6e", got[ProfilingLabelTenantID])
	})

	t.Run("empty map runs fn without labels", func(t *testing.T) {
		var called bool
		WithProfilingLabels(context.Background(), nil, func(ctx context.Context) {
			called = true
			assert.Empty(t, labelsFromContext(ctx))
		})
		assert.True(t, called)
	})

	t.Run("caller may reuse the map", func(t *testing.T) {
		labels := map[string]string{ProfilingLabelOperation: "sync_orders"}
		WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {})
		labels[ProfilingLabelOperation] = "mutated"
		// No assertion beyond not racing; the copy happens before TagWrapper.
	})
}

func TestSanitizeLabels(t *testing.T) {
	t.Run("drops high-cardinality keys", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{
			"order_id":             "3101",
			"request_id":           "abc",
			ProfilingLabelTenantID: "3f6e",
		})
		assert.Equal(t, []string{"tenant_id", "3f6e"}, pairs)
	})

	t.Run("drops empty keys and values", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{
			"":                   "x",
			ProfilingLabelRoute:  "",
			ProfilingLabelMethod: "GET",
		})
		assert.Equal(t, []string{"method", "GET"}, pairs)
	})

	t.Run("truncates long values", func(t *testing.T) {
		long := strings.Repeat("g", MaxLabelValueLength+40)
		pairs := sanitizeLabels(map[string]string{ProfilingLabelRoute: long})
		require.Len(t, pairs, 2)
		assert.Len(t, pairs[1], MaxLabelValueLength)
	})

	t.Run("normalizes keys to snake_case", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{"Sync-Job Kind": "orders"})
		assert.Equal(t, []string{"sync_job_kind", "orders"}, pairs)
	})

	t.Run("output is sorted by key", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{
			ProfilingLabelRoute:      "/api/v1/reports/channels",
			ProfilingLabelController: "ReportHandler",
			ProfilingLabelMethod:     "GET",
		})
		assert.Equal(t, []string{
			"controller", "ReportHandler",
			"method", "GET",
			"route", "/api/v1/reports/channels",
		}, pairs)
	})
}

func TestHTTPRequestLabels(t *testing.T) {
	labels := HTTPRequestLabels("SyncHandler", "/api/v1/sync/jobs", "POST", "3f6e")
	assert.Equal(t, map[string]string{
		ProfilingLabelController: "SyncHandler",
		ProfilingLabelRoute:      "/api/v1/sync/jobs",
		ProfilingLabelMethod:     "POST",
		ProfilingLabelTenantID:   "3f6e",
	}, labels)

	// Blank fields stay out of the map entirely.
	assert.Equal(t, map[string]string{
		ProfilingLabelMethod: "GET",
	}, HTTPRequestLabels("", "", "GET", ""))
}

func TestOperationLabels(t *testing.T) {
	labels := OperationLabels("sync_orders", map[string]string{
		ProfilingLabelTenantID: "3f6e",
	})
	assert.Equal(t, "sync_orders", labels[ProfilingLabelOperation])
	assert.Equal(t, "3f6e", labels[ProfilingLabelTenantID])

	assert.Equal(t, map[string]string{
		ProfilingLabelOperation: "rule_reload",
	}, OperationLabels("rule_reload", nil))
}
