package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/trafficlens/backend/internal/interfaces/http/middleware"
)

// otelgin reads the global tracer provider, so tests install one and
// restore the previous provider afterwards.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func newTracedRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.TracingWithConfig(middleware.DefaultTracingConfig()))
	r.Use(mw...)
	r.Use(middleware.TracingAttributeInjector())
	r.GET("/api/v1/reports/channels", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/orders/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.POST("/api/v1/sync/jobs", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return r
}

func spanAttrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingWithConfig_SpanPerRequest(t *testing.T) {
	recorder := installRecorder(t)
	r := newTracedRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/channels", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/reports/channels")

	got, ok := spanAttrValue(spans[0], "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-abc", got.AsString())
}

func TestTracingWithConfig_ErrorStatuses(t *testing.T) {
	recorder := installRecorder(t)
	r := newTracedRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sync/jobs", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Not Found", spans[0].Status().Description)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "Bad Gateway", spans[1].Status().Description)
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	recorder := installRecorder(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.TracingWithConfig(middleware.TracingConfig{Enabled: false}))
	r.GET("/api/v1/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Empty(t, recorder.Ended())
}

func TestTracingAttributeInjector_TenantFromMiddleware(t *testing.T) {
	recorder := installRecorder(t)
	tenantID := uuid.NewString()

	r := newTracedRouter(func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, tenantID)
		c.Next()
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/reports/channels", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got, ok := spanAttrValue(spans[0], "tenant_id")
	require.True(t, ok)
	assert.Equal(t, tenantID, got.AsString())
}

func TestTracing_HeaderValidation(t *testing.T) {
	recorder := installRecorder(t)
	r := newTracedRouter()

	t.Run("malformed tenant header is dropped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/channels", nil)
		req.Header.Set(middleware.TenantHeaderKey, "'; DROP TABLE orders; --")
		r.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.NotEmpty(t, spans)
		_, ok := spanAttrValue(spans[len(spans)-1], "tenant_id")
		assert.False(t, ok)
	})

	t.Run("oversized request id is truncated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/channels", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 5000))
		r.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.NotEmpty(t, spans)
		got, ok := spanAttrValue(spans[len(spans)-1], "request_id")
		require.True(t, ok)
		assert.Len(t, got.AsString(), middleware.MaxRequestIDLength)
	})

	t.Run("well formed tenant header is kept", func(t *testing.T) {
		tenantID := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/channels", nil)
		req.Header.Set(middleware.TenantHeaderKey, tenantID)
		r.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.NotEmpty(t, spans)
		got, ok := spanAttrValue(spans[len(spans)-1], "tenant_id")
		require.True(t, ok)
		assert.Equal(t, tenantID, got.AsString())
	})
}
