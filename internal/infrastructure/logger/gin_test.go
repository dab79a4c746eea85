package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.Use(GinMiddleware(zap.New(core)))
	return router, logs
}

func TestGinMiddleware_LogLevelTracksStatus(t *testing.T) {
	router, logs := newObservedRouter(t)
	router.GET("/api/v1/orders", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/reports/channels", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/api/v1/sync/jobs", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	cases := []struct {
		path string
		want string
	}{
		{path: "/api/v1/orders", want: "info"},
		{path: "/api/v1/reports/channels", want: "warn"},
		{path: "/api/v1/sync/jobs", want: "error"},
	}
	for _, tc := range cases {
		logs.TakeAll()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))

		entries := logs.TakeAll()
		require.Len(t, entries, 1, "path %s", tc.path)
		assert.Equal(t, "HTTP Request", entries[0].Message)
		assert.Equal(t, tc.want, entries[0].Level.String(), "path %s", tc.path)
	}
}

func TestGinMiddleware_Fields(t *testing.T) {
	router, logs := newObservedRouter(t)
	router.GET("/api/v1/orders", func(c *gin.Context) {
		c.Set("request_id", "") // set by the RequestID middleware in production
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?channel=Organic+Search", nil)
	req.Header.Set("User-Agent", "trafficlens-dashboard/1.0")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.TakeAll()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/orders", fields["path"])
	assert.Equal(t, "channel=Organic+Search", fields["query"])
	assert.Equal(t, "trafficlens-dashboard/1.0", fields["user_agent"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.Contains(t, fields, "latency")
	assert.Contains(t, fields, "client_ip")
}

func TestGinMiddleware_CollectsGinErrors(t *testing.T) {
	router, logs := newObservedRouter(t)
	router.POST("/api/v1/channel-rules", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusUnprocessableEntity)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/channel-rules", nil))

	entries := logs.TakeAll()
	require.Len(t, entries, 1)
	errs, ok := entries[0].ContextMap()["errors"].([]string)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestRecovery(t *testing.T) {
	router, logs := newObservedRouter(t)
	router.GET("/api/v1/reports/channels", func(c *gin.Context) {
		panic("rule expression blew up")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/channels", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entries := logs.FilterMessage("Panic recovered").TakeAll()
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/v1/reports/channels", entries[0].ContextMap()["path"])
}

func TestGetGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("returns the request-scoped logger", func(t *testing.T) {
		router, _ := newObservedRouter(t)
		var got *zap.Logger
		router.GET("/", func(c *gin.Context) {
			got = GetGinLogger(c)
			c.Status(http.StatusOK)
		})
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotNil(t, got)
		assert.NotEqual(t, zap.NewNop(), got)
	})

	t.Run("nop when middleware did not run", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.NotNil(t, GetGinLogger(c))
	})
}
