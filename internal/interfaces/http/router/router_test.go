package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_DefaultsToV1(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouter_MountsUnderVersionPrefix(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	reports := NewDomainGroup("report", "/reports")
	reports.GET("/channel-performance", func(c *gin.Context) {
		c.String(http.StatusOK, "report")
	})

	r.Register(reports).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v2/reports/channel-performance").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/reports/channel-performance").Code)
}

func TestRouter_GroupMiddlewareSkipsRootRoutes(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	r := NewRouter(engine)
	r.Use(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	})

	sync := NewDomainGroup("sync", "/sync")
	sync.GET("/jobs", func(c *gin.Context) { c.String(http.StatusOK, "jobs") })
	r.Register(sync).Setup()

	// API routes go through the group middleware, /health does not
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/sync/jobs").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
}

func TestDomainGroup_RegistersAllVerbs(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("attribution", "/rules")
	g.POST("", func(c *gin.Context) { c.String(http.StatusCreated, "created") }).
		GET("", func(c *gin.Context) { c.String(http.StatusOK, "listed") }).
		PUT("/:id", func(c *gin.Context) { c.String(http.StatusOK, "updated") }).
		DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := engine.Group("/api/v1")
	g.RegisterRoutes(api)

	assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/rules").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/rules").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPut, "/api/v1/rules/abc").Code)
	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodDelete, "/api/v1/rules/abc").Code)
}

func TestDomainGroup_ScopedMiddleware(t *testing.T) {
	engine := gin.New()

	sync := NewDomainGroup("sync", "/sync")
	sync.Use(func(c *gin.Context) {
		c.Header("X-Sync-Scoped", "yes")
		c.Next()
	})
	sync.GET("/jobs", func(c *gin.Context) { c.String(http.StatusOK, "jobs") })

	system := NewDomainGroup("system", "/system")
	system.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	api := engine.Group("/api/v1")
	sync.RegisterRoutes(api)
	system.RegisterRoutes(api)

	// middleware stays inside its group
	assert.Equal(t, "yes", serve(engine, http.MethodGet, "/api/v1/sync/jobs").Header().Get("X-Sync-Scoped"))
	assert.Empty(t, serve(engine, http.MethodGet, "/api/v1/system/ping").Header().Get("X-Sync-Scoped"))
}

func TestRouter_MultipleGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	connections := NewDomainGroup("commerce", "/connections")
	connections.GET("", func(c *gin.Context) { c.String(http.StatusOK, "connections") })

	reports := NewDomainGroup("report", "/reports")
	reports.GET("/unclassified-pairs", func(c *gin.Context) { c.String(http.StatusOK, "pairs") })

	r.Register(connections).Register(reports).Setup()

	assert.Equal(t, "connections", serve(engine, http.MethodGet, "/api/v1/connections").Body.String())
	assert.Equal(t, "pairs", serve(engine, http.MethodGet, "/api/v1/reports/unclassified-pairs").Body.String())
	assert.Equal(t, "commerce", connections.Name())
}
