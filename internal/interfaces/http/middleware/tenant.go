package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/infrastructure/logger"
)

// Keys under which the resolved tenant travels through gin.
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig controls how the tenant is resolved. Tenants are
// implicit in this system: every row carries a tenant_id column, so the
// middleware only has to establish which tenant a request speaks for.
type TenantMiddlewareConfig struct {
	// HeaderEnabled resolves the tenant from the X-Tenant-ID header.
	HeaderEnabled bool
	// SubdomainEnabled resolves "acme" from "acme.<BaseDomain>" when the
	// header is absent.
	SubdomainEnabled bool
	BaseDomain       string
	// SkipPaths pass through without a tenant (health checks, metrics).
	SkipPaths []string
	// Required rejects requests that resolve no tenant.
	Required bool
	Logger   *zap.Logger
}

// DefaultTenantConfig requires a tenant on every API route; only health
// and metrics endpoints pass without one.
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
	}
}

// TenantMiddlewareWithConfig resolves the tenant, validates the id is a
// UUID, and stores it in both the gin context and the request context so
// handlers and the service layer see the same tenant.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		tenantID, method := resolveTenant(c, cfg)

		if tenantID != "" {
			if _, err := uuid.Parse(tenantID); err != nil {
				respondUnauthorized(c, "Invalid tenant ID format")
				return
			}
		}
		if tenantID == "" && cfg.Required {
			respondUnauthorized(c, "Tenant identification required")
			return
		}

		if tenantID != "" {
			c.Set(TenantIDKey, tenantID)

			// The request context copy is what repositories and the gorm
			// logger see.
			ctx := c.Request.Context()
			ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
			c.Request = c.Request.WithContext(ctx)

			if cfg.Logger != nil {
				cfg.Logger.Debug("Tenant identified",
					zap.String("tenant_id", tenantID),
					zap.String("method", method),
				)
			}
		}

		c.Next()
	}
}

// resolveTenant tries the header first, then the subdomain.
func resolveTenant(c *gin.Context, cfg TenantMiddlewareConfig) (tenantID, method string) {
	if cfg.HeaderEnabled {
		if id := c.GetHeader(TenantHeaderKey); id != "" {
			return id, "header"
		}
	}
	if cfg.SubdomainEnabled && cfg.BaseDomain != "" {
		if id := tenantFromSubdomain(c.Request.Host, cfg.BaseDomain); id != "" {
			return id, "subdomain"
		}
	}
	return "", ""
}

// tenantFromSubdomain maps "acme.trafficlens.io" to "acme" for base
// domain "trafficlens.io". Multi-level subdomains keep only the first
// label; "www" is never a tenant.
func tenantFromSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}
	subdomain := strings.TrimSuffix(host, "."+baseDomain)
	if subdomain == host || subdomain == "" || subdomain == "www" {
		return ""
	}
	return strings.Split(subdomain, ".")[0]
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetTenantID returns the tenant id stored by the middleware, or "".
func GetTenantID(c *gin.Context) string {
	if v, exists := c.Get(TenantIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetTenantUUID parses the stored tenant id. A missing tenant returns
// uuid.Nil without an error; routes behind the middleware never see that.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(tenantID)
}
