package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	attributionapp "github.com/trafficlens/backend/internal/application/attribution"
	commerceapp "github.com/trafficlens/backend/internal/application/commerce"
	reportapp "github.com/trafficlens/backend/internal/application/report"
	syncapp "github.com/trafficlens/backend/internal/application/sync"
	"github.com/trafficlens/backend/internal/domain/attribution"
	"github.com/trafficlens/backend/internal/infrastructure/cache"
	commerceinfra "github.com/trafficlens/backend/internal/infrastructure/commerce"
	"github.com/trafficlens/backend/internal/infrastructure/config"
	"github.com/trafficlens/backend/internal/infrastructure/logger"
	"github.com/trafficlens/backend/internal/infrastructure/persistence"
	"github.com/trafficlens/backend/internal/infrastructure/scheduler"
	"github.com/trafficlens/backend/internal/infrastructure/telemetry"
	"github.com/trafficlens/backend/internal/interfaces/http/handler"
	"github.com/trafficlens/backend/internal/interfaces/http/middleware"
	"github.com/trafficlens/backend/internal/interfaces/http/router"
)

//	@title			TrafficLens API
//	@version		1.0
//	@description	Order sync and marketing attribution backend for WooCommerce stores.

//	@contact.name	API Support
//	@contact.url	https://github.com/trafficlens/backend

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting TrafficLens Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Rule cache: Redis when reachable, in-memory otherwise. The sync
	// engine reads classification rules on every job, so a cold cache is
	// a performance problem, not a correctness one.
	var ruleCache attribution.RuleCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		_ = redisClient.Close()
		log.Warn("Redis unreachable, falling back to in-memory rule cache", zap.Error(err))
		ruleCache = cache.NewInMemoryRuleCache()
	} else {
		pingCancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		ruleCache = cache.NewRedisRuleCacheWithClient(redisClient, cache.WithRuleCacheLogger(log))
		log.Info("Redis rule cache connected",
			zap.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)))
	}

	// Initialize repositories
	connRepo := persistence.NewGormStoreConnectionRepository(db.DB)
	ruleRepo := persistence.NewGormChannelRuleRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	jobRepo := persistence.NewGormSyncJobRepository(db.DB)
	reportRepo := persistence.NewGormChannelReportRepository(db.DB)

	// Store platform adapter
	platform := commerceinfra.NewWooCommerceAdapter()

	// Initialize application services
	ruleService := attributionapp.NewChannelRuleService(ruleRepo, ruleCache, cfg.Sync.RuleCacheTTL)
	connService := commerceapp.NewConnectionService(connRepo, platform)
	syncService := syncapp.NewSyncService(
		connRepo, platform, orderRepo, jobRepo, ruleService,
		cfg.Sync.PageSize, cfg.Sync.MaxPages, log,
	)
	validatorService := syncapp.NewValidatorService(
		connRepo, platform, orderRepo,
		cfg.Sync.PageSize, cfg.Sync.MaxPages, log,
	)
	reportService := reportapp.NewChannelPerformanceService(reportRepo, ruleService, log)

	// Initialize OpenTelemetry (tracing + metrics) if enabled
	var httpMetricsProvider *telemetry.MeterProvider
	var tracerProvider *telemetry.TracerProvider
	if cfg.Telemetry.Enabled {
		var err error
		tracerProvider, err = telemetry.NewTracerProvider(context.Background(), telemetry.Config{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize tracer provider", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()

		meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize meter provider", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := meterProvider.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down meter provider", zap.Error(err))
			}
		}()

		syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
			Meter:           meterProvider.Meter("trafficlens/sync"),
			Logger:          log,
			ChannelProvider: telemetry.NewGormChannelMetricsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize sync metrics", zap.Error(err))
		}
		syncService.SetMetrics(syncMetrics)
		syncMetrics.StartPeriodicCollection(
			context.Background(),
			telemetry.NewGormTenantProvider(db.DB),
			5*time.Minute,
		)
		defer syncMetrics.Stop()

		// Database observability: query metrics and spans via gorm callbacks
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(context.Background())
			defer dbMetrics.Stop()
		}

		dbTracingCfg := telemetry.DefaultDBTracingConfig()
		dbTracingCfg.Enabled = true
		if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}

		log.Info("OpenTelemetry initialized",
			zap.String("endpoint", cfg.Telemetry.CollectorEndpoint),
			zap.Float64("sampling_ratio", cfg.Telemetry.SamplingRatio),
		)

		// HTTP metrics middleware is attached below with the rest of the
		// middleware stack; capture the provider for it.
		httpMetricsProvider = meterProvider
	}

	// Continuous profiling (independent of the OTel pipeline)
	if cfg.Telemetry.ProfilingEnabled {
		profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:           true,
			ServerAddress:     cfg.Telemetry.ProfilingServerAddress,
			ApplicationName:   cfg.Telemetry.ServiceName,
			ProfileCPU:        true,
			ProfileAllocSpace: true,
			ProfileInuseSpace: true,
			ProfileGoroutines: true,
		}, log)
		if err != nil {
			log.Warn("Failed to start continuous profiler", zap.Error(err))
		} else {
			defer func() {
				if err := profiler.Stop(); err != nil {
					log.Error("Error stopping profiler", zap.Error(err))
				}
			}()
			// Span profiles require the profiler to be running first.
			if tracerProvider != nil {
				if err := tracerProvider.EnableSpanProfiles(); err != nil {
					log.Warn("Failed to enable span profiles", zap.Error(err))
				}
			}
		}
	}

	// Start the periodic sync scheduler (if enabled)
	if cfg.Scheduler.Enabled {
		syncScheduler, err := scheduler.NewSyncScheduler(scheduler.Config{
			Interval:          cfg.Scheduler.Interval,
			LookbackHours:     cfg.Scheduler.LookbackHours,
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
		}, connRepo, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := syncScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
		log.Info("Sync scheduler started",
			zap.Duration("interval", cfg.Scheduler.Interval),
			zap.Int("lookback_hours", cfg.Scheduler.LookbackHours),
			zap.Int("max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs),
		)
	}

	// Initialize HTTP handlers
	connectionHandler := handler.NewConnectionHandler(connService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	syncHandler := handler.NewSyncHandler(syncService, validatorService, connService, log)
	reportHandler := handler.NewReportHandler(reportService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. Tracing - Open a span per request
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	if httpMetricsProvider != nil {
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: httpMetricsProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       cfg.Telemetry.Enabled,
		}))
	}

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Every API route runs under a tenant. Extraction is header first,
	// then subdomain; requests without a resolvable tenant are rejected.
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log
	r.Use(
		middleware.TenantMiddlewareWithConfig(tenantConfig),
		middleware.TracingAttributeInjector(),
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:          cfg.Telemetry.Enabled,
			SkipPaths:        []string{"/health"},
			SkipPathPrefixes: []string{"/api/v1/system"},
		}),
	)

	// Store connections
	connectionRoutes := router.NewDomainGroup("commerce", "/connections")
	connectionRoutes.POST("", connectionHandler.Create)
	connectionRoutes.GET("", connectionHandler.List)
	connectionRoutes.GET("/:id", connectionHandler.Get)
	connectionRoutes.PUT("/:id", connectionHandler.Update)
	connectionRoutes.DELETE("/:id", connectionHandler.Delete)
	connectionRoutes.POST("/:id/ping", connectionHandler.Ping)

	// Channel classification rules
	ruleRoutes := router.NewDomainGroup("attribution", "/rules")
	ruleRoutes.POST("", ruleHandler.Create)
	ruleRoutes.GET("", ruleHandler.List)
	ruleRoutes.POST("/seed", ruleHandler.Seed)
	ruleRoutes.GET("/classify", ruleHandler.Classify)
	ruleRoutes.GET("/:id", ruleHandler.Get)
	ruleRoutes.PUT("/:id", ruleHandler.Update)
	ruleRoutes.DELETE("/:id", ruleHandler.Deactivate)

	// Order sync jobs and validation
	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/jobs", syncHandler.Start)
	syncRoutes.GET("/jobs", syncHandler.List)
	syncRoutes.GET("/jobs/:id", syncHandler.Get)
	syncRoutes.POST("/jobs/:id/cancel", syncHandler.Cancel)
	syncRoutes.POST("/validate", syncHandler.Validate)

	// Channel performance reports
	reportRoutes := router.NewDomainGroup("report", "/reports")
	reportRoutes.GET("/channel-performance", reportHandler.ChannelPerformance)
	reportRoutes.GET("/unclassified-pairs", reportHandler.UnclassifiedPairs)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(connectionRoutes).
		Register(ruleRoutes).
		Register(syncRoutes).
		Register(reportRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
