package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/trafficlens/backend/internal/application/sync"
	"github.com/trafficlens/backend/internal/domain/commerce"
)

// ---------------------------------------------------------------------------
// SyncRunner Interface
// ---------------------------------------------------------------------------

// SyncRunner runs one synchronous order sync for a connection over a window.
type SyncRunner interface {
	SyncOrders(ctx context.Context, connectionID uuid.UUID, after, before time.Time) (*appsync.SyncSummary, error)
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds the periodic sync scheduler configuration
type Config struct {
	// Interval is how often the scheduler sweeps enabled connections
	Interval time.Duration
	// LookbackHours is the width of the sync window ending at sweep time.
	// Consecutive sweeps deliberately overlap so late-modified orders are
	// picked up; the sync engine's upsert keeps the overlap harmless.
	LookbackHours int
	// MaxConcurrentJobs caps in-flight syncs across all connections
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a single connection sync can run
	JobTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Interval:          15 * time.Minute,
		LookbackHours:     24,
		MaxConcurrentJobs: 4,
		JobTimeout:        10 * time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.LookbackHours <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler periodically syncs all enabled store connections. Each sweep
// runs at most one sync per connection; a connection whose previous sync is
// still running is skipped, not queued.
type SyncScheduler struct {
	config   Config
	connRepo commerce.StoreConnectionRepository
	runner   SyncRunner
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// sem caps concurrent syncs across connections
	sem chan struct{}

	// inFlight tracks connections whose sync has not finished yet
	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]bool
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config Config, connRepo commerce.StoreConnectionRepository, runner SyncRunner, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SyncScheduler{
		config:   config,
		connRepo: connRepo,
		runner:   runner,
		logger:   logger,
		sem:      make(chan struct{}, config.MaxConcurrentJobs),
		inFlight: make(map[uuid.UUID]bool),
	}, nil
}

// Start starts the scheduler loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("lookback_hours", s.config.LookbackHours),
		zap.Int("max_concurrent_jobs", s.config.MaxConcurrentJobs),
	)

	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight syncs
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerSweep runs one sweep immediately, outside the ticker cadence.
func (s *SyncScheduler) TriggerSweep(ctx context.Context) error {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}

	s.sweep(ctx)
	return nil
}

// runLoop sweeps enabled connections on every tick
func (s *SyncScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep schedules one sync per enabled connection and waits for the batch
func (s *SyncScheduler) sweep(ctx context.Context) {
	conns, err := s.connRepo.FindEnabled(ctx)
	if err != nil {
		s.logger.Error("Failed to list enabled connections", zap.Error(err))
		return
	}
	if len(conns) == 0 {
		s.logger.Debug("No enabled connections to sync")
		return
	}

	now := time.Now().UTC()
	after := now.Add(-time.Duration(s.config.LookbackHours) * time.Hour)

	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		if !s.markInFlight(conn.ID) {
			s.logger.Debug("Skipping connection with sync still in flight",
				zap.String("connection_id", conn.ID.String()),
			)
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			s.clearInFlight(conn.ID)
			return
		}

		s.wg.Add(1)
		go func(conn commerce.StoreConnection) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer s.clearInFlight(conn.ID)

			s.runOne(ctx, conn, after, now)
		}(conn)
	}
}

// runOne syncs a single connection with the configured job timeout
func (s *SyncScheduler) runOne(ctx context.Context, conn commerce.StoreConnection, after, before time.Time) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	s.logger.Info("Scheduled sync starting",
		zap.String("connection_id", conn.ID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
		zap.Time("window_after", after),
		zap.Time("window_before", before),
	)

	summary, err := s.runner.SyncOrders(jobCtx, conn.ID, after, before)
	if err != nil {
		s.logger.Error("Scheduled sync failed",
			zap.String("connection_id", conn.ID.String()),
			zap.String("tenant_id", conn.TenantID.String()),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Scheduled sync completed",
		zap.String("connection_id", conn.ID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
		zap.String("job_id", summary.JobID.String()),
		zap.String("status", string(summary.Status)),
		zap.Int("total", summary.TotalCount),
		zap.Int("created", summary.CreatedCount),
		zap.Int("updated", summary.UpdatedCount),
		zap.Int("failed", summary.FailedCount),
	)
}

func (s *SyncScheduler) markInFlight(id uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *SyncScheduler) clearInFlight(id uuid.UUID) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, id)
}
