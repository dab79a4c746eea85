package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/domain/attribution"
)

const defaultCleanupInterval = 1 * time.Minute

// ruleEntry is a cached rule list with an expiry timestamp
type ruleEntry struct {
	rules     []attribution.ChannelRule
	expiresAt time.Time
}

// isExpired checks if the cache entry has expired
func (e *ruleEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryRuleCache is a process-local implementation of attribution.RuleCache.
// It is suitable for single-instance deployments and tests; multi-instance
// deployments should use RedisRuleCache so invalidations are shared.
type InMemoryRuleCache struct {
	entries sync.Map // tenantID string -> *ruleEntry
	logger  *zap.Logger
	ttl     time.Duration

	hits   int64
	misses int64

	stopCh  chan struct{}
	stopped int32
}

// InMemoryRuleCacheOption is a functional option for configuring the cache
type InMemoryRuleCacheOption func(*InMemoryRuleCache)

// WithInMemoryRuleCacheLogger sets the logger for the cache
func WithInMemoryRuleCacheLogger(logger *zap.Logger) InMemoryRuleCacheOption {
	return func(c *InMemoryRuleCache) {
		c.logger = logger
	}
}

// WithInMemoryRuleCacheTTL sets the default TTL applied when no TTL is given
func WithInMemoryRuleCacheTTL(ttl time.Duration) InMemoryRuleCacheOption {
	return func(c *InMemoryRuleCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewInMemoryRuleCache creates a new in-memory rule cache and starts the
// background cleanup goroutine. Call Close to stop it.
func NewInMemoryRuleCache(opts ...InMemoryRuleCacheOption) *InMemoryRuleCache {
	cache := &InMemoryRuleCache{
		logger: zap.NewNop(),
		ttl:    defaultRuleTTL,
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// GetRules returns the cached active rules for a tenant
func (c *InMemoryRuleCache) GetRules(ctx context.Context, tenantID uuid.UUID) ([]attribution.ChannelRule, bool, error) {
	if value, ok := c.entries.Load(tenantID.String()); ok {
		entry := value.(*ruleEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("Cache hit for channel rules",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("rule_count", len(entry.rules)))
			return entry.rules, true, nil
		}
		// Expired, remove from cache
		c.entries.Delete(tenantID.String())
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("Cache miss for channel rules", zap.String("tenant_id", tenantID.String()))
	return nil, false, nil
}

// SetRules caches a tenant's active rules
func (c *InMemoryRuleCache) SetRules(ctx context.Context, tenantID uuid.UUID, rules []attribution.ChannelRule, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	c.entries.Store(tenantID.String(), &ruleEntry{
		rules:     rules,
		expiresAt: time.Now().Add(ttl),
	})
	c.logger.Debug("Cached channel rules",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("rule_count", len(rules)),
		zap.Duration("ttl", ttl))
	return nil
}

// Invalidate drops a tenant's cached rules
func (c *InMemoryRuleCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	c.entries.Delete(tenantID.String())
	c.logger.Debug("Invalidated channel rules cache", zap.String("tenant_id", tenantID.String()))
	return nil
}

// Close stops the background cleanup goroutine
func (c *InMemoryRuleCache) Close() error {
	// Only close once
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// GetStats returns cache statistics
func (c *InMemoryRuleCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Count returns the number of tenants with cached rules
func (c *InMemoryRuleCache) Count() int {
	count := 0
	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// cleanupExpired periodically removes expired entries from the cache
func (c *InMemoryRuleCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			removed := 0
			c.entries.Range(func(key, value any) bool {
				if value.(*ruleEntry).isExpired() {
					c.entries.Delete(key)
					removed++
				}
				return true
			})
			if removed > 0 {
				c.logger.Debug("Cleaned up expired rule cache entries", zap.Int("removed", removed))
			}
		}
	}
}

// Ensure InMemoryRuleCache implements attribution.RuleCache
var _ attribution.RuleCache = (*InMemoryRuleCache)(nil)
