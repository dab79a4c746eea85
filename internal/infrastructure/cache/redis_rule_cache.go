package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trafficlens/backend/internal/domain/attribution"
)

// defaultRuleTTL bounds staleness when the caller does not pass a TTL
const defaultRuleTTL = 5 * time.Minute

// RedisConfig holds Redis connection settings for cache construction
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisRuleCache implements attribution.RuleCache using Redis. One key per
// tenant holds the JSON-encoded active rule list.
type RedisRuleCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	logger     *zap.Logger
}

// RedisRuleCacheOption is a functional option for configuring the cache
type RedisRuleCacheOption func(*RedisRuleCache)

// WithRuleCacheLogger sets the logger for the cache
func WithRuleCacheLogger(logger *zap.Logger) RedisRuleCacheOption {
	return func(c *RedisRuleCache) {
		c.logger = logger
	}
}

// NewRedisRuleCache creates a new Redis-based rule cache
func NewRedisRuleCache(cfg RedisConfig, opts ...RedisRuleCacheOption) (*RedisRuleCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisRuleCache{
		client:     client,
		ownsClient: true,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// NewRedisRuleCacheWithClient creates a cache with an existing Redis client.
// The caller retains ownership of the client and is responsible for closing it.
func NewRedisRuleCacheWithClient(client *redis.Client, opts ...RedisRuleCacheOption) *RedisRuleCache {
	cache := &RedisRuleCache{
		client:     client,
		ownsClient: false,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// ruleCacheKey generates the cache key for a tenant's rule list
func (c *RedisRuleCache) ruleCacheKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("channel_rules:%s", tenantID.String())
}

// GetRules returns the cached active rules for a tenant
func (c *RedisRuleCache) GetRules(ctx context.Context, tenantID uuid.UUID) ([]attribution.ChannelRule, bool, error) {
	cacheKey := c.ruleCacheKey(tenantID)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss for channel rules", zap.String("tenant_id", tenantID.String()))
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("Failed to get channel rules from cache",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to get rules from cache: %w", err)
	}

	var rules []attribution.ChannelRule
	if err := json.Unmarshal(data, &rules); err != nil {
		c.logger.Error("Failed to unmarshal channel rules",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, cacheKey)
		return nil, false, fmt.Errorf("failed to unmarshal rules: %w", err)
	}

	c.logger.Debug("Cache hit for channel rules",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("rule_count", len(rules)))
	return rules, true, nil
}

// SetRules caches a tenant's active rules
func (c *RedisRuleCache) SetRules(ctx context.Context, tenantID uuid.UUID, rules []attribution.ChannelRule, ttl time.Duration) error {
	if ttl == 0 {
		ttl = defaultRuleTTL
	}

	cacheKey := c.ruleCacheKey(tenantID)

	data, err := json.Marshal(rules)
	if err != nil {
		c.logger.Error("Failed to marshal channel rules",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		c.logger.Error("Failed to set channel rules in cache",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to set rules in cache: %w", err)
	}

	c.logger.Debug("Cached channel rules",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("rule_count", len(rules)),
		zap.Duration("ttl", ttl))
	return nil
}

// Invalidate drops a tenant's cached rules
func (c *RedisRuleCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	cacheKey := c.ruleCacheKey(tenantID)

	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Error("Failed to invalidate channel rules cache",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to invalidate rules cache: %w", err)
	}

	c.logger.Debug("Invalidated channel rules cache", zap.String("tenant_id", tenantID.String()))
	return nil
}

// Close releases any resources held by the cache
func (c *RedisRuleCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// Ensure RedisRuleCache implements attribution.RuleCache
var _ attribution.RuleCache = (*RedisRuleCache)(nil)
