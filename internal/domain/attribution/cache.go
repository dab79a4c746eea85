package attribution

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RuleCache caches a tenant's active classification rules so the sync
// engine does not reread the rule table for every order. Implementations
// live in the infrastructure layer.
type RuleCache interface {
	// GetRules returns the cached active rules for a tenant. The second
	// return value is false on a miss.
	GetRules(ctx context.Context, tenantID uuid.UUID) ([]ChannelRule, bool, error)

	// SetRules caches a tenant's active rules with the given TTL.
	SetRules(ctx context.Context, tenantID uuid.UUID, rules []ChannelRule, ttl time.Duration) error

	// Invalidate drops a tenant's cached rules. Called on every rule write
	// so classification never runs against a stale rule table longer than
	// one in-flight lookup.
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}
