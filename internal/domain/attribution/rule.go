package attribution

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRuleInvalidSource indicates an empty or malformed source
	ErrRuleInvalidSource = errors.New("attribution: rule source is required")
	// ErrRuleInvalidMedium indicates an empty or malformed medium
	ErrRuleInvalidMedium = errors.New("attribution: rule medium is required")
	// ErrRuleInvalidChannel indicates a channel outside the accepted vocabulary
	ErrRuleInvalidChannel = errors.New("attribution: channel is not in the accepted vocabulary")
	// ErrRuleDuplicate indicates another active rule already covers the pair
	ErrRuleDuplicate = errors.New("attribution: an active rule for this source/medium already exists")
	// ErrRuleNotFound indicates the rule does not exist
	ErrRuleNotFound = errors.New("attribution: rule not found")
)

// ChannelRule maps a (source, medium) pair to a channel bucket.
// Source and medium are stored lower-cased; the pair is unique among
// active rules of a tenant.
type ChannelRule struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Source    string
	Medium    string
	Channel   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewChannelRule creates a rule, lower-casing source and medium.
func NewChannelRule(tenantID uuid.UUID, source, medium, channel string) (*ChannelRule, error) {
	rule := &ChannelRule{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Source:    strings.ToLower(strings.TrimSpace(source)),
		Medium:    strings.ToLower(strings.TrimSpace(medium)),
		Channel:   channel,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks rule invariants.
func (r *ChannelRule) Validate() error {
	if r.Source == "" {
		return ErrRuleInvalidSource
	}
	if r.Medium == "" {
		return ErrRuleInvalidMedium
	}
	if !IsKnownChannel(r.Channel) {
		return ErrRuleInvalidChannel
	}
	return nil
}

// Deactivate soft-disables the rule without deleting it, preserving history.
func (r *ChannelRule) Deactivate() {
	r.IsActive = false
	r.UpdatedAt = time.Now()
}

// Activate re-enables the rule.
func (r *ChannelRule) Activate() {
	r.IsActive = true
	r.UpdatedAt = time.Now()
}

// ChannelRuleFilter defines filter criteria for listing rules
type ChannelRuleFilter struct {
	// Channel filters by channel bucket (optional)
	Channel *string
	// IsActive filters by active flag (optional)
	IsActive *bool
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
}

// ChannelRuleRepository defines the interface for persisting channel rules
type ChannelRuleRepository interface {
	// Save creates or updates a rule
	Save(ctx context.Context, rule *ChannelRule) error

	// FindByID finds a rule by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*ChannelRule, error)

	// FindActiveForTenant returns all active rules for a tenant
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]ChannelRule, error)

	// FindBySourceMedium finds an active rule by its lower-cased pair
	FindBySourceMedium(ctx context.Context, tenantID uuid.UUID, source, medium string) (*ChannelRule, error)

	// FindAll lists rules matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ChannelRuleFilter) ([]ChannelRule, error)

	// Count counts rules matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter ChannelRuleFilter) (int64, error)

	// Delete removes a rule permanently (test/reset flows only)
	Delete(ctx context.Context, id uuid.UUID) error
}
