package attribution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/backend/internal/domain/attribution"
)

// ChannelRuleService manages the per-tenant channel rule table. Every write
// invalidates the tenant's rule cache so the next sync or report run sees
// the change.
type ChannelRuleService struct {
	ruleRepo attribution.ChannelRuleRepository
	cache    attribution.RuleCache
	cacheTTL time.Duration
}

// NewChannelRuleService creates a new ChannelRuleService. The cache may be
// nil, in which case every snapshot read goes to the repository.
func NewChannelRuleService(ruleRepo attribution.ChannelRuleRepository, cache attribution.RuleCache, cacheTTL time.Duration) *ChannelRuleService {
	return &ChannelRuleService{
		ruleRepo: ruleRepo,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// ---------------------------------------------------------------------------
// CRUD Operations
// ---------------------------------------------------------------------------

// CreateRule creates a new active rule after checking pair uniqueness.
func (s *ChannelRuleService) CreateRule(ctx context.Context, tenantID uuid.UUID, source, medium, channel string) (*attribution.ChannelRule, error) {
	rule, err := attribution.NewChannelRule(tenantID, source, medium, channel)
	if err != nil {
		return nil, err
	}

	// Pair uniqueness among active rules, case-insensitive
	existing, err := s.ruleRepo.FindBySourceMedium(ctx, tenantID, rule.Source, rule.Medium)
	if err != nil && !errors.Is(err, attribution.ErrRuleNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, attribution.ErrRuleDuplicate
	}

	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}

	s.invalidate(ctx, tenantID)
	return rule, nil
}

// UpdateRule applies a partial update to a rule.
func (s *ChannelRuleService) UpdateRule(ctx context.Context, tenantID, id uuid.UUID, req UpdateRuleRequest) (*attribution.ChannelRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.TenantID != tenantID {
		return nil, attribution.ErrRuleNotFound
	}

	if req.Source != nil {
		rule.Source = *req.Source
	}
	if req.Medium != nil {
		rule.Medium = *req.Medium
	}
	if req.Channel != nil {
		rule.Channel = *req.Channel
	}
	if req.IsActive != nil {
		if *req.IsActive {
			rule.Activate()
		} else {
			rule.Deactivate()
		}
	}
	rule.Source = normalizePair(rule.Source)
	rule.Medium = normalizePair(rule.Medium)
	rule.UpdatedAt = time.Now()

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	// Pair uniqueness among active rules, excluding the rule itself
	if rule.IsActive {
		existing, err := s.ruleRepo.FindBySourceMedium(ctx, tenantID, rule.Source, rule.Medium)
		if err != nil && !errors.Is(err, attribution.ErrRuleNotFound) {
			return nil, err
		}
		if existing != nil && existing.ID != rule.ID {
			return nil, attribution.ErrRuleDuplicate
		}
	}

	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}

	s.invalidate(ctx, tenantID)
	return rule, nil
}

// DeactivateRule soft-disables a rule, preserving it for history.
func (s *ChannelRuleService) DeactivateRule(ctx context.Context, tenantID, id uuid.UUID) error {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if rule.TenantID != tenantID {
		return attribution.ErrRuleNotFound
	}

	rule.Deactivate()
	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return err
	}

	s.invalidate(ctx, tenantID)
	return nil
}

// GetRule retrieves a rule by ID.
func (s *ChannelRuleService) GetRule(ctx context.Context, tenantID, id uuid.UUID) (*attribution.ChannelRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.TenantID != tenantID {
		return nil, attribution.ErrRuleNotFound
	}
	return rule, nil
}

// ListRules lists rules with filtering and pagination.
func (s *ChannelRuleService) ListRules(ctx context.Context, tenantID uuid.UUID, filter attribution.ChannelRuleFilter) ([]attribution.ChannelRule, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	rules, err := s.ruleRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.ruleRepo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}

	return rules, count, nil
}

// ---------------------------------------------------------------------------
// Seeding
// ---------------------------------------------------------------------------

// seedRule is one entry of the default rule table.
type seedRule struct {
	source  string
	medium  string
	channel string
}

// defaultSeedRules is the bootstrap rule table for a new tenant. The
// google/utm entry carries orders tagged by the attribution plugin's
// default medium into Paid Search.
var defaultSeedRules = []seedRule{
	{"google", "organic", attribution.ChannelSEO},
	{"google", "cpc", attribution.ChannelPaidSearch},
	{"google", "utm", attribution.ChannelPaidSearch},
	{"bing", "organic", attribution.ChannelSEO},
	{"bing", "cpc", attribution.ChannelPaidSearch},
	{"duckduckgo", "organic", attribution.ChannelSEO},
	{"facebook", "referral", attribution.ChannelOrganicSocial},
	{"facebook", "social", attribution.ChannelOrganicSocial},
	{"facebook", "cpc", attribution.ChannelPaidSocial},
	{"instagram", "referral", attribution.ChannelOrganicSocial},
	{"instagram", "social", attribution.ChannelOrganicSocial},
	{"instagram", "cpc", attribution.ChannelPaidSocial},
	{"x", "referral", attribution.ChannelOrganicSocial},
	{"x", "social", attribution.ChannelOrganicSocial},
	{"linkedin", "referral", attribution.ChannelOrganicSocial},
	{"tiktok", "referral", attribution.ChannelOrganicSocial},
	{"tiktok", "cpc", attribution.ChannelPaidSocial},
	{"youtube", "referral", attribution.ChannelOrganicSocial},
	{"pinterest", "referral", attribution.ChannelOrganicSocial},
	{"newsletter", "email", attribution.ChannelEmail},
	{"mailchimp", "email", attribution.ChannelEmail},
	{"klaviyo", "email", attribution.ChannelEmail},
	{"chatgpt", "referral", attribution.ChannelAIReferral},
	{"perplexity", "referral", attribution.ChannelAIReferral},
}

// SeedDefaultRules inserts the default rule table for a tenant, skipping
// pairs that already have an active rule. Returns the number of rules
// actually created. Safe to invoke repeatedly.
func (s *ChannelRuleService) SeedDefaultRules(ctx context.Context, tenantID uuid.UUID) (int, error) {
	created := 0
	for _, seed := range defaultSeedRules {
		existing, err := s.ruleRepo.FindBySourceMedium(ctx, tenantID, seed.source, seed.medium)
		if err != nil && !errors.Is(err, attribution.ErrRuleNotFound) {
			return created, err
		}
		if existing != nil {
			continue
		}

		rule, err := attribution.NewChannelRule(tenantID, seed.source, seed.medium, seed.channel)
		if err != nil {
			return created, err
		}
		if err := s.ruleRepo.Save(ctx, rule); err != nil {
			return created, err
		}
		created++
	}

	if created > 0 {
		s.invalidate(ctx, tenantID)
	}
	return created, nil
}

// ---------------------------------------------------------------------------
// Snapshot Resolution
// ---------------------------------------------------------------------------

// ActiveSnapshot resolves the tenant's active rules into a classification
// snapshot, consulting the cache first. A cache failure degrades to a
// repository read rather than failing the caller.
func (s *ChannelRuleService) ActiveSnapshot(ctx context.Context, tenantID uuid.UUID) (attribution.RuleSnapshot, error) {
	if s.cache != nil {
		if rules, found, err := s.cache.GetRules(ctx, tenantID); err == nil && found {
			return attribution.NewRuleSnapshot(rules), nil
		}
	}

	rules, err := s.ruleRepo.FindActiveForTenant(ctx, tenantID)
	if err != nil {
		return attribution.RuleSnapshot{}, err
	}

	if s.cache != nil {
		// Empty rule lists are cached too, so rule-less tenants do not
		// hit the repository on every order.
		_ = s.cache.SetRules(ctx, tenantID, rules, s.cacheTTL)
	}

	return attribution.NewRuleSnapshot(rules), nil
}

// ClassifyPair normalizes and classifies one (source, medium) pair against
// the tenant's active rules. Used by the preview endpoint.
func (s *ChannelRuleService) ClassifyPair(ctx context.Context, tenantID uuid.UUID, source, medium string) (*ClassifyPreviewResponse, error) {
	snapshot, err := s.ActiveSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	normalizedSource := attribution.NormalizeSource(source)
	normalizedMedium := attribution.NormalizeMedium(medium)

	return &ClassifyPreviewResponse{
		Source:  normalizedSource,
		Medium:  normalizedMedium,
		Channel: attribution.Classify(normalizedSource, normalizedMedium, snapshot),
	}, nil
}

func (s *ChannelRuleService) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	// Best effort: a failed invalidation only extends staleness to the TTL
	_ = s.cache.Invalidate(ctx, tenantID)
}
