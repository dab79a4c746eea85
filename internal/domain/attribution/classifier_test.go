package attribution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func snapshotFromPairs(t *testing.T, pairs map[[2]string]string) RuleSnapshot {
	t.Helper()
	tenantID := uuid.New()
	rules := make([]ChannelRule, 0, len(pairs))
	for pair, channel := range pairs {
		rule, err := NewChannelRule(tenantID, pair[0], pair[1], channel)
		assert.NoError(t, err)
		rules = append(rules, *rule)
	}
	return NewRuleSnapshot(rules)
}

func TestClassifyMatchesRule(t *testing.T) {
	snapshot := snapshotFromPairs(t, map[[2]string]string{
		{"google", "utm"}:      ChannelPaidSearch,
		{"google", "organic"}:  ChannelSEO,
		{"facebook", "social"}: ChannelOrganicSocial,
		{"facebook", "cpc"}:    ChannelPaidSocial,
		{"klaviyo", "email"}:   ChannelEmail,
	})

	tests := []struct {
		name     string
		source   string
		medium   string
		expected string
	}{
		{"paid search via plugin tagging", "google", "utm", ChannelPaidSearch},
		{"organic search", "google", "organic", ChannelSEO},
		{"organic social", "facebook", "social", ChannelOrganicSocial},
		{"paid social", "facebook", "cpc", ChannelPaidSocial},
		{"email", "klaviyo", "email", ChannelEmail},
		{"case-insensitive lookup", "Google", "UTM", ChannelPaidSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.source, tt.medium, snapshot))
		})
	}
}

func TestClassifyDefaultsToDirect(t *testing.T) {
	snapshot := snapshotFromPairs(t, map[[2]string]string{
		{"google", "utm"}: ChannelPaidSearch,
	})

	assert.Equal(t, ChannelDirect, Classify("unknown-source", "unknown-medium", snapshot))
	assert.Equal(t, ChannelDirect, Classify("(direct)", "typein", snapshot))
	assert.Equal(t, ChannelDirect, Classify("", "", snapshot))
	assert.Equal(t, ChannelDirect, Classify("google", "email", snapshot))
}

func TestClassifyOverridesWinOverTable(t *testing.T) {
	// Even when a rule exists for bing, the dedicated bucket wins.
	snapshot := snapshotFromPairs(t, map[[2]string]string{
		{"bing", "organic"}:   ChannelSEO,
		{"chatgpt", "referral"}: ChannelReferral,
	})

	assert.Equal(t, ChannelBing, Classify("bing", "organic", snapshot))
	assert.Equal(t, ChannelBing, Classify("bing", "anything", snapshot))
	assert.Equal(t, ChannelAIReferral, Classify("chatgpt", "referral", snapshot))
	assert.Equal(t, ChannelAIReferral, Classify("openai", "cpc", snapshot))
	assert.Equal(t, ChannelAIReferral, Classify("chat.openai.com", "", snapshot))
}

func TestRuleSnapshotSkipsInactiveRules(t *testing.T) {
	tenantID := uuid.New()
	active, err := NewChannelRule(tenantID, "google", "organic", ChannelSEO)
	assert.NoError(t, err)
	inactive, err := NewChannelRule(tenantID, "google", "utm", ChannelPaidSearch)
	assert.NoError(t, err)
	inactive.Deactivate()

	snapshot := NewRuleSnapshot([]ChannelRule{*active, *inactive})
	assert.Equal(t, 1, snapshot.Len())
	assert.Equal(t, ChannelSEO, Classify("google", "organic", snapshot))
	assert.Equal(t, ChannelDirect, Classify("google", "utm", snapshot))
}

func TestNewChannelRuleValidation(t *testing.T) {
	tenantID := uuid.New()

	_, err := NewChannelRule(tenantID, "", "organic", ChannelSEO)
	assert.ErrorIs(t, err, ErrRuleInvalidSource)

	_, err = NewChannelRule(tenantID, "google", "", ChannelSEO)
	assert.ErrorIs(t, err, ErrRuleInvalidMedium)

	_, err = NewChannelRule(tenantID, "google", "organic", "Made Up Bucket")
	assert.ErrorIs(t, err, ErrRuleInvalidChannel)

	rule, err := NewChannelRule(tenantID, "  GooGle ", " UTM ", ChannelPaidSearch)
	assert.NoError(t, err)
	assert.Equal(t, "google", rule.Source)
	assert.Equal(t, "utm", rule.Medium)
	assert.True(t, rule.IsActive)
}
