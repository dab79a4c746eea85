package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSentinelWhenNoSignals(t *testing.T) {
	attr := Extract(Signals{})
	assert.Equal(t, DirectSource, attr.Source)
	assert.Equal(t, TypeinMedium, attr.Medium)
}

func TestExtractExplicitFieldsWin(t *testing.T) {
	// An explicit persisted source must beat a conflicting referrer signal.
	attr := Extract(Signals{
		Source:      "google",
		Medium:      "cpc",
		ReferrerURL: "https://www.facebook.com/some/page",
	})
	assert.Equal(t, "google", attr.Source)
	assert.Equal(t, "cpc", attr.Medium)
}

func TestExtractExplicitSourceDefaultsMediumToUtm(t *testing.T) {
	attr := Extract(Signals{Source: "google"})
	assert.Equal(t, "google", attr.Source)
	assert.Equal(t, "utm", attr.Medium)
}

func TestExtractFlatFields(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		expected Attribution
	}{
		{
			name:     "utm keys",
			fields:   map[string]string{"utm_source": "facebook", "utm_medium": "cpc"},
			expected: Attribution{Source: "facebook", Medium: "cpc"},
		},
		{
			name:     "bare source and medium keys",
			fields:   map[string]string{"source": "klaviyo", "medium": "email"},
			expected: Attribution{Source: "klaviyo", Medium: "email"},
		},
		{
			name:     "source_type alias for medium",
			fields:   map[string]string{"source": "google", "source_type": "utm"},
			expected: Attribution{Source: "google", Medium: "utm"},
		},
		{
			name:     "source without medium falls back to typein",
			fields:   map[string]string{"utm_source": "google"},
			expected: Attribution{Source: "google", Medium: TypeinMedium},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Extract(Signals{Fields: tt.fields}))
		})
	}
}

func TestExtractMetaData(t *testing.T) {
	tests := []struct {
		name     string
		meta     []MetaEntry
		expected Attribution
	}{
		{
			name: "plugin utm keys",
			meta: []MetaEntry{
				{Key: "_wc_order_attribution_utm_source", Value: "google"},
				{Key: "_wc_order_attribution_source_type", Value: "utm"},
			},
			expected: Attribution{Source: "google", Medium: "utm"},
		},
		{
			name: "case-insensitive key match",
			meta: []MetaEntry{
				{Key: "Campaign_UTM_Source", Value: "instagram"},
				{Key: "Campaign_UTM_Medium", Value: "social"},
			},
			expected: Attribution{Source: "instagram", Medium: "social"},
		},
		{
			name: "first matching key wins",
			meta: []MetaEntry{
				{Key: "utm_source", Value: "first"},
				{Key: "another_utm_source", Value: "second"},
			},
			expected: Attribution{Source: "first", Medium: TypeinMedium},
		},
		{
			name: "unrelated keys yield nothing",
			meta: []MetaEntry{
				{Key: "_shipping_method", Value: "flat_rate"},
			},
			expected: Attribution{Source: DirectSource, Medium: TypeinMedium},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Extract(Signals{Meta: tt.meta}))
		})
	}
}

func TestExtractCustomerNote(t *testing.T) {
	tests := []struct {
		name     string
		note     string
		expected Attribution
	}{
		{
			name:     "equals separator",
			note:     "please gift wrap. utm_source=google utm_medium=cpc",
			expected: Attribution{Source: "google", Medium: "cpc"},
		},
		{
			name:     "colon separator with whitespace",
			note:     "source : facebook, medium : social",
			expected: Attribution{Source: "facebook", Medium: "social"},
		},
		{
			name:     "source only",
			note:     "utm_source=newsletter",
			expected: Attribution{Source: "newsletter", Medium: TypeinMedium},
		},
		{
			name:     "no attribution fragment",
			note:     "leave package at the back door",
			expected: Attribution{Source: DirectSource, Medium: TypeinMedium},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Extract(Signals{CustomerNote: tt.note}))
		})
	}
}

func TestExtractReferrer(t *testing.T) {
	tests := []struct {
		name     string
		referrer string
		expected Attribution
	}{
		{"facebook referrer", "https://www.facebook.com/groups/123", Attribution{Source: "facebook", Medium: "social"}},
		{"google referrer", "https://www.google.com/search?q=shoes", Attribution{Source: "google", Medium: "organic"}},
		{"chatgpt referrer", "https://chatgpt.com/c/abc", Attribution{Source: "chatgpt", Medium: "referral"}},
		{"mobile subdomain", "https://m.facebook.com/story", Attribution{Source: "facebook", Medium: "social"}},
		{"unknown domain ignored", "https://example-blog.net/post", Attribution{Source: DirectSource, Medium: TypeinMedium}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Extract(Signals{ReferrerURL: tt.referrer}))
		})
	}
}

func TestExtractLastResortFieldScan(t *testing.T) {
	attr := Extract(Signals{
		Fields: map[string]string{
			"currency":        "USD",
			"traffic_origin":  "partner-blog",
		},
	})
	assert.Equal(t, "partner-blog", attr.Source)
	assert.Equal(t, TypeinMedium, attr.Medium)
}

func TestExtractPriorityOrder(t *testing.T) {
	// Every strategy has a signal; the highest-priority one must win.
	sig := Signals{
		Source:       "explicit",
		ReferrerURL:  "https://www.facebook.com/",
		CustomerNote: "utm_source=note",
		Fields:       map[string]string{"utm_source": "flat"},
		Meta:         []MetaEntry{{Key: "utm_source", Value: "meta"}},
	}
	assert.Equal(t, "explicit", Extract(sig).Source)

	sig.Source = ""
	assert.Equal(t, "flat", Extract(sig).Source)

	sig.Fields = nil
	assert.Equal(t, "meta", Extract(sig).Source)

	sig.Meta = nil
	assert.Equal(t, "note", Extract(sig).Source)

	sig.CustomerNote = ""
	assert.Equal(t, "facebook", Extract(sig).Source)
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain domain", "https://facebook.com/page", "facebook.com"},
		{"www stripped", "https://www.google.com/search", "google.com"},
		{"subdomain collapsed", "https://news.ycombinator.com/item", "ycombinator.com"},
		{"two-part tld kept", "https://shop.example.co.uk/cart", "example.co.uk"},
		{"scheme-less input", "facebook.com/ref", "facebook.com"},
		{"with port", "https://localhost:8080/x", "localhost"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RegistrableDomain(tt.input))
		})
	}
}
