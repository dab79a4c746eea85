package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"facebook short form", "fb", "facebook"},
		{"facebook domain", "facebook.com", "facebook"},
		{"instagram short form", "ig", "instagram"},
		{"youtube short form", "yt", "youtube"},
		{"mixed case", "FB", "facebook"},
		{"direct spelling", "direct", "(direct)"},
		{"direct parenthesized", "(direct)", "(direct)"},
		{"none spelling", "(none)", "(direct)"},
		{"unknown passes through", "newsletter-march", "newsletter-march"},
		{"unknown mixed case lowered", "KlaviYo", "klaviyo"},
		{"surrounding whitespace", "  google  ", "google"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSource(tt.input))
		})
	}
}

func TestNormalizeMedium(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ppc folds into cpc", "ppc", "cpc"},
		{"paid folds into cpc", "paid", "cpc"},
		{"cpc stays cpc", "cpc", "cpc"},
		{"natural folds into organic", "natural", "organic"},
		{"organic stays organic", "organic", "organic"},
		{"direct folds into typein", "direct", "typein"},
		{"typein stays typein", "typein", "typein"},
		{"mixed case", "PPC", "cpc"},
		{"unknown passes through", "affiliate", "affiliate"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeMedium(tt.input))
		})
	}
}

// The medium "utm" is the tag a widely deployed attribution plugin writes
// for its default paid-search tagging; the rule table keys on it literally.
// It must never fold into "cpc".
func TestNormalizeMediumPreservesUtm(t *testing.T) {
	assert.Equal(t, "utm", NormalizeMedium("utm"))
	assert.Equal(t, "utm", NormalizeMedium("UTM"))
	assert.NotEqual(t, "cpc", NormalizeMedium("utm"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"fb", "facebook", "FB", "direct", "(direct)", "", "ppc", "cpc", "utm", "weird input!", "typein"}
	for _, in := range inputs {
		s := NormalizeSource(in)
		assert.Equal(t, s, NormalizeSource(s), "NormalizeSource not idempotent for %q", in)

		m := NormalizeMedium(in)
		assert.Equal(t, m, NormalizeMedium(m), "NormalizeMedium not idempotent for %q", in)
	}
}
