package attribution

import "strings"

// DirectSource is the sentinel source for unattributed traffic.
const DirectSource = "(direct)"

// TypeinMedium is the sentinel medium for unattributed traffic.
const TypeinMedium = "typein"

// sourceAliases folds the spellings the wild produces into one canonical
// token per origin. Unrecognized sources pass through unchanged.
var sourceAliases = map[string]string{
	"fb":            "facebook",
	"facebook.com":  "facebook",
	"m.facebook":    "facebook",
	"meta":          "facebook",
	"ig":            "instagram",
	"instagram.com": "instagram",
	"yt":            "youtube",
	"youtube.com":   "youtube",
	"google.com":    "google",
	"www.google":    "google",
	"bing.com":      "bing",
	"twitter":       "x",
	"twitter.com":   "x",
	"t.co":          "x",
	"linkedin.com":  "linkedin",
	"pinterest.com": "pinterest",
	"tiktok.com":    "tiktok",
	"chat.openai":   "chatgpt",
	"direct":        DirectSource,
	"(direct)":      DirectSource,
	"(none)":        DirectSource,
	"none":          DirectSource,
	"typein":        DirectSource,
}

// mediumAliases folds medium spellings. The literal medium "utm" is kept
// distinct on purpose: the rule table keys paid-search rules on it (it is
// the default tag emitted by a widely deployed attribution plugin), so
// folding it into "cpc" would silently move those orders out of the
// Paid Search bucket.
var mediumAliases = map[string]string{
	"ppc":     "cpc",
	"paid":    "cpc",
	"paidads": "cpc",
	"adwords": "cpc",
	"natural": "organic",
	"direct":  TypeinMedium,
	"(none)":  TypeinMedium,
	"none":    TypeinMedium,
}

// NormalizeSource lower-cases and canonicalizes a raw source string.
// Pure and idempotent; unknown values pass through lower-cased.
func NormalizeSource(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return s
	}
	if canonical, ok := sourceAliases[s]; ok {
		return canonical
	}
	return s
}

// NormalizeMedium lower-cases and canonicalizes a raw medium string.
// Pure and idempotent; unknown values pass through lower-cased.
func NormalizeMedium(raw string) string {
	m := strings.ToLower(strings.TrimSpace(raw))
	if m == "" {
		return m
	}
	if canonical, ok := mediumAliases[m]; ok {
		return canonical
	}
	return m
}
