package attribution

import (
	"net/url"
	"strings"
)

// referrerDomains maps registrable referrer domains to a (source, medium)
// guess. Used as a fallback when the order carries no explicit signal.
var referrerDomains = map[string]Attribution{
	// Search engines
	"google.com":     {Source: "google", Medium: "organic"},
	"bing.com":       {Source: "bing", Medium: "organic"},
	"duckduckgo.com": {Source: "duckduckgo", Medium: "organic"},
	"yahoo.com":      {Source: "yahoo", Medium: "organic"},
	"yandex.com":     {Source: "yandex", Medium: "organic"},
	"ecosia.org":     {Source: "ecosia", Medium: "organic"},

	// Social networks
	"facebook.com":  {Source: "facebook", Medium: "social"},
	"instagram.com": {Source: "instagram", Medium: "social"},
	"twitter.com":   {Source: "x", Medium: "social"},
	"x.com":         {Source: "x", Medium: "social"},
	"t.co":          {Source: "x", Medium: "social"},
	"linkedin.com":  {Source: "linkedin", Medium: "social"},
	"pinterest.com": {Source: "pinterest", Medium: "social"},
	"tiktok.com":    {Source: "tiktok", Medium: "social"},
	"youtube.com":   {Source: "youtube", Medium: "social"},
	"reddit.com":    {Source: "reddit", Medium: "social"},

	// Review sites
	"trustpilot.com": {Source: "trustpilot", Medium: "referral"},
	"yelp.com":       {Source: "yelp", Medium: "referral"},
	"g2.com":         {Source: "g2", Medium: "referral"},

	// AI chat assistants
	"chatgpt.com":    {Source: "chatgpt", Medium: "referral"},
	"openai.com":     {Source: "chatgpt", Medium: "referral"},
	"perplexity.ai":  {Source: "perplexity", Medium: "referral"},
	"claude.ai":      {Source: "claude", Medium: "referral"},
	"copilot.com":    {Source: "copilot", Medium: "referral"},
	"character.ai":   {Source: "character", Medium: "referral"},
	"mistral.ai":     {Source: "mistral", Medium: "referral"},
	"huggingface.co": {Source: "huggingface", Medium: "referral"},
}

// multiLabelTLDs lists second-level public suffixes the registrable-domain
// heuristic must keep three labels for.
var multiLabelTLDs = map[string]bool{
	"co.uk":  true,
	"com.au": true,
	"com.br": true,
	"co.jp":  true,
	"co.nz":  true,
	"co.in":  true,
	"com.mx": true,
	"org.uk": true,
}

// RegistrableDomain extracts the registrable domain from a referrer URL.
// Returns "" for empty or unparseable input.
func RegistrableDomain(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	suffix := strings.Join(labels[len(labels)-2:], ".")
	if multiLabelTLDs[suffix] {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return suffix
}

// lookupReferrer returns the attribution guess for a referrer URL, if the
// registrable domain is known.
func lookupReferrer(rawURL string) (Attribution, bool) {
	domain := RegistrableDomain(rawURL)
	if domain == "" {
		return Attribution{}, false
	}
	attr, ok := referrerDomains[domain]
	return attr, ok
}
