package attribution

import (
	"regexp"
	"sort"
	"strings"
)

// Attribution is a raw (source, medium) pair produced by extraction,
// before normalization.
type Attribution struct {
	Source string
	Medium string
}

// IsZero reports whether no source was found.
func (a Attribution) IsZero() bool {
	return a.Source == ""
}

// MetaEntry is one key-value pair from an order's metadata list.
type MetaEntry struct {
	Key   string
	Value string
}

// Signals carries every field of one order that may hint at its traffic
// origin. All fields are optional; absence is the common case.
type Signals struct {
	// Source and Medium are explicit attribution fields already persisted
	// on the order from a previous pass.
	Source string
	Medium string
	// ReferrerURL is the session referrer, when captured.
	ReferrerURL string
	// CustomerNote is the free-text order note.
	CustomerNote string
	// Fields holds the flat top-level payload fields (string values only).
	Fields map[string]string
	// Meta holds the order's key-value metadata list.
	Meta []MetaEntry
}

// Strategy attempts to derive an attribution from one class of signal.
// A strategy returning a zero Attribution means "no signal here".
type Strategy func(Signals) Attribution

// defaultStrategies is the priority chain: explicit persisted signals beat
// payload fields, which beat metadata, notes, referrer sniffing, and the
// last-resort field scan. Order matters; append new strategies, do not
// reorder existing ones.
var defaultStrategies = []Strategy{
	fromExplicitFields,
	fromFlatFields,
	fromMetaData,
	fromCustomerNote,
	fromReferrer,
	fromAnySourceField,
}

// Extract derives a best-effort (source, medium) pair from one order.
// Total function: when every strategy comes up empty it returns the
// sentinel pair ("(direct)", "typein").
func Extract(sig Signals) Attribution {
	for _, strategy := range defaultStrategies {
		if attr := strategy(sig); !attr.IsZero() {
			if attr.Medium == "" {
				attr.Medium = TypeinMedium
			}
			return attr
		}
	}
	return Attribution{Source: DirectSource, Medium: TypeinMedium}
}

// ---------------------------------------------------------------------------
// Strategies
// ---------------------------------------------------------------------------

// fromExplicitFields uses attribution fields persisted on the order itself.
// A present source with a missing medium defaults the medium to "utm",
// matching the tagging convention of the attribution plugin these fields
// originate from.
func fromExplicitFields(sig Signals) Attribution {
	source := strings.TrimSpace(sig.Source)
	if source == "" {
		return Attribution{}
	}
	medium := strings.TrimSpace(sig.Medium)
	if medium == "" {
		medium = "utm"
	}
	return Attribution{Source: source, Medium: medium}
}

// sourceFieldAliases are the top-level payload keys historically used for
// the traffic source, in descending trust order.
var sourceFieldAliases = []string{"utm_source", "source", "traffic_source", "order_source"}

// mediumFieldAliases are the top-level payload keys historically used for
// the traffic medium.
var mediumFieldAliases = []string{"utm_medium", "medium", "source_type", "traffic_medium"}

// fromFlatFields scans flat top-level payload fields under known aliases.
func fromFlatFields(sig Signals) Attribution {
	if len(sig.Fields) == 0 {
		return Attribution{}
	}
	var attr Attribution
	for _, key := range sourceFieldAliases {
		if v := strings.TrimSpace(sig.Fields[key]); v != "" {
			attr.Source = v
			break
		}
	}
	if attr.Source == "" {
		return Attribution{}
	}
	for _, key := range mediumFieldAliases {
		if v := strings.TrimSpace(sig.Fields[key]); v != "" {
			attr.Medium = v
			break
		}
	}
	return attr
}

// attributionPluginKeys are metadata keys written by third-party
// attribution plugins, matched case-insensitively and in full.
var attributionPluginKeys = map[string]string{
	"_wc_order_attribution_utm_source":  "source",
	"_wc_order_attribution_utm_medium":  "medium",
	"_wc_order_attribution_source_type": "medium",
	"_pys_utm_source":                   "source",
	"_pys_utm_medium":                   "medium",
	"_billing_wooccm_utm_source":        "source",
}

// fromMetaData scans the order's key-value metadata list for utm keys and
// known attribution-plugin keys.
func fromMetaData(sig Signals) Attribution {
	var attr Attribution
	for _, entry := range sig.Meta {
		key := strings.ToLower(strings.TrimSpace(entry.Key))
		value := strings.TrimSpace(entry.Value)
		if key == "" || value == "" {
			continue
		}

		role := ""
		switch {
		case strings.Contains(key, "utm_source"):
			role = "source"
		case strings.Contains(key, "utm_medium"):
			role = "medium"
		default:
			role = attributionPluginKeys[key]
		}

		switch role {
		case "source":
			if attr.Source == "" {
				attr.Source = value
			}
		case "medium":
			if attr.Medium == "" {
				attr.Medium = value
			}
		}
	}
	if attr.Source == "" {
		return Attribution{}
	}
	return attr
}

// Note fragments like "utm_source=google" or "source: facebook", tolerant
// of '=' or ':' separators and surrounding whitespace.
var (
	noteSourcePattern = regexp.MustCompile(`(?i)(?:utm_)?source\s*[=:]\s*([^\s,;&]+)`)
	noteMediumPattern = regexp.MustCompile(`(?i)(?:utm_)?medium\s*[=:]\s*([^\s,;&]+)`)
)

// fromCustomerNote regex-extracts utm fragments from free-text order notes.
func fromCustomerNote(sig Signals) Attribution {
	note := sig.CustomerNote
	if strings.TrimSpace(note) == "" {
		return Attribution{}
	}
	var attr Attribution
	if m := noteSourcePattern.FindStringSubmatch(note); m != nil {
		attr.Source = m[1]
	}
	if attr.Source == "" {
		return Attribution{}
	}
	if m := noteMediumPattern.FindStringSubmatch(note); m != nil {
		attr.Medium = m[1]
	}
	return attr
}

// fromReferrer maps the referrer's registrable domain to a guess.
func fromReferrer(sig Signals) Attribution {
	if sig.ReferrerURL == "" {
		return Attribution{}
	}
	if attr, ok := lookupReferrer(sig.ReferrerURL); ok {
		return attr
	}
	return Attribution{}
}

// fromAnySourceField is the last resort: any remaining string field whose
// key mentions traffic or source. Keys are visited in sorted order so the
// result is deterministic.
func fromAnySourceField(sig Signals) Attribution {
	keys := make([]string, 0, len(sig.Fields))
	for key := range sig.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		k := strings.ToLower(key)
		v := strings.TrimSpace(sig.Fields[key])
		if v == "" {
			continue
		}
		if strings.Contains(k, "traffic") || strings.Contains(k, "source") {
			return Attribution{Source: v}
		}
	}
	return Attribution{}
}
