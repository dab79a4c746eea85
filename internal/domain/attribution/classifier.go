package attribution

import "strings"

// RuleSnapshot is a read-only, case-insensitive lookup of active rules,
// built once per sync or report run. Passing a snapshot keeps Classify a
// pure function with no database dependency.
type RuleSnapshot struct {
	byPair map[string]string
}

// NewRuleSnapshot builds a snapshot from active rules. Inactive rules are
// skipped; on duplicate pairs the first rule wins.
func NewRuleSnapshot(rules []ChannelRule) RuleSnapshot {
	byPair := make(map[string]string, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		key := pairKey(r.Source, r.Medium)
		if _, exists := byPair[key]; !exists {
			byPair[key] = r.Channel
		}
	}
	return RuleSnapshot{byPair: byPair}
}

// Lookup returns the channel for a (source, medium) pair, if a rule matches.
func (s RuleSnapshot) Lookup(source, medium string) (string, bool) {
	channel, ok := s.byPair[pairKey(source, medium)]
	return channel, ok
}

// Len returns the number of active rules in the snapshot.
func (s RuleSnapshot) Len() int {
	return len(s.byPair)
}

func pairKey(source, medium string) string {
	return strings.ToLower(source) + "\x00" + strings.ToLower(medium)
}

// Classify maps a normalized (source, medium) pair to a channel bucket.
// A pair with no matching rule falls back to Direct: the upstream data
// treats "no rule" as unattributed traffic, and the unclassified discovery
// pass (report package) is the surface for finding candidate new rules.
//
// Source-level overrides run after the table lookup and win over it. They
// are tenant-global presentation decisions, kept out of the editable rule
// table deliberately.
func Classify(source, medium string, rules RuleSnapshot) string {
	channel, _ := ClassifyWithMatch(source, medium, rules)
	return channel
}

// ClassifyWithMatch is Classify plus whether any rule or source override
// matched. Pairs with no match fall back to Direct and are the candidates
// the unclassified discovery pass surfaces.
func ClassifyWithMatch(source, medium string, rules RuleSnapshot) (string, bool) {
	switch strings.ToLower(source) {
	case "bing":
		return ChannelBing, true
	case "chatgpt", "openai", "chat.openai.com":
		return ChannelAIReferral, true
	}

	if c, ok := rules.Lookup(source, medium); ok {
		return c, true
	}
	return ChannelDirect, false
}
