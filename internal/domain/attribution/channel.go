package attribution

// Channel bucket names used in reports. Channels are stored as plain strings
// rather than a closed enum: new buckets are introduced by inserting rules,
// not by redeploying code. The allow-list below gates rule writes only.
const (
	// ChannelDirect is the fallback bucket for unattributed traffic
	ChannelDirect = "Direct"
	// ChannelSEO is organic search traffic
	ChannelSEO = "SEO"
	// ChannelPaidSearch is paid search engine traffic
	ChannelPaidSearch = "Paid Search"
	// ChannelOrganicSocial is unpaid social network traffic
	ChannelOrganicSocial = "Organic Social"
	// ChannelPaidSocial is paid social network traffic
	ChannelPaidSocial = "Paid Social"
	// ChannelEmail is e-mail campaign traffic
	ChannelEmail = "Email"
	// ChannelReferral is traffic from other sites
	ChannelReferral = "Referral"
	// ChannelAIReferral is traffic referred by AI chat assistants
	ChannelAIReferral = "AI Referral"
	// ChannelBing is a dedicated reporting bucket for Bing traffic
	ChannelBing = "Bing"
	// ChannelUnclassified is an explicit holding bucket operators can route
	// pairs into while deciding on a permanent channel
	ChannelUnclassified = "Unclassified"
)

// KnownChannels returns the channel vocabulary accepted when writing rules.
// Channels already persisted always pass through on read, even if the
// vocabulary later shrinks.
func KnownChannels() []string {
	return []string{
		ChannelDirect,
		ChannelSEO,
		ChannelPaidSearch,
		ChannelOrganicSocial,
		ChannelPaidSocial,
		ChannelEmail,
		ChannelReferral,
		ChannelAIReferral,
		ChannelBing,
		ChannelUnclassified,
	}
}

// IsKnownChannel reports whether the channel is in the accepted vocabulary.
func IsKnownChannel(channel string) bool {
	for _, c := range KnownChannels() {
		if c == channel {
			return true
		}
	}
	return false
}
