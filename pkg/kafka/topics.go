package kafka

// TopicPrefix namespaces every topic published by ReviewPulse services.
const TopicPrefix = "review"

// Topics published by the review service.
var (
	TopicFetchDegraded     = Topic("fetch", "degraded")
	TopicAnalyticsComputed = Topic("analytics", "computed")
	TopicConnectionExpired = Topic("connection", "expired")
	TopicConnectionUpdated = Topic("connection", "updated")
	TopicConnectionRevoked = Topic("connection", "revoked")
)

// Topic builds a topic name of the form "review.<domain>.<action>".
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
