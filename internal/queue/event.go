// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

// SubscriptionChangedEvent is published whenever a user's subscription
// state transitions, either through checkout confirmation or a provider
// webhook. It carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type SubscriptionChangedEvent struct {
	Username    string `json:"username,omitempty"`
	CustomerRef string `json:"customer_ref"`
	Active      bool   `json:"active"`
	Source      string `json:"source"`             // "checkout" or "webhook"
	EventID     string `json:"event_id,omitempty"` // provider event ID when Source is "webhook"
	OccurredAt  string `json:"occurred_at"`
}
