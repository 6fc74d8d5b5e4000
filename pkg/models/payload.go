package models

import "time"

// Payload is the raw ingestion input before validation and defaulting.
// Field semantics mirror the persisted Item; optional linkage fields
// (conversation, order, user) may be resolved from the thread instead.
type Payload struct {
	TenantID       string         `json:"tenantId,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	ThreadID       string         `json:"threadId,omitempty"`
	OrderID        string         `json:"orderId,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	Address        string         `json:"address,omitempty"`
	Type           ItemType       `json:"type,omitempty"`
	Importance     Importance     `json:"importance,omitempty"`
	Channel        Channel        `json:"channel,omitempty"`
	Lang           string         `json:"lang,omitempty"`
	Content        Content        `json:"content"`
	Meta           map[string]any `json:"meta,omitempty"`
	PiiClass       PiiClass       `json:"piiClass,omitempty"`
	DedupeKey      string         `json:"dedupeKey,omitempty"`
	Status         Status         `json:"status,omitempty"`
	NextAttemptAt  *time.Time     `json:"nextAttemptAt,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
}
