package models

import "time"

// Thread groups a recipient-independent stream of inbox items. Threads are
// created lazily on the first item referencing a (tenant, conversation,
// order) triple not yet seen, and are never deleted by this core.
type Thread struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	ConversationID string         `json:"conversationId,omitempty"`
	OrderID        string         `json:"orderId,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
	DedupeHint     string         `json:"dedupeHint,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
