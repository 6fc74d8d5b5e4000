package models

import "time"

// AuditEntry records who did what to which entity. Entries carry only
// non-sensitive metadata (channel, importance, thread id, PII level, tags),
// never raw message content.
type AuditEntry struct {
	ActorAddress string         `json:"actorAddress,omitempty"`
	ActorUserID  string         `json:"actorUserId,omitempty"`
	Action       string         `json:"action"`
	EntityType   string         `json:"entityType"`
	EntityID     string         `json:"entityId,omitempty"`
	TenantID     string         `json:"tenantId,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	At           time.Time      `json:"at"`
}
