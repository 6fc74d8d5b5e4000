package models

import "time"

type ConversationKind string

const (
	KindFavorites ConversationKind = "favorites"
	KindOrder     ConversationKind = "order"
	KindOther     ConversationKind = "other"
)

// Conversation is the participant-scoped grouping entity. A participant
// record is the sole access-control gate for reading its history.
type Conversation struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenantId"`
	Kind          ConversationKind `json:"kind"`
	OrderID       string           `json:"orderId,omitempty"`
	OwnerAddress  string           `json:"ownerAddress,omitempty"`
	Meta          map[string]any   `json:"meta,omitempty"`
	LastMessageAt *time.Time       `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type ParticipantRole string

const (
	RoleOwner  ParticipantRole = "owner"
	RoleMaker  ParticipantRole = "maker"
	RoleTaker  ParticipantRole = "taker"
	RoleMember ParticipantRole = "member"
)

type Participant struct {
	ConversationID string          `json:"conversationId"`
	Address        string          `json:"address"`
	Role           ParticipantRole `json:"role"`
	UserID         string          `json:"userId,omitempty"`
	JoinedAt       time.Time       `json:"joinedAt"`
}
