package models

import "time"

// Channel is the delivery surface for an inbox item. The adapter table in
// pkg/inbox dispatches on this closed set; add a channel only by extending
// both together.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelToast Channel = "toast"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelLog   Channel = "log"
)

// Channels lists every known delivery channel.
var Channels = []Channel{ChannelChat, ChannelToast, ChannelEmail, ChannelPush, ChannelLog}

func (c Channel) Valid() bool {
	for _, k := range Channels {
		if c == k {
			return true
		}
	}
	return false
}

type ItemType string

const (
	TypeMessage  ItemType = "message"
	TypeSystem   ItemType = "system"
	TypeReminder ItemType = "reminder"
	TypeAlert    ItemType = "alert"
)

func (t ItemType) Valid() bool {
	switch t {
	case TypeMessage, TypeSystem, TypeReminder, TypeAlert:
		return true
	}
	return false
}

type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceNormal   Importance = "normal"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceNormal, ImportanceHigh, ImportanceCritical:
		return true
	}
	return false
}

// Status is the delivery state machine: pending -> delivering -> delivered|failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDelivering Status = "delivering"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDelivering, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// PiiClass is the coarse sensitivity level of an item's content.
type PiiClass string

const (
	PiiNone      PiiClass = "none"
	PiiPersonal  PiiClass = "personal"
	PiiSensitive PiiClass = "sensitive"
)

func (p PiiClass) Valid() bool {
	switch p {
	case PiiNone, PiiPersonal, PiiSensitive:
		return true
	}
	return false
}

// Rank orders PII classes for monotone escalation: none < personal < sensitive.
func (p PiiClass) Rank() int {
	switch p {
	case PiiPersonal:
		return 1
	case PiiSensitive:
		return 2
	}
	return 0
}

// Escalate returns the higher of the two classes. The level only ever
// moves up, never down.
func (p PiiClass) Escalate(next PiiClass) PiiClass {
	if next.Rank() > p.Rank() {
		return next
	}
	return p
}

// Content is the structured message body: a translation key plus an
// argument map of JSON values.
type Content struct {
	Key  string         `json:"key"`
	Args map[string]any `json:"args,omitempty"`
}

// Envelope is the versioned encrypted form of a Content value at rest.
// All byte fields are base64-encoded.
type Envelope struct {
	V     int    `json:"v"`
	Alg   string `json:"alg"`
	Nonce string `json:"nonce"`
	Tag   string `json:"tag"`
	Data  string `json:"data"`
}

// Item is the atomic unit of delivery. Items are never hard-deleted; the
// pipeline mutates status, and read-receipt handling appends to ReadBy.
type Item struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	ThreadID       string         `json:"threadId"`
	ConversationID string         `json:"conversationId,omitempty"`
	OrderID        string         `json:"orderId,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	Address        string         `json:"address,omitempty"`
	Type           ItemType       `json:"type"`
	Importance     Importance     `json:"importance"`
	Channel        Channel        `json:"channel"`
	Lang           string         `json:"lang"`
	Content        Content        `json:"content"`
	Encrypted      *Envelope      `json:"encryptedContent,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
	Classification []string       `json:"classification,omitempty"`
	PiiClass       PiiClass       `json:"piiClass"`
	Status         Status         `json:"status"`
	DedupeKey      string         `json:"dedupeKey,omitempty"`
	RetryCount     int            `json:"retryCount"`
	NextAttemptAt  *time.Time     `json:"nextAttemptAt,omitempty"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
	ReadBy         []string       `json:"readBy,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ReadByContains reports whether address already appears in the reader set.
func (it *Item) ReadByContains(address string) bool {
	for _, a := range it.ReadBy {
		if a == address {
			return true
		}
	}
	return false
}
