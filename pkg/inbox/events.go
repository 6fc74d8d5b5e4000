package inbox

import (
	"time"

	"inboxd/pkg/fanout"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
)

// Fan-out event names. Subscribers must treat message events as upserts
// keyed by item id; ordering across racing publishers is not guaranteed.
const (
	EventMessage = "message"
	EventTyping  = "typing"
	EventRead    = "read"
)

// TypingEvent is the wire payload of a typing signal. Not persisted.
type TypingEvent struct {
	ConversationID string    `json:"conversationId"`
	Address        string    `json:"address"`
	Typing         bool      `json:"typing"`
	At             time.Time `json:"at"`
}

// ReadEvent is the wire payload of a read receipt.
type ReadEvent struct {
	ConversationID string    `json:"conversationId"`
	Address        string    `json:"address"`
	Count          int       `json:"count"`
	At             time.Time `json:"at"`
}

// participantAddresses resolves the recipient set of a conversation.
func (s *Service) participantAddresses(conversationID string) []string {
	if conversationID == "" {
		return nil
	}
	parts, err := s.repo.ListParticipants(conversationID)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.Address)
	}
	return out
}

// publishMessage fans a persisted item out to every participant of its
// conversation plus the sender's own address (sender sees the echo).
func (s *Service) publishMessage(it *models.Item) {
	targets := s.participantAddresses(it.ConversationID)
	seen := false
	for _, a := range targets {
		if a == it.Address {
			seen = true
			break
		}
	}
	if !seen && it.Address != "" {
		targets = append(targets, it.Address)
	}
	payload, err := s.Present(it)
	if err != nil {
		// Fan-out is best effort; an undecryptable item is never broadcast.
		logger.Error("fanout_present_failed", "item", it.ID, "error", err)
		return
	}
	ev := fanout.Event{Type: EventMessage, Payload: payload}
	s.hub.PublishMany(targets, "", ev)
}
