package inbox

import (
	"fmt"

	"inboxd/pkg/fanout"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
)

// Typing fans a typing signal out to every participant of the
// conversation except the sender. Typing events bypass persistence.
func (s *Service) Typing(conversationID, address string, typing bool) error {
	address = NormalizeAddress(address)
	if _, err := s.EnsureAccess(conversationID, address); err != nil {
		return err
	}
	ev := fanout.Event{Type: EventTyping, Payload: TypingEvent{
		ConversationID: conversationID,
		Address:        address,
		Typing:         typing,
		At:             s.now().UTC(),
	}}
	s.hub.PublishMany(s.participantAddresses(conversationID), address, ev)
	return nil
}

// MarkConversationRead marks every item in the conversation not yet read
// by the caller, returns how many were newly marked, and fans the receipt
// out to the other participants.
func (s *Service) MarkConversationRead(conversationID, address string) (int, error) {
	address = NormalizeAddress(address)
	if _, err := s.EnsureAccess(conversationID, address); err != nil {
		return 0, err
	}

	items, err := s.repo.ListConversationItems(conversationID, 0)
	if err != nil {
		return 0, fmt.Errorf("list conversation items: %w", err)
	}

	count := 0
	now := s.now().UTC()
	for _, it := range items {
		if it.ReadByContains(address) {
			continue
		}
		it.ReadBy = append(it.ReadBy, address)
		if it.ReadAt == nil {
			it.ReadAt = &now
		}
		it.UpdatedAt = now
		if err := s.repo.UpdateItem(it); err != nil {
			return count, fmt.Errorf("mark item read: %w", err)
		}
		count++
	}

	if count > 0 {
		s.audit(&models.AuditEntry{
			ActorAddress: address,
			Action:       "conversation.read",
			EntityType:   "conversation",
			EntityID:     conversationID,
			Meta:         map[string]any{"count": count},
		})
	}
	ev := fanout.Event{Type: EventRead, Payload: ReadEvent{
		ConversationID: conversationID,
		Address:        address,
		Count:          count,
		At:             now,
	}}
	s.hub.PublishMany(s.participantAddresses(conversationID), address, ev)
	logger.Debug("conversation_read", "conversation", conversationID, "address", address, "count", count)
	return count, nil
}
