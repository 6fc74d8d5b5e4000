package inbox

import (
	"errors"
	"fmt"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// EnsureAccess gates read access to a conversation's history: the caller
// must hold a participant record for (conversation, normalized address).
// A missing conversation is ErrNotFound; a present conversation without a
// matching participant is ErrForbidden.
func (s *Service) EnsureAccess(conversationID, address string) (*models.Participant, error) {
	address = NormalizeAddress(address)
	if conversationID == "" || address == "" {
		return nil, ErrForbidden
	}
	if _, err := s.repo.GetConversation(conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversation lookup: %w", err)
	}
	p, err := s.repo.GetParticipant(conversationID, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("participant lookup: %w", err)
	}
	return p, nil
}
