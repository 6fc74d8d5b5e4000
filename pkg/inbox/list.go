package inbox

import (
	"errors"
	"fmt"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

const (
	// DefaultListLimit and MaxListLimit bound history reads.
	DefaultListLimit = 100
	MaxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Present returns a caller-facing copy of an item with its content
// unwrapped when the configured key decrypts it. A corrupt or tampered
// envelope is a hard error, never a silent fallback to the redacted
// stand-in; structurally non-envelope values pass through unchanged.
func (s *Service) Present(it *models.Item) (*models.Item, error) {
	out := *it
	content, ok, err := s.box.Unwrap(it.Encrypted)
	if err != nil {
		logger.Error("item_unwrap_failed", "item", it.ID, "error", err)
		return nil, fmt.Errorf("unwrap item %s: %w", it.ID, err)
	}
	if ok {
		out.Content = content
		out.Encrypted = nil
	}
	return &out, nil
}

func (s *Service) presentAll(items []*models.Item) ([]*models.Item, error) {
	out := make([]*models.Item, len(items))
	for i, it := range items {
		p, err := s.Present(it)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// ListThread returns a thread's items in creation order. When the thread
// is linked to a conversation, the caller must be one of its participants.
func (s *Service) ListThread(threadID, address string, limit int) ([]*models.Item, error) {
	th, err := s.repo.GetThread(threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("thread lookup: %w", err)
	}
	if th.ConversationID != "" {
		if _, err := s.EnsureAccess(th.ConversationID, address); err != nil {
			return nil, err
		}
	}
	items, err := s.repo.ListThreadItems(threadID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list thread items: %w", err)
	}
	return s.presentAll(items)
}

// ListConversation returns a conversation's items in creation order,
// gated by participant membership.
func (s *Service) ListConversation(conversationID, address string, limit int) ([]*models.Item, error) {
	if _, err := s.EnsureAccess(conversationID, address); err != nil {
		return nil, err
	}
	items, err := s.repo.ListConversationItems(conversationID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list conversation items: %w", err)
	}
	return s.presentAll(items)
}
