package inbox

import (
	"errors"
	"fmt"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
	"inboxd/pkg/utils"
)

// EnsureFavoritesConversation returns the caller's "self chat", creating
// it with an owner participant on first use. Idempotent.
func (s *Service) EnsureFavoritesConversation(tenantID, address string) (*models.Conversation, error) {
	address = NormalizeAddress(address)
	if address == "" {
		return nil, &ValidationError{Err: errors.New("address is required")}
	}
	if tenantID == "" {
		tenantID = s.defaultTenant
	}

	conv, err := s.repo.FindFavoritesConversation(tenantID, address)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("favorites lookup: %w", err)
	}

	now := s.now().UTC()
	conv = &models.Conversation{
		ID:           utils.GenConversationID(),
		TenantID:     tenantID,
		Kind:         models.KindFavorites,
		OwnerAddress: address,
		CreatedAt:    now,
	}
	if err := s.repo.CreateConversation(conv); err != nil {
		return nil, fmt.Errorf("create favorites conversation: %w", err)
	}
	if err := s.repo.PutParticipant(&models.Participant{
		ConversationID: conv.ID,
		Address:        address,
		Role:           models.RoleOwner,
		JoinedAt:       now,
	}); err != nil {
		return nil, fmt.Errorf("add owner participant: %w", err)
	}
	s.audit(&models.AuditEntry{
		ActorAddress: address,
		Action:       "conversation.created",
		EntityType:   "conversation",
		EntityID:     conv.ID,
		TenantID:     tenantID,
		Meta:         map[string]any{"kind": conv.Kind},
	})
	logger.Info("favorites_conversation_created", "conversation", conv.ID, "address", address)
	return conv, nil
}

// EnsureOrderConversation provisions the chat attached to a marketplace
// order with maker/taker participants. Idempotent: an existing order
// conversation is returned with any newly known taker upserted. Creation
// ingests a system announcement through the pipeline with the trusted
// rate-limit bypass.
func (s *Service) EnsureOrderConversation(tenantID, orderID, makerAddress, takerAddress string) (*models.Conversation, error) {
	makerAddress = NormalizeAddress(makerAddress)
	takerAddress = NormalizeAddress(takerAddress)
	if orderID == "" || makerAddress == "" {
		return nil, &ValidationError{Err: errors.New("orderId and makerAddress are required")}
	}
	if tenantID == "" {
		tenantID = s.defaultTenant
	}

	now := s.now().UTC()
	conv, err := s.repo.FindConversationByOrder(orderID)
	switch {
	case err == nil:
		if takerAddress != "" {
			if _, perr := s.repo.GetParticipant(conv.ID, takerAddress); errors.Is(perr, store.ErrNotFound) {
				if err := s.repo.PutParticipant(&models.Participant{
					ConversationID: conv.ID,
					Address:        takerAddress,
					Role:           models.RoleTaker,
					JoinedAt:       now,
				}); err != nil {
					return nil, fmt.Errorf("add taker participant: %w", err)
				}
			}
		}
		return conv, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("order conversation lookup: %w", err)
	}

	conv = &models.Conversation{
		ID:        utils.GenConversationID(),
		TenantID:  tenantID,
		Kind:      models.KindOrder,
		OrderID:   orderID,
		CreatedAt: now,
	}
	if err := s.repo.CreateConversation(conv); err != nil {
		return nil, fmt.Errorf("create order conversation: %w", err)
	}
	if err := s.repo.PutParticipant(&models.Participant{
		ConversationID: conv.ID,
		Address:        makerAddress,
		Role:           models.RoleMaker,
		JoinedAt:       now,
	}); err != nil {
		return nil, fmt.Errorf("add maker participant: %w", err)
	}
	if takerAddress != "" {
		if err := s.repo.PutParticipant(&models.Participant{
			ConversationID: conv.ID,
			Address:        takerAddress,
			Role:           models.RoleTaker,
			JoinedAt:       now,
		}); err != nil {
			return nil, fmt.Errorf("add taker participant: %w", err)
		}
	}
	s.audit(&models.AuditEntry{
		ActorAddress: makerAddress,
		Action:       "conversation.created",
		EntityType:   "conversation",
		EntityID:     conv.ID,
		TenantID:     tenantID,
		Meta:         map[string]any{"kind": conv.Kind, "orderId": orderID},
	})

	// Announce the new chat through the normal pipeline; this internal
	// flow is the one legitimate user of the rate-limit bypass.
	if _, err := s.Ingest(models.Payload{
		TenantID:       tenantID,
		ConversationID: conv.ID,
		OrderID:        orderID,
		Address:        makerAddress,
		Type:           models.TypeSystem,
		Channel:        models.ChannelLog,
		Content:        models.Content{Key: "conversation.created", Args: map[string]any{"orderId": orderID}},
	}, IngestOptions{BypassRateLimit: true}); err != nil {
		logger.Warn("order_conversation_announce_failed", "conversation", conv.ID, "error", err)
	}
	logger.Info("order_conversation_created", "conversation", conv.ID, "order", orderID)
	return conv, nil
}
