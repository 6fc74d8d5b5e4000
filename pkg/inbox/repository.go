package inbox

import "inboxd/pkg/models"

// Repository is the persistence contract the pipeline depends on. The
// pebble store in pkg/store is the sole production implementation; tests
// inject an in-memory double. Implementations must report missing records
// with store.ErrNotFound and dedupe/uniqueness races with store.ErrConflict.
type Repository interface {
	GetThread(id string) (*models.Thread, error)
	FindThreadByContext(tenantID, conversationID, orderID string) (*models.Thread, error)
	CreateThread(th *models.Thread) error
	UpdateThread(th *models.Thread) error

	GetItem(id string) (*models.Item, error)
	FindItemByDedupeKey(key string) (*models.Item, error)
	CreateItem(it *models.Item) error
	UpdateItem(it *models.Item) error
	ListThreadItems(threadID string, limit int) ([]*models.Item, error)
	ListConversationItems(conversationID string, limit int) ([]*models.Item, error)

	GetConversation(id string) (*models.Conversation, error)
	FindConversationByOrder(orderID string) (*models.Conversation, error)
	FindFavoritesConversation(tenantID, address string) (*models.Conversation, error)
	CreateConversation(c *models.Conversation) error
	UpdateConversation(c *models.Conversation) error
	GetParticipant(conversationID, address string) (*models.Participant, error)
	PutParticipant(p *models.Participant) error
	ListParticipants(conversationID string) ([]*models.Participant, error)

	AppendAudit(e *models.AuditEntry) error
}
