package inbox

import (
	"sync"
	"time"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// memRepo is the in-memory Repository double used by pipeline tests. It
// honors the contract the pebble store provides: store.ErrNotFound for
// missing records and store.ErrConflict for dedupe/context uniqueness
// violations under its lock.
type memRepo struct {
	mu            sync.Mutex
	threads       map[string]*models.Thread
	threadsByCtx  map[string]string
	items         map[string]*models.Item
	itemsByDedupe map[string]string
	itemOrder     []string
	convs         map[string]*models.Conversation
	convsByOrder  map[string]string
	convsByFav    map[string]string
	parts         map[string]*models.Participant
	audits        []*models.AuditEntry
}

func newMemRepo() *memRepo {
	return &memRepo{
		threads:       map[string]*models.Thread{},
		threadsByCtx:  map[string]string{},
		items:         map[string]*models.Item{},
		itemsByDedupe: map[string]string{},
		convs:         map[string]*models.Conversation{},
		convsByOrder:  map[string]string{},
		convsByFav:    map[string]string{},
		parts:         map[string]*models.Participant{},
	}
}

func ctxKey(tenantID, conversationID, orderID string) string {
	return tenantID + "|" + conversationID + "|" + orderID
}

func copyThread(t *models.Thread) *models.Thread { c := *t; return &c }
func copyItem(i *models.Item) *models.Item {
	c := *i
	c.ReadBy = append([]string(nil), i.ReadBy...)
	return &c
}
func copyConv(c *models.Conversation) *models.Conversation { d := *c; return &d }

func (m *memRepo) GetThread(id string) (*models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[id]; ok {
		return copyThread(t), nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) FindThreadByContext(tenantID, conversationID, orderID string) (*models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.threadsByCtx[ctxKey(tenantID, conversationID, orderID)]; ok {
		return copyThread(m.threads[id]), nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) CreateThread(th *models.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ctxKey(th.TenantID, th.ConversationID, th.OrderID)
	if _, ok := m.threadsByCtx[key]; ok {
		return store.ErrConflict
	}
	m.threads[th.ID] = copyThread(th)
	m.threadsByCtx[key] = th.ID
	return nil
}

func (m *memRepo) UpdateThread(th *models.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[th.ID] = copyThread(th)
	return nil
}

func (m *memRepo) GetItem(id string) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok {
		return copyItem(it), nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) FindItemByDedupeKey(key string) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.itemsByDedupe[key]; ok {
		return copyItem(m.items[id]), nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) CreateItem(it *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it.DedupeKey != "" {
		if _, ok := m.itemsByDedupe[it.DedupeKey]; ok {
			return store.ErrConflict
		}
		m.itemsByDedupe[it.DedupeKey] = it.ID
	}
	m.items[it.ID] = copyItem(it)
	m.itemOrder = append(m.itemOrder, it.ID)
	return nil
}

func (m *memRepo) UpdateItem(it *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = copyItem(it)
	return nil
}

func (m *memRepo) listItems(match func(*models.Item) bool, limit int) []*models.Item {
	var out []*models.Item
	for _, id := range m.itemOrder {
		it := m.items[id]
		if !match(it) {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, copyItem(it))
	}
	return out
}

func (m *memRepo) ListThreadItems(threadID string, limit int) ([]*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listItems(func(it *models.Item) bool { return it.ThreadID == threadID }, limit), nil
}

func (m *memRepo) ListConversationItems(conversationID string, limit int) ([]*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listItems(func(it *models.Item) bool { return it.ConversationID == conversationID }, limit), nil
}

func (m *memRepo) GetConversation(id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[id]; ok {
		return copyConv(c), nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) FindConversationByOrder(orderID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.convsByOrder[orderID]; ok {
		return copyConv(m.convs[id]), nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) FindFavoritesConversation(tenantID, address string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.convsByFav[tenantID+"|"+address]; ok {
		return copyConv(m.convs[id]), nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) CreateConversation(c *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[c.ID] = copyConv(c)
	if c.OrderID != "" {
		m.convsByOrder[c.OrderID] = c.ID
	}
	if c.Kind == models.KindFavorites && c.OwnerAddress != "" {
		m.convsByFav[c.TenantID+"|"+c.OwnerAddress] = c.ID
	}
	return nil
}

func (m *memRepo) UpdateConversation(c *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[c.ID] = copyConv(c)
	return nil
}

func (m *memRepo) GetParticipant(conversationID, address string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.parts[conversationID+"|"+address]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) PutParticipant(p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.parts[p.ConversationID+"|"+p.Address] = &cp
	return nil
}

func (m *memRepo) ListParticipants(conversationID string) ([]*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Participant
	for _, p := range m.parts {
		if p.ConversationID == conversationID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) AppendAudit(e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.audits = append(m.audits, &cp)
	return nil
}

func (m *memRepo) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// addConversation seeds a conversation with member participants.
func (m *memRepo) addConversation(id string, addresses ...string) {
	now := time.Now().UTC()
	_ = m.CreateConversation(&models.Conversation{ID: id, TenantID: "default", Kind: models.KindOther, CreatedAt: now})
	for _, a := range addresses {
		_ = m.PutParticipant(&models.Participant{ConversationID: id, Address: a, Role: models.RoleMember, JoinedAt: now})
	}
}
