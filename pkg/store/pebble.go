// Package store is the pebble-backed repository for threads, items,
// conversations, participants and audit records. It is the single source
// of truth; the in-memory double used by pipeline tests lives with those
// tests, not here.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
)

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation (dedupe key or context
	// index already taken). Callers resolve it by re-fetching the winner.
	ErrConflict = errors.New("already exists")
)

// seq reduces key collisions when multiple writes share a nanosecond
// timestamp.
var seq uint64

// Store wraps an open pebble database. One Store per process; open it in
// main and inject it where a repository is needed.
type Store struct {
	db   *pebble.DB
	path string

	// createMu serializes check-then-create sequences so the dedupe key
	// and context-index uniqueness constraints hold under concurrency.
	createMu sync.Mutex
}

// Open opens (or creates) a pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

// Path returns the on-disk database directory.
func (s *Store) Path() string { return s.path }

// --- key layout ---

func threadKey(id string) []byte { return []byte("thread:" + id) }

func threadCtxKey(tenantID, conversationID, orderID string) []byte {
	return []byte("threadctx:" + tenantID + "|" + conversationID + "|" + orderID)
}

func itemKey(id string) []byte { return []byte("item:" + id) }

func dedupeKey(key string) []byte { return []byte("dedupe:" + key) }

func threadItemKey(threadID string, ts int64, n uint64) []byte {
	return []byte(fmt.Sprintf("thread:%s:item:%020d-%06d", threadID, ts, n))
}

func convItemKey(conversationID string, ts int64, n uint64) []byte {
	return []byte(fmt.Sprintf("conv:%s:item:%020d-%06d", conversationID, ts, n))
}

func convKey(id string) []byte { return []byte("conv:" + id) }

func convOrderKey(orderID string) []byte { return []byte("convorder:" + orderID) }

func convFavKey(tenantID, address string) []byte {
	return []byte("convfav:" + tenantID + "|" + address)
}

func participantKey(conversationID, address string) []byte {
	return []byte("conv:" + conversationID + ":part:" + address)
}

func auditKey(ts int64, n uint64) []byte {
	return []byte(fmt.Sprintf("audit:%020d-%06d", ts, n))
}

// prefixUpper returns the smallest key strictly greater than every key
// with the given prefix.
func prefixUpper(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

func (s *Store) get(key []byte, v any) error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, v)
}

func (s *Store) set(key []byte, v any, opts *pebble.WriteOptions) error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.db.Set(key, data, opts)
}

// --- threads ---

// GetThread returns the thread with the given id.
func (s *Store) GetThread(id string) (*models.Thread, error) {
	var th models.Thread
	if err := s.get(threadKey(id), &th); err != nil {
		return nil, err
	}
	return &th, nil
}

// FindThreadByContext looks up the thread for a (tenant, conversation,
// order) triple.
func (s *Store) FindThreadByContext(tenantID, conversationID, orderID string) (*models.Thread, error) {
	var id string
	if err := s.get(threadCtxKey(tenantID, conversationID, orderID), &id); err != nil {
		return nil, err
	}
	return s.GetThread(id)
}

// CreateThread persists a new thread and its context index entry. A
// concurrent creation of the same context loses with ErrConflict.
func (s *Store) CreateThread(th *models.Thread) error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	s.createMu.Lock()
	defer s.createMu.Unlock()

	ctxKey := threadCtxKey(th.TenantID, th.ConversationID, th.OrderID)
	if _, closer, err := s.db.Get(ctxKey); err == nil {
		closer.Close()
		return ErrConflict
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	b := s.db.NewBatch()
	data, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	idVal, _ := json.Marshal(th.ID)
	_ = b.Set(threadKey(th.ID), data, nil)
	_ = b.Set(ctxKey, idVal, nil)
	if err := s.db.Apply(b, pebble.Sync); err != nil {
		logger.Error("save_thread_failed", "thread", th.ID, "error", err)
		return err
	}
	logger.Info("thread_saved", "thread", th.ID, "tenant", th.TenantID)
	return nil
}

// UpdateThread rewrites thread metadata in place.
func (s *Store) UpdateThread(th *models.Thread) error {
	return s.set(threadKey(th.ID), th, pebble.Sync)
}

// --- items ---

// GetItem returns the item with the given id.
func (s *Store) GetItem(id string) (*models.Item, error) {
	var it models.Item
	if err := s.get(itemKey(id), &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// FindItemByDedupeKey returns the item registered under the dedupe key.
func (s *Store) FindItemByDedupeKey(key string) (*models.Item, error) {
	var id string
	if err := s.get(dedupeKey(key), &id); err != nil {
		return nil, err
	}
	return s.GetItem(id)
}

// CreateItem persists a new item, its dedupe registration and its
// thread/conversation ordering index entries in one batch. The dedupe key
// uniqueness constraint is enforced here: a concurrent duplicate creation
// fails with ErrConflict and the pipeline re-fetches the winner.
func (s *Store) CreateItem(it *models.Item) error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	s.createMu.Lock()
	defer s.createMu.Unlock()

	if it.DedupeKey != "" {
		if _, closer, err := s.db.Get(dedupeKey(it.DedupeKey)); err == nil {
			closer.Close()
			return ErrConflict
		} else if !errors.Is(err, pebble.ErrNotFound) {
			return err
		}
	}

	ts := it.CreatedAt.UTC().UnixNano()
	if ts == 0 {
		ts = time.Now().UTC().UnixNano()
	}
	n := atomic.AddUint64(&seq, 1)

	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	idVal, _ := json.Marshal(it.ID)

	b := s.db.NewBatch()
	_ = b.Set(itemKey(it.ID), data, nil)
	if it.DedupeKey != "" {
		_ = b.Set(dedupeKey(it.DedupeKey), idVal, nil)
	}
	_ = b.Set(threadItemKey(it.ThreadID, ts, n), idVal, nil)
	if it.ConversationID != "" {
		_ = b.Set(convItemKey(it.ConversationID, ts, n), idVal, nil)
	}
	if err := s.db.Apply(b, pebble.Sync); err != nil {
		logger.Error("save_item_failed", "thread", it.ThreadID, "item", it.ID, "error", err)
		return err
	}
	logger.Info("item_saved", "thread", it.ThreadID, "item", it.ID, "channel", it.Channel)
	return nil
}

// UpdateItem rewrites an item in place. Ordering index entries reference
// the item by id, so status mutations never touch them.
func (s *Store) UpdateItem(it *models.Item) error {
	return s.set(itemKey(it.ID), it, pebble.Sync)
}

// listItemsByIndex walks an ordering index prefix and re-reads each item
// so callers observe post-adapter mutations.
func (s *Store) listItemsByIndex(prefix []byte, limit int) ([]*models.Item, error) {
	if s.db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpper(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*models.Item
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var id string
		if err := json.Unmarshal(iter.Value(), &id); err != nil {
			continue
		}
		it, err := s.GetItem(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, it)
	}
	return out, iter.Error()
}

// ListThreadItems returns a thread's items in creation order.
func (s *Store) ListThreadItems(threadID string, limit int) ([]*models.Item, error) {
	return s.listItemsByIndex([]byte("thread:"+threadID+":item:"), limit)
}

// ListConversationItems returns a conversation's items in creation order.
func (s *Store) ListConversationItems(conversationID string, limit int) ([]*models.Item, error) {
	return s.listItemsByIndex([]byte("conv:"+conversationID+":item:"), limit)
}

// ScanItems walks every persisted item. Used by the retention sweep; not
// part of the pipeline repository contract.
func (s *Store) ScanItems(fn func(*models.Item) error) error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("item:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpper(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var it models.Item
		if err := json.Unmarshal(iter.Value(), &it); err != nil {
			continue
		}
		if err := fn(&it); err != nil {
			return err
		}
	}
	return iter.Error()
}

// --- conversations ---

// GetConversation returns the conversation with the given id.
func (s *Store) GetConversation(id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := s.get(convKey(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindConversationByOrder returns the conversation provisioned for an order.
func (s *Store) FindConversationByOrder(orderID string) (*models.Conversation, error) {
	var id string
	if err := s.get(convOrderKey(orderID), &id); err != nil {
		return nil, err
	}
	return s.GetConversation(id)
}

// FindFavoritesConversation returns the favorites self-chat owned by the
// address within a tenant.
func (s *Store) FindFavoritesConversation(tenantID, address string) (*models.Conversation, error) {
	var id string
	if err := s.get(convFavKey(tenantID, address), &id); err != nil {
		return nil, err
	}
	return s.GetConversation(id)
}

// CreateConversation persists a conversation plus its order/favorites
// lookup entries.
func (s *Store) CreateConversation(c *models.Conversation) error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	s.createMu.Lock()
	defer s.createMu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	idVal, _ := json.Marshal(c.ID)
	b := s.db.NewBatch()
	_ = b.Set(convKey(c.ID), data, nil)
	if c.OrderID != "" {
		_ = b.Set(convOrderKey(c.OrderID), idVal, nil)
	}
	if c.Kind == models.KindFavorites && c.OwnerAddress != "" {
		_ = b.Set(convFavKey(c.TenantID, c.OwnerAddress), idVal, nil)
	}
	if err := s.db.Apply(b, pebble.Sync); err != nil {
		logger.Error("save_conversation_failed", "conversation", c.ID, "error", err)
		return err
	}
	logger.Info("conversation_saved", "conversation", c.ID, "kind", c.Kind)
	return nil
}

// UpdateConversation rewrites conversation metadata in place.
func (s *Store) UpdateConversation(c *models.Conversation) error {
	return s.set(convKey(c.ID), c, pebble.Sync)
}

// GetParticipant returns the participant record for (conversation, address).
func (s *Store) GetParticipant(conversationID, address string) (*models.Participant, error) {
	var p models.Participant
	if err := s.get(participantKey(conversationID, address), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutParticipant upserts a participant record.
func (s *Store) PutParticipant(p *models.Participant) error {
	return s.set(participantKey(p.ConversationID, p.Address), p, pebble.Sync)
}

// ListParticipants returns every participant of a conversation.
func (s *Store) ListParticipants(conversationID string) ([]*models.Participant, error) {
	if s.db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("conv:" + conversationID + ":part:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpper(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []*models.Participant
	for iter.First(); iter.Valid(); iter.Next() {
		var p models.Participant
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			continue
		}
		out = append(out, &p)
	}
	return out, iter.Error()
}

// --- audit ---

// AppendAudit appends an audit record. Writes are unsynced: the audit
// trail is best-effort and must never slow the pipeline.
func (s *Store) AppendAudit(e *models.AuditEntry) error {
	ts := e.At.UTC().UnixNano()
	if ts == 0 {
		ts = time.Now().UTC().UnixNano()
	}
	n := atomic.AddUint64(&seq, 1)
	return s.set(auditKey(ts, n), e, pebble.NoSync)
}

// --- stats ---

// Stats holds record counts for the admin surface.
type Stats struct {
	Threads       int `json:"threads"`
	Items         int `json:"items"`
	Conversations int `json:"conversations"`
}

// CountStats walks the metadata keyspaces and counts records.
func (s *Store) CountStats() (Stats, error) {
	var st Stats
	if s.db == nil {
		return st, fmt.Errorf("pebble not opened; call store.Open first")
	}
	// Record keys are "<prefix><id>"; index entries under the same prefix
	// carry further ':'-separated segments and are skipped.
	count := func(prefix string) (int, error) {
		p := []byte(prefix)
		iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: p, UpperBound: prefixUpper(p)})
		if err != nil {
			return 0, err
		}
		defer iter.Close()
		n := 0
		for iter.First(); iter.Valid(); iter.Next() {
			if strings.Contains(string(iter.Key())[len(prefix):], ":") {
				continue
			}
			n++
		}
		return n, iter.Error()
	}
	var err error
	if st.Threads, err = count("thread:"); err != nil {
		return st, err
	}
	if st.Items, err = count("item:"); err != nil {
		return st, err
	}
	if st.Conversations, err = count("conv:"); err != nil {
		return st, err
	}
	return st, nil
}
