package inbox

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/pii"
	"inboxd/pkg/ratelimit"
	"inboxd/pkg/store"
	"inboxd/pkg/utils"
	"inboxd/pkg/validation"
)

// IngestOptions tunes a single ingestion call. BypassRateLimit is reserved
// for trusted internal flows such as order-chat auto-provisioning.
type IngestOptions struct {
	BypassRateLimit bool
}

// IngestResult is the pipeline outcome: the persisted item (re-read after
// adapter mutation), its thread, and whether the call hit an existing
// dedupe key.
type IngestResult struct {
	Item    *models.Item
	Thread  *models.Thread
	Deduped bool
}

// Ingest runs the full pipeline on a raw payload. Each step is a potential
// hard stop; once the dedupe check passes the pipeline runs to completion
// or fails with a recorded error — there is no mid-pipeline cancellation.
func (s *Service) Ingest(p models.Payload, opts IngestOptions) (*IngestResult, error) {
	validation.ApplyDefaults(&p)
	if err := validation.ValidatePayload(&p); err != nil {
		return nil, &ValidationError{Err: err}
	}

	if p.TenantID == "" {
		p.TenantID = s.defaultTenant
	}
	p.Address = NormalizeAddress(p.Address)

	cls := pii.Classify(p.Content.Args, p.PiiClass)

	if !opts.BypassRateLimit {
		key := ratelimit.Key(p.TenantID, p.Channel, p.Address, p.UserID, p.ThreadID)
		if res := s.limits.Consume(p.Channel, key, 1); !res.Allowed {
			logger.Warn("ingest_rate_limited", "tenant", p.TenantID, "channel", p.Channel, "retry_after", res.RetryAfter)
			return nil, &RateLimitedError{RetryAfter: res.RetryAfter}
		}
	}

	thread, err := s.resolveThread(&p)
	if err != nil {
		return nil, err
	}

	key := p.DedupeKey
	if key == "" {
		key = DeriveDedupeKey(p.Content, p.Meta, thread.ID)
	}

	if existing, err := s.repo.FindItemByDedupeKey(key); err == nil {
		logger.Debug("ingest_deduped", "item", existing.ID, "dedupe_key", key)
		return &IngestResult{Item: existing, Thread: thread, Deduped: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("dedupe lookup: %w", err)
	}

	stored := p.Content
	env, err := s.box.Wrap(p.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	if env != nil {
		// Content is never stored in clear alongside an active key.
		stored = redactSummary(p.Content)
	}

	now := s.now().UTC()
	item := &models.Item{
		ID:             utils.GenItemID(),
		TenantID:       p.TenantID,
		ThreadID:       thread.ID,
		ConversationID: firstNonEmpty(p.ConversationID, thread.ConversationID),
		OrderID:        firstNonEmpty(p.OrderID, thread.OrderID),
		UserID:         p.UserID,
		Address:        p.Address,
		Type:           p.Type,
		Importance:     p.Importance,
		Channel:        p.Channel,
		Lang:           p.Lang,
		Content:        stored,
		Encrypted:      env,
		Meta:           p.Meta,
		Classification: cls.Tags,
		PiiClass:       cls.Level,
		Status:         models.StatusPending,
		DedupeKey:      key,
		NextAttemptAt:  p.NextAttemptAt,
		ExpiresAt:      p.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateItem(item); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost the dedupe race; the winner is the item.
			winner, ferr := s.repo.FindItemByDedupeKey(key)
			if ferr != nil {
				return nil, fmt.Errorf("dedupe refetch: %w", ferr)
			}
			logger.Debug("ingest_dedupe_race_resolved", "item", winner.ID, "dedupe_key", key)
			return &IngestResult{Item: winner, Thread: thread, Deduped: true}, nil
		}
		return nil, fmt.Errorf("persist item: %w", err)
	}

	s.audit(&models.AuditEntry{
		ActorAddress: p.Address,
		ActorUserID:  p.UserID,
		Action:       "item.ingested",
		EntityType:   "item",
		EntityID:     item.ID,
		TenantID:     item.TenantID,
		Meta: map[string]any{
			"channel":        item.Channel,
			"importance":     item.Importance,
			"threadId":       item.ThreadID,
			"piiClass":       item.PiiClass,
			"classification": item.Classification,
		},
	})

	if err := s.dispatch(item); err != nil {
		// Already-committed persistence is not rolled back.
		return nil, err
	}

	final, err := s.repo.GetItem(item.ID)
	if err != nil {
		return nil, fmt.Errorf("reload item: %w", err)
	}

	s.publishMessage(final)
	logger.Info("item_ingested", "item", final.ID, "thread", final.ThreadID, "channel", final.Channel, "status", final.Status)
	return &IngestResult{Item: final, Thread: thread, Deduped: false}, nil
}

// resolveThread maps the payload to a thread: explicit existing id first,
// then the (tenant, conversation, order) context, else lazy creation.
func (s *Service) resolveThread(p *models.Payload) (*models.Thread, error) {
	if p.ThreadID != "" {
		th, err := s.repo.GetThread(p.ThreadID)
		if err == nil {
			return th, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("thread lookup: %w", err)
		}
	}

	th, err := s.repo.FindThreadByContext(p.TenantID, p.ConversationID, p.OrderID)
	if err == nil {
		return th, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("thread context lookup: %w", err)
	}

	now := s.now().UTC()
	th = &models.Thread{
		ID:             utils.GenThreadID(),
		TenantID:       p.TenantID,
		ConversationID: p.ConversationID,
		OrderID:        p.OrderID,
		Meta:           p.Meta,
		DedupeHint:     p.DedupeKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateThread(th); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return s.repo.FindThreadByContext(p.TenantID, p.ConversationID, p.OrderID)
		}
		return nil, fmt.Errorf("create thread: %w", err)
	}
	logger.Info("thread_created", "thread", th.ID, "tenant", th.TenantID, "conversation", th.ConversationID)
	return th, nil
}

// DeriveDedupeKey computes the deterministic fallback dedupe key: a hash
// of content and metadata bound to the thread, so identical content
// re-sent to the same thread is the same logical message.
func DeriveDedupeKey(content models.Content, meta map[string]any, threadID string) string {
	blob, _ := json.Marshal(struct {
		Content models.Content `json:"content"`
		Meta    map[string]any `json:"meta,omitempty"`
	}{Content: content, Meta: meta})
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]) + ":" + threadID
}

// redactSummary produces the plaintext stand-in persisted next to an
// encrypted envelope: strings become a marker, arrays reduce to their
// length, nested objects to a marker.
func redactSummary(c models.Content) models.Content {
	out := models.Content{Key: c.Key}
	if c.Args == nil {
		return out
	}
	out.Args = make(map[string]any, len(c.Args))
	for k, v := range c.Args {
		switch t := v.(type) {
		case string:
			out.Args[k] = "[redacted]"
		case []any:
			out.Args[k] = len(t)
		case map[string]any:
			out.Args[k] = "[object]"
		default:
			out.Args[k] = v
		}
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
