package inbox

import (
	"fmt"
	"time"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/telemetry"
)

// Delivery schedules for the asynchronous channels. Transport is out of
// scope; this core only records when the next attempt is due.
const (
	emailRetryDelay = 5 * time.Minute
	pushRetryDelay  = time.Minute
)

type adapterFunc func(s *Service, it *models.Item) error

// adapters is the closed dispatch table. Add a channel only by extending
// models.Channels and this table together.
var adapters = map[models.Channel]adapterFunc{
	models.ChannelChat:  adaptChat,
	models.ChannelToast: adaptSynchronous,
	models.ChannelLog:   adaptLog,
	models.ChannelEmail: scheduleRetry(emailRetryDelay),
	models.ChannelPush:  scheduleRetry(pushRetryDelay),
}

// dispatch runs the matching channel adapter, observing latency and
// outcome. Adapter failure surfaces as AdapterError; the persisted item is
// not rolled back.
func (s *Service) dispatch(it *models.Item) error {
	fn, ok := adapters[it.Channel]
	if !ok {
		return &AdapterError{Channel: it.Channel, Err: fmt.Errorf("no adapter registered")}
	}
	start := s.now()
	err := fn(s, it)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.ObserveDispatch(string(it.Channel), outcome, s.now().Sub(start))
	if err != nil {
		logger.Error("adapter_dispatch_failed", "channel", it.Channel, "item", it.ID, "error", err)
		return &AdapterError{Channel: it.Channel, Err: err}
	}
	return nil
}

// markDelivered transitions the item to delivered now, if not already.
func (s *Service) markDelivered(it *models.Item) error {
	if it.Status == models.StatusDelivered {
		return nil
	}
	now := s.now().UTC()
	it.Status = models.StatusDelivered
	it.DeliveredAt = &now
	it.UpdatedAt = now
	return s.repo.UpdateItem(it)
}

// adaptChat delivers immediately and bumps the conversation's
// last-activity timestamp. The bump is best-effort; its failure never
// fails the ingestion.
func adaptChat(s *Service, it *models.Item) error {
	if err := s.markDelivered(it); err != nil {
		return err
	}
	if it.ConversationID == "" {
		return nil
	}
	conv, err := s.repo.GetConversation(it.ConversationID)
	if err != nil {
		logger.Debug("conversation_bump_skipped", "conversation", it.ConversationID, "error", err)
		return nil
	}
	now := s.now().UTC()
	conv.LastMessageAt = &now
	if err := s.repo.UpdateConversation(conv); err != nil {
		logger.Warn("conversation_bump_failed", "conversation", conv.ID, "error", err)
	}
	return nil
}

// adaptSynchronous delivers immediately with no side effect (toast).
func adaptSynchronous(s *Service, it *models.Item) error {
	return s.markDelivered(it)
}

// adaptLog delivers immediately and emits a structured diagnostic. Only
// tags and classification reach the log line, never raw text.
func adaptLog(s *Service, it *models.Item) error {
	logger.Info("log_channel_item",
		"item", it.ID,
		"thread", it.ThreadID,
		"importance", it.Importance,
		"pii_class", it.PiiClass,
		"classification", it.Classification,
		"content_key", it.Content.Key)
	return s.markDelivered(it)
}

// scheduleRetry leaves the item pending with a future attempt time.
func scheduleRetry(delay time.Duration) adapterFunc {
	return func(s *Service, it *models.Item) error {
		if it.NextAttemptAt != nil {
			return nil
		}
		next := s.now().UTC().Add(delay)
		it.NextAttemptAt = &next
		it.UpdatedAt = s.now().UTC()
		return s.repo.UpdateItem(it)
	}
}
