package ratelimit

import (
	"strings"
	"time"

	"inboxd/pkg/models"
)

// Table holds one limiter per delivery channel. Unknown channels fall back
// to the chat limiter.
type Table struct {
	byChannel map[models.Channel]*Limiter
	fallback  *Limiter
}

// Bucket is a (capacity, window) pair used to build channel limiters from
// config.
type Bucket struct {
	Capacity int
	Window   time.Duration
}

// DefaultBuckets are the stock per-channel admission limits.
var DefaultBuckets = map[models.Channel]Bucket{
	models.ChannelChat:  {Capacity: 20, Window: time.Minute},
	models.ChannelToast: {Capacity: 120, Window: time.Minute},
	models.ChannelEmail: {Capacity: 20, Window: time.Minute},
	models.ChannelPush:  {Capacity: 60, Window: time.Minute},
	models.ChannelLog:   {Capacity: 240, Window: time.Minute},
}

// NewTable builds a limiter table from the defaults, with any entries in
// overrides replacing the stock buckets.
func NewTable(overrides map[models.Channel]Bucket) *Table {
	t := &Table{byChannel: make(map[models.Channel]*Limiter, len(DefaultBuckets))}
	for ch, b := range DefaultBuckets {
		if o, ok := overrides[ch]; ok && o.Capacity > 0 && o.Window > 0 {
			b = o
		}
		t.byChannel[ch] = NewLimiter(b.Capacity, b.Window)
	}
	t.fallback = t.byChannel[models.ChannelChat]
	return t
}

// Limiter returns the limiter for the given channel, falling back to the
// chat limiter for unknown channels.
func (t *Table) Limiter(ch models.Channel) *Limiter {
	if l, ok := t.byChannel[ch]; ok {
		return l
	}
	return t.fallback
}

// Consume runs the channel's limiter against the composite key.
func (t *Table) Consume(ch models.Channel, key string, cost int) Result {
	return t.Limiter(ch).Consume(key, cost)
}

// Key composes the admission key: tenant + channel + the strongest
// available identity (address, then user id, then thread id), with
// "anonymous" as the last resort.
func Key(tenantID string, ch models.Channel, address, userID, threadID string) string {
	identity := address
	if identity == "" {
		identity = userID
	}
	if identity == "" {
		identity = threadID
	}
	if identity == "" {
		identity = "anonymous"
	}
	return strings.Join([]string{tenantID, string(ch), identity}, ":")
}
