// Package fanout delivers real-time events to connected stream clients.
// The hub indexes subscribers by recipient address; publishing is
// non-blocking and drops events for slow consumers rather than stalling
// the pipeline.
package fanout

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"inboxd/pkg/logger"
)

// Event is one unit of real-time delivery. Type maps to the SSE event
// name; Payload is serialized as the data line.
type Event struct {
	Type    string
	Payload any
}

// Subscriber is one connected stream client. Events arrive on C; the hub
// closes C when the subscriber is removed.
type Subscriber struct {
	Address string
	C       chan Event

	hub  *Hub
	once sync.Once
}

// Close detaches the subscriber from the hub and closes its channel.
func (s *Subscriber) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub fans events out to subscribers keyed by address. Multiple
// subscribers per address are supported (one user, several tabs).
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscriber]struct{}
	buffer int

	connections prometheus.Gauge
	published   prometheus.Counter
	dropped     prometheus.Counter
}

// NewHub builds a hub whose subscriber channels hold up to buffer
// undelivered events each.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inboxd_stream_connections",
			Help: "Currently connected stream subscribers.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxd_stream_events_published_total",
			Help: "Events handed to stream subscribers.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxd_stream_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.",
		}),
	}
}

// RegisterMetrics attaches the hub's counters to a prometheus registry.
func (h *Hub) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(h.connections, h.published, h.dropped)
}

// Subscribe registers a stream client for the given address.
func (h *Hub) Subscribe(address string) *Subscriber {
	s := &Subscriber{Address: address, C: make(chan Event, h.buffer), hub: h}
	h.mu.Lock()
	set, ok := h.subs[address]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[address] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	h.connections.Inc()
	logger.Debug("stream_subscribed", "address", address)
	return s
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[s.Address]; ok {
		if _, present := set[s]; present {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.Address)
			}
			close(s.C)
			h.connections.Dec()
		}
	}
	h.mu.Unlock()
	logger.Debug("stream_unsubscribed", "address", s.Address)
}

// Publish sends an event to every subscriber of the given address.
// Sends never block: a full buffer means the event is dropped for that
// subscriber and counted.
func (h *Hub) Publish(address string, ev Event) {
	h.mu.RLock()
	set := h.subs[address]
	for s := range set {
		select {
		case s.C <- ev:
			h.published.Inc()
		default:
			h.dropped.Inc()
		}
	}
	h.mu.RUnlock()
}

// PublishMany publishes the event to several addresses, skipping any
// address listed in exclude.
func (h *Hub) PublishMany(addresses []string, exclude string, ev Event) {
	for _, a := range addresses {
		if a == "" || a == exclude {
			continue
		}
		h.Publish(a, ev)
	}
}

// Close detaches every subscriber and closes their channels. Used during
// shutdown so stream handlers unblock and return.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for address, set := range h.subs {
		for s := range set {
			close(s.C)
			h.connections.Dec()
		}
		delete(h.subs, address)
	}
}

// Connected reports how many subscribers are registered for an address.
func (h *Hub) Connected(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[address])
}
