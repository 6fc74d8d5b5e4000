package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"inboxd/pkg/inbox"
	"inboxd/pkg/logger"
	"inboxd/pkg/utils"
)

// heartbeatInterval paces the idle comments that keep intermediaries from
// reaping quiet connections and let us detect dead peers.
const heartbeatInterval = 25 * time.Second

// RegisterStream registers the long-lived SSE subscription route.
func RegisterStream(r *mux.Router, svc *inbox.Service) {
	h := &streamHandlers{svc: svc}
	r.HandleFunc("/stream", h.subscribe).Methods(http.MethodGet)
}

type streamHandlers struct {
	svc *inbox.Service
}

// subscribe handles GET /v1/stream?address=. Emits named SSE events:
// ready once on connect, then message/typing/read as they are published
// to the address. A write failure tears the connection down immediately.
func (h *streamHandlers) subscribe(w http.ResponseWriter, r *http.Request) {
	address := inbox.NormalizeAddress(r.URL.Query().Get("address"))
	if address == "" {
		utils.JSONError(w, http.StatusBadRequest, "address required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.JSONError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.svc.Hub().Subscribe(address)
	defer sub.Close()

	if err := writeEvent(w, "ready", map[string]string{"address": address}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				logger.Debug("stream_heartbeat_failed", "address", address)
				return
			}
			flusher.Flush()
		case ev, open := <-sub.C:
			if !open {
				return
			}
			if err := writeEvent(w, ev.Type, ev.Payload); err != nil {
				logger.Debug("stream_write_failed", "address", address, "event", ev.Type)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
