package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"inboxd/pkg/inbox"
	"inboxd/pkg/models"
	"inboxd/pkg/utils"
)

// RegisterInbox registers the ingestion and listing routes.
func RegisterInbox(r *mux.Router, svc *inbox.Service) {
	h := &inboxHandlers{svc: svc}
	r.HandleFunc("/inbox", h.ingest).Methods(http.MethodPost)
	r.HandleFunc("/inbox", h.list).Methods(http.MethodGet)
}

type inboxHandlers struct {
	svc *inbox.Service
}

type ingestResponse struct {
	Item    *models.Item   `json:"item"`
	Thread  *models.Thread `json:"thread"`
	Deduped bool           `json:"deduped"`
}

// ingest handles POST /v1/inbox. 201 on a new item, 200 when the dedupe
// key matched an existing one.
func (h *inboxHandlers) ingest(w http.ResponseWriter, r *http.Request) {
	var p models.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	res, err := h.svc.Ingest(p, inbox.IngestOptions{})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	shown, err := h.svc.Present(res.Item)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Deduped {
		status = http.StatusOK
	}
	_ = utils.JSONWrite(w, status, ingestResponse{
		Item:    shown,
		Thread:  res.Thread,
		Deduped: res.Deduped,
	})
}

// list handles GET /v1/inbox?threadId=|conversationId=&address=&limit=.
// Conversation-scoped reads are gated by participant membership.
func (h *inboxHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if ls := q.Get("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	address := q.Get("address")

	var items []*models.Item
	var err error
	switch {
	case q.Get("threadId") != "":
		items, err = h.svc.ListThread(q.Get("threadId"), address, limit)
	case q.Get("conversationId") != "":
		items, err = h.svc.ListConversation(q.Get("conversationId"), address, limit)
	default:
		utils.JSONError(w, http.StatusBadRequest, "threadId or conversationId required")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"items": items})
}
