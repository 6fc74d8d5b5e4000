package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"inboxd/pkg/inbox"
	"inboxd/pkg/utils"
)

// RegisterChat registers the typing/read-receipt signaling routes and the
// favorites self-chat provisioner.
func RegisterChat(r *mux.Router, svc *inbox.Service) {
	h := &chatHandlers{svc: svc}
	r.HandleFunc("/chat/typing", h.typing).Methods(http.MethodPost)
	r.HandleFunc("/chat/read", h.read).Methods(http.MethodPost)
	r.HandleFunc("/chat/self", h.self).Methods(http.MethodPost)
}

type chatHandlers struct {
	svc *inbox.Service
}

// typing handles POST /v1/chat/typing. The signal bypasses persistence
// and fans straight out to the other participants.
func (h *chatHandlers) typing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address        string `json:"address"`
		ConversationID string `json:"conversationId"`
		Typing         bool   `json:"typing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Address == "" || req.ConversationID == "" {
		utils.JSONError(w, http.StatusBadRequest, "address and conversationId required")
		return
	}
	if err := h.svc.Typing(req.ConversationID, req.Address, req.Typing); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"ok": true})
}

// read handles POST /v1/chat/read: marks everything the caller has not
// yet read and reports how many items were newly marked.
func (h *chatHandlers) read(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address        string `json:"address"`
		ConversationID string `json:"conversationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Address == "" || req.ConversationID == "" {
		utils.JSONError(w, http.StatusBadRequest, "address and conversationId required")
		return
	}
	count, err := h.svc.MarkConversationRead(req.ConversationID, req.Address)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"ok": true, "count": count})
}

// self handles POST /v1/chat/self: idempotent provisioning of the
// caller's favorites conversation.
func (h *chatHandlers) self(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenantId"`
		Address  string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	conv, err := h.svc.EnsureFavoritesConversation(req.TenantID, req.Address)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"conversation": conv})
}
