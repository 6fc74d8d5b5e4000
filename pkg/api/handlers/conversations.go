package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"inboxd/pkg/inbox"
	"inboxd/pkg/utils"
)

// RegisterConversations registers the order-chat provisioning route.
func RegisterConversations(r *mux.Router, svc *inbox.Service) {
	h := &conversationHandlers{svc: svc}
	r.HandleFunc("/conversations/order", h.ensureOrder).Methods(http.MethodPost)
}

type conversationHandlers struct {
	svc *inbox.Service
}

// ensureOrder handles POST /v1/conversations/order: idempotent creation
// of the chat attached to a marketplace order.
func (h *conversationHandlers) ensureOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID     string `json:"tenantId"`
		OrderID      string `json:"orderId"`
		MakerAddress string `json:"makerAddress"`
		TakerAddress string `json:"takerAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	conv, err := h.svc.EnsureOrderConversation(req.TenantID, req.OrderID, req.MakerAddress, req.TakerAddress)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"conversation": conv})
}
