package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inboxd/pkg/inbox"
	"inboxd/pkg/models"
	"inboxd/pkg/security"
	"inboxd/pkg/store"
)

func newTestAPI(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc := inbox.NewService(inbox.Options{Repo: st})
	return st, Handler(Options{Service: svc, Stats: st, SecCfg: security.SecConfig{}})
}

func seedConversation(t *testing.T, st *store.Store, id string, addresses ...string) {
	t.Helper()
	now := time.Now().UTC()
	if err := st.CreateConversation(&models.Conversation{ID: id, TenantID: "default", Kind: models.KindOther, CreatedAt: now}); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	for _, a := range addresses {
		if err := st.PutParticipant(&models.Participant{ConversationID: id, Address: a, Role: models.RoleMember, JoinedAt: now}); err != nil {
			t.Fatalf("PutParticipant: %v", err)
		}
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestIngestAndList walks the primary flow over HTTP: create (201),
// dedupe replay (200), then a membership-gated list.
func TestIngestAndList(t *testing.T) {
	st, h := newTestAPI(t)
	seedConversation(t, st, "c1", "addr-a", "addr-b")

	body := `{"conversationId":"c1","address":"addr-a","channel":"chat","dedupeKey":"k1","content":{"key":"chat.message","args":{"text":"hello"}}}`
	rec := doJSON(t, h, http.MethodPost, "/v1/inbox", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first POST = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Item    *models.Item `json:"item"`
		Deduped bool         `json:"deduped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Deduped || created.Item.Status != models.StatusDelivered {
		t.Fatalf("unexpected create response: %+v", created)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/inbox", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay POST = %d, want 200", rec.Code)
	}
	var replay struct {
		Item    *models.Item `json:"item"`
		Deduped bool         `json:"deduped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &replay); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if !replay.Deduped || replay.Item.ID != created.Item.ID {
		t.Fatalf("replay not deduped: %+v", replay)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/inbox?conversationId=c1&address=addr-b", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d, body %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Items []*models.Item `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != created.Item.ID {
		t.Fatalf("list items = %+v", list.Items)
	}
}

func TestIngestBadRequests(t *testing.T) {
	_, h := newTestAPI(t)

	if rec := doJSON(t, h, http.MethodPost, "/v1/inbox", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json = %d", rec.Code)
	}
	// missing content.key fails validation
	rec := doJSON(t, h, http.MethodPost, "/v1/inbox", `{"address":"addr-a"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid payload = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "content.key") {
		t.Fatalf("validation body = %s", rec.Body.String())
	}
}

func TestListGuards(t *testing.T) {
	st, h := newTestAPI(t)
	seedConversation(t, st, "c1", "addr-a")

	if rec := doJSON(t, h, http.MethodGet, "/v1/inbox", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing scope = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/v1/inbox?conversationId=c1&address=addr-a&limit=nope", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodGet, "/v1/inbox?conversationId=c1&address=addr-x", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-member list = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "forbidden") {
		t.Fatalf("forbidden body = %s", rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodGet, "/v1/inbox?conversationId=missing&address=addr-a", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing conversation = %d", rec.Code)
	}
}

func TestChatRoutes(t *testing.T) {
	st, h := newTestAPI(t)
	seedConversation(t, st, "c1", "addr-a", "addr-b")

	body := `{"conversationId":"c1","address":"addr-b","channel":"chat","content":{"key":"chat.message","args":{"text":"hi"}}}`
	if rec := doJSON(t, h, http.MethodPost, "/v1/inbox", body); rec.Code != http.StatusCreated {
		t.Fatalf("seed POST = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/v1/chat/typing", `{"conversationId":"c1","address":"addr-a","typing":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("typing = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/chat/typing", `{"conversationId":"c1","address":"addr-x","typing":true}`); rec.Code != http.StatusForbidden {
		t.Fatalf("non-member typing = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/chat/read", `{"conversationId":"c1","address":"addr-a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("read = %d, body %s", rec.Code, rec.Body.String())
	}
	var read struct {
		OK    bool `json:"ok"`
		Count int  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &read); err != nil {
		t.Fatalf("decode read: %v", err)
	}
	if !read.OK || read.Count != 1 {
		t.Fatalf("read response = %+v", read)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/chat/self", `{"address":"addr-a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("self = %d, body %s", rec.Code, rec.Body.String())
	}
	var self struct {
		Conversation *models.Conversation `json:"conversation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &self); err != nil {
		t.Fatalf("decode self: %v", err)
	}
	if self.Conversation.Kind != models.KindFavorites {
		t.Fatalf("self conversation = %+v", self.Conversation)
	}
}

func TestOrderConversationRoute(t *testing.T) {
	_, h := newTestAPI(t)

	body := `{"orderId":"o1","makerAddress":"addr-maker","takerAddress":"addr-taker"}`
	rec := doJSON(t, h, http.MethodPost, "/v1/conversations/order", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("order = %d, body %s", rec.Code, rec.Body.String())
	}
	var first struct {
		Conversation *models.Conversation `json:"conversation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Conversation.Kind != models.KindOrder || first.Conversation.OrderID != "o1" {
		t.Fatalf("conversation = %+v", first.Conversation)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/conversations/order", body)
	var second struct {
		Conversation *models.Conversation `json:"conversation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if second.Conversation.ID != first.Conversation.ID {
		t.Fatalf("order provisioning not idempotent")
	}

	if rec := doJSON(t, h, http.MethodPost, "/v1/conversations/order", `{"takerAddress":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fields = %d", rec.Code)
	}
}

func TestStreamRequiresAddress(t *testing.T) {
	_, h := newTestAPI(t)
	if rec := doJSON(t, h, http.MethodGet, "/v1/stream", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("stream without address = %d", rec.Code)
	}
}

// TestStreamDelivers connects over a real server, waits for the ready
// event, then triggers an ingestion and reads the message event off the
// wire.
func TestStreamDelivers(t *testing.T) {
	st, h := newTestAPI(t)
	seedConversation(t, st, "c1", "addr-a", "addr-b")
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/stream?address=addr-b", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("stream read: %v", err)
			}
			if strings.HasPrefix(line, "event: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			}
		}
	}

	if ev := readEvent(); ev != "ready" {
		t.Fatalf("first event = %s, want ready", ev)
	}

	body := `{"conversationId":"c1","address":"addr-a","channel":"chat","content":{"key":"chat.message","args":{"text":"live"}}}`
	go func() {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/inbox", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	if ev := readEvent(); ev != "message" {
		t.Fatalf("second event = %s, want message", ev)
	}
}

// TestListEncryptionFailure verifies a tampered stored envelope surfaces
// as a 500 encryption_failed instead of serving the redacted stand-in.
func TestListEncryptionFailure(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc := inbox.NewService(inbox.Options{Repo: st, Box: security.NewBox("test-secret")})
	h := Handler(Options{Service: svc, Stats: st, SecCfg: security.SecConfig{}})
	seedConversation(t, st, "c1", "addr-a")

	body := `{"conversationId":"c1","address":"addr-a","channel":"chat","content":{"key":"chat.message","args":{"text":"secret"}}}`
	rec := doJSON(t, h, http.MethodPost, "/v1/inbox", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Item *models.Item `json:"item"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	stored, err := st.GetItem(created.Item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	stored.Encrypted.Data = "dGFtcGVyZWQ="
	if err := st.UpdateItem(stored); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/inbox?conversationId=c1&address=addr-a", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("list = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "encryption_failed") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAdminStats(t *testing.T) {
	st, h := newTestAPI(t)
	seedConversation(t, st, "c1", "addr-a")
	if rec := doJSON(t, h, http.MethodPost, "/v1/inbox", `{"conversationId":"c1","address":"addr-a","channel":"chat","content":{"key":"k"}}`); rec.Code != http.StatusCreated {
		t.Fatalf("seed POST = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/admin/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d", rec.Code)
	}
	var stats store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Items != 1 || stats.Conversations != 1 || stats.Threads != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestHealthAndPreflight(t *testing.T) {
	_, h := newTestAPI(t)

	if rec := doJSON(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodOptions, "/v1/inbox", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("missing CORS header: %v", rec.Header())
	}
}

func TestIPWhitelistBlocks(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc := inbox.NewService(inbox.Options{Repo: st})
	h := Handler(Options{Service: svc, Stats: st, SecCfg: security.SecConfig{IPWhitelist: []string{"10.0.0.0/8"}}})

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("blocked ip = %d", rec.Code)
	}

	// health probes bypass the whitelist
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz from blocked ip = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("whitelisted ip = %d", rec.Code)
	}
}
