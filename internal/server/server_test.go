package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"stemchat/internal/agent"
	"stemchat/internal/auth"
	"stemchat/internal/chat"
	"stemchat/internal/config"
	"stemchat/internal/domain"
	"stemchat/internal/store"
)

type staticRouter struct{}

func (staticRouter) RouteMessage(ctx context.Context, text string, rctx domain.RouteContext, s agent.Store) domain.RouteResult {
	return domain.RouteResult{AgentUsed: "InventoryAgent", Confidence: 0.9, Response: "stub reply", Success: true}
}

type staticRegistry struct{}

func (staticRegistry) AgentInfos() []domain.AgentInfo {
	return []domain.AgentInfo{{Name: "InventoryAgent", Description: "stock"}}
}

type fixture struct {
	srv  *Server
	mux  http.Handler
	chat *chat.Service
	st   *store.Store
}

func newServerFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := NewHub(logger)
	chatSvc := chat.NewService(st, staticRouter{}, hub, logger)
	t.Cleanup(chatSvc.Close)
	tokens := auth.NewTokenService("test-secret", 30)
	srv := New(config.ServerConfig{}, st, chatSvc, tokens, staticRegistry{}, hub, logger)
	return &fixture{srv: srv, mux: srv.routes(), chat: chatSvc, st: st}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func (f *fixture) signup(t *testing.T, username, password string) string {
	t.Helper()
	w := f.do(t, "POST", "/api/signup", "", map[string]string{"username": username, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("signup status %d: %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["token"].(string)
	if token == "" {
		t.Fatal("signup returned no token")
	}
	return token
}

func TestSignupValidation(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, "POST", "/api/signup", "", map[string]string{"username": "ab", "password": "longenough"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short username status %d", w.Code)
	}
	if got := decode(t, w)["detail"]; got != "Username must be at least 3 characters long" {
		t.Fatalf("detail = %q", got)
	}

	w = f.do(t, "POST", "/api/signup", "", map[string]string{"username": "alice", "password": "short"})
	if got := decode(t, w)["detail"]; got != "Password must be at least 6 characters long" {
		t.Fatalf("detail = %q", got)
	}

	f.signup(t, "alice", "password123")
	w = f.do(t, "POST", "/api/signup", "", map[string]string{"username": "alice", "password": "password123"})
	if got := decode(t, w)["detail"]; got != "Username already taken" {
		t.Fatalf("detail = %q", got)
	}
}

func TestLoginFlow(t *testing.T) {
	f := newServerFixture(t)
	f.signup(t, "alice", "password123")

	w := f.do(t, "POST", "/api/login", "", map[string]string{"username": "alice", "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	if decode(t, w)["token"] == "" {
		t.Fatal("login returned no token")
	}

	w = f.do(t, "POST", "/api/login", "", map[string]string{"username": "alice", "password": "wrongpass"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status %d", w.Code)
	}
	if got := decode(t, w)["detail"]; got != "Incorrect password. Please try again" {
		t.Fatalf("detail = %q", got)
	}

	w = f.do(t, "POST", "/api/login", "", map[string]string{"username": "ghost", "password": "password123"})
	if got := decode(t, w)["detail"]; got != "User does not exist. Please sign up first" {
		t.Fatalf("detail = %q", got)
	}

	w = f.do(t, "POST", "/api/login", "", map[string]string{"username": "", "password": ""})
	if got := decode(t, w)["detail"]; got != "Please enter your username and password as both are compulsory" {
		t.Fatalf("detail = %q", got)
	}
}

func TestMessagesRequireAuth(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, "GET", "/api/messages", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status %d", w.Code)
	}
	w = f.do(t, "POST", "/api/messages", "garbage-token", map[string]string{"content": "hi"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", w.Code)
	}
}

func TestMessageLifecycle(t *testing.T) {
	f := newServerFixture(t)
	token := f.signup(t, "alice", "password123")

	w := f.do(t, "POST", "/api/messages", token, map[string]string{"content": "hello room"})
	if w.Code != http.StatusOK {
		t.Fatalf("post status %d: %s", w.Code, w.Body.String())
	}
	id := int64(decode(t, w)["id"].(float64))

	w = f.do(t, "GET", "/api/messages", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status %d", w.Code)
	}
	msgs := decode(t, w)["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	first := msgs[0].(map[string]any)
	if first["content"] != "hello room" || first["username"] != "alice" || first["is_bot"] != false {
		t.Fatalf("message = %+v", first)
	}

	w = f.do(t, "PUT", "/api/messages/"+strconv.FormatInt(id, 10), token, map[string]string{"content": "edited"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit status %d: %s", w.Code, w.Body.String())
	}

	// Another user cannot touch it.
	other := f.signup(t, "bob", "password123")
	w = f.do(t, "DELETE", "/api/messages/"+strconv.FormatInt(id, 10), other, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status %d", w.Code)
	}

	w = f.do(t, "DELETE", "/api/messages/"+strconv.FormatInt(id, 10), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, "DELETE", "/api/messages/"+strconv.FormatInt(id, 10), token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("double delete status %d", w.Code)
	}
}

func TestTriggeredMessageGetsBotReply(t *testing.T) {
	f := newServerFixture(t)
	token := f.signup(t, "alice", "password123")

	w := f.do(t, "POST", "/api/messages", token, map[string]string{"content": "# pencils?"})
	if w.Code != http.StatusOK {
		t.Fatalf("post status %d", w.Code)
	}
	f.chat.Wait()

	w = f.do(t, "GET", "/api/messages", token, nil)
	msgs := decode(t, w)["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user message plus reply", len(msgs))
	}
	bot := msgs[1].(map[string]any)
	if bot["is_bot"] != true || bot["content"] != "stub reply" || bot["username"] != domain.BotName {
		t.Fatalf("bot message = %+v", bot)
	}
}

func TestInventoryEndpoints(t *testing.T) {
	f := newServerFixture(t)
	token := f.signup(t, "alice", "password123")

	w := f.do(t, "POST", "/api/inventory", token, map[string]any{
		"name": "Markers", "category": "Stationery", "quantity": 8.0, "unit": "boxes", "min_quantity": 15.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add item status %d: %s", w.Code, w.Body.String())
	}
	itemID := int64(decode(t, w)["item_id"].(float64))

	w = f.do(t, "GET", "/api/inventory", "", nil)
	items := decode(t, w)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("got %d items", len(items))
	}
	item := items[0].(map[string]any)
	if item["is_low_stock"] != true {
		t.Fatalf("markers at 8/15 should be low: %+v", item)
	}

	w = f.do(t, "GET", "/api/inventory/low-stock", "", nil)
	low := decode(t, w)["low_stock_items"].([]any)
	if len(low) != 1 {
		t.Fatalf("low stock items = %d", len(low))
	}

	w = f.do(t, "PUT", "/api/inventory/"+strconv.FormatInt(itemID, 10)+"?quantity_change=12&reason=restock", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("adjust status %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["new_quantity"].(float64); got != 20 {
		t.Fatalf("new_quantity = %v", got)
	}

	w = f.do(t, "PUT", "/api/inventory/"+strconv.FormatInt(itemID, 10), token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing quantity_change status %d", w.Code)
	}
}

func TestSupplierEndpoints(t *testing.T) {
	f := newServerFixture(t)
	token := f.signup(t, "alice", "password123")

	w := f.do(t, "POST", "/api/suppliers", token, map[string]any{
		"name": "EduMart", "item_name": "Markers", "contact_info": "orders@edumart.example", "price_per_unit": 4.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add supplier status %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, "GET", "/api/suppliers?item_name=Markers", "", nil)
	suppliers := decode(t, w)["suppliers"].([]any)
	if len(suppliers) != 1 {
		t.Fatalf("got %d suppliers", len(suppliers))
	}
	sp := suppliers[0].(map[string]any)
	if sp["name"] != "EduMart" || sp["price_per_unit"] != 4.5 {
		t.Fatalf("supplier = %+v", sp)
	}

	w = f.do(t, "GET", "/api/suppliers?item_name=Nothing", "", nil)
	if got := decode(t, w)["suppliers"].([]any); len(got) != 0 {
		t.Fatalf("suppliers for unknown item = %v", got)
	}
}

func TestAgentsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, "GET", "/api/agents", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	agents := decode(t, w)["agents"].([]any)
	if len(agents) != 1 {
		t.Fatalf("agents = %v", agents)
	}
	if agents[0].(map[string]any)["name"] != "InventoryAgent" {
		t.Fatalf("agents = %v", agents)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, "GET", "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("stemchat_uptime_seconds")) {
		t.Fatalf("metrics output missing uptime: %s", w.Body.String())
	}
}
