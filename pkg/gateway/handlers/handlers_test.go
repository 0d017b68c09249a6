package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/core/turn"
	"github.com/voxline/voxline/pkg/gateway/config"
	"github.com/voxline/voxline/pkg/gateway/sessions"
)

type memList struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newMemList() *memList {
	return &memList{lists: make(map[string][]string)}
}

func (m *memList) PushFront(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *memList) Trim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if int64(len(list)) > stop+1 {
		m.lists[key] = list[start : stop+1]
	}
	return nil
}

func (m *memList) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (m *memList) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *memList) Index(ctx context.Context, key string, index int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if index < 0 {
		index += int64(len(list))
	}
	if index < 0 || index >= int64(len(list)) {
		return "", errors.New("index out of range")
	}
	return list[index], nil
}

func (m *memList) TTL(ctx context.Context, key string) (time.Duration, error) {
	return time.Hour, nil
}

func (m *memList) Len(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *memList) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, key)
	return nil
}

func (m *memList) Keys(ctx context.Context, pattern string) ([]string, error) { return nil, nil }

func (m *memList) Ping(ctx context.Context) error { return nil }

type echoResponder struct{}

func (echoResponder) Respond(ctx context.Context, sessionID, text string) (string, error) {
	return "echo: " + text, nil
}

type fakeGreeter struct{ store *convo.Store }

func (g fakeGreeter) Greeting(ctx context.Context, sessionID string) string {
	greeting := "Hello! How can I help?"
	g.store.Append(ctx, sessionID, convo.RoleSystem, "Session started. Agent greeting: "+greeting, nil)
	return greeting
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fixture struct {
	store    *convo.Store
	registry *sessions.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := convo.NewStore(newMemList(), convo.DefaultOptions(), testLogger())
	registry := sessions.NewRegistry(store, echoResponder{}, turn.DefaultOptions(), sessions.Hooks{}, testLogger())
	t.Cleanup(registry.CloseAll)
	return fixture{store: store, registry: registry}
}

func TestInitCreatesSession(t *testing.T) {
	f := newFixture(t)
	h := InitHandler{Store: f.store, Agent: fakeGreeter{store: f.store}, Registry: f.registry, Logger: testLogger()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/init",
		strings.NewReader(`{"identity":"alex"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
		Greeting  string `json:"greeting"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.SessionID, "session_alex_") {
		t.Errorf("session id = %q, want identity-derived", resp.SessionID)
	}
	if resp.Greeting == "" {
		t.Error("greeting is empty")
	}
	if _, ok := f.registry.Get(resp.SessionID); !ok {
		t.Error("coordinator not registered for new session")
	}
}

func TestInitAcceptsEmptyBody(t *testing.T) {
	f := newFixture(t)
	h := InitHandler{Store: f.store, Agent: fakeGreeter{store: f.store}, Registry: f.registry, Logger: testLogger()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/init", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.SessionID, "session_") {
		t.Errorf("session id = %q", resp.SessionID)
	}
}

func TestInitRejectsWrongMethod(t *testing.T) {
	f := newFixture(t)
	h := InitHandler{Store: f.store, Agent: fakeGreeter{store: f.store}, Registry: f.registry}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/init", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestMessageReturnsReply(t *testing.T) {
	f := newFixture(t)
	h := MessageHandler{Registry: f.registry, Logger: testLogger()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/message",
		strings.NewReader(`{"session_id":"session_a","text":"hello"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "echo: hello" {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestMessageReportsSuppressedDuplicate(t *testing.T) {
	f := newFixture(t)
	h := MessageHandler{Registry: f.registry, Logger: testLogger()}

	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/message",
			strings.NewReader(`{"session_id":"session_a","text":"hello"}`)))
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first turn status = %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate turn status = %d", rec.Code)
	}
	var resp struct {
		Suppressed bool `json:"suppressed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Suppressed {
		t.Error("duplicate turn not reported as suppressed")
	}
}

func TestMessageRequiresSessionID(t *testing.T) {
	f := newFixture(t)
	h := MessageHandler{Registry: f.registry}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/message",
		strings.NewReader(`{"text":"hello"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSessionRecordAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Append(ctx, "session_a", convo.RoleUser, "hello", nil)
	f.store.Append(ctx, "session_a", convo.RoleAssistant, "hi there", nil)

	h := SessionsHandler{Store: f.store, Registry: f.registry, Logger: testLogger()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/session_a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("record status = %d", rec.Code)
	}
	var info convo.SessionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if info.Status != convo.StatusActive || info.MessageCount != 2 {
		t.Errorf("record = %+v", info)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/session_a/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var hist struct {
		Messages []convo.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Messages) != 2 || hist.Messages[0].Content != "hello" {
		t.Errorf("history = %+v, want chronological order", hist.Messages)
	}
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t)
	h := SessionsHandler{Store: f.store, Registry: f.registry}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/session_missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteSessionClearsTranscriptAndCoordinator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Append(ctx, "session_a", convo.RoleUser, "hello", nil)
	if _, err := f.registry.GetOrCreate("session_a"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	h := SessionsHandler{Store: f.store, Registry: f.registry, Logger: testLogger()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/session_a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := f.registry.Get("session_a"); ok {
		t.Error("coordinator survived delete")
	}
	if got := f.store.History(ctx, "session_a", 0); len(got) != 0 {
		t.Errorf("transcript survived delete: %v", got)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReadyReportsStoreOutage(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	ReadyHandler{Store: f.store}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy store: status = %d", rec.Code)
	}

	degraded := convo.NewStore(nil, convo.DefaultOptions(), testLogger())
	rec = httptest.NewRecorder()
	ReadyHandler{Store: degraded}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded store: status = %d, want 503", rec.Code)
	}
}

func TestChatWSRoundTrip(t *testing.T) {
	f := newFixture(t)
	cfg := config.Config{
		WSWriteTimeout: 5 * time.Second,
		WSPingInterval: time.Minute,
	}
	h := ChatWSHandler{Config: cfg, Registry: f.registry, Logger: testLogger()}

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/ws?session_id=session_ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsClientFrame{Type: "user_turn", Text: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var types []string
	for len(types) < 2 {
		var frame wsServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read (frames so far %v): %v", types, err)
		}
		types = append(types, frame.Type)
		if frame.Type == "agent_reply" && frame.Text != "echo: hello" {
			t.Errorf("reply text = %q", frame.Text)
		}
	}
	if types[0] != "turn_started" || types[1] != "agent_reply" {
		t.Errorf("frames = %v, want [turn_started agent_reply]", types)
	}
}

func TestChatWSRequiresSessionID(t *testing.T) {
	f := newFixture(t)
	h := ChatWSHandler{Config: config.Config{WSWriteTimeout: time.Second, WSPingInterval: time.Minute}, Registry: f.registry}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
