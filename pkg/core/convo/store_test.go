package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// fakeListStore is an in-memory ListStore. Setting failing simulates an
// unreachable backing server.
type fakeListStore struct {
	lists   map[string][]string
	ttls    map[string]time.Duration
	failing bool

	expireCalls int
}

func newFakeListStore() *fakeListStore {
	return &fakeListStore{
		lists: make(map[string][]string),
		ttls:  make(map[string]time.Duration),
	}
}

var errStoreDown = errors.New("store unreachable")

func (f *fakeListStore) PushFront(ctx context.Context, key, value string) error {
	if f.failing {
		return errStoreDown
	}
	f.lists[key] = append([]string{value}, f.lists[key]...)
	return nil
}

func (f *fakeListStore) Trim(ctx context.Context, key string, start, stop int64) error {
	if f.failing {
		return errStoreDown
	}
	list := f.lists[key]
	if start < 0 {
		start = 0
	}
	if stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	if start > stop {
		f.lists[key] = nil
		return nil
	}
	f.lists[key] = list[start : stop+1]
	return nil
}

func (f *fakeListStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if f.failing {
		return errStoreDown
	}
	f.expireCalls++
	f.ttls[key] = ttl
	return nil
}

func (f *fakeListStore) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if f.failing {
		return nil, errStoreDown
	}
	list := f.lists[key]
	if start < 0 {
		start = 0
	}
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

func (f *fakeListStore) Index(ctx context.Context, key string, index int64) (string, error) {
	if f.failing {
		return "", errStoreDown
	}
	list := f.lists[key]
	if index < 0 {
		index += int64(len(list))
	}
	if index < 0 || index >= int64(len(list)) {
		return "", errors.New("index out of range")
	}
	return list[index], nil
}

func (f *fakeListStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if f.failing {
		return 0, errStoreDown
	}
	if _, ok := f.lists[key]; !ok {
		return -2, nil
	}
	ttl, ok := f.ttls[key]
	if !ok {
		return -1, nil
	}
	return ttl, nil
}

func (f *fakeListStore) Len(ctx context.Context, key string) (int64, error) {
	if f.failing {
		return 0, errStoreDown
	}
	return int64(len(f.lists[key])), nil
}

func (f *fakeListStore) Delete(ctx context.Context, key string) error {
	if f.failing {
		return errStoreDown
	}
	delete(f.lists, key)
	delete(f.ttls, key)
	return nil
}

func (f *fakeListStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if f.failing {
		return nil, errStoreDown
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.lists {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeListStore) Ping(ctx context.Context) error {
	if f.failing {
		return errStoreDown
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestStore(list ListStore, maxHistory int) *Store {
	return NewStore(list, Options{SessionTimeout: time.Hour, MaxHistory: maxHistory}, quietLogger())
}

func TestSessionIDStableForIdentity(t *testing.T) {
	store := newTestStore(newFakeListStore(), 50)
	fixed := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	a := store.SessionID("alex")
	b := store.SessionID("alex")
	if a != b {
		t.Errorf("Same identity same day produced different ids: %q vs %q", a, b)
	}
	if a != "session_alex_20260314" {
		t.Errorf("Unexpected session id: %q", a)
	}
}

func TestSessionIDAnonymousUnique(t *testing.T) {
	store := newTestStore(newFakeListStore(), 50)

	a := store.SessionID("")
	b := store.SessionID("")
	if a == b {
		t.Errorf("Two anonymous ids collided: %q", a)
	}
	if !strings.HasPrefix(a, "session_") {
		t.Errorf("Anonymous id missing prefix: %q", a)
	}
	if len(a) != len("session_")+16 {
		t.Errorf("Expected 16 hex chars of entropy, got %q", a)
	}
}

func TestAppendBoundsHistory(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok := store.Append(ctx, "s1", RoleUser, fmt.Sprintf("message %d", i), nil)
		if !ok {
			t.Fatalf("Append %d failed", i)
		}
	}

	msgs := store.History(ctx, "s1", 0)
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages after 5 appends with max 3, got %d", len(msgs))
	}
	for i, want := range []string{"message 3", "message 4", "message 5"} {
		if msgs[i].Content != want {
			t.Errorf("History[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}
}

func TestAppendRefreshesTTL(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 10)
	ctx := context.Background()

	store.Append(ctx, "s1", RoleUser, "first", nil)
	store.Append(ctx, "s1", RoleAssistant, "second", nil)

	if list.expireCalls != 2 {
		t.Errorf("Expected expiry refreshed on every append, got %d calls", list.expireCalls)
	}
	if ttl := list.ttls[keyPrefix+"s1"]; ttl != time.Hour {
		t.Errorf("Expected TTL of 1h, got %v", ttl)
	}
}

func TestHistorySkipsMalformedEntries(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 10)
	ctx := context.Background()

	store.Append(ctx, "s1", RoleUser, "hello", nil)
	list.lists[keyPrefix+"s1"] = append([]string{"{not json"}, list.lists[keyPrefix+"s1"]...)
	store.Append(ctx, "s1", RoleAssistant, "hi there", nil)

	msgs := store.History(ctx, "s1", 0)
	if len(msgs) != 2 {
		t.Fatalf("Expected malformed entry skipped, got %d messages", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Errorf("Unexpected contents: %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestContextWindowFormat(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 10)
	ctx := context.Background()

	store.Append(ctx, "s1", RoleUser, "My name is Alex", nil)
	store.Append(ctx, "s1", RoleAssistant, "Nice to meet you, Alex!", nil)

	window := store.ContextWindow(ctx, "s1", 2000)
	if !strings.HasPrefix(window, "Previous conversation:\n") {
		t.Errorf("Missing header: %q", window)
	}
	if !strings.HasSuffix(window, "\n\nCurrent query:") {
		t.Errorf("Missing footer: %q", window)
	}
	custIdx := strings.Index(window, "Customer: My name is Alex")
	agentIdx := strings.Index(window, "Agent: Nice to meet you, Alex!")
	if custIdx == -1 || agentIdx == -1 {
		t.Fatalf("Missing lines in window: %q", window)
	}
	if custIdx > agentIdx {
		t.Errorf("Expected chronological order, got %q", window)
	}
}

func TestContextWindowDropsOldestFirst(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 10)
	ctx := context.Background()

	store.Append(ctx, "s1", RoleUser, "oldest message that is quite long indeed", nil)
	store.Append(ctx, "s1", RoleAssistant, "newest", nil)

	// Budget fits only the newest line.
	window := store.ContextWindow(ctx, "s1", len("Agent: newest")+1)
	if strings.Contains(window, "oldest") {
		t.Errorf("Oldest message should be truncated first: %q", window)
	}
	if !strings.Contains(window, "Agent: newest") {
		t.Errorf("Newest message should survive truncation: %q", window)
	}
}

func TestContextWindowEmptySession(t *testing.T) {
	store := newTestStore(newFakeListStore(), 10)

	if window := store.ContextWindow(context.Background(), "nope", 2000); window != "" {
		t.Errorf("Expected empty window for empty session, got %q", window)
	}
}

func TestSessionInfo(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 10)
	ctx := context.Background()

	rec := store.SessionInfo(ctx, "s1")
	if rec.Status != StatusEmpty {
		t.Errorf("Expected empty status, got %q", rec.Status)
	}

	store.Append(ctx, "s1", RoleUser, "hello", nil)
	store.Append(ctx, "s1", RoleAssistant, "hi", nil)

	rec = store.SessionInfo(ctx, "s1")
	if rec.Status != StatusActive {
		t.Errorf("Expected active status, got %q", rec.Status)
	}
	if rec.MessageCount != 2 {
		t.Errorf("Expected 2 messages, got %d", rec.MessageCount)
	}
	if rec.TTL != time.Hour {
		t.Errorf("Expected 1h TTL, got %v", rec.TTL)
	}
	if rec.FirstMessage.After(rec.LastMessage) {
		t.Errorf("First message timestamp after last: %v > %v", rec.FirstMessage, rec.LastMessage)
	}
}

func TestDegradedModeNeverFails(t *testing.T) {
	list := newFakeListStore()
	list.failing = true
	store := newTestStore(list, 10)
	ctx := context.Background()

	if store.Append(ctx, "s1", RoleUser, "hello", nil) {
		t.Error("Append should report false when store is down")
	}
	if msgs := store.History(ctx, "s1", 0); len(msgs) != 0 {
		t.Errorf("History should be empty when store is down, got %d", len(msgs))
	}
	if window := store.ContextWindow(ctx, "s1", 2000); window != "" {
		t.Errorf("ContextWindow should be empty when store is down, got %q", window)
	}
	if rec := store.SessionInfo(ctx, "s1"); rec.Status != StatusUnavailable {
		t.Errorf("Expected unavailable status, got %q", rec.Status)
	}
	if store.Clear(ctx, "s1") {
		t.Error("Clear should report false when store is down")
	}
	if store.Available(ctx) {
		t.Error("Available should report false when store is down")
	}
}

func TestFailureHookReportsDegradedOps(t *testing.T) {
	list := newFakeListStore()
	list.failing = true
	store := newTestStore(list, 10)
	ctx := context.Background()

	var ops []string
	store.SetFailureHook(func(op string) { ops = append(ops, op) })

	store.Append(ctx, "s1", RoleUser, "hello", nil)
	store.History(ctx, "s1", 0)
	store.SessionInfo(ctx, "s1")
	store.Clear(ctx, "s1")
	store.CleanupExpired(ctx)

	want := []string{"append", "history", "info", "clear", "scan"}
	if len(ops) != len(want) {
		t.Fatalf("Expected %d failure reports, got %v", len(want), ops)
	}
	for i, op := range want {
		if ops[i] != op {
			t.Errorf("Failure report %d = %q, want %q", i, ops[i], op)
		}
	}
}

func TestNilListStoreDegrades(t *testing.T) {
	store := NewStore(nil, DefaultOptions(), quietLogger())
	ctx := context.Background()

	if store.Append(ctx, "s1", RoleUser, "hello", nil) {
		t.Error("Append should report false with no backing store")
	}
	if rec := store.SessionInfo(ctx, "s1"); rec.Status != StatusUnavailable {
		t.Errorf("Expected unavailable status, got %q", rec.Status)
	}
}

func TestCleanupExpiredReArmsMissingTTL(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 10)
	ctx := context.Background()

	store.Append(ctx, "s1", RoleUser, "hello", nil)
	delete(list.ttls, keyPrefix+"s1") // simulate a key that lost its expiry

	gone := store.CleanupExpired(ctx)
	if gone != 0 {
		t.Errorf("Expected no gone keys, got %d", gone)
	}
	if ttl := list.ttls[keyPrefix+"s1"]; ttl != time.Hour {
		t.Errorf("Expected TTL re-armed to 1h, got %v", ttl)
	}
}

func TestAppendMetadataRoundTrip(t *testing.T) {
	list := newFakeListStore()
	store := newTestStore(list, 10)
	ctx := context.Background()

	store.Append(ctx, "s1", RoleSystem, "Customer identified", map[string]any{"customer_id": "CUST001"})

	msgs := store.History(ctx, "s1", 0)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if got := msgs[0].Metadata["customer_id"]; got != "CUST001" {
		t.Errorf("Expected metadata to survive storage, got %v", got)
	}
}
