package convo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// ListStore is the narrow contract the transcript store needs from its
// backing key/value server. Each session's transcript lives in one list,
// newest entry first. Implementations must be safe for concurrent use.
type ListStore interface {
	// PushFront prepends value to the list at key.
	PushFront(ctx context.Context, key, value string) error
	// Trim keeps only the entries in [start, stop] (inclusive, 0-based from
	// the front).
	Trim(ctx context.Context, key string, start, stop int64) error
	// Expire (re)sets the key's time to live.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Range returns the entries in [start, stop], front first.
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	// Index returns the entry at the given position; negative counts from
	// the back.
	Index(ctx context.Context, key string, index int64) (string, error)
	// TTL reports the key's remaining lifetime. Negative results are
	// sentinels: -1 for no expiry, -2 for a missing key.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Len returns the number of entries in the list.
	Len(ctx context.Context, key string) (int64, error)
	// Delete removes the key.
	Delete(ctx context.Context, key string) error
	// Keys enumerates keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Ping probes liveness of the store.
	Ping(ctx context.Context) error
}

const (
	keyPrefix     = "conversation:"
	contextHeader = "Previous conversation:"
	contextFooter = "Current query:"
)

// Options configures a Store.
type Options struct {
	// SessionTimeout is the sliding expiry applied on every append.
	// Default: 1 hour.
	SessionTimeout time.Duration

	// MaxHistory is the maximum number of messages kept per session.
	// Oldest messages are evicted first. Default: 50.
	MaxHistory int
}

// DefaultOptions returns the standard store configuration.
func DefaultOptions() Options {
	return Options{
		SessionTimeout: time.Hour,
		MaxHistory:     50,
	}
}

// Store keeps one bounded, expiring transcript per session in a ListStore.
//
// Every operation has a non-throwing failure mode: when the backing store is
// unreachable the store degrades to "no history" results (false, empty, or
// StatusUnavailable) and the caller is expected to carry on. A session whose
// history is lost produces less personalized responses, never a blocked turn.
type Store struct {
	list    ListStore
	timeout time.Duration
	max     int
	logger  *slog.Logger

	onFailure func(op string)

	now func() time.Time
}

// NewStore creates a transcript store over the given list store. A nil list
// store is allowed and yields a permanently degraded store, matching the
// behavior of running without a configured backing server.
func NewStore(list ListStore, opts Options, logger *slog.Logger) *Store {
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = time.Hour
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		list:    list,
		timeout: opts.SessionTimeout,
		max:     opts.MaxHistory,
		logger:  logger,
		now:     time.Now,
	}
}

// SetFailureHook installs a callback invoked with the failing operation name
// whenever the store degrades because the backing store misbehaved. Intended
// for failure counters. Must be set before the store is shared across
// goroutines.
func (s *Store) SetFailureHook(fn func(op string)) { s.onFailure = fn }

func (s *Store) fail(op string) {
	if s.onFailure != nil {
		s.onFailure(op)
	}
}

// MaxHistory returns the configured per-session message cap.
func (s *Store) MaxHistory() int { return s.max }

// SessionTimeout returns the configured sliding expiry.
func (s *Store) SessionTimeout() time.Duration { return s.timeout }

// SessionID derives a session identifier. A known identity maps to a stable
// id for the current calendar day, so the same caller returning later the
// same day lands in the same session. Anonymous callers get a random id with
// 64 bits of entropy.
func (s *Store) SessionID(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity != "" {
		return "session_" + identity + "_" + s.now().Format("20060102")
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// time-derived id rather than returning an empty one.
		return "session_" + s.now().Format("20060102150405.000000000")
	}
	return "session_" + hex.EncodeToString(buf)
}

// Append adds one message to the session transcript, trims the transcript to
// MaxHistory entries, and refreshes the session's expiry. Returns false when
// the message could not be stored; this is not an error for the caller.
func (s *Store) Append(ctx context.Context, sessionID string, role Role, content string, metadata map[string]any) bool {
	if s.list == nil {
		return false
	}

	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		Metadata:  metadata,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("encode message", "session_id", sessionID, "error", err)
		s.fail("encode")
		return false
	}

	key := keyPrefix + sessionID
	if err := s.list.PushFront(ctx, key, string(raw)); err != nil {
		s.logger.Warn("append message", "session_id", sessionID, "error", err)
		s.fail("append")
		return false
	}
	if err := s.list.Trim(ctx, key, 0, int64(s.max)-1); err != nil {
		s.logger.Warn("trim transcript", "session_id", sessionID, "error", err)
		s.fail("trim")
		return false
	}
	if err := s.list.Expire(ctx, key, s.timeout); err != nil {
		s.logger.Warn("refresh session ttl", "session_id", sessionID, "error", err)
		s.fail("expire")
		return false
	}
	return true
}

// History returns up to limit most recent messages in chronological order
// (oldest first). A limit <= 0 means MaxHistory. Entries that fail to decode
// are skipped. Returns nil when the backing store is unreachable.
func (s *Store) History(ctx context.Context, sessionID string, limit int) []Message {
	if s.list == nil {
		return nil
	}
	if limit <= 0 {
		limit = s.max
	}

	raw, err := s.list.Range(ctx, keyPrefix+sessionID, 0, int64(limit)-1)
	if err != nil {
		s.logger.Warn("read transcript", "session_id", sessionID, "error", err)
		s.fail("history")
		return nil
	}

	msgs := make([]Message, 0, len(raw))
	for _, entry := range raw {
		var m Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			s.logger.Warn("skip malformed transcript entry", "session_id", sessionID, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}

	// Storage keeps newest first; readers get chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// ContextWindow renders the transcript as a prompt-ready block, newest
// messages preferred. Walking from the newest message backward, lines are
// included until adding one would push the accumulated character count past
// maxChars; the survivors are emitted in chronological order. Characters are
// a deliberate, cheap proxy for the model's token budget.
//
// Returns the empty string when the session has no readable history.
func (s *Store) ContextWindow(ctx context.Context, sessionID string, maxChars int) string {
	msgs := s.History(ctx, sessionID, 0)
	if len(msgs) == 0 {
		return ""
	}

	var lines []string
	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		line := formatLine(msgs[i])
		if total+len(line) > maxChars {
			break
		}
		lines = append(lines, line)
		total += len(line)
	}
	if len(lines) == 0 {
		return ""
	}

	// lines were gathered newest first.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return contextHeader + "\n" + strings.Join(lines, "\n") + "\n\n" + contextFooter
}

func formatLine(m Message) string {
	switch m.Role {
	case RoleUser:
		return "Customer: " + m.Content
	case RoleAssistant:
		return "Agent: " + m.Content
	default:
		return titleRole(string(m.Role)) + ": " + m.Content
	}
}

func titleRole(role string) string {
	if role == "" {
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// SessionInfo reports the session's derived state. It never fails: an
// unreachable backing store yields StatusUnavailable, undecodable stored
// data yields StatusError.
func (s *Store) SessionInfo(ctx context.Context, sessionID string) SessionRecord {
	rec := SessionRecord{SessionID: sessionID}
	if s.list == nil {
		rec.Status = StatusUnavailable
		return rec
	}

	key := keyPrefix + sessionID
	count, err := s.list.Len(ctx, key)
	if err != nil {
		s.logger.Warn("session info", "session_id", sessionID, "error", err)
		s.fail("info")
		rec.Status = StatusUnavailable
		return rec
	}
	rec.MessageCount = count

	if ttl, err := s.list.TTL(ctx, key); err == nil {
		rec.TTL = ttl
	}

	if count == 0 {
		rec.Status = StatusEmpty
		return rec
	}
	rec.Status = StatusActive

	// Oldest entry sits at the back of the list, newest at the front.
	if raw, err := s.list.Index(ctx, key, -1); err == nil {
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			rec.Status = StatusError
			return rec
		}
		rec.FirstMessage = m.Timestamp
	}
	if raw, err := s.list.Index(ctx, key, 0); err == nil {
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			rec.Status = StatusError
			return rec
		}
		rec.LastMessage = m.Timestamp
	}
	return rec
}

// Clear removes the session's transcript. Returns false when the backing
// store is unreachable.
func (s *Store) Clear(ctx context.Context, sessionID string) bool {
	if s.list == nil {
		return false
	}
	if err := s.list.Delete(ctx, keyPrefix+sessionID); err != nil {
		s.logger.Warn("clear session", "session_id", sessionID, "error", err)
		s.fail("clear")
		return false
	}
	return true
}

// Available reports whether the backing store answers a liveness probe.
func (s *Store) Available(ctx context.Context) bool {
	if s.list == nil {
		return false
	}
	return s.list.Ping(ctx) == nil
}

// CleanupExpired sweeps all session keys, re-arming the expiry on any that
// lost it. The backing store expires sessions on its own; this exists for
// manual housekeeping. Returns the number of keys found already gone.
func (s *Store) CleanupExpired(ctx context.Context) int {
	if s.list == nil {
		return 0
	}
	keys, err := s.list.Keys(ctx, keyPrefix+"*")
	if err != nil {
		s.logger.Warn("enumerate sessions", "error", err)
		s.fail("scan")
		return 0
	}

	gone := 0
	for _, key := range keys {
		ttl, err := s.list.TTL(ctx, key)
		if err != nil {
			continue
		}
		switch {
		case ttl == -2:
			gone++
		case ttl == -1:
			if err := s.list.Expire(ctx, key, s.timeout); err != nil {
				s.logger.Warn("re-arm session ttl", "key", key, "error", err)
				s.fail("expire")
			}
		}
	}
	return gone
}
