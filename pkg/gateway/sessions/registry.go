// Package sessions tracks the live conversation sessions served by the
// gateway. Each session owns one turn coordinator; the registry creates them
// on first use and tears them down on delete or shutdown.
package sessions

import (
	"context"
	"errors"
	"sync"

	"log/slog"

	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/core/turn"
)

var (
	// ErrSuppressed reports a turn rejected before any work started
	// (empty input or an exact repeat of the previous turn).
	ErrSuppressed = errors.New("turn suppressed")

	// ErrCancelled reports a turn whose response task was cancelled before a
	// reply was produced.
	ErrCancelled = errors.New("turn cancelled")

	// ErrClosed reports an operation on a registry that has shut down.
	ErrClosed = errors.New("session registry closed")
)

type EventType string

const (
	EventStarted    EventType = "turn_started"
	EventSuppressed EventType = "turn_suppressed"
	EventCancelled  EventType = "turn_cancelled"
	EventReply      EventType = "agent_reply"
)

// Event is one observation from a session's turn coordinator, fanned out to
// subscribers.
type Event struct {
	Type   EventType
	Text   string
	Reason string
}

// Hooks are optional registry-wide observation callbacks, typically wired to
// metrics. Any hook may be nil.
type Hooks struct {
	OnSessionOpened  func()
	OnSessionClosed  func()
	OnTurnStarted    func()
	OnTurnSuppressed func(reason string)
	OnTurnCancelled  func()
	OnReply          func()
}

// Registry creates and owns per-session coordinators.
type Registry struct {
	store     *convo.Store
	responder turn.Responder
	opts      turn.Options
	logger    *slog.Logger
	hooks     Hooks

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry(store *convo.Store, responder turn.Responder, opts turn.Options, hooks Hooks, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     store,
		responder: responder,
		opts:      opts,
		logger:    logger,
		hooks:     hooks,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the session if it has a live coordinator.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// GetOrCreate returns the session, creating its coordinator on first use.
func (r *Registry) GetOrCreate(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}

	s := &Session{
		id:   sessionID,
		subs: make(map[chan Event]struct{}),
	}
	coord := turn.New(sessionID, r.store, r.responder, nil, r.opts, r.logger)
	coord.SetCallbacks(
		func() {
			if r.hooks.OnTurnStarted != nil {
				r.hooks.OnTurnStarted()
			}
			s.dispatch(Event{Type: EventStarted})
		},
		func(reason string) {
			if r.hooks.OnTurnSuppressed != nil {
				r.hooks.OnTurnSuppressed(reason)
			}
			s.dispatch(Event{Type: EventSuppressed, Reason: reason})
		},
		func() {
			if r.hooks.OnTurnCancelled != nil {
				r.hooks.OnTurnCancelled()
			}
			s.dispatch(Event{Type: EventCancelled})
		},
		func(text string) {
			if r.hooks.OnReply != nil {
				r.hooks.OnReply()
			}
			s.dispatch(Event{Type: EventReply, Text: text})
		},
	)
	s.coord = coord
	r.sessions[sessionID] = s

	if r.hooks.OnSessionOpened != nil {
		r.hooks.OnSessionOpened()
	}
	return s, nil
}

// Close tears down one session's coordinator. Reports whether the session
// had one.
func (r *Registry) Close(sessionID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.coord.Close()
	if r.hooks.OnSessionClosed != nil {
		r.hooks.OnSessionClosed()
	}
	return true
}

// CloseAll tears down every session. The registry accepts no new sessions
// afterwards.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.coord.Close()
		if r.hooks.OnSessionClosed != nil {
			r.hooks.OnSessionClosed()
		}
	}
}

// Count returns the number of sessions with a live coordinator.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Session is one live conversation with its coordinator. Events from the
// coordinator fan out to all subscribers.
type Session struct {
	id    string
	coord *turn.Coordinator

	mu   sync.Mutex
	subs map[chan Event]struct{}

	// Serializes synchronous Converse calls so their replies cannot be
	// attributed to the wrong turn.
	convMu sync.Mutex
}

func (s *Session) ID() string { return s.id }

// Turn feeds a completed user utterance to the coordinator. Returns whether
// the turn was accepted.
func (s *Session) Turn(text string) bool {
	return s.coord.OnUserTurnCompleted(text)
}

// StartSpeaking signals that the user began talking, cancelling any
// in-flight response.
func (s *Session) StartSpeaking() {
	s.coord.OnUserStartSpeaking()
}

// InterruptCount reports how many times this session's user interrupted the
// agent.
func (s *Session) InterruptCount() int {
	return s.coord.InterruptCount()
}

// Processing reports whether a response task is currently running.
func (s *Session) Processing() bool {
	return s.coord.Processing()
}

// Subscribe registers for coordinator events. The returned cancel func must
// be called to release the subscription. Slow subscribers lose events rather
// than blocking the coordinator.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

func (s *Session) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Converse submits one user turn and blocks for its outcome: the agent reply,
// ErrSuppressed, ErrCancelled, or the context's error.
func (s *Session) Converse(ctx context.Context, text string) (string, error) {
	s.convMu.Lock()
	defer s.convMu.Unlock()

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if !s.Turn(text) {
		return "", ErrSuppressed
	}

	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case EventReply:
				return ev.Text, nil
			case EventCancelled:
				return "", ErrCancelled
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
