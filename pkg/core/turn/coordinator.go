// Package turn coordinates response generation for one conversation session.
//
// A Coordinator enforces single-flight response generation: at most one
// response task runs per session, a newer user turn cancels an unfinished
// older one, and duplicate or empty turns are suppressed before any work
// starts. Interruption (the user starting to speak while the agent is
// talking) stops output immediately and cancels the in-flight task.
package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/voxline/voxline/pkg/core/convo"
)

// Responder generates the agent's reply to a completed user turn.
// Implementations are expected to honor ctx cancellation.
type Responder interface {
	Respond(ctx context.Context, sessionID, text string) (string, error)
}

// Speaker delivers agent output to the user. Interrupt stops any in-progress
// delivery; it must be safe to call when nothing is playing.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Interrupt()
}

// Apology is spoken when response generation fails for a reason other than
// cancellation. Unlike a cancelled response, it is written to history.
const Apology = "I'm sorry, I'm having trouble processing your request right now. Please try again."

// Options configures a Coordinator.
type Options struct {
	// ResponseTimeout bounds a single response generation. Default: 30s.
	ResponseTimeout time.Duration

	// AckPhrase is spoken when the user interrupts the agent mid-utterance,
	// signalling that the agent heard them. Empty disables the acknowledgment.
	AckPhrase string
}

// DefaultOptions returns the standard coordinator configuration.
func DefaultOptions() Options {
	return Options{
		ResponseTimeout: 30 * time.Second,
		AckPhrase:       "Yes?",
	}
}

// Coordinator serializes response generation for a single session. All
// cross-turn state is confined to the coordinator and the session's
// transcript in the store; coordinators for different sessions are fully
// independent.
type Coordinator struct {
	sessionID string
	store     *convo.Store
	responder Responder
	speaker   Speaker
	opts      Options
	logger    *slog.Logger

	mu         sync.Mutex
	lastInput  string
	processing bool
	speaking   bool
	interrupts int

	activeCancel context.CancelFunc
	activeDone   chan struct{}

	// Lifetime of the coordinator itself.
	ctx    context.Context
	cancel context.CancelFunc

	onTurnStarted    func()
	onTurnSuppressed func(reason string)
	onTurnCancelled  func()
	onReply          func(text string)
}

// New creates a coordinator for one session. The speaker may be nil when the
// session has no audio output surface.
func New(sessionID string, store *convo.Store, responder Responder, speaker Speaker, opts Options, logger *slog.Logger) *Coordinator {
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		sessionID: sessionID,
		store:     store,
		responder: responder,
		speaker:   speaker,
		opts:      opts,
		logger:    logger.With("session_id", sessionID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetCallbacks installs observation hooks. Must be called before the first
// turn. Any hook may be nil.
func (c *Coordinator) SetCallbacks(
	onTurnStarted func(),
	onTurnSuppressed func(reason string),
	onTurnCancelled func(),
	onReply func(text string),
) {
	c.onTurnStarted = onTurnStarted
	c.onTurnSuppressed = onTurnSuppressed
	c.onTurnCancelled = onTurnCancelled
	c.onReply = onReply
}

// SessionID returns the session this coordinator serves.
func (c *Coordinator) SessionID() string { return c.sessionID }

// Processing reports whether a response task is currently running.
func (c *Coordinator) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Speaking reports whether agent output is currently being delivered.
func (c *Coordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// InterruptCount returns how many times the user has interrupted the agent.
func (c *Coordinator) InterruptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupts
}

// OnUserTurnCompleted accepts a finished user utterance. Empty input and an
// exact repeat of the previous accepted input are suppressed. Accepting a
// turn cancels any unfinished response task before starting a new one.
// Returns whether the turn was accepted.
func (c *Coordinator) OnUserTurnCompleted(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		c.suppress("empty")
		return false
	}

	c.mu.Lock()
	if trimmed == c.lastInput {
		c.mu.Unlock()
		c.suppress("duplicate")
		return false
	}
	c.lastInput = trimmed

	prevCancel := c.activeCancel
	prevDone := c.activeDone

	taskCtx, taskCancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.activeCancel = taskCancel
	c.activeDone = done
	c.mu.Unlock()

	if prevCancel != nil {
		select {
		case <-prevDone:
			// Previous task already finished.
		default:
			c.logger.Debug("cancel in-flight response for newer turn")
			if c.onTurnCancelled != nil {
				c.onTurnCancelled()
			}
		}
		prevCancel()
	}

	go func() {
		defer close(done)
		// A response for the old turn must fully unwind before the new one
		// starts, or the processing guard would reject the new turn.
		if prevDone != nil {
			<-prevDone
		}
		c.respond(taskCtx, trimmed)
	}()

	if c.onTurnStarted != nil {
		c.onTurnStarted()
	}
	return true
}

// OnUserStartSpeaking handles the user beginning to talk. If the agent is
// mid-utterance its output is cut off and a short acknowledgment is spoken;
// any in-flight response task is cancelled either way. Idempotent: repeated
// calls with nothing left to interrupt do nothing.
func (c *Coordinator) OnUserStartSpeaking() {
	c.mu.Lock()
	wasSpeaking := c.speaking
	c.speaking = false

	cancel := c.activeCancel
	done := c.activeDone
	c.activeCancel = nil
	// activeDone stays set: a turn arriving after the interruption must wait
	// for the cancelled task to unwind before its own response starts, or the
	// processing guard would reject it.

	hadTask := false
	if cancel != nil {
		select {
		case <-done:
		default:
			hadTask = true
		}
	}
	if wasSpeaking || hadTask {
		c.interrupts++
	}
	c.mu.Unlock()

	if cancel != nil {
		if hadTask {
			c.logger.Debug("cancel in-flight response on interruption")
			if c.onTurnCancelled != nil {
				c.onTurnCancelled()
			}
		}
		// Released even when the task already finished.
		cancel()
	}

	if !wasSpeaking && !hadTask {
		return
	}

	if wasSpeaking && c.speaker != nil {
		c.speaker.Interrupt()
		if c.opts.AckPhrase != "" {
			if err := c.speaker.Speak(c.ctx, c.opts.AckPhrase); err != nil {
				c.logger.Debug("speak acknowledgment", "error", err)
			}
		}
	}
}

// OnAgentStartSpeaking marks agent output as in progress. External audio
// pipelines call this when playback actually begins.
func (c *Coordinator) OnAgentStartSpeaking() {
	c.mu.Lock()
	c.speaking = true
	c.mu.Unlock()
}

// OnAgentStopSpeaking marks agent output as finished.
func (c *Coordinator) OnAgentStopSpeaking() {
	c.mu.Lock()
	c.speaking = false
	c.mu.Unlock()
}

// Wait blocks until the current response task, if any, finishes. Intended
// for callers that need the reply synchronously.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.activeDone
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight work and retires the coordinator.
func (c *Coordinator) Close() {
	c.mu.Lock()
	cancel := c.activeCancel
	c.activeCancel = nil
	c.activeDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.cancel()
}

func (c *Coordinator) suppress(reason string) {
	c.logger.Debug("suppress turn", "reason", reason)
	if c.onTurnSuppressed != nil {
		c.onTurnSuppressed(reason)
	}
}

// respond runs one response task. Cancellation is checked before generation,
// before the assistant message is written to history, and before output: a
// cancelled response is never stored and never spoken.
func (c *Coordinator) respond(ctx context.Context, text string) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		c.logger.Warn("response task overlap, dropping turn")
		return
	}
	c.processing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()

	c.store.Append(ctx, c.sessionID, convo.RoleUser, text, nil)

	if ctx.Err() != nil {
		return
	}

	genCtx, genCancel := context.WithTimeout(ctx, c.opts.ResponseTimeout)
	reply, err := c.responder.Respond(genCtx, c.sessionID, text)
	genCancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("response generation failed", "error", err)
		reply = Apology
	}
	if reply == "" {
		// An empty reply with no error still has to terminate the turn for
		// callers waiting on it.
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("empty response, substituting apology")
		reply = Apology
	}

	if ctx.Err() != nil {
		return
	}
	c.store.Append(ctx, c.sessionID, convo.RoleAssistant, reply, nil)

	if ctx.Err() != nil {
		return
	}
	c.deliver(ctx, reply)

	if c.onReply != nil {
		c.onReply(reply)
	}
}

func (c *Coordinator) deliver(ctx context.Context, reply string) {
	if c.speaker == nil {
		return
	}

	c.mu.Lock()
	c.speaking = true
	c.mu.Unlock()

	if err := c.speaker.Speak(ctx, reply); err != nil && ctx.Err() == nil {
		c.logger.Warn("deliver response", "error", err)
	}

	c.mu.Lock()
	c.speaking = false
	c.mu.Unlock()
}
