package convo

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a session transcript. Messages are stored as one
// JSON object per list entry in the backing store.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionStatus describes the health of a session as seen by SessionInfo.
type SessionStatus string

const (
	// StatusEmpty means the session exists but holds no messages.
	StatusEmpty SessionStatus = "empty"
	// StatusActive means the session holds at least one message.
	StatusActive SessionStatus = "active"
	// StatusUnavailable means the backing store could not be reached.
	// Callers must treat this as "no history", never as a failure.
	StatusUnavailable SessionStatus = "unavailable"
	// StatusError means the backing store answered but returned data that
	// could not be interpreted.
	StatusError SessionStatus = "error"
)

// SessionRecord is a derived view of one session's transcript.
type SessionRecord struct {
	SessionID    string        `json:"session_id"`
	Status       SessionStatus `json:"status"`
	MessageCount int64         `json:"message_count"`
	// TTL is the remaining lifetime of the session. Negative values are the
	// backing store's sentinels: -1 for no expiry, -2 for a missing key.
	TTL          time.Duration `json:"ttl_seconds"`
	FirstMessage time.Time     `json:"first_message,omitempty"`
	LastMessage  time.Time     `json:"last_message,omitempty"`
}
