package handlers

import (
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/voxline/voxline/pkg/gateway/config"
	"github.com/voxline/voxline/pkg/gateway/sessions"
)

const wsMaxMessageBytes = 64 * 1024

// Client-to-server frame on the chat stream.
type wsClientFrame struct {
	Type string `json:"type"` // user_turn | start_speaking
	Text string `json:"text,omitempty"`
}

// Server-to-client frame: one coordinator event.
type wsServerFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ChatWSHandler serves GET /v1/chat/ws: a bidirectional turn stream for one
// session. The client sends user_turn and start_speaking frames; the server
// streams the coordinator's events back, so a turn cancelled by a newer one
// or by an interruption is visible to the client the moment it happens.
type ChatWSHandler struct {
	Config   config.Config
	Registry *sessions.Registry
	Logger   *slog.Logger
}

func (h ChatWSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "session_id query parameter is required")
		return
	}

	session, err := h.Registry.GetOrCreate(sessionID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "api_error", "gateway is shutting down")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		if h.Logger != nil {
			h.Logger.Debug("ws upgrade failed", "session_id", sessionID, "error", err)
		}
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageBytes)
	// Clear the server's read deadline; the connection outlives it.
	_ = conn.SetReadDeadline(time.Time{})

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)

	// Writer goroutine owns the outbound side of the connection.
	go func() {
		ticker := time.NewTicker(h.Config.WSPingInterval)
		defer ticker.Stop()
		for {
			select {
			case ev := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(h.Config.WSWriteTimeout))
				if err := conn.WriteJSON(wsServerFrame{
					Type:   string(ev.Type),
					Text:   ev.Text,
					Reason: ev.Reason,
				}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil,
					time.Now().Add(h.Config.WSWriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		var frame wsClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if h.Logger != nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Logger.Debug("ws read", "session_id", sessionID, "error", err)
			}
			return
		}

		switch frame.Type {
		case "user_turn":
			session.Turn(frame.Text)
		case "start_speaking":
			session.StartSpeaking()
		default:
			if h.Logger != nil {
				h.Logger.Debug("ws unknown frame type", "session_id", sessionID, "type", frame.Type)
			}
		}
	}
}

// checkOrigin mirrors the HTTP CORS policy: with no allowlist configured any
// origin may connect, otherwise the Origin header must match.
func (h ChatWSHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
