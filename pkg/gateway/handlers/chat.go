package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"log/slog"

	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/gateway/sessions"
)

// Greeter opens a conversation session.
type Greeter interface {
	Greeting(ctx context.Context, sessionID string) string
}

// InitHandler serves POST /v1/chat/init: derives a session id, spins up its
// coordinator, and returns the agent's greeting.
type InitHandler struct {
	Store    *convo.Store
	Agent    Greeter
	Registry *sessions.Registry
	Logger   *slog.Logger
}

func (h InitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req struct {
		Identity string `json:"identity"`
	}
	// An empty body means an anonymous session.
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "malformed request body")
		return
	}

	sessionID := h.Store.SessionID(req.Identity)
	if _, err := h.Registry.GetOrCreate(sessionID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "api_error", "gateway is shutting down")
		return
	}

	greeting := h.Agent.Greeting(r.Context(), sessionID)

	writeJSON(w, http.StatusOK, struct {
		SessionID string `json:"session_id"`
		Greeting  string `json:"greeting"`
	}{SessionID: sessionID, Greeting: greeting})
}

// MessageHandler serves POST /v1/chat/message: one synchronous user turn.
type MessageHandler struct {
	Registry *sessions.Registry
	Logger   *slog.Logger
}

func (h MessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "malformed request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "session_id is required")
		return
	}

	session, err := h.Registry.GetOrCreate(req.SessionID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "api_error", "gateway is shutting down")
		return
	}

	type messageResp struct {
		SessionID  string `json:"session_id"`
		Reply      string `json:"reply,omitempty"`
		Suppressed bool   `json:"suppressed,omitempty"`
		Cancelled  bool   `json:"cancelled,omitempty"`
	}

	reply, err := session.Converse(r.Context(), req.Text)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResp{SessionID: req.SessionID, Reply: reply})
	case errors.Is(err, sessions.ErrSuppressed):
		writeJSON(w, http.StatusOK, messageResp{SessionID: req.SessionID, Suppressed: true})
	case errors.Is(err, sessions.ErrCancelled):
		writeJSON(w, http.StatusOK, messageResp{SessionID: req.SessionID, Cancelled: true})
	default:
		if h.Logger != nil {
			h.Logger.Warn("message turn failed", "session_id", req.SessionID, "error", err)
		}
		writeError(w, http.StatusGatewayTimeout, "api_error", "response not produced in time")
	}
}
