package handlers

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/gateway/sessions"
)

// SessionsHandler serves the /v1/sessions/{id} surface:
//
//	GET    /v1/sessions/{id}          session record
//	GET    /v1/sessions/{id}/history  transcript, oldest first
//	DELETE /v1/sessions/{id}          clear transcript and retire coordinator
type SessionsHandler struct {
	Store    *convo.Store
	Registry *sessions.Registry
	Logger   *slog.Logger
}

func (h SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, sub, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeError(w, http.StatusNotFound, "not_found_error", "session id is required")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.getSession(w, r, sessionID)
	case sub == "" && r.Method == http.MethodDelete:
		h.deleteSession(w, r, sessionID)
	case sub == "history" && r.Method == http.MethodGet:
		h.getHistory(w, r, sessionID)
	case sub == "" || sub == "history":
		methodNotAllowed(w, "GET, DELETE")
	default:
		writeError(w, http.StatusNotFound, "not_found_error", "unknown session resource")
	}
}

func (h SessionsHandler) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	rec := h.Store.SessionInfo(r.Context(), sessionID)
	if rec.Status == convo.StatusEmpty {
		if _, live := h.Registry.Get(sessionID); !live {
			writeError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h SessionsHandler) getHistory(w http.ResponseWriter, r *http.Request, sessionID string) {
	msgs := h.Store.History(r.Context(), sessionID, 0)
	if msgs == nil {
		msgs = []convo.Message{}
	}
	writeJSON(w, http.StatusOK, struct {
		SessionID string          `json:"session_id"`
		Messages  []convo.Message `json:"messages"`
	}{SessionID: sessionID, Messages: msgs})
}

func (h SessionsHandler) deleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	hadCoordinator := h.Registry.Close(sessionID)
	cleared := h.Store.Clear(r.Context(), sessionID)
	if h.Logger != nil {
		h.Logger.Info("session deleted",
			"session_id", sessionID,
			"had_coordinator", hadCoordinator,
			"transcript_cleared", cleared,
		)
	}
	writeJSON(w, http.StatusOK, struct {
		SessionID string `json:"session_id"`
		Deleted   bool   `json:"deleted"`
	}{SessionID: sessionID, Deleted: true})
}
