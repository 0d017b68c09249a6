package handlers

import (
	"context"
	"net/http"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger is the liveness probe the readiness check runs against the
// conversation store.
type Pinger interface {
	Available(ctx context.Context) bool
}

type ReadyHandler struct {
	Store Pinger
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK     bool     `json:"ok"`
		Issues []string `json:"issues,omitempty"`
	}

	var issues []string
	if h.Store == nil || !h.Store.Available(r.Context()) {
		// The gateway still serves turns without the store, just without
		// history. Readiness reports it so operators see the degradation.
		issues = append(issues, "conversation store unreachable")
	}

	status := http.StatusOK
	if len(issues) > 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResp{OK: len(issues) == 0, Issues: issues})
}
