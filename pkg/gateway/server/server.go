// Package server assembles the gateway: routes, middleware chain, and
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/gateway/config"
	"github.com/voxline/voxline/pkg/gateway/handlers"
	"github.com/voxline/voxline/pkg/gateway/metrics"
	"github.com/voxline/voxline/pkg/gateway/mw"
	"github.com/voxline/voxline/pkg/gateway/sessions"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store    *convo.Store
	registry *sessions.Registry
	metrics  *metrics.Metrics
}

// New wires the gateway's routes. The agent serves greetings; turn handling
// goes through the session registry.
func New(cfg config.Config, store *convo.Store, agent handlers.Greeter, registry *sessions.Registry, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		store:    store,
		registry: registry,
		metrics:  m,
	}

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Store: store})
	if m != nil {
		s.mux.Handle("/metrics", m.Handler())
	}

	s.mux.Handle("/v1/chat/init", handlers.InitHandler{
		Store:    store,
		Agent:    agent,
		Registry: registry,
		Logger:   logger,
	})
	s.mux.Handle("/v1/chat/message", handlers.MessageHandler{
		Registry: registry,
		Logger:   logger,
	})
	s.mux.Handle("/v1/chat/ws", handlers.ChatWSHandler{
		Config:   cfg,
		Registry: registry,
		Logger:   logger,
	})
	s.mux.Handle("/v1/sessions/", handlers.SessionsHandler{
		Store:    store,
		Registry: registry,
		Logger:   logger,
	})

	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.metrics != nil {
		h = mw.Instrument(s.metrics.RecordRequest, h)
	}
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// tears down the session coordinators.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "grace_period", s.cfg.ShutdownGracePeriod)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.registry.CloseAll()

	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
