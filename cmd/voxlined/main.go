// Command voxlined runs the customer support gateway: HTTP + WebSocket chat
// endpoints in front of the conversation store, the turn coordinators, and
// the support agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/voxline/voxline/internal/dotenv"
	"github.com/voxline/voxline/pkg/agent"
	"github.com/voxline/voxline/pkg/catalog"
	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/core/turn"
	"github.com/voxline/voxline/pkg/gateway/config"
	"github.com/voxline/voxline/pkg/gateway/metrics"
	gatewayserver "github.com/voxline/voxline/pkg/gateway/server"
	"github.com/voxline/voxline/pkg/gateway/sessions"
	"github.com/voxline/voxline/pkg/llm"
	"github.com/voxline/voxline/pkg/payments"
)

// timedResponder reports response generation time to the metrics registry.
type timedResponder struct {
	inner   turn.Responder
	observe func(time.Duration)
}

func (t timedResponder) Respond(ctx context.Context, sessionID, text string) (string, error) {
	start := time.Now()
	reply, err := t.inner.Respond(ctx, sessionID, text)
	t.observe(time.Since(start))
	return reply, err
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Conversation store. An unreachable Redis degrades to history-less
	// sessions rather than refusing to start.
	var list convo.ListStore
	redisList, err := convo.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unreachable, running without conversation history",
			"addr", cfg.RedisAddr, "error", err)
	} else {
		list = redisList
		defer redisList.Close()
	}
	store := convo.NewStore(list, convo.Options{
		SessionTimeout: cfg.SessionTimeout,
		MaxHistory:     cfg.MaxHistory,
	}, logger)

	// Catalog backend.
	var catalogStore catalog.Store
	switch cfg.CatalogBackend {
	case config.CatalogPostgres:
		pg, err := catalog.OpenPG(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres catalog: %w", err)
		}
		defer pg.Close()
		catalogStore = pg
	default:
		fs, err := catalog.NewFileStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open file catalog: %w", err)
		}
		catalogStore = fs
	}

	// LLM is optional: without a key the agent answers from canned fallbacks.
	var llmClient llm.Client
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("init gemini client: %w", err)
		}
		llmClient = gemini
		logger.Info("llm enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("no LLM key configured, using canned responses")
	}

	var charger payments.Charger
	if cfg.StripeAPIKey != "" {
		stripe, err := payments.NewStripe(cfg.StripeAPIKey, "usd")
		if err != nil {
			return fmt.Errorf("init stripe client: %w", err)
		}
		charger = stripe
		logger.Info("payment capture enabled")
	}

	supportAgent := agent.New(store, catalogStore, llmClient, charger, agent.Config{
		ContextMaxChars: cfg.ContextMaxChars,
	}, logger)

	m := metrics.New("voxline")
	store.SetFailureHook(m.RecordStoreFailure)
	responder := timedResponder{inner: supportAgent, observe: m.ObserveResponseDuration}
	registry := sessions.NewRegistry(store, responder, turn.Options{
		ResponseTimeout: cfg.ResponseTimeout,
	}, sessions.Hooks{
		OnSessionOpened:  m.RecordSessionOpened,
		OnSessionClosed:  m.RecordSessionClosed,
		OnTurnStarted:    m.RecordTurnStarted,
		OnTurnSuppressed: m.RecordTurnSuppressed,
		OnTurnCancelled:  m.RecordTurnCancelled,
		OnReply:          m.RecordReply,
	}, logger)

	// Redis expires sessions on its own; the sweep re-arms any key that lost
	// its TTL and reports how many are already gone.
	go func() {
		ticker := time.NewTicker(cfg.SessionTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gone := store.CleanupExpired(ctx)
				logger.Debug("session sweep", "expired", gone)
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := gatewayserver.New(cfg, store, supportAgent, registry, m, logger)

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"catalog_backend", cfg.CatalogBackend,
	)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("gateway stopped")
	return nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "voxlined: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		fmt.Fprintf(os.Stderr, "voxlined: %v\n", err)
		os.Exit(1)
	}
}
