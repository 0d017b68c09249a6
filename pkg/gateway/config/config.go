// Package config loads gateway configuration from the environment. Every
// knob has a default; anything invalid or inconsistent is fatal at startup
// rather than surfacing later as a half-working gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

// Catalog backends.
const (
	CatalogFile     = "file"
	CatalogPostgres = "postgres"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// Conversation store (Redis).
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Session transcript shape.
	SessionTimeout  time.Duration
	MaxHistory      int
	ContextMaxChars int

	// Turn handling.
	ResponseTimeout time.Duration

	// LLM. An empty API key runs the agent on canned fallbacks only.
	GeminiAPIKey string
	GeminiModel  string

	// Catalog backend: file or postgres.
	CatalogBackend string
	DataDir        string
	PostgresDSN    string

	// Payments. Empty disables payment capture on order placement.
	StripeAPIKey string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// WebSocket chat stream.
	WSWriteTimeout time.Duration
	WSPingInterval time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("VOXLINE_ADDR", ":8080"),
		AuthMode:            AuthMode(envOr("VOXLINE_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:             make(map[string]struct{}),
		RedisAddr:           envOr("VOXLINE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("VOXLINE_REDIS_PASSWORD"),
		RedisDB:             envIntOr("VOXLINE_REDIS_DB", 0),
		SessionTimeout:      envDurationOr("VOXLINE_SESSION_TIMEOUT", time.Hour),
		MaxHistory:          envIntOr("VOXLINE_MAX_HISTORY", 50),
		ContextMaxChars:     envIntOr("VOXLINE_CONTEXT_MAX_CHARS", 2000),
		ResponseTimeout:     envDurationOr("VOXLINE_RESPONSE_TIMEOUT", 30*time.Second),
		GeminiAPIKey:        envOr("GEMINI_API_KEY", ""),
		GeminiModel:         envOr("VOXLINE_GEMINI_MODEL", "gemini-2.5-flash"),
		CatalogBackend:      envOr("VOXLINE_CATALOG_BACKEND", CatalogFile),
		DataDir:             envOr("VOXLINE_DATA_DIR", "data"),
		PostgresDSN:         envOr("VOXLINE_POSTGRES_DSN", ""),
		StripeAPIKey:        envOr("STRIPE_API_KEY", ""),
		CORSAllowedOrigins:  make(map[string]struct{}),
		WSWriteTimeout:      envDurationOr("VOXLINE_WS_WRITE_TIMEOUT", 5*time.Second),
		WSPingInterval:      envDurationOr("VOXLINE_WS_PING_INTERVAL", 20*time.Second),
		ReadHeaderTimeout:   envDurationOr("VOXLINE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("VOXLINE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("VOXLINE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("VOXLINE_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("VOXLINE_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, origin := range splitCSV(os.Getenv("VOXLINE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("VOXLINE_API_KEYS must be set when VOXLINE_AUTH_MODE=required")
	}

	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return Config{}, fmt.Errorf("VOXLINE_REDIS_ADDR must not be empty")
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("VOXLINE_REDIS_DB must be >= 0")
	}
	if cfg.SessionTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_SESSION_TIMEOUT must be > 0")
	}
	if cfg.MaxHistory <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_MAX_HISTORY must be > 0")
	}
	if cfg.ContextMaxChars <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_CONTEXT_MAX_CHARS must be > 0")
	}
	if cfg.ResponseTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_RESPONSE_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.GeminiModel) == "" {
		return Config{}, fmt.Errorf("VOXLINE_GEMINI_MODEL must not be empty")
	}

	switch cfg.CatalogBackend {
	case CatalogFile:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return Config{}, fmt.Errorf("VOXLINE_DATA_DIR must not be empty when VOXLINE_CATALOG_BACKEND=file")
		}
	case CatalogPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return Config{}, fmt.Errorf("VOXLINE_POSTGRES_DSN must be set when VOXLINE_CATALOG_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("VOXLINE_CATALOG_BACKEND must be one of file|postgres")
	}

	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOXLINE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	// Bare numbers are taken as seconds, matching common deployment configs.
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
