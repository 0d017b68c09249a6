// Command voxline-chat is a console front end for the support agent: one
// session, user turns read from stdin, agent replies written to stdout
// through the speech writer. Useful for trying the agent without running
// the gateway.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/voxline/voxline/internal/dotenv"
	"github.com/voxline/voxline/pkg/agent"
	"github.com/voxline/voxline/pkg/catalog"
	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/core/turn"
	"github.com/voxline/voxline/pkg/llm"
	"github.com/voxline/voxline/pkg/speech"
)

type chatConfig struct {
	Identity     string
	DataDir      string
	RedisAddr    string
	TurnTimeout  time.Duration
	GeminiAPIKey string
	GeminiModel  string
	Verbose      bool
}

func parseChatConfig(args []string, getenv func(string) string) (chatConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := chatConfig{}
	fs := flag.NewFlagSet("voxline-chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Identity, "identity", "", "caller identity for a stable daily session (empty: anonymous)")
	fs.StringVar(&cfg.DataDir, "data-dir", "data", "catalog data directory")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", strings.TrimSpace(getenv("VOXLINE_REDIS_ADDR")), "redis address for conversation history (empty: in-process only)")
	fs.DurationVar(&cfg.TurnTimeout, "timeout", 30*time.Second, "per-turn response timeout")
	fs.BoolVar(&cfg.Verbose, "v", false, "log coordinator activity")

	if err := fs.Parse(args); err != nil {
		return chatConfig{}, err
	}

	cfg.GeminiAPIKey = strings.TrimSpace(getenv("GEMINI_API_KEY"))
	cfg.GeminiModel = strings.TrimSpace(getenv("VOXLINE_GEMINI_MODEL"))
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = llm.DefaultGeminiModel
	}
	return cfg, nil
}

func runChat(ctx context.Context, cfg chatConfig, in io.Reader, out, errOut io.Writer) error {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	var list convo.ListStore
	if cfg.RedisAddr != "" {
		redisList, err := convo.DialRedis(ctx, cfg.RedisAddr, "", 0)
		if err != nil {
			fmt.Fprintf(errOut, "redis unreachable, continuing without history: %v\n", err)
		} else {
			list = redisList
			defer redisList.Close()
		}
	}
	store := convo.NewStore(list, convo.DefaultOptions(), logger)

	catalogStore, err := catalog.NewFileStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	var llmClient llm.Client
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("init gemini client: %w", err)
		}
		llmClient = gemini
	} else {
		fmt.Fprintln(errOut, "GEMINI_API_KEY not set, using canned responses")
	}

	supportAgent := agent.New(store, catalogStore, llmClient, nil, agent.DefaultConfig(), logger)

	sessionID := store.SessionID(cfg.Identity)
	speaker := speech.NewWriter(out, "Agent: ")
	coord := turn.New(sessionID, store, supportAgent, speaker, turn.Options{
		ResponseTimeout: cfg.TurnTimeout,
		AckPhrase:       "Yes?",
	}, logger)
	defer coord.Close()

	fmt.Fprintf(out, "Session %s (/quit to exit, /interrupt to barge in)\n", sessionID)
	_ = speaker.Speak(ctx, supportAgent.Greeting(ctx, sessionID))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "/quit", "/exit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "/interrupt":
			coord.OnUserStartSpeaking()
			continue
		}

		if !coord.OnUserTurnCompleted(line) {
			fmt.Fprintln(out, "(turn suppressed)")
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, cfg.TurnTimeout+time.Second)
		err := coord.Wait(waitCtx)
		cancel()
		if err != nil {
			fmt.Fprintf(errOut, "turn did not finish: %v\n", err)
		}
	}
	return scanner.Err()
}

func main() {
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "voxline-chat: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseChatConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxline-chat: %v\n", err)
		os.Exit(1)
	}

	if err := runChat(context.Background(), cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "voxline-chat: %v\n", err)
		os.Exit(1)
	}
}
