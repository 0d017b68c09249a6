// Package agent implements the customer support agent. It classifies each
// user turn, pulls the relevant catalog data, performs any requested action
// (identify a customer, place or cancel an order, manage the cart), and
// produces the reply, through the LLM when one is configured and through
// canned fallbacks when not.
package agent

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/voxline/voxline/pkg/catalog"
	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/core/intent"
	"github.com/voxline/voxline/pkg/llm"
	"github.com/voxline/voxline/pkg/payments"
	"github.com/voxline/voxline/pkg/prompt"
)

// Greetings returned by Greeting depending on whether the session already
// holds messages.
const (
	GreetingNew       = "Hello! I'm your AI customer support assistant. How can I help you today?"
	GreetingReturning = "Welcome back! How can I help you today?"
)

// Config tunes the agent.
type Config struct {
	// ContextMaxChars bounds the conversation context included in prompts.
	// Default: 2000.
	ContextMaxChars int
}

// DefaultConfig returns the standard agent configuration.
func DefaultConfig() Config {
	return Config{ContextMaxChars: 2000}
}

// Agent answers customer queries for one or more sessions. It is safe for
// concurrent use; per-session state lives in the conversation store.
type Agent struct {
	convo   *convo.Store
	catalog catalog.Store
	llm     llm.Client       // nil: canned fallbacks only
	charger payments.Charger // nil: orders placed without payment capture
	cfg     Config
	logger  *slog.Logger

	now func() time.Time
}

// New creates an agent. The LLM client and charger are optional.
func New(convoStore *convo.Store, catalogStore catalog.Store, client llm.Client, charger payments.Charger, cfg Config, logger *slog.Logger) *Agent {
	if cfg.ContextMaxChars <= 0 {
		cfg.ContextMaxChars = 2000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		convo:   convoStore,
		catalog: catalogStore,
		llm:     client,
		charger: charger,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Greeting opens a session. Returning sessions (any stored messages) get a
// welcome-back; the greeting is recorded as a system message.
func (a *Agent) Greeting(ctx context.Context, sessionID string) string {
	greeting := GreetingNew
	if info := a.convo.SessionInfo(ctx, sessionID); info.MessageCount > 0 {
		greeting = GreetingReturning
	}
	a.convo.Append(ctx, sessionID, convo.RoleSystem,
		"Session started. Agent greeting: "+greeting, nil)
	return greeting
}

// Respond generates the reply to one user turn. It satisfies the turn
// coordinator's Responder contract. Catalog or store failures degrade to a
// helpful reply rather than an error; only context cancellation propagates.
func (a *Agent) Respond(ctx context.Context, sessionID, text string) (string, error) {
	convContext := a.convo.ContextWindow(ctx, sessionID, a.cfg.ContextMaxChars)

	query := text
	if convContext != "" && intent.ReferencesContext(text) {
		if clues := intent.ContextClues(convContext); clues != "" {
			query = fmt.Sprintf("%s (Context: %s)", text, clues)
		}
	}

	var reply string
	switch intent.Classify(text) {
	case intent.NameIntroduction:
		reply = a.handleNameIntroduction(ctx, sessionID, query, intent.ExtractName(text), convContext)
	case intent.CustomerInfo:
		reply = a.natural(ctx, query, convContext,
			"Customer asking for account information - need customer ID, email, or phone number")
	case intent.ProductInfo:
		reply = a.handleProductQuery(ctx, query, convContext)
	case intent.OrderPlacement:
		reply = a.handleOrderPlacement(ctx, sessionID, query, convContext)
	case intent.OrderStatus:
		reply = a.handleOrderStatus(ctx, query, convContext)
	case intent.Cart:
		reply = a.handleCart(ctx, query, convContext)
	case intent.Cancellation:
		reply = a.handleCancellation(ctx, sessionID, query, convContext)
	case intent.ProductSearch:
		reply = a.handleProductSearch(ctx, query, convContext)
	default:
		reply = a.handleGeneral(ctx, query, convContext)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return reply, nil
}

// natural produces a conversational reply. With an LLM configured the full
// system prompt is built from live catalog data and the situation note;
// otherwise, or when generation fails, a canned fallback keyed on the note
// keeps the conversation moving.
func (a *Agent) natural(ctx context.Context, query, convContext, note string) string {
	if a.llm != nil {
		products, err := a.catalog.Products(ctx)
		if err != nil {
			a.logger.Warn("load products for prompt", "error", err)
		}

		var customer *catalog.Customer
		if id := intent.LastCustomerID(convContext); id != "" {
			if c, err := a.catalog.CustomerByID(ctx, id); err == nil {
				customer = c
			}
		}

		system := prompt.Build(prompt.Context{
			Products:     products,
			Customer:     customer,
			Conversation: convContext,
		})
		full := fmt.Sprintf("%s\n\nSituation: %s\n\nCustomer: %s\n\nAgent:", system, note, query)

		reply, err := a.llm.Generate(ctx, full)
		if err == nil {
			return reply
		}
		if ctx.Err() != nil {
			return ""
		}
		a.logger.Warn("llm generation failed, using fallback", "error", err)
	}
	return fallback(note, query)
}
