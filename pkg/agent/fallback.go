package agent

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

var (
	fallbackCustomerID   = regexp.MustCompile(`ID: (CUST\d+)`)
	fallbackCustomerName = regexp.MustCompile(`customer: ([^(]+)`)
)

// fallback produces a canned conversational reply keyed on the situation
// note. Used when no LLM is configured or generation fails; variation keeps
// the agent from sounding like a script.
func fallback(note, query string) string {
	lower := strings.ToLower(note)

	switch {
	case strings.Contains(lower, "need customer identification"):
		return pick(
			"What's your name?",
			"Who am I talking to?",
			"What should I call you?",
		)

	case strings.Contains(lower, "created new customer account"):
		if m := fallbackCustomerID.FindStringSubmatch(note); m != nil {
			id := m[1]
			return pick(
				"Got you set up with account "+id+"! What can I help you with?",
				"Perfect! Your account "+id+" is ready. What are you looking for?",
				"All set with "+id+"! How can I help?",
			)
		}
		return pick(
			"Got you set up! What can I help you with?",
			"You're all set! What are you looking for?",
			"Perfect! How can I help you?",
		)

	case strings.Contains(lower, "found existing customer"):
		if m := fallbackCustomerName.FindStringSubmatch(note); m != nil {
			name := strings.TrimSpace(m[1])
			return pick(
				"Hey "+name+"! Great to see you again. How can I help?",
				"Hi "+name+"! What can I do for you today?",
				"Good to see you again, "+name+"! What do you need?",
			)
		}
		return pick(
			"Great to see you again! How can I help?",
			"Welcome back! What can I do for you?",
			"Nice to see you again! How can I help?",
		)

	case strings.Contains(lower, "greeting"):
		return pick(
			"Hi! How can I help you?",
			"Hello! What can I do for you?",
			"Hey there! How can I help?",
			"Hi! What do you need help with?",
		)

	case strings.Contains(lower, "product") && strings.Contains(lower, "looking for"):
		return pick(
			"What product are you looking for?",
			"What can I help you find?",
			"What do you have in mind?",
			"Tell me what you're looking for!",
		)

	case strings.Contains(lower, "order") && strings.Contains(lower, "status"):
		return pick(
			"I can help with your order. What's your order ID?",
			"Let me check your order. Do you have the order number?",
			"I'll look up your order. What's the order ID?",
		)

	case strings.Contains(lower, "cart") && strings.Contains(lower, "empty"):
		return pick(
			"Your cart is empty. Want to browse some products?",
			"Nothing in your cart yet. What are you looking for?",
			"Cart's empty! Let me show you some great products.",
		)

	default:
		return pick(
			"How can I help you today?",
			"What can I do for you?",
			"What do you need help with?",
			"How can I help?",
			"What can I help you find?",
		)
	}
}

func pick(options ...string) string {
	return options[rand.IntN(len(options))]
}
