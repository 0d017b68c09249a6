// Package llm abstracts the language model behind a minimal call/response
// contract. The coordinator and agent only ever see Client; the transport,
// retries, and vendor details live behind it.
package llm

import "context"

// Client generates a completion for a prompt. Calls are fallible and
// latency-bearing; callers bound them with a context deadline.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to the Client interface.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
