// Package speech is the agent's output surface. The synthesis engine itself
// lives outside this module; implementations here deliver text to wherever
// the audio pipeline (or a plain terminal) picks it up.
package speech

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Writer delivers agent output to an io.Writer, one utterance per line.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
}

// NewWriter creates a Writer speaker. The prefix is printed before each
// utterance, e.g. "Agent: ".
func NewWriter(out io.Writer, prefix string) *Writer {
	return &Writer{out: out, prefix: prefix}
}

func (w *Writer) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.out, "%s%s\n", w.prefix, text); err != nil {
		return fmt.Errorf("write utterance: %w", err)
	}
	return nil
}

// Interrupt is a no-op for a text surface; written lines cannot be
// recalled.
func (w *Writer) Interrupt() {}
