// Package llm talks to the model-serving endpoint. Every call asks for a
// response constrained to one of three named JSON shapes.
package llm

import (
	"context"
)

// Request is one schema-constrained completion request.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64 // 0 is deterministic decoding
	Schema      Schema
}

// Completer is the model-serving capability: prompt in, raw text out.
// Implementations return errors wrapping evidence.ErrModelUnavailable for
// transport failures so callers can retry them.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
