// Package reasoning asks the model to investigate one batch of a document
// against a query and turns the answer into a Finding.
package reasoning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/llm"
)

const (
	// DefaultMaxTokens is the generation budget for one reasoning call.
	DefaultMaxTokens = 2048

	// DefaultCondenseMaxTokens is the generation budget for memory condensation.
	DefaultCondenseMaxTokens = 1000
)

// Options configures the reasoning step.
type Options struct {
	MaxTokens         int
	CondenseMaxTokens int
	Temperature       float64
}

// Input is everything one reasoning step needs.
type Input struct {
	Query      string
	DocumentID string
	Batch      evidence.Batch
	Prior      string // Carried-forward memory; "" for none
	Language   string
}

// Step runs the model over a single batch.
type Step struct {
	llm    llm.Completer
	opts   Options
	logger *slog.Logger
}

// NewStep creates a reasoning step. A nil logger uses slog.Default().
func NewStep(completer llm.Completer, opts Options, logger *slog.Logger) *Step {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.CondenseMaxTokens <= 0 {
		opts.CondenseMaxTokens = DefaultCondenseMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Step{llm: completer, opts: opts, logger: logger}
}

// Reason investigates in.Batch. It always returns a Finding: when the model is
// unreachable or its answer does not parse, the Finding is degraded and the
// error (wrapping ErrModelUnavailable or ErrMalformedOutput) says why.
// The Memory field is left for the caller to fill.
func (s *Step) Reason(ctx context.Context, in Input) (*evidence.Finding, error) {
	degraded := evidence.NewDegradedFinding(in.Query, in.DocumentID, in.Batch)

	prompt, err := BuildPrompt(in.Query, in.Batch.Text, in.DocumentID, in.Prior, in.Language)
	if err != nil {
		return degraded, err
	}

	raw, err := s.llm.Complete(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
		Schema:      llm.SchemaDefault,
	})
	if err != nil {
		return degraded, fmt.Errorf("reason over %s batch %d: %w", in.DocumentID, in.Batch.Index, err)
	}

	resp, err := ParseResponse(raw)
	if err != nil {
		s.logger.Debug("Unparseable reasoning output", "doc", in.DocumentID, "batch", in.Batch.Index, "raw", raw)
		degraded.Reason = raw
		return degraded, fmt.Errorf("parse %s batch %d: %w", in.DocumentID, in.Batch.Index, err)
	}

	return &evidence.Finding{
		DocumentID:     in.DocumentID,
		BatchIndex:     in.Batch.Index,
		Query:          in.Query,
		Questions:      resp.Questions,
		RelevanceScore: resp.Score,
		Summary:        resp.Summary,
		Reason:         resp.Reason,
		SentenceIDs:    in.Batch.SentenceIDs,
		SourceText:     in.Batch.Text,
	}, nil
}

// Condenser distils a memory slot pair with the "summary" response schema.
type Condenser struct {
	llm       llm.Completer
	maxTokens int
	temp      float64
	language  string
}

// NewCondenser creates a memory condenser sharing the step's model settings.
func (s *Step) NewCondenser(language string) *Condenser {
	return &Condenser{
		llm:       s.llm,
		maxTokens: s.opts.CondenseMaxTokens,
		temp:      s.opts.Temperature,
		language:  language,
	}
}

// Condense implements memory.Condenser.
func (c *Condenser) Condense(ctx context.Context, query, documentID string, mem evidence.MemorySlot) (string, error) {
	prompt, err := BuildCondensePrompt(query, documentID, mem, c.language)
	if err != nil {
		return "", err
	}
	raw, err := c.llm.Complete(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
		Schema:      llm.SchemaSummary,
	})
	if err != nil {
		return "", fmt.Errorf("condense memory: %w", err)
	}
	resp, err := llm.ParseSummary(raw)
	if err != nil {
		return "", fmt.Errorf("condense memory: %w", err)
	}
	return resp.Summary, nil
}
