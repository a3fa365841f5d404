// Package investigate drives the reasoning loop: the Iterator walks the
// batches of one document for one query, and the Runner walks every matched
// document of every query.
package investigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/evidence-rag/internal/batch"
	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/memory"
	"github.com/bull/evidence-rag/internal/reasoning"
)

// Reasoner runs one reasoning step. It must return a Finding even when it
// also returns an error.
type Reasoner interface {
	Reason(ctx context.Context, in reasoning.Input) (*evidence.Finding, error)
}

// Sink receives findings as soon as they are produced.
type Sink interface {
	Append(f *evidence.Finding) error
}

// IteratorOptions configures an Iterator.
type IteratorOptions struct {
	Budget    int              // Words per batch
	Language  string           // Prompt language
	Condenser memory.Condenser // Optional; nil feeds the raw previous summary forward
}

// Iterator processes the batches of one document for one query.
type Iterator struct {
	reasoner Reasoner
	opts     IteratorOptions
	logger   *slog.Logger
}

// DocumentStats counts what one document run produced.
type DocumentStats struct {
	Batches  int
	Degraded int
}

// NewIterator creates an Iterator. A nil logger uses slog.Default().
func NewIterator(reasoner Reasoner, opts IteratorOptions, logger *slog.Logger) *Iterator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Iterator{reasoner: reasoner, opts: opts, logger: logger}
}

// Run batches sentences and reasons over each batch in order, threading a
// fresh memory through them and handing every finding to sink before the
// next batch starts. A degraded batch is recorded and skipped over; only
// invalid arguments, cancellation and sink failures stop the document.
func (it *Iterator) Run(ctx context.Context, query, documentID string, sentences []evidence.Sentence, sink Sink) (DocumentStats, error) {
	var stats DocumentStats
	if query == "" {
		return stats, fmt.Errorf("%w: empty query", evidence.ErrInvalidArgument)
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	batches, err := batch.Split(texts, it.opts.Budget)
	if err != nil {
		return stats, err
	}

	thread := memory.NewThread()
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if len(b.Sentences) == 0 {
			it.logger.Debug("Skipping empty batch", "doc", documentID, "batch", b.Index)
			continue
		}

		// Batch positions become the document's own sentence ids.
		ids := make([]int, len(b.SentenceIDs))
		for i, pos := range b.SentenceIDs {
			ids[i] = sentences[pos].SentenceID
		}
		b.SentenceIDs = ids

		prior, err := thread.PriorWith(ctx, it.opts.Condenser, query, documentID)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			it.logger.Warn("Memory condensation failed, using previous summary",
				"doc", documentID, "batch", b.Index, "error", err)
		}

		finding, err := it.reasoner.Reason(ctx, reasoning.Input{
			Query:      query,
			DocumentID: documentID,
			Batch:      b,
			Prior:      prior,
			Language:   it.opts.Language,
		})
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if errors.Is(err, evidence.ErrInvalidArgument) {
				return stats, err
			}
			it.logger.Warn("Degraded finding", "doc", documentID, "batch", b.Index, "error", err)
		}
		if finding == nil {
			finding = evidence.NewDegradedFinding(query, documentID, b)
		}

		summary := finding.Summary
		if finding.Degraded() {
			summary = ""
			stats.Degraded++
		}
		finding.Memory = thread.Advance(summary)

		if err := sink.Append(finding); err != nil {
			return stats, fmt.Errorf("persist %s batch %d: %w", documentID, b.Index, err)
		}
		stats.Batches++
		it.logger.Debug("Batch processed", "doc", documentID, "batch", b.Index,
			"score", finding.RelevanceScore)
	}
	return stats, nil
}
