package investigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/resultlog"
)

// AllDocuments is the top-N sentinel for "every ingested document".
const AllDocuments = -1

// Retriever is the retrieval capability the Runner needs.
type Retriever interface {
	Match(ctx context.Context, query string, topN int) ([]string, error)
	FetchSentences(ctx context.Context, documentID string) ([]evidence.Sentence, error)
	DocumentCount(ctx context.Context) (int, error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	OutputDir string
	TopN      int // AllDocuments (or any value <= 0) searches every document
	Workers   int // Concurrent documents per query; defaults to 1
	Now       func() time.Time
}

// QueryLog describes the result log of one query.
type QueryLog struct {
	Query     string
	Path      string
	Documents []string
	Failed    []string // Documents whose sentences could not be fetched
	Findings  int
	Degraded  int
}

// RunResult describes one complete run.
type RunResult struct {
	Dir     string
	TopN    int // Resolved search depth
	Queries []QueryLog
}

// Runner executes a set of queries over the matched documents of each.
type Runner struct {
	retriever Retriever
	iterator  *Iterator
	opts      RunnerOptions
	logger    *slog.Logger
}

// NewRunner creates a Runner. A nil logger uses slog.Default().
func NewRunner(retriever Retriever, iterator *Iterator, opts RunnerOptions, logger *slog.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{retriever: retriever, iterator: iterator, opts: opts, logger: logger}
}

// Run processes queries in order, writing one result log per query into a
// fresh run directory. On cancellation the logs keep every finding written
// so far and the partial result is returned with the context error.
func (r *Runner) Run(ctx context.Context, queries []string) (*RunResult, error) {
	cleaned, err := cleanQueries(queries)
	if err != nil {
		return nil, err
	}

	topN := r.opts.TopN
	if topN <= 0 {
		n, err := r.retriever.DocumentCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		topN = n
	}

	result := &RunResult{
		Dir:  resultlog.RunDir(r.opts.OutputDir, topN, r.opts.Now()),
		TopN: topN,
	}
	r.logger.Info("Starting run", "dir", result.Dir, "queries", len(cleaned), "top_n", topN)

	for _, query := range cleaned {
		qlog, err := r.runQuery(ctx, result.Dir, query, topN)
		if qlog != nil {
			result.Queries = append(result.Queries, *qlog)
		}
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *Runner) runQuery(ctx context.Context, dir, query string, topN int) (*QueryLog, error) {
	ids, err := r.retriever.Match(ctx, query, topN)
	if err != nil {
		return nil, fmt.Errorf("match %q: %w", query, err)
	}
	ids = dedupe(ids)

	w, err := resultlog.Create(dir, resultlog.LogName(r.opts.Now(), query))
	if err != nil {
		return nil, err
	}

	qlog := &QueryLog{Query: query, Path: w.Path(), Documents: ids}
	r.logger.Info("Processing query", "query", query, "documents", len(ids), "log", w.Path())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, id := range ids {
		g.Go(func() error {
			sentences, err := r.retriever.FetchSentences(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("Failed to fetch document", "query", query, "doc", id, "error", err)
				mu.Lock()
				qlog.Failed = append(qlog.Failed, id)
				mu.Unlock()
				return nil
			}

			stats, err := r.iterator.Run(gctx, query, id, sentences, w)
			mu.Lock()
			qlog.Degraded += stats.Degraded
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()
	qlog.Findings = w.Count()

	// errgroup cancels gctx on the first failure; report the parent's
	// cancellation as such.
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		err = ctx.Err()
	}
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	r.logger.Info("Query complete", "query", query, "findings", qlog.Findings,
		"degraded", qlog.Degraded, "failed_documents", len(qlog.Failed))
	return qlog, err
}

func cleanQueries(queries []string) ([]string, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no queries", evidence.ErrInvalidArgument)
	}
	out := make([]string, 0, len(queries))
	for i, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, fmt.Errorf("%w: query %d is empty", evidence.ErrInvalidArgument, i)
		}
		out = append(out, q)
	}
	return out, nil
}

// dedupe drops repeated ids, keeping first occurrences in order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
