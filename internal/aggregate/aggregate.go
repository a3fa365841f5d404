// Package aggregate turns the result logs of a run into one cross-document
// meta-summary per query.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/llm"
	"github.com/bull/evidence-rag/internal/resultlog"
)

// DefaultMaxTokens is the generation budget for one meta-summary.
const DefaultMaxTokens = 2000

const processingPrompt = "You are an AI assisting a criminal investigation, analyzing case files. " +
	"You follow strict logical and deductive reasoning, and will only present information for which you have a complete overview of. " +
	"Avoid assumptions and uncertainty. Do not repeat yourself. " +
	"You receive the following information: '{text}'. " +
	"Assess the relevance of each document to the query '{query}' and write a highly detailed summary " +
	"(including involved persons, objects, locations and other entities), based on the most relevant documents. " +
	"Return a JSON object with the summary and references to the most relevant documents."

// Options configures an Aggregator.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Aggregator produces meta-summaries.
type Aggregator struct {
	llm    llm.Completer
	opts   Options
	logger *slog.Logger
}

// New creates an Aggregator. A nil logger uses slog.Default().
func New(completer llm.Completer, opts Options, logger *slog.Logger) *Aggregator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{llm: completer, opts: opts, logger: logger}
}

// Input reduces a query's findings to the aggregation text: the distinct
// summaries in first-seen order, one per line. Degraded and empty summaries
// are left out.
func Input(findings []*evidence.Finding) string {
	seen := make(map[string]struct{}, len(findings))
	var unique []string
	for _, f := range findings {
		if f.Degraded() || f.Summary == "" {
			continue
		}
		if _, ok := seen[f.Summary]; ok {
			continue
		}
		seen[f.Summary] = struct{}{}
		unique = append(unique, f.Summary)
	}
	return strings.Join(unique, "\n")
}

// BuildPrompt renders the aggregation instruction.
func BuildPrompt(query, text string) string {
	return strings.NewReplacer("{text}", text, "{query}", query).Replace(processingPrompt)
}

// SummarizeRun produces a meta-summary for every result log in runDir, in
// log file order. Queries without a usable answer are logged and left out,
// so the result may be shorter than the number of logs.
func (a *Aggregator) SummarizeRun(ctx context.Context, runDir string) ([]evidence.MetaSummary, error) {
	paths, err := resultlog.List(runDir)
	if err != nil {
		return nil, err
	}

	metas := make([]evidence.MetaSummary, 0, len(paths))
	for _, path := range paths {
		meta, err := a.SummarizeLog(ctx, path)
		if err != nil {
			return metas, err
		}
		if meta != nil {
			metas = append(metas, *meta)
		}
	}
	a.logger.Info("Run summarized", "dir", runDir, "logs", len(paths), "summaries", len(metas))
	return metas, nil
}

// SummarizeLog produces the meta-summary of one result log, or nil when the
// query yields none.
func (a *Aggregator) SummarizeLog(ctx context.Context, path string) (*evidence.MetaSummary, error) {
	findings, err := resultlog.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		a.logger.Warn("No meta-summary: result log is empty", "log", path)
		return nil, nil
	}
	return a.Summarize(ctx, findings)
}

// Summarize asks the model for one meta-summary over findings, which must all
// belong to the same query (the first finding's query is used). It returns
// nil, nil when there is nothing to summarize or the model gives no summary;
// only cancellation and invalid arguments are returned as errors.
func (a *Aggregator) Summarize(ctx context.Context, findings []*evidence.Finding) (*evidence.MetaSummary, error) {
	if len(findings) == 0 {
		return nil, nil
	}
	query := findings[0].Query

	degraded := 0
	for _, f := range findings {
		if f.Degraded() {
			degraded++
		}
	}
	text := Input(findings)
	if text == "" {
		a.logger.Warn("No meta-summary: no usable findings", "query", query,
			"findings", len(findings), "degraded", degraded)
		return nil, nil
	}
	a.logger.Debug("Aggregating findings", "query", query, "findings", len(findings), "degraded", degraded)

	raw, err := a.llm.Complete(ctx, llm.Request{
		Prompt:      BuildPrompt(query, text),
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
		Schema:      llm.SchemaFindings,
	})
	if err == nil {
		var resp *llm.FindingsResponse
		resp, err = llm.ParseFindings(raw)
		if err == nil {
			return &evidence.MetaSummary{Query: query, Summary: resp.Summary, References: resp.References}, nil
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, evidence.ErrInvalidArgument) {
		return nil, fmt.Errorf("aggregate %q: %w", query, err)
	}
	a.logger.Warn("No meta-summary: model gave no summary", "query", query, "error", err)
	return nil, nil
}
