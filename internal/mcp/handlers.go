package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/resultlog"
	"github.com/bull/evidence-rag/internal/storage"
)

// Searcher finds sentences similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, topN int) ([]*storage.ScoredSentence, error)
}

// Catalog reads stored sentences.
type Catalog interface {
	Sentences(ctx context.Context, documentID string) ([]evidence.Sentence, error)
	Stats(ctx context.Context) (*storage.CatalogStats, error)
}

// PointCounter reports the vector index size.
type PointCounter interface {
	PointsCount(ctx context.Context) (uint64, error)
}

// Summarizer produces meta-summaries for a run directory.
type Summarizer interface {
	SummarizeRun(ctx context.Context, runDir string) ([]evidence.MetaSummary, error)
}

// makeSearchHandler creates the search_evidence tool handler.
// Search flow:
// 1. Search sentences (limit * 5 to get enough distinct documents)
// 2. Filter by minimum score threshold
// 3. Group by document, ordered by best sentence score
// 4. Return up to MaxResults documents
func makeSearchHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchEvidenceInput,
) (*mcp.CallToolResult, SearchEvidenceOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchEvidenceInput) (
		*mcp.CallToolResult, SearchEvidenceOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		hits, err := searcher.Search(ctx, input.Query, maxResults*5)
		if err != nil {
			return nil, SearchEvidenceOutput{}, fmt.Errorf("search failed: %w", err)
		}

		// Hits arrive best first, so the first hit per document is its best.
		byDoc := make(map[string]int)
		results := make([]DocumentHit, 0)
		for _, h := range hits {
			if h.Score < input.MinScore {
				continue
			}
			i, seen := byDoc[h.DocumentID]
			if !seen {
				if len(results) == maxResults {
					continue
				}
				i = len(results)
				byDoc[h.DocumentID] = i
				results = append(results, DocumentHit{DocumentID: h.DocumentID, Score: h.Score})
			}
			results[i].Sentences = append(results[i].Sentences, SentenceHit{
				SentenceID: h.SentenceID,
				PageID:     h.PageID,
				Text:       h.Text,
				Score:      h.Score,
			})
		}

		if len(results) == 0 {
			return nil, SearchEvidenceOutput{
				Results: []DocumentHit{},
				Message: "No matching evidence found. Try broader search terms.",
			}, nil
		}
		return nil, SearchEvidenceOutput{Results: results}, nil
	}
}

// makeFetchHandler creates the fetch_document tool handler.
// Sentences of one paragraph share a line.
func makeFetchHandler(catalog Catalog) func(
	context.Context, *mcp.CallToolRequest, FetchDocumentInput,
) (*mcp.CallToolResult, FetchDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FetchDocumentInput) (
		*mcp.CallToolResult, FetchDocumentOutput, error,
	) {
		sentences, err := catalog.Sentences(ctx, input.DocumentID)
		if err != nil {
			if errors.Is(err, storage.ErrDocumentNotFound) {
				return nil, FetchDocumentOutput{DocumentID: input.DocumentID, Found: false}, nil
			}
			return nil, FetchDocumentOutput{}, fmt.Errorf("failed to fetch document: %w", err)
		}

		var b strings.Builder
		count := 0
		page := -1
		for _, s := range sentences {
			if s.SentenceID < input.FromSentence || (input.ToSentence > 0 && s.SentenceID > input.ToSentence) {
				continue
			}
			switch {
			case page == -1:
			case s.PageID != page:
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}
			page = s.PageID
			b.WriteString(s.Text)
			count++
		}

		return nil, FetchDocumentOutput{
			DocumentID: input.DocumentID,
			Content:    b.String(),
			Sentences:  count,
			Found:      true,
		}, nil
	}
}

func runNames(runs []resultlog.Run) []string {
	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.Name
	}
	return names
}

// makeListFindingsHandler creates the list_findings tool handler.
// Degraded findings are counted, not listed.
func makeListFindingsHandler(outputDir string) func(
	context.Context, *mcp.CallToolRequest, ListFindingsInput,
) (*mcp.CallToolResult, ListFindingsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListFindingsInput) (
		*mcp.CallToolResult, ListFindingsOutput, error,
	) {
		runs, err := resultlog.ListRuns(outputDir)
		if err != nil {
			return nil, ListFindingsOutput{}, err
		}
		run, err := resultlog.ResolveRun(outputDir, input.Run)
		if err != nil {
			return nil, ListFindingsOutput{}, err
		}
		paths, err := resultlog.List(run.Path)
		if err != nil {
			return nil, ListFindingsOutput{}, err
		}

		out := ListFindingsOutput{Run: run.Name, Runs: runNames(runs), Findings: []FindingItem{}}
		for _, path := range paths {
			findings, err := resultlog.ReadFile(path)
			if err != nil {
				return nil, ListFindingsOutput{}, err
			}
			for _, f := range findings {
				if input.Query != "" && !strings.Contains(strings.ToLower(f.Query), strings.ToLower(input.Query)) {
					continue
				}
				if f.Degraded() {
					out.Degraded++
					continue
				}
				if f.RelevanceScore < input.MinScore {
					continue
				}
				out.Findings = append(out.Findings, FindingItem{
					Query:       f.Query,
					DocumentID:  f.DocumentID,
					Batch:       f.BatchIndex,
					Score:       f.RelevanceScore,
					Summary:     f.Summary,
					Reason:      f.Reason,
					Questions:   f.Questions,
					SentenceIDs: f.SentenceIDs,
				})
			}
		}
		return nil, out, nil
	}
}

// makeSummarizeHandler creates the summarize_run tool handler.
func makeSummarizeHandler(outputDir string, summarizer Summarizer) func(
	context.Context, *mcp.CallToolRequest, SummarizeRunInput,
) (*mcp.CallToolResult, SummarizeRunOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SummarizeRunInput) (
		*mcp.CallToolResult, SummarizeRunOutput, error,
	) {
		run, err := resultlog.ResolveRun(outputDir, input.Run)
		if err != nil {
			return nil, SummarizeRunOutput{}, err
		}
		metas, err := summarizer.SummarizeRun(ctx, run.Path)
		if err != nil {
			return nil, SummarizeRunOutput{}, fmt.Errorf("summarize %s: %w", run.Name, err)
		}

		out := SummarizeRunOutput{Run: run.Name, Summaries: make([]MetaSummary, 0, len(metas))}
		for _, m := range metas {
			refs := m.References
			if refs == nil {
				refs = []string{} // Ensure non-nil for JSON marshaling
			}
			out.Summaries = append(out.Summaries, MetaSummary{Query: m.Query, Summary: m.Summary, References: refs})
		}
		return nil, out, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
// Reports catalog counts, vector index size and available runs, and warns
// when the catalog and the vector index disagree.
func makeStatusHandler(catalog Catalog, index PointCounter, outputDir string) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		stats, err := catalog.Stats(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("catalog_error: %w", err)
		}
		points, err := index.PointsCount(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("qdrant_error: %w", err)
		}
		runs, err := resultlog.ListRuns(outputDir)
		if err != nil {
			return nil, StatusOutput{}, err
		}

		out := StatusOutput{
			Documents:    stats.Documents,
			Sentences:    stats.Sentences,
			VectorPoints: points,
			Runs:         len(runs),
		}
		if !stats.LastIngested.IsZero() {
			out.LastIngested = stats.LastIngested.UTC().Format(timeLayout)
		}
		if len(runs) > 0 {
			out.LatestRun = runs[len(runs)-1].Name
		}
		if uint64(stats.Sentences) != points {
			out.Warning = fmt.Sprintf("Catalog holds %d sentences but the vector index holds %d points. Consider re-ingesting.",
				stats.Sentences, points)
		}
		return nil, out, nil
	}
}
