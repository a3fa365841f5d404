// Package retrieval answers "which documents matter for this query" and
// "what does this document say" against the ingested corpus.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/storage"
)

// AllDocuments requests every indexed document instead of a top-N cut.
const AllDocuments = -1

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex finds sentences similar to a query vector.
type VectorIndex interface {
	SearchSentences(ctx context.Context, embedding []float32, limit int) ([]*storage.ScoredSentence, error)
}

// Catalog is the durable sentence store.
type Catalog interface {
	Sentences(ctx context.Context, documentID string) ([]evidence.Sentence, error)
	DocumentCount(ctx context.Context) (int, error)
}

// Service composes embedding, vector search and the sentence catalog.
type Service struct {
	embedder Embedder
	index    VectorIndex
	catalog  Catalog
	logger   *slog.Logger
}

// NewService creates a retrieval service. A nil logger uses slog.Default().
func NewService(embedder Embedder, index VectorIndex, catalog Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, index: index, catalog: catalog, logger: logger}
}

// Match returns the distinct document ids among the topN sentences most
// similar to query, sorted. topN <= 0 searches as many sentence hits as there
// are documents; several hits may share a document, so fewer documents than
// that can come back.
func (s *Service) Match(ctx context.Context, query string, topN int) ([]string, error) {
	hits, err := s.Search(ctx, query, topN)
	if err != nil {
		return nil, err
	}
	return DocumentIDs(hits), nil
}

// Search returns the raw sentence hits for query, best first.
func (s *Service) Search(ctx context.Context, query string, topN int) ([]*storage.ScoredSentence, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", evidence.ErrInvalidArgument)
	}

	limit := topN
	if limit <= 0 {
		n, err := s.catalog.DocumentCount(ctx)
		if err != nil {
			return nil, err
		}
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.SearchSentences(ctx, vector, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sentence search", "query", query, "limit", limit, "hits", len(hits))
	return hits, nil
}

// FetchSentences returns a document's sentences in order.
func (s *Service) FetchSentences(ctx context.Context, documentID string) ([]evidence.Sentence, error) {
	return s.catalog.Sentences(ctx, documentID)
}

// DocumentCount returns the number of ingested documents.
func (s *Service) DocumentCount(ctx context.Context) (int, error) {
	return s.catalog.DocumentCount(ctx)
}

// DocumentIDs reduces hits to their sorted set of document ids.
func DocumentIDs(hits []*storage.ScoredSentence) []string {
	seen := make(map[string]struct{}, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.DocumentID]; ok {
			continue
		}
		seen[h.DocumentID] = struct{}{}
		ids = append(ids, h.DocumentID)
	}
	sort.Strings(ids)
	return ids
}
