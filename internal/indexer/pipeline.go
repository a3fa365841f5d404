package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/ingest"
	"github.com/bull/evidence-rag/internal/storage"
)

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs      int
	SuccessfulDocs int
	Paragraphs     int
	Sentences      int
	FailedDocs     []FailedDoc
	Revision       string // Source revision, e.g. a commit SHA, when known
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Path   string
	Reason string
}

// Embedder generates sentence embeddings.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores sentence vectors.
type VectorIndex interface {
	DeleteDocument(ctx context.Context, documentID string) error
	UpsertSentences(ctx context.Context, points []*storage.SentencePoint) error
}

// Catalog stores sentence text.
type Catalog interface {
	ReplaceDocument(ctx context.Context, info storage.DocumentInfo, sentences []evidence.Sentence) error
}

// Pipeline orchestrates indexing from parsed documents to storage.
type Pipeline struct {
	embedder Embedder
	index    VectorIndex
	catalog  Catalog
	logger   *slog.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
func NewPipeline(embedder Embedder, index VectorIndex, catalog Catalog, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		catalog:  catalog,
		logger:   logger,
	}
}

// IndexAll embeds and stores every loaded document, replacing earlier
// versions of the same document ids. Files the loader could not read are
// reported as failures alongside documents that failed to index.
func (p *Pipeline) IndexAll(ctx context.Context, loaded *ingest.Loaded, revision string) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{
		TotalDocs: len(loaded.Documents) + len(loaded.Failed),
		Revision:  revision,
	}
	for _, f := range loaded.Failed {
		result.FailedDocs = append(result.FailedDocs, FailedDoc{Path: f.Path, Reason: f.Reason})
	}
	p.logger.Info("Starting indexing", "documents", len(loaded.Documents), "revision", revision)

	for _, doc := range loaded.Documents {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.processDocument(ctx, doc); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			p.logger.Warn("Failed to index document", "doc", doc.ID, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   doc.Source,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.Paragraphs += doc.Paragraphs
		result.Sentences += len(doc.Sentences)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"sentences", result.Sentences,
		"duration", result.Duration,
	)
	return result, nil
}

// processDocument embeds one document and writes it to both stores.
func (p *Pipeline) processDocument(ctx context.Context, doc *ingest.Document) error {
	texts := make([]string, len(doc.Sentences))
	for i, s := range doc.Sentences {
		texts[i] = s.Text
	}

	embeddings, err := p.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("embeddings: got %d for %d sentences", len(embeddings), len(texts))
	}

	points := make([]*storage.SentencePoint, len(doc.Sentences))
	for i, s := range doc.Sentences {
		points[i] = &storage.SentencePoint{
			ID:         storage.SentencePointID(doc.ID, s.SentenceID),
			DocumentID: doc.ID,
			PageID:     s.PageID,
			SentenceID: s.SentenceID,
			Text:       s.Text,
			Embedding:  embeddings[i],
		}
	}

	// A shorter re-ingested document must not leave stale points behind.
	if err := p.index.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	if err := p.index.UpsertSentences(ctx, points); err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}

	info := storage.DocumentInfo{
		ID:         doc.ID,
		Source:     doc.Source,
		Paragraphs: doc.Paragraphs,
		Sentences:  len(doc.Sentences),
		IngestedAt: time.Now(),
	}
	if err := p.catalog.ReplaceDocument(ctx, info, doc.Sentences); err != nil {
		return fmt.Errorf("store sentences: %w", err)
	}

	p.logger.Info("Indexed document", "doc", doc.ID, "sentences", len(doc.Sentences))
	return nil
}
