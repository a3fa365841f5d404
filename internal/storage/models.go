package storage

import "time"

// SentencePoint is one sentence with its embedding, as stored in Qdrant.
// The vector index only answers "which documents match"; full text for
// reasoning comes from the catalog.
type SentencePoint struct {
	ID         string    // UUID, derived from document and sentence id
	DocumentID string    // Source document identifier
	PageID     int       // Paragraph index
	SentenceID int       // Global sentence index within the document
	Text       string    // Sentence text
	Embedding  []float32 // 1536-dim vector (text-embedding-3-small)
}

// ScoredSentence is a similarity-search hit.
type ScoredSentence struct {
	*SentencePoint
	Score float64
}

// DocumentInfo describes one ingested document in the catalog.
type DocumentInfo struct {
	ID         string
	Source     string // Where the document was read from
	Paragraphs int
	Sentences  int
	IngestedAt time.Time
}

// CatalogStats summarises the catalog contents.
type CatalogStats struct {
	Documents    int
	Sentences    int
	LastIngested time.Time
}

// DefaultCollectionName is the Qdrant collection holding sentence vectors.
const DefaultCollectionName = "sentences"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// vectorName is the named vector every sentence point carries.
const vectorName = "content"
