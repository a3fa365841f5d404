// Package mcp exposes the evidence index and run results as MCP tools.
package mcp

import "time"

// SearchEvidenceInput defines the input parameters for the search_evidence tool.
type SearchEvidenceInput struct {
	// Query is the investigative question or keywords.
	Query string `json:"query" jsonschema:"The investigative query to search case files for"`
	// MaxResults is the maximum number of documents to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"Maximum number of documents to return"`
	// MinScore is the minimum sentence similarity (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Minimum sentence similarity score (0-1)"`
}

// SearchEvidenceOutput contains the search results.
type SearchEvidenceOutput struct {
	Results []DocumentHit `json:"results"`
	// Message provides informational context (e.g., "No matching evidence found").
	Message string `json:"message,omitempty"`
}

// DocumentHit groups the matching sentences of one document.
type DocumentHit struct {
	DocumentID string        `json:"document_id"`
	Score      float64       `json:"score"` // Best sentence score
	Sentences  []SentenceHit `json:"sentences"`
}

// SentenceHit is one matching sentence.
type SentenceHit struct {
	SentenceID int     `json:"sentence_id"`
	PageID     int     `json:"page_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// FetchDocumentInput defines the input parameters for the fetch_document tool.
type FetchDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"The document id (file name without extension)"`
	// FromSentence and ToSentence bound the returned sentence ids (inclusive).
	FromSentence int `json:"from_sentence,omitempty" jsonschema:"First sentence id to return"`
	ToSentence   int `json:"to_sentence,omitempty" jsonschema:"Last sentence id to return (0 = to the end)"`
}

// FetchDocumentOutput contains the retrieved document.
type FetchDocumentOutput struct {
	DocumentID string `json:"document_id"`
	// Content is the selected sentences, one paragraph per line.
	Content   string `json:"content"`
	Sentences int    `json:"sentences"`
	// Found indicates whether the document exists.
	Found bool `json:"found"`
}

// ListFindingsInput defines the input parameters for the list_findings tool.
type ListFindingsInput struct {
	Run      string `json:"run,omitempty" jsonschema:"Run directory name (default: latest run)"`
	Query    string `json:"query,omitempty" jsonschema:"Only findings whose query contains this text"`
	MinScore int    `json:"min_score,omitempty" jsonschema:"Minimum relevance score (0-3)"`
}

// ListFindingsOutput contains the findings of one run.
type ListFindingsOutput struct {
	Run      string        `json:"run"`
	Runs     []string      `json:"runs"` // Every available run, oldest first
	Findings []FindingItem `json:"findings"`
	Degraded int           `json:"degraded"` // Failed batches left out
}

// FindingItem is one batch finding.
type FindingItem struct {
	Query       string   `json:"query"`
	DocumentID  string   `json:"document_id"`
	Batch       int      `json:"batch"`
	Score       int      `json:"score"`
	Summary     string   `json:"summary"`
	Reason      string   `json:"reason"`
	Questions   []string `json:"questions"`
	SentenceIDs []int    `json:"sentence_ids"`
}

// SummarizeRunInput defines the input parameters for the summarize_run tool.
type SummarizeRunInput struct {
	Run string `json:"run,omitempty" jsonschema:"Run directory name (default: latest run)"`
}

// SummarizeRunOutput contains one meta-summary per query.
type SummarizeRunOutput struct {
	Run       string        `json:"run"`
	Summaries []MetaSummary `json:"summaries"`
}

// MetaSummary is the cross-document synthesis of one query.
type MetaSummary struct {
	Query      string   `json:"query"`
	Summary    string   `json:"summary"`
	References []string `json:"references"`
}

// StatusInput defines the input parameters for the get_index_status tool.
type StatusInput struct{}

// StatusOutput describes the index and result store.
type StatusOutput struct {
	Documents    int    `json:"documents"`
	Sentences    int    `json:"sentences"`
	VectorPoints uint64 `json:"vector_points"`
	LastIngested string `json:"last_ingested,omitempty"`
	Runs         int    `json:"runs"`
	LatestRun    string `json:"latest_run,omitempty"`
	// Warning flags a catalog and vector index that disagree.
	Warning string `json:"warning,omitempty"`
}

const timeLayout = time.RFC3339
