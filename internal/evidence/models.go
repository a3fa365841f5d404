// Package evidence holds the data model shared by the batching, reasoning,
// persistence and aggregation stages.
package evidence

// DegradedScore is the relevance score recorded when a reasoning step failed.
const DegradedScore = -1

// DegradedQuestion is the placeholder question recorded on a degraded finding.
const DegradedQuestion = "Error generating questions..."

// Sentence is one parsed sentence of an ingested document.
type Sentence struct {
	DocumentID string // Source document identifier (file name without extension)
	PageID     int    // Paragraph index within the document
	SentenceID int    // Global sentence index within the document
	Text       string
}

// Batch is a contiguous, budget-bounded run of sentences.
type Batch struct {
	Index       int
	SentenceIDs []int    // Positions in the input sentence sequence
	Sentences   []string // Member sentence texts in order
	Text        string   // Sentences joined by a single space
}

// MemorySlot is the rolling two-slot memory threaded between batches of one
// document for one query.
type MemorySlot struct {
	Previous string
	Current  string
}

// Pair returns the slots in persisted order.
func (m MemorySlot) Pair() []string {
	return []string{m.Previous, m.Current}
}

// IsEmpty reports whether neither slot holds a summary.
func (m MemorySlot) IsEmpty() bool {
	return m.Previous == "" && m.Current == ""
}

// Finding is the structured output of one reasoning step over one batch.
type Finding struct {
	DocumentID     string
	BatchIndex     int
	Query          string
	Questions      []string
	RelevanceScore int
	Summary        string
	Reason         string
	Memory         MemorySlot
	SentenceIDs    []int
	SourceText     string
}

// Degraded reports whether the finding carries the failure sentinel.
func (f *Finding) Degraded() bool {
	return f.RelevanceScore == DegradedScore
}

// NewDegradedFinding builds the sentinel finding recorded when a batch could
// not be reasoned over.
func NewDegradedFinding(query, documentID string, batch Batch) *Finding {
	return &Finding{
		DocumentID:     documentID,
		BatchIndex:     batch.Index,
		Query:          query,
		Questions:      []string{DegradedQuestion},
		RelevanceScore: DegradedScore,
		Summary:        "",
		SentenceIDs:    batch.SentenceIDs,
		SourceText:     batch.Text,
	}
}

// MetaSummary is the cross-document synthesis for one query.
type MetaSummary struct {
	Query      string   `json:"query"`
	Summary    string   `json:"summary"`
	References []string `json:"references,omitempty"`
}
