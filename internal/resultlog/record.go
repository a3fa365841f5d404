// Package resultlog persists findings as one JSON object per line. The file
// format is the contract between a run and the meta-aggregation that follows.
package resultlog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bull/evidence-rag/internal/evidence"
)

// Record is the on-disk shape of one finding.
type Record struct {
	ID               string    `json:"id"`
	Batch            int       `json:"batch"`
	Query            string    `json:"query"`
	LLMOutput        LLMOutput `json:"llm_output"`
	SentencesInBatch []int     `json:"sentences_in_batch"`
	Text             string    `json:"text"`
	Memory           []string  `json:"memory"`
}

// LLMOutput is the structured model answer stored with each record.
type LLMOutput struct {
	Questions []Question `json:"questions"`
	Reason    string     `json:"reason"`
	Score     int        `json:"score"`
	Summary   string     `json:"summary"`
}

// Question is one investigative question. It is written as
// {"question": "..."} and also read back from a bare string.
type Question struct {
	Question string `json:"question"`
}

// UnmarshalJSON accepts both the object and the bare-string form.
func (q *Question) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		q.Question = s
		return nil
	}
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("question: %w", err)
	}
	for k, v := range obj {
		if strings.ToLower(k) == "question" {
			q.Question = v
			return nil
		}
	}
	return fmt.Errorf("question: no \"question\" key")
}

// FromFinding converts a finding to its persisted record.
func FromFinding(f *evidence.Finding) Record {
	questions := make([]Question, len(f.Questions))
	for i, q := range f.Questions {
		questions[i] = Question{Question: q}
	}
	ids := f.SentenceIDs
	if ids == nil {
		ids = []int{}
	}
	return Record{
		ID:    f.DocumentID,
		Batch: f.BatchIndex,
		Query: f.Query,
		LLMOutput: LLMOutput{
			Questions: questions,
			Reason:    f.Reason,
			Score:     f.RelevanceScore,
			Summary:   f.Summary,
		},
		SentencesInBatch: ids,
		Text:             f.SourceText,
		Memory:           f.Memory.Pair(),
	}
}

// Finding converts a persisted record back to a finding.
func (r Record) Finding() *evidence.Finding {
	questions := make([]string, len(r.LLMOutput.Questions))
	for i, q := range r.LLMOutput.Questions {
		questions[i] = q.Question
	}
	var mem evidence.MemorySlot
	if len(r.Memory) > 0 {
		mem.Previous = r.Memory[0]
	}
	if len(r.Memory) > 1 {
		mem.Current = r.Memory[1]
	}
	return &evidence.Finding{
		DocumentID:     r.ID,
		BatchIndex:     r.Batch,
		Query:          r.Query,
		Questions:      questions,
		RelevanceScore: r.LLMOutput.Score,
		Summary:        r.LLMOutput.Summary,
		Reason:         r.LLMOutput.Reason,
		Memory:         mem,
		SentenceIDs:    r.SentencesInBatch,
		SourceText:     r.Text,
	}
}
