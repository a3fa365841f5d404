// Package batch groups an ordered sentence sequence into word-budget-bounded
// batches small enough for one model context.
package batch

import (
	"fmt"
	"strings"

	"github.com/bull/evidence-rag/internal/evidence"
)

// WordsPerToken approximates how many context tokens one word consumes.
// A context of N tokens therefore gets a batch budget of N/WordsPerToken words.
const WordsPerToken = 4

// BudgetForContext derives the word budget for a model context length.
func BudgetForContext(contextLength int) int {
	return contextLength / WordsPerToken
}

// WordCount is the token-length proxy: whitespace-delimited fields.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Split assigns every sentence, in order, to exactly one batch.
//
// A running word count is kept for the open batch. After a sentence is added,
// if the count exceeds budget the batch is closed and the next sentence starts
// a new one. The sentence that crossed the threshold stays where it is, so an
// oversized sentence is never split or dropped. Empty input yields a single
// empty batch.
func Split(sentences []string, budget int) ([]evidence.Batch, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("%w: batch budget must be > 0, got %d", evidence.ErrInvalidArgument, budget)
	}

	batches := []evidence.Batch{{Index: 0}}
	count := 0
	for i, sentence := range sentences {
		cur := &batches[len(batches)-1]
		cur.SentenceIDs = append(cur.SentenceIDs, i)
		cur.Sentences = append(cur.Sentences, sentence)

		count += WordCount(sentence)
		if count > budget && i < len(sentences)-1 {
			count = 0
			batches = append(batches, evidence.Batch{Index: len(batches)})
		}
	}

	for i := range batches {
		batches[i].Text = strings.Join(batches[i].Sentences, " ")
	}
	return batches, nil
}
