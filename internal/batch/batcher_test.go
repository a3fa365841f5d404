package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/evidence-rag/internal/evidence"
)

func TestSplit_SingleBatch(t *testing.T) {
	sentences := []string{"The door was open.", "A knife lay on the floor.", "Nobody was home."}

	batches, err := Split(sentences, 100)
	require.NoError(t, err)

	require.Len(t, batches, 1)
	assert.Equal(t, 0, batches[0].Index)
	assert.Equal(t, []int{0, 1, 2}, batches[0].SentenceIDs)
	assert.Equal(t, "The door was open. A knife lay on the floor. Nobody was home.", batches[0].Text)
}

func TestSplit_OverflowingSentenceStaysInItsBatch(t *testing.T) {
	// budget 5: "a b c" (3) fits, "d e f" pushes to 6 and closes batch 0
	sentences := []string{"a b c", "d e f", "g h", "i j k l"}

	batches, err := Split(sentences, 5)
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Equal(t, []int{0, 1}, batches[0].SentenceIDs)
	assert.Equal(t, []int{2, 3}, batches[1].SentenceIDs)
	assert.Equal(t, "g h i j k l", batches[1].Text)
}

func TestSplit_OversizedSentence(t *testing.T) {
	batches, err := Split([]string{"a b c d e f g"}, 5)
	require.NoError(t, err)

	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a b c d e f g"}, batches[0].Sentences)
	assert.Equal(t, []int{0}, batches[0].SentenceIDs)
}

func TestSplit_OversizedSentenceInTheMiddle(t *testing.T) {
	sentences := []string{"one two", strings.Repeat("w ", 20), "three", "four"}

	batches, err := Split(sentences, 5)
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Equal(t, []int{0, 1}, batches[0].SentenceIDs)
	assert.Equal(t, []int{2, 3}, batches[1].SentenceIDs)
}

func TestSplit_EmptyInput(t *testing.T) {
	batches, err := Split(nil, 10)
	require.NoError(t, err)

	require.Len(t, batches, 1)
	assert.Equal(t, 0, batches[0].Index)
	assert.Empty(t, batches[0].SentenceIDs)
	assert.Equal(t, "", batches[0].Text)
}

func TestSplit_NoTrailingEmptyBatch(t *testing.T) {
	batches, err := Split([]string{"a b c", "d e f g"}, 5)
	require.NoError(t, err)

	require.Len(t, batches, 1)
	assert.Equal(t, []int{0, 1}, batches[0].SentenceIDs)
}

func TestSplit_InvalidBudget(t *testing.T) {
	for _, budget := range []int{0, -3} {
		_, err := Split([]string{"a"}, budget)
		assert.ErrorIs(t, err, evidence.ErrInvalidArgument)
	}
}

// TestSplit_Totality checks that concatenating batches reproduces the input
// exactly once, in order, and that batch indices never decrease.
func TestSplit_Totality(t *testing.T) {
	var sentences []string
	for i := 0; i < 200; i++ {
		sentences = append(sentences, strings.Repeat("word ", i%13+1))
	}

	for _, budget := range []int{1, 3, 7, 25, 1000} {
		batches, err := Split(sentences, budget)
		require.NoError(t, err)

		var gotIDs []int
		var gotSentences []string
		lastBatch := -1
		for i, b := range batches {
			assert.Equal(t, i, b.Index, "indices are contiguous")
			assert.NotEmpty(t, b.SentenceIDs)
			for _, id := range b.SentenceIDs {
				assert.GreaterOrEqual(t, b.Index, lastBatch)
				lastBatch = b.Index
				gotIDs = append(gotIDs, id)
			}
			gotSentences = append(gotSentences, b.Sentences...)
		}

		require.Len(t, gotIDs, len(sentences), "budget %d", budget)
		for i, id := range gotIDs {
			assert.Equal(t, i, id)
		}
		assert.Equal(t, sentences, gotSentences)
	}
}

func TestBudgetForContext(t *testing.T) {
	assert.Equal(t, 2042, BudgetForContext(8168))
	assert.Equal(t, 0, BudgetForContext(3))
}
