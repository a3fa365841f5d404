package reasoning

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/llm"
)

const knifeResponse = `{"questions":[{"question":"was a knife found?"}],"reason":"mentions a blade","score":3,"summary":"a knife was recovered at the scene"}`

func testBatch() evidence.Batch {
	return evidence.Batch{
		Index:       0,
		SentenceIDs: []int{0, 1, 2},
		Text:        "The door was open. A blade lay by the sink. Nobody was home.",
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("what was the murder weapon?", "It was dark..... very dark", "doc-7", "", "en")
	require.NoError(t, err)

	assert.Contains(t, prompt, "document with ID doc-7: 'It was dark... very dark'")
	assert.Contains(t, prompt, "QUERY: 'what was the murder weapon?'")
	assert.NotContains(t, prompt, "previous interrogations")
	assert.NotContains(t, prompt, "{")
}

func TestBuildPrompt_WithPrior(t *testing.T) {
	prompt, err := BuildPrompt("q", "text", "doc", "suspect owns a knife", "")
	require.NoError(t, err)

	assert.Contains(t, prompt, "previous interrogations: 'suspect owns a knife'")
	assert.Contains(t, prompt, "takes precedence")
}

func TestBuildPrompt_UnsupportedLanguage(t *testing.T) {
	_, err := BuildPrompt("q", "text", "doc", "", "xx")
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse(knifeResponse)
	require.NoError(t, err)

	assert.Equal(t, []string{"was a knife found?"}, resp.Questions)
	assert.Equal(t, "mentions a blade", resp.Reason)
	assert.Equal(t, 3, resp.Score)
	assert.Equal(t, "a knife was recovered at the scene", resp.Summary)
}

func TestParseResponse_Lenient(t *testing.T) {
	raw := "```json\n" + `{"Questions":["a?", {"Question":"b?"}, "c?", "d?"],"SCORE":2.0,"Summary":"s"}` + "\n```"

	resp, err := ParseResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"a?", "b?", "c?"}, resp.Questions)
	assert.Equal(t, 2, resp.Score)
	assert.Equal(t, "", resp.Reason)
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := map[string]string{
		"missing score":      `{"questions":["a?"],"summary":"s"}`,
		"missing summary":    `{"questions":["a?"],"score":1}`,
		"missing questions":  `{"score":1,"summary":"s"}`,
		"empty questions":    `{"questions":[],"score":1,"summary":"s"}`,
		"score out of range": `{"questions":["a?"],"score":7,"summary":"s"}`,
		"fractional score":   `{"questions":["a?"],"score":1.5,"summary":"s"}`,
		"string score":       `{"questions":["a?"],"score":"high","summary":"s"}`,
		"not json":           `questions: a?`,
		"bad question item":  `{"questions":[{"q":"a?"}],"score":1,"summary":"s"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse(raw)
			assert.ErrorIs(t, err, evidence.ErrMalformedOutput)
		})
	}
}

func TestStep_Reason(t *testing.T) {
	var req llm.Request
	completer := llm.CompleterFunc(func(ctx context.Context, r llm.Request) (string, error) {
		req = r
		return knifeResponse, nil
	})

	step := NewStep(completer, Options{}, nil)
	finding, err := step.Reason(context.Background(), Input{
		Query:      "what was the murder weapon?",
		DocumentID: "report-1",
		Batch:      testBatch(),
	})
	require.NoError(t, err)

	assert.Equal(t, llm.SchemaDefault, req.Schema)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.Equal(t, 0.0, req.Temperature)

	assert.Equal(t, "report-1", finding.DocumentID)
	assert.Equal(t, 0, finding.BatchIndex)
	assert.Equal(t, 3, finding.RelevanceScore)
	assert.Equal(t, "a knife was recovered at the scene", finding.Summary)
	assert.Equal(t, []int{0, 1, 2}, finding.SentenceIDs)
	assert.Equal(t, testBatch().Text, finding.SourceText)
	assert.False(t, finding.Degraded())
}

func TestStep_Reason_DegradedOnMalformed(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, r llm.Request) (string, error) {
		return `{"questions":["a?"],"summary":"no score here"}`, nil
	})

	finding, err := NewStep(completer, Options{}, nil).Reason(context.Background(), Input{Query: "q", DocumentID: "d", Batch: testBatch()})
	assert.ErrorIs(t, err, evidence.ErrMalformedOutput)

	require.NotNil(t, finding)
	assert.True(t, finding.Degraded())
	assert.Equal(t, -1, finding.RelevanceScore)
	assert.Equal(t, "", finding.Summary)
	assert.Equal(t, []string{"Error generating questions..."}, finding.Questions)
	assert.Equal(t, []int{0, 1, 2}, finding.SentenceIDs)
}

func TestStep_Reason_DegradedOnUnavailable(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, r llm.Request) (string, error) {
		return "", fmt.Errorf("%w: connection refused", evidence.ErrModelUnavailable)
	})

	finding, err := NewStep(completer, Options{}, nil).Reason(context.Background(), Input{Query: "q", DocumentID: "d", Batch: testBatch()})
	assert.ErrorIs(t, err, evidence.ErrModelUnavailable)
	assert.True(t, finding.Degraded())
}

func TestCondenser(t *testing.T) {
	var req llm.Request
	completer := llm.CompleterFunc(func(ctx context.Context, r llm.Request) (string, error) {
		req = r
		return `{"summary":"both facts"}`, nil
	})
	c := NewStep(completer, Options{}, nil).NewCondenser("en")

	out, err := c.Condense(context.Background(), "q", "doc-1", evidence.MemorySlot{Previous: "S1", Current: "S2"})
	require.NoError(t, err)

	assert.Equal(t, "both facts", out)
	assert.Equal(t, llm.SchemaSummary, req.Schema)
	assert.Equal(t, DefaultCondenseMaxTokens, req.MaxTokens)
	assert.Contains(t, req.Prompt, "- S1\n- S2")
	assert.Contains(t, req.Prompt, "'doc-1'")
}
