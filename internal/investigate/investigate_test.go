package investigate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/llm"
	"github.com/bull/evidence-rag/internal/reasoning"
	"github.com/bull/evidence-rag/internal/resultlog"
	"github.com/bull/evidence-rag/internal/storage"
)

// scripted answers model calls in order and records the prompts it saw.
type scripted struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	onCall    func(n int) error
}

func (s *scripted) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.prompts)
	s.prompts = append(s.prompts, req.Prompt)
	if s.onCall != nil {
		if err := s.onCall(n); err != nil {
			return "", err
		}
	}
	if n >= len(s.responses) {
		return answer("filler"), nil
	}
	return s.responses[n], nil
}

func answer(summary string) string {
	return `{"questions":["q"],"reason":"r","score":2,"summary":"` + summary + `"}`
}

type collector struct{ findings []*evidence.Finding }

func (c *collector) Append(f *evidence.Finding) error {
	c.findings = append(c.findings, f)
	return nil
}

func doc(id string, texts ...string) []evidence.Sentence {
	out := make([]evidence.Sentence, len(texts))
	for i, t := range texts {
		out[i] = evidence.Sentence{DocumentID: id, PageID: 0, SentenceID: i, Text: t}
	}
	return out
}

func newIterator(c llm.Completer, budget int) *Iterator {
	return NewIterator(reasoning.NewStep(c, reasoning.Options{}, nil), IteratorOptions{Budget: budget}, nil)
}

func TestIterator_EndToEndSingleBatch(t *testing.T) {
	model := &scripted{responses: []string{
		`{"questions":[{"question":"was a knife found?"}],"reason":"mentions a blade","score":3,"summary":"a knife was recovered at the scene"}`,
	}}
	sink := &collector{}

	sentences := doc("report", "The body was found at dawn.", "A blade lay nearby.", "Police sealed the room.")
	stats, err := newIterator(model, 2042).Run(context.Background(), "what was the murder weapon?", "report", sentences, sink)
	require.NoError(t, err)

	require.Len(t, sink.findings, 1)
	f := sink.findings[0]
	assert.Equal(t, 0, f.BatchIndex)
	assert.Equal(t, 3, f.RelevanceScore)
	assert.Equal(t, "a knife was recovered at the scene", f.Summary)
	assert.Equal(t, []string{"was a knife found?"}, f.Questions)
	assert.Equal(t, evidence.MemorySlot{Previous: "", Current: "a knife was recovered at the scene"}, f.Memory)
	assert.Equal(t, []int{0, 1, 2}, f.SentenceIDs)
	assert.Equal(t, DocumentStats{Batches: 1}, stats)
}

func TestIterator_MemoryThreading(t *testing.T) {
	model := &scripted{responses: []string{answer("S1"), answer("S2")}}
	sink := &collector{}

	// Budget 2 with three-word sentences gives one batch per sentence.
	sentences := doc("d", "one two three", "four five six")
	_, err := newIterator(model, 2).Run(context.Background(), "q", "d", sentences, sink)
	require.NoError(t, err)

	require.Len(t, sink.findings, 2)
	assert.Equal(t, evidence.MemorySlot{Previous: "", Current: "S1"}, sink.findings[0].Memory)
	assert.Equal(t, evidence.MemorySlot{Previous: "S1", Current: "S2"}, sink.findings[1].Memory)

	require.Len(t, model.prompts, 2)
	assert.NotContains(t, model.prompts[0], "previous interrogations")
	assert.Contains(t, model.prompts[1], "previous interrogations: 'S1'")
	assert.NotContains(t, model.prompts[1], "S2")
}

func TestIterator_DegradedBatchContinues(t *testing.T) {
	model := &scripted{responses: []string{
		answer("S1"),
		`{"questions":["q"],"reason":"r","summary":"no score here"}`,
		answer("S3"),
	}}
	sink := &collector{}

	sentences := doc("d", "one two three", "four five six", "seven eight nine")
	stats, err := newIterator(model, 2).Run(context.Background(), "q", "d", sentences, sink)
	require.NoError(t, err)

	require.Len(t, sink.findings, 3)
	bad := sink.findings[1]
	assert.Equal(t, evidence.DegradedScore, bad.RelevanceScore)
	assert.Empty(t, bad.Summary)
	assert.Equal(t, []string{evidence.DegradedQuestion}, bad.Questions)
	assert.Equal(t, evidence.MemorySlot{Previous: "S1", Current: ""}, bad.Memory)

	assert.Equal(t, "S3", sink.findings[2].Summary)
	assert.Equal(t, evidence.MemorySlot{Previous: "", Current: "S3"}, sink.findings[2].Memory)
	assert.NotContains(t, model.prompts[2], "previous interrogations")
	assert.Equal(t, DocumentStats{Batches: 3, Degraded: 1}, stats)
}

func TestIterator_UnavailableModelDegrades(t *testing.T) {
	model := &scripted{onCall: func(n int) error {
		if n == 0 {
			return evidence.ErrModelUnavailable
		}
		return nil
	}}
	sink := &collector{}

	_, err := newIterator(model, 2).Run(context.Background(), "q", "d", doc("d", "a b c", "d e f"), sink)
	require.NoError(t, err)
	require.Len(t, sink.findings, 2)
	assert.True(t, sink.findings[0].Degraded())
	assert.False(t, sink.findings[1].Degraded())
}

func TestIterator_SentenceIDsAreDocumentIDs(t *testing.T) {
	sentences := []evidence.Sentence{
		{DocumentID: "d", SentenceID: 40, Text: "a b c"},
		{DocumentID: "d", SentenceID: 41, Text: "d e f"},
	}
	sink := &collector{}

	_, err := newIterator(&scripted{}, 2).Run(context.Background(), "q", "d", sentences, sink)
	require.NoError(t, err)
	require.Len(t, sink.findings, 2)
	assert.Equal(t, []int{40}, sink.findings[0].SentenceIDs)
	assert.Equal(t, []int{41}, sink.findings[1].SentenceIDs)
	assert.Equal(t, "d e f", sink.findings[1].SourceText)
}

func TestIterator_CancellationKeepsWrittenFindings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := &scripted{onCall: func(n int) error {
		if n == 1 {
			cancel()
			return ctx.Err()
		}
		return nil
	}}
	sink := &collector{}

	_, err := newIterator(model, 2).Run(ctx, "q", "d", doc("d", "a b c", "d e f", "g h i"), sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.findings, 1)
}

func TestIterator_InvalidArguments(t *testing.T) {
	sink := &collector{}

	_, err := newIterator(&scripted{}, 0).Run(context.Background(), "q", "d", doc("d", "a"), sink)
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)

	_, err = newIterator(&scripted{}, 10).Run(context.Background(), "", "d", doc("d", "a"), sink)
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)
	assert.Empty(t, sink.findings)
}

func TestIterator_EmptyDocumentMakesNoCalls(t *testing.T) {
	model := &scripted{}
	sink := &collector{}

	stats, err := newIterator(model, 10).Run(context.Background(), "q", "d", nil, sink)
	require.NoError(t, err)
	assert.Zero(t, stats.Batches)
	assert.Empty(t, model.prompts)
}

type condenserFunc func(mem evidence.MemorySlot) (string, error)

func (f condenserFunc) Condense(_ context.Context, _, _ string, mem evidence.MemorySlot) (string, error) {
	return f(mem)
}

func TestIterator_Condenser(t *testing.T) {
	model := &scripted{responses: []string{answer("S1"), answer("S2"), answer("S3")}}
	var seen []evidence.MemorySlot
	condenser := condenserFunc(func(mem evidence.MemorySlot) (string, error) {
		seen = append(seen, mem)
		if len(seen) == 2 {
			return "", errors.New("condense failed")
		}
		return "CONDENSED", nil
	})
	it := NewIterator(reasoning.NewStep(model, reasoning.Options{}, nil),
		IteratorOptions{Budget: 2, Condenser: condenser}, nil)

	_, err := it.Run(context.Background(), "q", "d", doc("d", "a b c", "d e f", "g h i"), &collector{})
	require.NoError(t, err)

	// Not consulted before the first batch.
	require.Len(t, seen, 2)
	assert.Equal(t, evidence.MemorySlot{Current: "S1"}, seen[0])
	assert.Contains(t, model.prompts[1], "'CONDENSED'")
	assert.Contains(t, model.prompts[2], "'S2'", "falls back to the previous summary")
}

// fakeRetriever serves an in-memory corpus.
type fakeRetriever struct {
	matches map[string][]string
	docs    map[string][]evidence.Sentence
}

func (f *fakeRetriever) Match(_ context.Context, query string, _ int) ([]string, error) {
	return f.matches[query], nil
}

func (f *fakeRetriever) FetchSentences(_ context.Context, id string) ([]evidence.Sentence, error) {
	s, ok := f.docs[id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	return s, nil
}

func (f *fakeRetriever) DocumentCount(context.Context) (int, error) { return len(f.docs), nil }

var fixedNow = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestRunner_WritesOneLogPerQuery(t *testing.T) {
	retriever := &fakeRetriever{
		matches: map[string][]string{
			"what was the murder weapon?": {"a", "b", "a"},
			"who drove the car?":          {"b", "ghost"},
		},
		docs: map[string][]evidence.Sentence{
			"a": doc("a", "a knife was found"),
			"b": doc("b", "the car was red", "a man drove it"),
		},
	}
	out := t.TempDir()
	runner := NewRunner(retriever, newIterator(&scripted{}, 100),
		RunnerOptions{OutputDir: out, TopN: AllDocuments, Now: fixedNow}, nil)

	result, err := runner.Run(context.Background(), []string{"what was the murder weapon?", " who drove the car? "})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "RAG_Top2_20240102-030405"), result.Dir)
	assert.Equal(t, 2, result.TopN)
	require.Len(t, result.Queries, 2)

	first := result.Queries[0]
	assert.Equal(t, []string{"a", "b"}, first.Documents)
	assert.Equal(t, filepath.Join(result.Dir, "20240102-030405_what-was-the-murder-weapon.jsonl"), first.Path)
	assert.Equal(t, 2, first.Findings)

	second := result.Queries[1]
	assert.Equal(t, "who drove the car?", second.Query)
	assert.Equal(t, []string{"ghost"}, second.Failed)

	findings, err := resultlog.ReadFile(first.Path)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, len(findings), first.Findings, "tally matches the log")
	assert.Equal(t, "a", findings[0].DocumentID)
	assert.Equal(t, "b", findings[1].DocumentID)
	assert.Equal(t, "what was the murder weapon?", findings[1].Query)

	logs, err := resultlog.List(result.Dir)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestRunner_ParallelWorkers(t *testing.T) {
	docs := map[string][]evidence.Sentence{}
	var ids []string
	for _, id := range []string{"a", "b", "c", "d"} {
		docs[id] = doc(id, "one two three", "four five six")
		ids = append(ids, id)
	}
	retriever := &fakeRetriever{matches: map[string][]string{"q": ids}, docs: docs}
	runner := NewRunner(retriever, newIterator(&scripted{}, 2),
		RunnerOptions{OutputDir: t.TempDir(), TopN: 10, Workers: 3, Now: fixedNow}, nil)

	result, err := runner.Run(context.Background(), []string{"q"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.Dir, "RAG_Top10_20240102-030405"))

	findings, err := resultlog.ReadFile(result.Queries[0].Path)
	require.NoError(t, err)
	require.Len(t, findings, 8)

	// Batches of each document stay in order even when documents interleave.
	last := map[string]int{}
	for _, f := range findings {
		prev, ok := last[f.DocumentID]
		if ok {
			assert.Greater(t, f.BatchIndex, prev)
		}
		last[f.DocumentID] = f.BatchIndex
	}
	assert.Len(t, last, 4)
}

func TestRunner_CancelledRunKeepsPartialLog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := &scripted{onCall: func(n int) error {
		if n == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}}
	retriever := &fakeRetriever{
		matches: map[string][]string{"q": {"a"}},
		docs:    map[string][]evidence.Sentence{"a": doc("a", "a b c", "d e f", "g h i")},
	}
	runner := NewRunner(retriever, newIterator(model, 2),
		RunnerOptions{OutputDir: t.TempDir(), TopN: 5, Now: fixedNow}, nil)

	result, err := runner.Run(ctx, []string{"q", "never reached"})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, result.Queries, 1)

	findings, err := resultlog.ReadFile(result.Queries[0].Path)
	require.NoError(t, err)
	assert.Len(t, findings, 2)
	assert.Equal(t, len(findings), result.Queries[0].Findings)
}

func TestRunner_RejectsEmptyQueries(t *testing.T) {
	runner := NewRunner(&fakeRetriever{}, newIterator(&scripted{}, 2), RunnerOptions{OutputDir: t.TempDir()}, nil)

	_, err := runner.Run(context.Background(), nil)
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)

	_, err = runner.Run(context.Background(), []string{"ok", "   "})
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)
}

func TestRunner_NoMatchesStillWritesLog(t *testing.T) {
	out := t.TempDir()
	runner := NewRunner(&fakeRetriever{}, newIterator(&scripted{}, 2),
		RunnerOptions{OutputDir: out, TopN: 3, Now: fixedNow}, nil)

	result, err := runner.Run(context.Background(), []string{"nothing here"})
	require.NoError(t, err)
	_, err = os.Stat(result.Queries[0].Path)
	assert.NoError(t, err)
}
