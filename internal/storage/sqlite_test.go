package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/evidence-rag/internal/evidence"
)

func setupCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "db", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sentences(doc string, texts ...string) []evidence.Sentence {
	out := make([]evidence.Sentence, len(texts))
	for i, text := range texts {
		out[i] = evidence.Sentence{DocumentID: doc, PageID: i / 2, SentenceID: i, Text: text}
	}
	return out
}

func TestCatalog_ReplaceAndFetch(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	want := sentences("witness-a", "I heard a scream.", "It was 10 p.m.", "The car was red.")
	require.NoError(t, c.ReplaceDocument(ctx, DocumentInfo{ID: "witness-a", Source: "case.zip", Paragraphs: 2}, want))

	got, err := c.Sentences(ctx, "witness-a")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCatalog_ReplaceOverwrites(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.ReplaceDocument(ctx, DocumentInfo{ID: "d"}, sentences("d", "one.", "two.", "three.")))
	require.NoError(t, c.ReplaceDocument(ctx, DocumentInfo{ID: "d"}, sentences("d", "only.")))

	got, err := c.Sentences(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	n, err := c.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCatalog_UnknownDocument(t *testing.T) {
	c := setupCatalog(t)

	_, err := c.Sentences(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestCatalog_StatsAndClear(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, c.ReplaceDocument(ctx, DocumentInfo{ID: "b", IngestedAt: t1}, sentences("b", "x.", "y.")))
	require.NoError(t, c.ReplaceDocument(ctx, DocumentInfo{ID: "a", IngestedAt: t2}, sentences("a", "z.")))

	docs, err := c.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, 2, docs[1].Sentences)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Sentences)
	assert.True(t, stats.LastIngested.Equal(t2))

	require.NoError(t, c.Clear(ctx))
	n, err := c.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSentencePointID_Stable(t *testing.T) {
	assert.Equal(t, SentencePointID("doc", 3), SentencePointID("doc", 3))
	assert.NotEqual(t, SentencePointID("doc", 3), SentencePointID("doc", 4))
}
