package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/resultlog"
)

func TestSplitter_English(t *testing.T) {
	s, err := NewSplitter("english")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "I heard a scream. The car was red.", []string{"I heard a scream.", "The car was red."}},
		{"question and exclamation", "Who was there? Nobody! Then silence.", []string{"Who was there?", "Nobody!", "Then silence."}},
		{"abbreviation", "Mr. Hansen arrived. He left.", []string{"Mr. Hansen arrived.", "He left."}},
		{"decimal", "It cost 3.50 dollars. Cash.", []string{"It cost 3.50 dollars.", "Cash."}},
		{"blank", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Split(tt.in))
		})
	}
}

func TestSplitter_Norwegian(t *testing.T) {
	s, err := NewSplitter("Norwegian")
	require.NoError(t, err)

	got := s.Split("Vitnet kom hjem sent. Bilen var rød.")
	assert.Equal(t, []string{"Vitnet kom hjem sent.", "Bilen var rød."}, got)
}

func TestNewSplitter_Unsupported(t *testing.T) {
	_, err := NewSplitter("klingon")
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)

	s, err := NewSplitter("")
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Contains(t, SupportedLanguages(), DefaultLanguage)
}

func TestParse_TextProvenance(t *testing.T) {
	p, err := NewParser("english")
	require.NoError(t, err)

	content := "I heard a scream. The car was red.\r\n\r\nA knife lay by the door.\n"
	doc, err := p.Parse("case/witness-a.txt", "upload", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, "witness-a", doc.ID)
	assert.Equal(t, 2, doc.Paragraphs)
	assert.Equal(t, []evidence.Sentence{
		{DocumentID: "witness-a", PageID: 0, SentenceID: 0, Text: "I heard a scream."},
		{DocumentID: "witness-a", PageID: 0, SentenceID: 1, Text: "The car was red."},
		{DocumentID: "witness-a", PageID: 2, SentenceID: 2, Text: "A knife lay by the door."},
	}, doc.Sentences)
}

func TestParse_Markdown(t *testing.T) {
	p, err := NewParser("english")
	require.NoError(t, err)

	doc, err := p.Parse("report.md", "upload", []byte("# Report\n\nThe door was *open*. No one answered.\n"))
	require.NoError(t, err)

	require.Len(t, doc.Sentences, 3)
	assert.Equal(t, "Report", doc.Sentences[0].Text)
	assert.Equal(t, 1, doc.Sentences[2].PageID)
	assert.Equal(t, "No one answered.", doc.Sentences[2].Text)
}

func TestParse_Windows1252(t *testing.T) {
	p, err := NewParser("norwegian")
	require.NoError(t, err)

	doc, err := p.Parse("vitne.txt", "upload", []byte("Vitne: \xe6rlig \xf8kse."))
	require.NoError(t, err)
	require.Len(t, doc.Sentences, 1)
	assert.Equal(t, "Vitne: ærlig økse.", doc.Sentences[0].Text)

	// The decoded text survives the result log unchanged.
	w, err := resultlog.Create(t.TempDir(), "q.jsonl")
	require.NoError(t, err)
	require.NoError(t, w.Append(&evidence.Finding{
		DocumentID: doc.ID,
		Query:      "q",
		Questions:  []string{"q"},
		SourceText: doc.Sentences[0].Text,
	}))
	require.NoError(t, w.Close())

	findings, err := resultlog.ReadFile(w.Path())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, doc.Sentences[0].Text, findings[0].SourceText)
}

func TestParse_StripsUTF8BOM(t *testing.T) {
	p, err := NewParser("english")
	require.NoError(t, err)

	doc, err := p.Parse("a.txt", "upload", []byte("\xef\xbb\xbfThe door was open."))
	require.NoError(t, err)
	require.Len(t, doc.Sentences, 1)
	assert.Equal(t, "The door was open.", doc.Sentences[0].Text)
}

func TestParse_Unsupported(t *testing.T) {
	p, err := NewParser("english")
	require.NoError(t, err)

	_, err = p.Parse("photo.jpg", "upload", []byte{0xff})
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "witness", DocumentID("a/b/witness.txt"))
	assert.Equal(t, "witness", DocumentID(`C:\case\witness.md`))
	assert.Equal(t, "report.v2", DocumentID("report.v2.txt"))
}

func newLoader(t *testing.T, include ...string) *Loader {
	t.Helper()
	p, err := NewParser("english")
	require.NoError(t, err)
	l, err := NewLoader(p, include, nil)
	require.NoError(t, err)
	return l
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadPath_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "Second file.")
	writeFile(t, filepath.Join(dir, "interviews", "a.md"), "First file.")
	writeFile(t, filepath.Join(dir, "photo.jpg"), "binary")
	writeFile(t, filepath.Join(dir, "empty.txt"), "\n\n")
	writeFile(t, filepath.Join(dir, ".notes.txt"), "Hidden file.")
	writeFile(t, filepath.Join(dir, "._a.md"), "Resource fork.")
	writeFile(t, filepath.Join(dir, ".git", "c.txt"), "Hidden directory.")

	loaded, err := newLoader(t).LoadPath(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, loaded.Documents, 2)
	assert.Equal(t, "a", loaded.Documents[0].ID)
	assert.Equal(t, "b", loaded.Documents[1].ID)
	assert.Empty(t, loaded.Failed)
}

func TestLoadPath_IncludeAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "interviews", "x.txt"), "One.")
	writeFile(t, filepath.Join(dir, "reports", "x.txt"), "Two.")
	writeFile(t, filepath.Join(dir, "other", "y.txt"), "Three.")

	loaded, err := newLoader(t, "interviews/*", "reports/**").LoadPath(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, loaded.Documents, 1)
	assert.Equal(t, "x", loaded.Documents[0].ID)
	require.Len(t, loaded.Failed, 1)
	assert.Contains(t, loaded.Failed[0].Reason, "duplicate document id")
}

func TestLoadZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"case/witness.txt":   "I saw a man. He ran.",
		"case/notes.md":      "- Knife found.",
		"case/.hidden.txt":   "Ignored.",
		".trash/old.txt":     "Ignored.",
		"case/readme.pdf":    "Ignored.",
		"__MACOSX/case/x.md": "",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	loaded, err := newLoader(t).LoadZip(context.Background(), "case.zip", buf.Bytes())
	require.NoError(t, err)

	require.Len(t, loaded.Documents, 2)
	assert.Equal(t, "notes", loaded.Documents[0].ID)
	assert.Equal(t, "case.zip!case/witness.txt", loaded.Documents[1].Source)
	assert.Len(t, loaded.Documents[1].Sentences, 2)
}

func TestLoad_NoData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.txt"), "")

	_, err := newLoader(t).LoadPath(context.Background(), dir)
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)

	_, err = newLoader(t).LoadPath(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)

	_, err = newLoader(t).LoadZip(context.Background(), "bad.zip", []byte("not a zip"))
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)
}

func TestNewLoader_BadPattern(t *testing.T) {
	p, err := NewParser("english")
	require.NoError(t, err)

	_, err = NewLoader(p, []string{"[unclosed"}, nil)
	assert.ErrorIs(t, err, evidence.ErrInvalidArgument)
}
