// Package ingest turns raw case files into documents of provenance-tagged
// sentences ready for indexing.
package ingest

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/markdown"
)

// Document is one parsed case file.
type Document struct {
	ID         string // File name without extension
	Source     string // Where the file came from
	Paragraphs int    // Non-empty paragraphs
	Sentences  []evidence.Sentence
}

// DocumentID derives the document identifier from a file path.
func DocumentID(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Parser turns file contents into documents.
type Parser struct {
	splitter *Splitter
	markdown *markdown.Extractor
}

// NewParser creates a parser segmenting sentences in lang.
func NewParser(lang string) (*Parser, error) {
	splitter, err := NewSplitter(lang)
	if err != nil {
		return nil, err
	}
	return &Parser{splitter: splitter, markdown: markdown.NewExtractor()}, nil
}

// Supported reports whether name has a parseable extension.
func Supported(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

var utf8BOM = []byte("\xef\xbb\xbf")

// decode returns content as UTF-8. Files that are not valid UTF-8 are read
// as Windows-1252, the usual encoding of legacy Western European text.
func decode(content []byte) ([]byte, error) {
	if utf8.Valid(content) {
		return bytes.TrimPrefix(content, utf8BOM), nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(content)
}

// Parse parses one file. Plain text is split into paragraphs by line;
// markdown by block. page_id is the paragraph index and sentence_id counts
// sentences across the whole document. Text that is not UTF-8 is decoded
// as Windows-1252 first.
func (p *Parser) Parse(name, source string, content []byte) (*Document, error) {
	content, err := decode(content)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", evidence.ErrInvalidArgument, name, err)
	}

	var paragraphs []string
	switch strings.ToLower(path.Ext(name)) {
	case ".txt":
		paragraphs = strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	case ".md", ".markdown":
		paragraphs = p.markdown.Paragraphs(content)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", evidence.ErrInvalidArgument, name)
	}

	doc := &Document{ID: DocumentID(name), Source: source}
	for pageID, paragraph := range paragraphs {
		sentences := p.splitter.Split(paragraph)
		if len(sentences) == 0 {
			continue
		}
		doc.Paragraphs++
		for _, text := range sentences {
			doc.Sentences = append(doc.Sentences, evidence.Sentence{
				DocumentID: doc.ID,
				PageID:     pageID,
				SentenceID: len(doc.Sentences),
				Text:       text,
			})
		}
	}
	return doc, nil
}
