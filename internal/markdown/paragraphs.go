// Package markdown extracts the prose paragraphs of a markdown case file.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Extractor turns markdown into plain-text paragraphs.
type Extractor struct {
	parser goldmark.Markdown
}

// NewExtractor creates a new paragraph extractor configured with goldmark parser.
func NewExtractor() *Extractor {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
	)
	return &Extractor{
		parser: md,
	}
}

// Paragraphs returns the text blocks of source in document order: headings,
// paragraphs, list items and table cells. Inline markup is dropped, soft line
// breaks become spaces, and code blocks and raw HTML are skipped.
func (e *Extractor) Paragraphs(source []byte) []string {
	doc := e.parser.Parser().Parse(text.NewReader(source))

	var paragraphs []string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock, extast.KindTableCell:
			if s := inlineText(n, source); s != "" {
				paragraphs = append(paragraphs, s)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return paragraphs
}

// inlineText concatenates the text leaves under n.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(source))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
