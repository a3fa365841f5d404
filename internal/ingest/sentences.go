package ingest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/data"
	"github.com/neurosnap/sentences/english"

	"github.com/bull/evidence-rag/internal/evidence"
)

// DefaultLanguage is the sentence segmentation language used when none is given.
const DefaultLanguage = "english"

// punktLanguages are the languages with trained Punkt parameters.
var punktLanguages = []string{
	"czech", "danish", "dutch", "english", "estonian", "finnish", "french",
	"german", "greek", "italian", "norwegian", "polish", "portuguese",
	"slovene", "spanish", "swedish", "turkish",
}

// SupportedLanguages lists the segmentation languages.
func SupportedLanguages() []string {
	return slices.Clone(punktLanguages)
}

// Splitter segments paragraphs into sentences for one language with a
// trained Punkt tokenizer.
type Splitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewSplitter returns a splitter for lang, one of SupportedLanguages.
// An empty lang uses DefaultLanguage.
func NewSplitter(lang string) (*Splitter, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	lang = strings.ToLower(lang)
	if !slices.Contains(punktLanguages, lang) {
		return nil, fmt.Errorf("%w: unsupported language %q (supported: %s)",
			evidence.ErrInvalidArgument, lang, strings.Join(punktLanguages, ", "))
	}

	// English gets the extra multi-punctuation and initials annotations.
	if lang == "english" {
		tokenizer, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			return nil, fmt.Errorf("load english sentence model: %w", err)
		}
		return &Splitter{tokenizer: tokenizer}, nil
	}

	b, err := data.Asset("data/" + lang + ".json")
	if err != nil {
		return nil, fmt.Errorf("load %s sentence model: %w", lang, err)
	}
	training, err := sentences.LoadTraining(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s sentence model: %w", lang, err)
	}
	return &Splitter{tokenizer: sentences.NewSentenceTokenizer(training)}, nil
}

// Split breaks one paragraph into trimmed, non-empty sentences.
func (s *Splitter) Split(paragraph string) []string {
	var out []string
	for _, sent := range s.tokenizer.Tokenize(paragraph) {
		if text := strings.TrimSpace(sent.Text); text != "" {
			out = append(out, text)
		}
	}
	return out
}
