package reasoning

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bull/evidence-rag/internal/evidence"
)

// DefaultLanguage is the prompt language used when none is given.
const DefaultLanguage = "en"

// investigatePrompts holds the per-batch instruction per prompt language.
// Placeholders: {extra}, {doc_id}, {text}, {query}.
var investigatePrompts = map[string]string{
	"en": "You are an AI assisting a criminal investigation, analyzing case files for knowledge discoveries. " +
		"You follow strict logical and deductive reasoning, and will only present information for which you have a complete overview of. " +
		"Do not make assumptions, or add any superfluous information. {extra}" +
		"You receive a new document with ID {doc_id}: '{text}'. " +
		"Investigate document {doc_id} grounded in the QUERY: '{query}'. " +
		"Generate a JSON object with 1) questions: a list of investigative questions (based on e.g., objects, actions, events, entities) that are directly related to the QUERY in {doc_id}. " +
		"2) reason: discuss whether document {doc_id} answers the QUERY. " +
		"3) score: if the document is 0 irrelevant, 1 somewhat relevant, 2 relevant, or 3 extremely relevant. " +
		"4) a summary of vital details uncovered in {doc_id}.",
}

// priorContextPrompts introduces carried-forward memory. It must not let the
// memory override what the current batch says.
var priorContextPrompts = map[string]string{
	"en": "You have info from previous interrogations: '{prior}'. " +
		"Use this info to guide your reasoning if relevant, but the evidence in the new document takes precedence. ",
}

// condensePrompts asks for a single summary over both memory slots.
var condensePrompts = map[string]string{
	"en": "You are an AI assisting a criminal investigation, analyzing case files. " +
		"You follow abductive reasoning and logic. Do not make assumptions, or add any superfluous information. " +
		"From the following data:\n{memory}, create a summary of vital information related to the query: '{query}'. " +
		"Make sure to reference the ID '{doc_id}' for your findings, and keep all previous document references.",
}

var ellipsisRe = regexp.MustCompile(`\.{3,}`)

// SupportedLanguages lists the prompt languages with templates.
func SupportedLanguages() []string {
	langs := make([]string, 0, len(investigatePrompts))
	for lang := range investigatePrompts {
		langs = append(langs, lang)
	}
	return langs
}

func template(set map[string]string, lang string) (string, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	tmpl, ok := set[lang]
	if !ok {
		return "", fmt.Errorf("%w: unsupported prompt language %q", evidence.ErrInvalidArgument, lang)
	}
	return tmpl, nil
}

// BuildPrompt renders the per-batch instruction. Runs of three or more dots in
// the batch text collapse to an ellipsis.
func BuildPrompt(query, text, documentID, prior, lang string) (string, error) {
	tmpl, err := template(investigatePrompts, lang)
	if err != nil {
		return "", err
	}

	extra := ""
	if prior != "" {
		priorTmpl, err := template(priorContextPrompts, lang)
		if err != nil {
			return "", err
		}
		extra = strings.ReplaceAll(priorTmpl, "{prior}", prior)
	}

	r := strings.NewReplacer(
		"{extra}", extra,
		"{doc_id}", documentID,
		"{text}", ellipsisRe.ReplaceAllString(text, "..."),
		"{query}", query,
	)
	return r.Replace(tmpl), nil
}

// BuildCondensePrompt renders the memory condensation instruction.
func BuildCondensePrompt(query, documentID string, mem evidence.MemorySlot, lang string) (string, error) {
	tmpl, err := template(condensePrompts, lang)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, s := range mem.Pair() {
		if s != "" {
			parts = append(parts, "- "+s)
		}
	}
	r := strings.NewReplacer(
		"{memory}", strings.Join(parts, "\n"),
		"{query}", query,
		"{doc_id}", documentID,
	)
	return r.Replace(tmpl), nil
}
