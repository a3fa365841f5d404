package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bull/evidence-rag/internal/evidence"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize cleans a raw model response before decoding: whitespace runs
// collapse to one space and markdown code fences are removed.
func Normalize(raw string) string {
	s := whitespaceRe.ReplaceAllString(raw, " ")
	s = strings.TrimSpace(s)
	for _, fence := range []string{"```python", "```json", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}
	return strings.TrimSpace(s)
}

// DecodeObject strictly decodes a response into a JSON object whose keys are
// lower-cased. Anything other than a single JSON object is ErrMalformedOutput.
func DecodeObject(raw string) (map[string]json.RawMessage, error) {
	s := Normalize(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty response", evidence.ErrMalformedOutput)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", evidence.ErrMalformedOutput, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: response is not an object", evidence.ErrMalformedOutput)
	}

	lowered := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		lowered[strings.ToLower(k)] = v
	}
	return lowered, nil
}

// StringField decodes a required string field.
func StringField(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", evidence.ErrMalformedOutput, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", evidence.ErrMalformedOutput, key)
	}
	return s, nil
}

// StringListField decodes a required list of strings.
func StringListField(obj map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", evidence.ErrMalformedOutput, key)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %q is not a list of strings", evidence.ErrMalformedOutput, key)
	}
	return out, nil
}

// SummaryResponse is the decoded "summary" shape.
type SummaryResponse struct {
	Summary string
}

// ParseSummary decodes a response produced under SchemaSummary.
func ParseSummary(raw string) (*SummaryResponse, error) {
	obj, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	summary, err := StringField(obj, "summary")
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{Summary: summary}, nil
}

// FindingsResponse is the decoded "findings" shape.
type FindingsResponse struct {
	Summary    string
	References []string
}

// ParseFindings decodes a response produced under SchemaFindings. A missing
// references list is tolerated; a missing summary is not.
func ParseFindings(raw string) (*FindingsResponse, error) {
	obj, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	summary, err := StringField(obj, "summary")
	if err != nil {
		return nil, err
	}
	resp := &FindingsResponse{Summary: summary}
	if _, ok := obj["references"]; ok {
		refs, err := StringListField(obj, "references")
		if err != nil {
			return nil, err
		}
		resp.References = refs
	}
	return resp, nil
}
