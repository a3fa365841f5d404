package llm

import (
	"encoding/json"
	"fmt"

	"github.com/bull/evidence-rag/internal/evidence"
)

// Schema names one of the response shapes the endpoint must conform to.
type Schema string

const (
	// SchemaDefault is the per-batch reasoning shape: questions/reason/score/summary.
	SchemaDefault Schema = "default"
	// SchemaSummary is a bare summary, used to condense memory.
	SchemaSummary Schema = "summary"
	// SchemaFindings is the cross-document shape: summary plus references.
	SchemaFindings Schema = "findings"
)

var schemas = map[Schema]map[string]any{
	SchemaDefault: {
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 3,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
					},
					"required": []string{"question"},
				},
			},
			"reason":  map[string]any{"type": "string"},
			"score":   map[string]any{"type": "integer", "enum": []int{0, 1, 2, 3}},
			"summary": map[string]any{"type": "string"},
		},
		"required": []string{"questions", "reason", "score", "summary"},
	},
	SchemaSummary: {
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
		"required": []string{"summary"},
	},
	SchemaFindings: {
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"references": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"summary", "references"},
	},
}

// Definition returns the JSON schema for s.
func (s Schema) Definition() (map[string]any, error) {
	def, ok := schemas[s]
	if !ok {
		return nil, fmt.Errorf("%w: unknown response schema %q", evidence.ErrInvalidArgument, s)
	}
	return def, nil
}

// JSON returns the encoded JSON schema for s.
func (s Schema) JSON() (json.RawMessage, error) {
	def, err := s.Definition()
	if err != nil {
		return nil, err
	}
	return json.Marshal(def)
}
