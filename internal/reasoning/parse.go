package reasoning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/llm"
)

// MaxQuestions caps the investigative questions kept per batch.
const MaxQuestions = 3

// Response is the decoded "default" response shape.
type Response struct {
	Questions []string
	Reason    string
	Score     int
	Summary   string
}

// ParseResponse decodes a reasoning response. Keys are matched
// case-insensitively; questions, score and summary are required, reason is
// optional. Questions may be objects with a "question" key or plain strings.
func ParseResponse(raw string) (*Response, error) {
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"questions", "score", "summary"} {
		if _, ok := obj[key]; !ok {
			return nil, fmt.Errorf("%w: missing %q", evidence.ErrMalformedOutput, key)
		}
	}

	questions, err := parseQuestions(obj["questions"])
	if err != nil {
		return nil, err
	}
	score, err := parseScore(obj["score"])
	if err != nil {
		return nil, err
	}
	summary, err := llm.StringField(obj, "summary")
	if err != nil {
		return nil, err
	}

	var reason string
	if _, ok := obj["reason"]; ok {
		if reason, err = llm.StringField(obj, "reason"); err != nil {
			return nil, err
		}
	}

	return &Response{
		Questions: questions,
		Reason:    reason,
		Score:     score,
		Summary:   summary,
	}, nil
}

func parseQuestions(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: questions is not a list", evidence.ErrMalformedOutput)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: questions is empty", evidence.ErrMalformedOutput)
	}

	questions := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			questions = append(questions, s)
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: question entry is neither string nor object", evidence.ErrMalformedOutput)
		}
		found := false
		for k, v := range obj {
			if strings.ToLower(k) == "question" {
				if err := json.Unmarshal(v, &s); err != nil {
					return nil, fmt.Errorf("%w: question is not a string", evidence.ErrMalformedOutput)
				}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: question entry has no \"question\" key", evidence.ErrMalformedOutput)
		}
		questions = append(questions, s)
	}

	if len(questions) > MaxQuestions {
		questions = questions[:MaxQuestions]
	}
	return questions, nil
}

func parseScore(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: score is not a number", evidence.ErrMalformedOutput)
	}
	if f != math.Trunc(f) || f < 0 || f > 3 {
		return 0, fmt.Errorf("%w: score %v outside 0..3", evidence.ErrMalformedOutput, f)
	}
	return int(f), nil
}
