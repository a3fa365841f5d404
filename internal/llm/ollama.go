package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/bull/evidence-rag/internal/evidence"
)

const (
	// DefaultOllamaHost is the local Ollama server address.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "llama3.2"

	// repeatPenalty discourages the looping output small local models produce
	// under constrained decoding.
	repeatPenalty = 1.2
)

// OllamaCompleter completes prompts against a local Ollama server using its
// structured-output format parameter.
type OllamaCompleter struct {
	client *api.Client
	model  string
}

// NewOllamaCompleter creates a completer for host (default DefaultOllamaHost).
func NewOllamaCompleter(host, model string) (*OllamaCompleter, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	uri, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama host %q: %v", evidence.ErrInvalidArgument, host, err)
	}
	return &OllamaCompleter{
		client: api.NewClient(uri, http.DefaultClient),
		model:  model,
	}, nil
}

// Complete runs one non-streaming generation.
func (c *OllamaCompleter) Complete(ctx context.Context, req Request) (string, error) {
	format, err := req.Schema.JSON()
	if err != nil {
		return "", err
	}

	options := map[string]any{
		"temperature":    req.Temperature,
		"repeat_penalty": repeatPenalty,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	stream := false
	genReq := &api.GenerateRequest{
		Model:   c.model,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Format:  format,
		Options: options,
	}

	var sb strings.Builder
	err = c.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", classifyOllamaError(ctx, err)
	}
	return sb.String(), nil
}

// classifyOllamaError maps failures to ErrModelUnavailable the same way
// classifyOpenAIError does.
func classifyOllamaError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d: %v", evidence.ErrModelUnavailable, statusErr.StatusCode, err)
		}
		return fmt.Errorf("%w: %w: status %d: %v", evidence.ErrModelUnavailable, ErrRequestRejected, statusErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %v", evidence.ErrModelUnavailable, err)
}
