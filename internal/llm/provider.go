package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/evidence-rag/internal/evidence"
)

// Supported model providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ProviderOptions selects and configures a backend.
type ProviderOptions struct {
	Provider  string
	BaseURL   string
	Model     string
	APIKeyEnv string // openai only
	Retry     RetryOptions
}

// NewCompleter builds the configured backend wrapped in a Retrying completer.
func NewCompleter(opts ProviderOptions, logger *slog.Logger) (Completer, error) {
	var (
		backend Completer
		err     error
	)
	switch strings.ToLower(opts.Provider) {
	case ProviderOpenAI, "":
		backend, err = NewOpenAICompleter(OpenAIOptions{BaseURL: opts.BaseURL, APIKeyEnv: opts.APIKeyEnv, Model: opts.Model})
	case ProviderOllama:
		backend, err = NewOllamaCompleter(opts.BaseURL, opts.Model)
	default:
		return nil, fmt.Errorf("%w: unknown model provider %q", evidence.ErrInvalidArgument, opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRetrying(backend, opts.Retry, logger), nil
}
