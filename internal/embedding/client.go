package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultAPIKeyEnv names the environment variable holding the API key.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// ClientOptions selects the embeddings endpoint.
type ClientOptions struct {
	BaseURL   string // Empty uses the OpenAI API; set for OpenAI-compatible servers
	APIKeyEnv string // Defaults to DefaultAPIKeyEnv
}

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates a new OpenAI client for embedding generation.
// The API key is mandatory against the hosted API; a compatible server
// reached through BaseURL may run without one.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = DefaultAPIKeyEnv
	}
	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("%s environment variable not set", opts.APIKeyEnv)
	}
	if apiKey == "" {
		apiKey = "none"
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)

	return &Client{client: &client}, nil
}
