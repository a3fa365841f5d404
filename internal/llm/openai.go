package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/evidence-rag/internal/evidence"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAIOptions configures an OpenAI or OpenAI-compatible chat endpoint
// (llama.cpp server, vLLM and similar expose the same API).
type OpenAIOptions struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
}

// OpenAICompleter completes prompts via Chat Completions with a json_schema
// response format.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer. The API key is read from APIKeyEnv
// (default OPENAI_API_KEY); it is required only for the hosted API.
func NewOpenAICompleter(opts OpenAIOptions) (*OpenAICompleter, error) {
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = "OPENAI_API_KEY"
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}

	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s environment variable not set", evidence.ErrInvalidArgument, opts.APIKeyEnv)
	}
	if apiKey == "" {
		apiKey = "none" // self-hosted servers ignore it
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // retries are handled by Retrying
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)

	return &OpenAICompleter{client: &client, model: opts.Model}, nil
}

// Complete sends one chat completion request.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	schema, err := req.Schema.Definition()
	if err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Model:       c.model,
		Temperature: openai.Float(req.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   string(req.Schema),
					Schema: schema,
				},
			},
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", evidence.ErrMalformedOutput)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps every API and transport failure to
// ErrModelUnavailable. Client errors other than 429 also carry
// ErrRequestRejected.
func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d: %v", evidence.ErrModelUnavailable, apiErr.StatusCode, err)
		}
		return fmt.Errorf("%w: %w: status %d: %v", evidence.ErrModelUnavailable, ErrRequestRejected, apiErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %v", evidence.ErrModelUnavailable, err)
}
