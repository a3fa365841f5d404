// Package config loads evidence.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bull/evidence-rag/internal/batch"
	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/llm"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "evidence.yaml"

// ModelConfig configures the model-serving endpoint.
type ModelConfig struct {
	Provider      string  `yaml:"provider"` // openai | ollama
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	ContextLength int     `yaml:"context_length"`
	MaxNewTokens  int     `yaml:"max_new_tokens"`
	Temperature   float64 `yaml:"temperature"`
	TimeoutSecs   int     `yaml:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries"`
}

// EmbedderConfig configures the OpenAI-compatible embeddings endpoint.
type EmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
}

// QdrantConfig contains connection details for the vector index.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// CatalogConfig locates the SQLite sentence catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// RunConfig configures query runs and aggregation.
type RunConfig struct {
	TopN               int    `yaml:"top_n"` // -1 = all documents
	OutputDir          string `yaml:"output_dir"`
	Language           string `yaml:"language"`
	Workers            int    `yaml:"workers"`
	CondenseMemory     bool   `yaml:"condense_memory"`
	CondenseMaxTokens  int    `yaml:"condense_max_tokens"`
	AggregateMaxTokens int    `yaml:"aggregate_max_tokens"`
}

// GitHubConfig names a repository directory of case files.
type GitHubConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Path  string `yaml:"path"`
	Ref   string `yaml:"ref"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	Language string       `yaml:"language"`
	Include  []string     `yaml:"include"`
	GitHub   GitHubConfig `yaml:"github"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Port       string `yaml:"port"`
	ServerMode bool   `yaml:"server_mode"` // HTTP instead of stdio
}

// Config is the root configuration.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Run      RunConfig      `yaml:"run"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Server   ServerConfig   `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:      llm.ProviderOpenAI,
			APIKeyEnv:     "OPENAI_API_KEY",
			ContextLength: 8168,
			MaxNewTokens:  2048,
			Temperature:   0,
			TimeoutSecs:   int(llm.DefaultCallTimeout / time.Second),
			MaxRetries:    llm.DefaultMaxRetries,
		},
		Embedder: EmbedderConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 500,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "sentences",
		},
		Catalog: CatalogConfig{
			Path: filepath.Join("data", "catalog.db"),
		},
		Run: RunConfig{
			TopN:               10,
			OutputDir:          "output",
			Language:           "en",
			Workers:            1,
			CondenseMaxTokens:  1000,
			AggregateMaxTokens: 2000,
		},
		Ingest: IngestConfig{
			Language: "english",
		},
		Server: ServerConfig{
			Port: "8080",
		},
	}
}

// Load reads the config at path over the defaults, then applies environment
// overrides. A missing file is not an error. An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config %s: %v", evidence.ErrInvalidArgument, path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Qdrant.Host, "QDRANT_HOST")
	setString(&cfg.Model.Provider, "MODEL_PROVIDER")
	setString(&cfg.Model.BaseURL, "MODEL_BASE_URL")
	setString(&cfg.Model.Model, "MODEL_NAME")
	setString(&cfg.Catalog.Path, "CATALOG_PATH")
	setString(&cfg.Run.OutputDir, "OUTPUT_DIR")
	setString(&cfg.Server.Port, "PORT")

	if v := os.Getenv("QDRANT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: QDRANT_PORT=%q", evidence.ErrInvalidArgument, v)
		}
		cfg.Qdrant.Port = port
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		cfg.Server.ServerMode = v == "true"
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Model.Provider) {
	case llm.ProviderOpenAI, llm.ProviderOllama:
	default:
		problems = append(problems, fmt.Sprintf("model.provider %q is not one of openai, ollama", c.Model.Provider))
	}
	if c.BatchBudget() <= 0 {
		problems = append(problems, fmt.Sprintf("model.context_length %d leaves no batch budget", c.Model.ContextLength))
	}
	if c.Model.Temperature < 0 {
		problems = append(problems, "model.temperature must be >= 0")
	}
	if c.Run.Workers < 1 {
		problems = append(problems, "run.workers must be >= 1")
	}
	if c.Run.OutputDir == "" {
		problems = append(problems, "run.output_dir is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", evidence.ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

// BatchBudget is the word budget per batch for the model context length.
func (c *Config) BatchBudget() int {
	return batch.BudgetForContext(c.Model.ContextLength)
}

// CallTimeout is the per-call model timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSecs) * time.Second
}

// Provider returns the model backend options.
func (c *Config) Provider() llm.ProviderOptions {
	return llm.ProviderOptions{
		Provider:  c.Model.Provider,
		BaseURL:   c.Model.BaseURL,
		Model:     c.Model.Model,
		APIKeyEnv: c.Model.APIKeyEnv,
		Retry: llm.RetryOptions{
			MaxRetries:  c.Model.MaxRetries,
			CallTimeout: c.CallTimeout(),
		},
	}
}
