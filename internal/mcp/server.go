package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	tools  []string
	logger *slog.Logger
}

// Config holds server dependencies.
type Config struct {
	Searcher   Searcher
	Catalog    Catalog
	Index      PointCounter
	Summarizer Summarizer // Optional; summarize_run is not offered without it
	OutputDir  string
	Version    string
	Logger     *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "evidence-rag",
		Version: version,
	}
	server := mcp.NewServer(impl, nil)
	var tools []string
	register := func(t *mcp.Tool) *mcp.Tool {
		tools = append(tools, t.Name)
		return t
	}

	mcp.AddTool(server, register(&mcp.Tool{
		Name:        "search_evidence",
		Description: "Search ingested case files for sentences relevant to an investigative query. Returns matching sentences grouped by document. Use fetch_document for surrounding text.",
	}), makeSearchHandler(cfg.Searcher))

	mcp.AddTool(server, register(&mcp.Tool{
		Name:        "fetch_document",
		Description: "Retrieve the text of an ingested case file by document id, optionally limited to a sentence id range.",
	}), makeFetchHandler(cfg.Catalog))

	mcp.AddTool(server, register(&mcp.Tool{
		Name:        "list_findings",
		Description: "List the per-batch findings (relevance score, summary, reasoning, questions) of an investigation run. Defaults to the latest run.",
	}), makeListFindingsHandler(cfg.OutputDir))

	if cfg.Summarizer != nil {
		mcp.AddTool(server, register(&mcp.Tool{
			Name:        "summarize_run",
			Description: "Produce one cross-document meta-summary per query of an investigation run, with references to the most relevant documents. Defaults to the latest run.",
		}), makeSummarizeHandler(cfg.OutputDir, cfg.Summarizer))
	}

	mcp.AddTool(server, register(&mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the evidence index: document and sentence counts, vector points, last ingest time and available runs.",
	}), makeStatusHandler(cfg.Catalog, cfg.Index, cfg.OutputDir))

	return &Server{server: server, tools: tools, logger: logger}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Tools lists the registered tool names.
func (s *Server) Tools() []string {
	return s.tools
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
