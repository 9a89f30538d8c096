// Package mcp exposes the retrieval engine over the Model Context
// Protocol so editor and agent clients can search and drive indexing
// without speaking the REST surface. Grounded on the teacher's
// internal/mcp/server.go: one *mcp.Server wrapping typed tool
// handlers registered through mcp.AddTool, JSON-schema input/output
// structs, and a Serve method that dispatches on transport name.
package mcp

import (
	"context"
	"log/slog"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/orchestrator"
	"github.com/katanaquant/ragengine/internal/query"
)

const serverName = "ragengine"

// Server is the MCP adapter over an orchestrator.AppState.
type Server struct {
	mcp    *gosdk.Server
	state  *orchestrator.AppState
	logger *slog.Logger
}

// New builds an MCP server with every tool registered against state.
func New(state *orchestrator.AppState, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		state:  state,
		logger: logger,
		mcp: gosdk.NewServer(&gosdk.Implementation{
			Name:    serverName,
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server, for tests that need to
// drive it directly.
func (s *Server) MCPServer() *gosdk.Server { return s.mcp }

// Serve runs the server over stdio, the one transport the retrieval
// engine's CLI wires up; it takes no transport argument.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", "transport", "stdio")
	err := s.mcp.Run(ctx, &gosdk.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp server stopped with error", "error", err)
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

func (s *Server) registerTools() {
	gosdk.AddTool(s.mcp, &gosdk.Tool{
		Name:        "search",
		Description: "Search the indexed knowledge base with hybrid vector and keyword retrieval. Returns the most relevant chunks with their source document and score.",
	}, s.searchHandler)

	gosdk.AddTool(s.mcp, &gosdk.Tool{
		Name:        "index",
		Description: "Queue a file or directory for (re)indexing. Use force_reindex to bypass the content-hash skip and reprocess even unchanged files.",
	}, s.indexHandler)

	gosdk.AddTool(s.mcp, &gosdk.Tool{
		Name:        "status",
		Description: "Report indexing queue depth, pause state, and document/chunk counts so a client can tell whether search results are current.",
	}, s.statusHandler)
}

// SearchInput is the search tool's input schema.
type SearchInput struct {
	Query     string  `json:"query" jsonschema:"the search query text"`
	TopK      int     `json:"top_k,omitempty" jsonschema:"maximum number of results, default 10"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum similarity score to keep a result, default no threshold"`
	UseHybrid *bool   `json:"use_hybrid,omitempty" jsonschema:"combine vector search with keyword search via reciprocal rank fusion, default true"`
}

// SearchOutput is the search tool's output schema.
type SearchOutput struct {
	Results []query.Result `json:"results" jsonschema:"ranked search hits"`
}

func (s *Server) searchHandler(ctx context.Context, _ *gosdk.CallToolRequest, input SearchInput) (
	*gosdk.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, &MCPError{Code: ErrCodeInvalidParams, Message: "query is required"}
	}
	useHybrid := true
	if input.UseHybrid != nil {
		useHybrid = *input.UseHybrid
	}

	results, err := s.state.Query.Run(ctx, query.Request{
		Text: input.Query, TopK: input.TopK, Threshold: input.Threshold, UseHybrid: useHybrid,
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	return nil, SearchOutput{Results: results}, nil
}

// IndexInput is the index tool's input schema.
type IndexInput struct {
	Path         string `json:"path" jsonschema:"file path to admit into the indexing queue"`
	ForceReindex bool   `json:"force_reindex,omitempty" jsonschema:"reprocess even if the content hash is unchanged"`
}

// IndexOutput is the index tool's output schema.
type IndexOutput struct {
	Queued bool `json:"queued" jsonschema:"true once the path has been admitted to the queue"`
}

func (s *Server) indexHandler(ctx context.Context, _ *gosdk.CallToolRequest, input IndexInput) (
	*gosdk.CallToolResult, IndexOutput, error,
) {
	if input.Path == "" {
		return nil, IndexOutput{}, &MCPError{Code: ErrCodeInvalidParams, Message: "path is required"}
	}
	s.state.IndexPath(input.Path, domain.PriorityHigh, input.ForceReindex)
	return nil, IndexOutput{Queued: true}, nil
}

// StatusInput is the status tool's (empty) input schema.
type StatusInput struct{}

// StatusOutput is the status tool's output schema.
type StatusOutput struct {
	QueueSize        int   `json:"queue_size" jsonschema:"pending items in the admission queue"`
	Paused           bool  `json:"paused" jsonschema:"true if indexing is paused"`
	IndexedDocuments int64 `json:"indexed_documents" jsonschema:"documents currently in the store"`
	TotalChunks      int64 `json:"total_chunks" jsonschema:"chunks currently in the store"`
}

func (s *Server) statusHandler(ctx context.Context, _ *gosdk.CallToolRequest, _ StatusInput) (
	*gosdk.CallToolResult, StatusOutput, error,
) {
	stats, err := s.state.Backend.GetStats(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}
	return nil, StatusOutput{
		QueueSize:        s.state.Queue.Size(),
		Paused:           s.state.Queue.IsPaused(),
		IndexedDocuments: stats.IndexedDocuments,
		TotalChunks:      stats.TotalChunks,
	}, nil
}
