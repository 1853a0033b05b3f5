package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/engine"
	"github.com/Aman-CERP/chunkdex/internal/telemetry"
	"github.com/Aman-CERP/chunkdex/pkg/version"
)

// serverName identifies this server to MCP clients.
const serverName = "chunkdex"

// Engine is the retrieval surface the server exposes to MCP clients.
// *engine.Engine satisfies it; tests substitute mocks.
type Engine interface {
	Search(ctx context.Context, q engine.Query) (*engine.SearchResponse, error)
	Put(ctx context.Context, doc *document.Document) (*document.Document, error)
	Get(ctx context.Context, docID string) (*document.Document, error)
	Delete(ctx context.Context, docID string) (*document.Document, error)
	Stats(ctx context.Context) (*engine.Stats, error)
	ForEach(ctx context.Context, fn func(doc *document.Document) error) error
	Dimensions() int
}

var _ Engine = (*engine.Engine)(nil)

// Server is the MCP server for chunkdex.
// It bridges AI clients (Claude Code, Cursor) with the hybrid retrieval engine.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceInfo contains information about a resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// NewServer creates a new MCP server over the given retrieval engine.
func NewServer(eng Engine) (*Server, error) {
	if eng == nil {
		return nil, errors.New("retrieval engine is required")
	}

	s := &Server{
		engine: eng,
		logger: slog.Default(),
	}

	// Create MCP server with implementation info
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	// Register tools
	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	// Register query_metrics resource if metrics is provided
	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search",
			Description: "Query the hybrid retrieval index. The bm25 profile ranks keyword matches across title and content; the embedding_similarity profile ranks by the closest chunk to a prenormalized query vector. Returns ranked documents with per-field match features.",
		},
		{
			Name:        "get_document",
			Description: "Fetch one stored document by id. Returns all stored fields; pass summary_view=all-summary to include chunk embeddings.",
		},
		{
			Name:        "put_document",
			Description: "Store or replace a document and refresh its index entries atomically. Chunk and embedding lists must align per field; an integrity violation rejects the document in full.",
		},
		{
			Name:        "delete_document",
			Description: "Remove a document from the store and both derived indexes. Deleting an unknown id is an error.",
		},
		{
			Name:        "index_status",
			Description: "Report corpus counters: document count, store size on disk, and per-field text and vector index statistics. Use to verify the index is ready.",
		},
	}
}

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return s.handleSearchTool(ctx, args)
	case "get_document":
		return s.handleGetDocumentTool(ctx, args)
	case "put_document":
		return s.handlePutDocumentTool(ctx, args)
	case "delete_document":
		return s.handleDeleteDocumentTool(ctx, args)
	case "index_status":
		return s.handleIndexStatusTool(ctx, args)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// searchQuery builds the engine query from a tool input. The limit is
// clamped to the page cap; zero values fall through to engine defaults.
func searchQuery(input SearchInput) engine.Query {
	return engine.Query{
		Profile:     input.Profile,
		Text:        input.Query,
		Embedding:   input.Embedding,
		Fields:      input.Fields,
		SummaryView: input.SummaryView,
		Limit:       clampLimit(input.Limit, 0, 1, 100),
		Offset:      input.Offset,
		EfSearch:    input.EfSearch,
	}
}

// handleSearchTool handles the search tool invocation.
// Returns markdown-formatted results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	input := SearchInput{}
	if query, ok := args["query"].(string); ok {
		input.Query = query
	}
	if profile, ok := args["profile"].(string); ok {
		input.Profile = profile
	}
	if l, ok := args["limit"].(float64); ok {
		input.Limit = int(l)
	}
	if o, ok := args["offset"].(float64); ok {
		input.Offset = int(o)
	}
	if ef, ok := args["ef_search"].(float64); ok {
		input.EfSearch = int(ef)
	}
	if view, ok := args["summary_view"].(string); ok {
		input.SummaryView = view
	}
	if fields, ok := args["fields"].([]interface{}); ok {
		for _, f := range fields {
			if str, ok := f.(string); ok {
				input.Fields = append(input.Fields, str)
			}
		}
	}
	if vec, ok := args["query_embedding"].([]interface{}); ok {
		input.Embedding = make([]float32, 0, len(vec))
		for _, v := range vec {
			if f, ok := v.(float64); ok {
				input.Embedding = append(input.Embedding, float32(f))
			}
		}
	}

	if strings.TrimSpace(input.Query) == "" && len(input.Embedding) == 0 {
		return "", NewInvalidParamsError("query or query_embedding parameter is required")
	}

	q := searchQuery(input)

	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("profile", input.Profile),
		slog.String("query", input.Query),
		slog.Int("limit", q.Limit))

	// Execute search
	resp, err := s.engine.Search(ctx, q)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)))

	// Format as markdown
	return FormatSearchResults(input.Query, resp), nil
}

// handleGetDocumentTool handles the get_document tool invocation.
// Returns the document rendered as markdown.
func (s *Server) handleGetDocumentTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return "", NewInvalidParamsError("doc_id parameter is required and must be a non-empty string")
	}

	s.logger.Info("get_document started",
		slog.String("request_id", requestID),
		slog.String("doc_id", docID))

	doc, err := s.engine.Get(ctx, docID)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("get_document failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("get_document completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration))

	return FormatDocument(doc), nil
}

// handlePutDocumentTool handles the put_document tool invocation.
func (s *Server) handlePutDocumentTool(ctx context.Context, args map[string]any) (*PutDocumentOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	raw, ok := args["document"]
	if !ok {
		return nil, NewInvalidParamsError("document parameter is required")
	}

	// Round-trip through JSON to decode the wire shape into a document.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, NewInvalidParamsError("document must be a JSON object")
	}
	var doc document.Document
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, NewInvalidParamsError(fmt.Sprintf("document is malformed: %v", err))
	}

	s.logger.Info("put_document started",
		slog.String("request_id", requestID),
		slog.String("doc_id", doc.DocID))

	previous, err := s.engine.Put(ctx, &doc)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("put_document failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("put_document completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Bool("replaced", previous != nil))

	return &PutDocumentOutput{
		DocID:    doc.DocID,
		Replaced: previous != nil,
		Chunks:   chunkTotal(&doc),
	}, nil
}

// handleDeleteDocumentTool handles the delete_document tool invocation.
func (s *Server) handleDeleteDocumentTool(ctx context.Context, args map[string]any) (*DeleteDocumentOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return nil, NewInvalidParamsError("doc_id parameter is required and must be a non-empty string")
	}

	s.logger.Info("delete_document started",
		slog.String("request_id", requestID),
		slog.String("doc_id", docID))

	removed, err := s.engine.Delete(ctx, docID)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("delete_document failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("delete_document completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration))

	return &DeleteDocumentOutput{
		DocID:  docID,
		Title:  removed.Title,
		Chunks: chunkTotal(removed),
	}, nil
}

// handleIndexStatusTool handles the index_status tool invocation.
// Returns corpus and per-field index statistics.
func (s *Server) handleIndexStatusTool(ctx context.Context, _ map[string]any) (*StatusOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("index_status started",
		slog.String("request_id", requestID))

	output, err := s.buildStatus(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("index_status failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("index_status completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("documents", output.Index.Documents))

	return output, nil
}

// buildStatus assembles the status output from engine statistics.
func (s *Server) buildStatus(ctx context.Context) (*StatusOutput, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, err
	}

	output := &StatusOutput{
		Server: ServerInfo{
			Name:    serverName,
			Version: version.Version,
		},
		Index: IndexInfo{
			Documents:  stats.Documents,
			StoreBytes: stats.StoreBytes,
			Dimensions: s.engine.Dimensions(),
		},
	}

	// Per-field stats in canonical field order
	for _, field := range document.TextFields() {
		fs := FieldStatus{Field: string(field)}
		if ts, ok := stats.Text[field]; ok {
			fs.TextDocuments = ts.Documents
			fs.Terms = ts.Terms
			fs.Postings = ts.Postings
			fs.AvgDocLength = ts.AvgDocLength
		}
		if vs, ok := stats.Vector[field]; ok {
			fs.Vectors = vs.Nodes
			fs.VectorDocuments = vs.Documents
		}
		output.Fields = append(output.Fields, fs)
	}

	if stats.Cache != nil {
		output.Cache = &CacheInfo{
			Hits:    stats.Cache.Hits,
			Misses:  stats.Cache.Misses,
			Entries: stats.Cache.Entries,
			HitRate: stats.Cache.HitRate,
		}
	}

	return output, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	// Register search tool - hybrid retrieval
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Query the hybrid retrieval index. The bm25 profile ranks keyword matches across title and content; the embedding_similarity profile ranks by the closest chunk to a prenormalized query vector. Returns ranked documents with per-field match features.",
	}, s.mcpSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", "search"))

	// Register get_document tool - document fetch
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch one stored document by id. Returns all stored fields; pass summary_view=all-summary to include chunk embeddings.",
	}, s.mcpGetDocumentHandler)
	s.logger.Debug("Registered tool", slog.String("name", "get_document"))

	// Register put_document tool - document ingestion
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "put_document",
		Description: "Store or replace a document and refresh its index entries atomically. Chunk and embedding lists must align per field; an integrity violation rejects the document in full.",
	}, s.mcpPutDocumentHandler)
	s.logger.Debug("Registered tool", slog.String("name", "put_document"))

	// Register delete_document tool - document removal
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document from the store and both derived indexes. Deleting an unknown id is an error.",
	}, s.mcpDeleteDocumentHandler)
	s.logger.Debug("Registered tool", slog.String("name", "delete_document"))

	// Register index_status tool - index diagnostics
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report corpus counters: document count, store size on disk, and per-field text and vector index statistics. Use to verify the index is ready.",
	}, s.mcpIndexStatusHandler)
	s.logger.Debug("Registered tool", slog.String("name", "index_status"))

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	// Validate query inputs
	if strings.TrimSpace(input.Query) == "" && len(input.Embedding) == 0 {
		return nil, SearchOutput{}, NewInvalidParamsError("query or query_embedding parameter is required")
	}

	// Execute search
	resp, err := s.engine.Search(ctx, searchQuery(input))
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	return nil, ToSearchOutput(resp), nil
}

// mcpGetDocumentHandler is the MCP SDK handler for the get_document tool.
func (s *Server) mcpGetDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentInput) (
	*mcp.CallToolResult,
	GetDocumentOutput,
	error,
) {
	if input.DocID == "" {
		return nil, GetDocumentOutput{}, NewInvalidParamsError("doc_id parameter is required")
	}

	view, err := document.ParseSummaryView(input.SummaryView)
	if err != nil {
		return nil, GetDocumentOutput{}, MapError(err)
	}

	doc, err := s.engine.Get(ctx, input.DocID)
	if err != nil {
		return nil, GetDocumentOutput{}, MapError(err)
	}

	return nil, GetDocumentOutput{Document: doc.Summary(view)}, nil
}

// mcpPutDocumentHandler is the MCP SDK handler for the put_document tool.
func (s *Server) mcpPutDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input PutDocumentInput) (
	*mcp.CallToolResult,
	*PutDocumentOutput,
	error,
) {
	if input.Document.DocID == "" {
		return nil, nil, NewInvalidParamsError("document.docId is required")
	}

	previous, err := s.engine.Put(ctx, &input.Document)
	if err != nil {
		return nil, nil, MapError(err)
	}

	return nil, &PutDocumentOutput{
		DocID:    input.Document.DocID,
		Replaced: previous != nil,
		Chunks:   chunkTotal(&input.Document),
	}, nil
}

// mcpDeleteDocumentHandler is the MCP SDK handler for the delete_document tool.
func (s *Server) mcpDeleteDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input DeleteDocumentInput) (
	*mcp.CallToolResult,
	*DeleteDocumentOutput,
	error,
) {
	if input.DocID == "" {
		return nil, nil, NewInvalidParamsError("doc_id parameter is required")
	}

	removed, err := s.engine.Delete(ctx, input.DocID)
	if err != nil {
		return nil, nil, MapError(err)
	}

	return nil, &DeleteDocumentOutput{
		DocID:  input.DocID,
		Title:  removed.Title,
		Chunks: chunkTotal(removed),
	}, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	*StatusOutput,
	error,
) {
	output, err := s.buildStatus(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		s.logger.Debug("Using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	case "sse":
		// SSE transport not yet implemented in SDK
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server doesn't have a Close method - it stops when context is canceled
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
