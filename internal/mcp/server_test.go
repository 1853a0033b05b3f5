package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/engine"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
	"github.com/Aman-CERP/chunkdex/internal/rank"
	"github.com/Aman-CERP/chunkdex/internal/textindex"
	"github.com/Aman-CERP/chunkdex/internal/vectorindex"
)

// MockEngine implements Engine for testing.
type MockEngine struct {
	SearchFn     func(ctx context.Context, q engine.Query) (*engine.SearchResponse, error)
	PutFn        func(ctx context.Context, doc *document.Document) (*document.Document, error)
	GetFn        func(ctx context.Context, docID string) (*document.Document, error)
	DeleteFn     func(ctx context.Context, docID string) (*document.Document, error)
	StatsFn      func(ctx context.Context) (*engine.Stats, error)
	ForEachFn    func(ctx context.Context, fn func(doc *document.Document) error) error
	DimensionsFn func() int
}

func (m *MockEngine) Search(ctx context.Context, q engine.Query) (*engine.SearchResponse, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, q)
	}
	return &engine.SearchResponse{Results: []engine.Result{}, Profile: rank.ProfileBM25}, nil
}

func (m *MockEngine) Put(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if m.PutFn != nil {
		return m.PutFn(ctx, doc)
	}
	return nil, nil
}

func (m *MockEngine) Get(ctx context.Context, docID string) (*document.Document, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, docID)
	}
	return nil, cdxerrors.NotFoundError(docID)
}

func (m *MockEngine) Delete(ctx context.Context, docID string) (*document.Document, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, docID)
	}
	return nil, cdxerrors.NotFoundError(docID)
}

func (m *MockEngine) Stats(ctx context.Context) (*engine.Stats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return &engine.Stats{
		Text:   map[document.Field]textindex.FieldStats{},
		Vector: map[document.Field]vectorindex.FieldStats{},
	}, nil
}

func (m *MockEngine) ForEach(ctx context.Context, fn func(doc *document.Document) error) error {
	if m.ForEachFn != nil {
		return m.ForEachFn(ctx, fn)
	}
	return nil
}

func (m *MockEngine) Dimensions() int {
	if m.DimensionsFn != nil {
		return m.DimensionsFn()
	}
	return 4
}

// Ensure MockEngine implements Engine
var _ Engine = (*MockEngine)(nil)

// unitVector returns a 4-dimensional unit vector along the given axis.
func unitVector(axis int) []float32 {
	v := make([]float32, 4)
	v[axis%4] = 1
	return v
}

// sampleDoc returns a small valid document fixture.
func sampleDoc() *document.Document {
	return &document.Document{
		DocID:         "news-0042",
		URL:           "https://example.com/news/42",
		Domain:        "example.com",
		Title:         "Cats in the News",
		Content:       "The cat sat on the mat. Later the cat napped.",
		DocDate:       "2024-03-14",
		ChunksTitle:   []string{"Cats in the News"},
		ChunksContent: []string{"The cat sat on the mat.", "Later the cat napped."},
		EmbeddingsTitle: []document.ChunkEmbedding{
			{ChunkIndex: 0, Vector: unitVector(0)},
		},
		EmbeddingsContent: []document.ChunkEmbedding{
			{ChunkIndex: 0, Vector: unitVector(1)},
			{ChunkIndex: 1, Vector: unitVector(2)},
		},
	}
}

// sampleResponse returns a single-hit bm25 response fixture.
func sampleResponse() *engine.SearchResponse {
	return &engine.SearchResponse{
		Results: []engine.Result{
			{
				DocID: "news-0042",
				Score: 7.25,
				Features: &rank.MatchFeatures{
					MatchedTerms: map[document.Field][]string{
						document.FieldTitle:   {"cat"},
						document.FieldContent: {"cat", "sat"},
					},
				},
				Summary: document.Summary{
					DocID:   "news-0042",
					URL:     "https://example.com/news/42",
					Domain:  "example.com",
					Title:   "Cats in the News",
					Content: "The cat sat on the mat. Later the cat napped.",
					DocDate: "2024-03-14",
				},
			},
		},
		Total:   1,
		Profile: rank.ProfileBM25,
		Elapsed: 2 * time.Millisecond,
	}
}

// newTestServer creates a server over the given mock engine.
func newTestServer(t *testing.T, eng Engine) *Server {
	t.Helper()
	srv, err := NewServer(eng)
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresEngine(t *testing.T) {
	// When: creating a server without an engine
	srv, err := NewServer(nil)

	// Then: construction fails
	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Contains(t, err.Error(), "engine is required")
}

func TestNewServer_RegistersTools(t *testing.T) {
	// Given: a server over a mock engine
	srv := newTestServer(t, &MockEngine{})

	// When: listing tools
	tools := srv.ListTools()

	// Then: all five tools are present
	require.Len(t, tools, 5)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search", "get_document", "put_document", "delete_document", "index_status"}, names)
}

func TestServer_Info(t *testing.T) {
	// Given: a server
	srv := newTestServer(t, &MockEngine{})

	// When: querying identity
	name, ver := srv.Info()

	// Then: name and version are set
	assert.Equal(t, "chunkdex", name)
	assert.NotEmpty(t, ver)
}

func TestServer_Capabilities(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	hasTools, hasResources := srv.Capabilities()

	assert.True(t, hasTools)
	assert.True(t, hasResources)
}

func TestServer_MCPServer(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	assert.NotNil(t, srv.MCPServer())
}

func TestCallTool_UnknownTool(t *testing.T) {
	// Given: a server
	srv := newTestServer(t, &MockEngine{})

	// When: calling an unregistered tool
	_, err := srv.CallTool(context.Background(), "rebuild_index", nil)

	// Then: method not found
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "rebuild_index")
}

func TestCallTool_Search_ReturnsMarkdown(t *testing.T) {
	// Given: server with mock search returning results
	eng := &MockEngine{
		SearchFn: func(ctx context.Context, q engine.Query) (*engine.SearchResponse, error) {
			return sampleResponse(), nil
		},
	}
	srv := newTestServer(t, eng)

	// When: calling search tool
	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "cat",
	})

	// Then: markdown format returned (not struct)
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok, "expected string result, got %T", result)
	assert.Contains(t, text, "## Search Results")
	assert.Contains(t, text, "news-0042")
	assert.Contains(t, text, "score: 7.2500")
}

func TestCallTool_Search_RequiresQueryInput(t *testing.T) {
	// Given: a server
	srv := newTestServer(t, &MockEngine{})

	// When: calling search with neither text nor vector
	_, err := srv.CallTool(context.Background(), "search", map[string]any{})

	// Then: invalid params
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallTool_Search_PassesQueryParameters(t *testing.T) {
	// Given: server capturing the engine query
	var captured engine.Query
	eng := &MockEngine{
		SearchFn: func(ctx context.Context, q engine.Query) (*engine.SearchResponse, error) {
			captured = q
			return &engine.SearchResponse{Results: []engine.Result{}, Profile: rank.ProfileEmbeddingSimilarity}, nil
		},
	}
	srv := newTestServer(t, eng)

	// When: calling search with the full parameter set
	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"profile":         "embedding_similarity",
		"query_embedding": []interface{}{1.0, 0.0, 0.0, 0.0},
		"fields":          []interface{}{"content"},
		"limit":           float64(5),
		"offset":          float64(10),
		"ef_search":       float64(200),
		"summary_view":    "all-summary",
	})

	// Then: every parameter reaches the engine
	require.NoError(t, err)
	assert.Equal(t, "embedding_similarity", captured.Profile)
	assert.Equal(t, []float32{1, 0, 0, 0}, captured.Embedding)
	assert.Equal(t, []string{"content"}, captured.Fields)
	assert.Equal(t, 5, captured.Limit)
	assert.Equal(t, 10, captured.Offset)
	assert.Equal(t, 200, captured.EfSearch)
	assert.Equal(t, "all-summary", captured.SummaryView)
}

func TestCallTool_Search_ClampsLimit(t *testing.T) {
	// Given: server capturing the engine query
	var captured engine.Query
	eng := &MockEngine{
		SearchFn: func(ctx context.Context, q engine.Query) (*engine.SearchResponse, error) {
			captured = q
			return &engine.SearchResponse{Results: []engine.Result{}, Profile: rank.ProfileBM25}, nil
		},
	}
	srv := newTestServer(t, eng)

	// When: requesting more than the page cap
	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "cat",
		"limit": float64(500),
	})

	// Then: the limit is clamped to the cap
	require.NoError(t, err)
	assert.Equal(t, 100, captured.Limit)
}

func TestCallTool_Search_MapsEngineError(t *testing.T) {
	// Given: server whose engine rejects the profile
	eng := &MockEngine{
		SearchFn: func(ctx context.Context, q engine.Query) (*engine.SearchResponse, error) {
			return nil, cdxerrors.New(cdxerrors.ErrCodeUnknownProfile, `unknown rank profile "fancy"`, nil)
		},
	}
	srv := newTestServer(t, eng)

	// When: calling search
	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query":   "cat",
		"profile": "fancy",
	})

	// Then: the validation error surfaces as invalid params
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "fancy")
}

func TestCallTool_GetDocument_ReturnsMarkdown(t *testing.T) {
	// Given: server with a stored document
	eng := &MockEngine{
		GetFn: func(ctx context.Context, docID string) (*document.Document, error) {
			return sampleDoc(), nil
		},
	}
	srv := newTestServer(t, eng)

	// When: calling get_document
	result, err := srv.CallTool(context.Background(), "get_document", map[string]any{
		"doc_id": "news-0042",
	})

	// Then: the document renders as markdown
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "## Cats in the News")
	assert.Contains(t, text, "news-0042")
}

func TestCallTool_GetDocument_RequiresDocID(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	_, err := srv.CallTool(context.Background(), "get_document", map[string]any{})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallTool_GetDocument_NotFound(t *testing.T) {
	// Given: a server over an empty store
	srv := newTestServer(t, &MockEngine{})

	// When: fetching an unknown id
	_, err := srv.CallTool(context.Background(), "get_document", map[string]any{
		"doc_id": "missing",
	})

	// Then: document not found
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
}

func TestCallTool_PutDocument_StoresAndReports(t *testing.T) {
	// Given: server capturing stored documents
	var stored *document.Document
	eng := &MockEngine{
		PutFn: func(ctx context.Context, doc *document.Document) (*document.Document, error) {
			stored = doc
			return nil, nil
		},
	}
	srv := newTestServer(t, eng)

	// When: calling put_document with a wire-shaped document
	result, err := srv.CallTool(context.Background(), "put_document", map[string]any{
		"document": map[string]any{
			"docId":         "news-0099",
			"title":         "Fresh News",
			"content":       "Something happened.",
			"chunksTitle":   []any{"Fresh News"},
			"chunksContent": []any{"Something happened."},
		},
	})

	// Then: the document was decoded and stored
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "news-0099", stored.DocID)
	assert.Equal(t, "Fresh News", stored.Title)

	out, ok := result.(*PutDocumentOutput)
	require.True(t, ok)
	assert.Equal(t, "news-0099", out.DocID)
	assert.False(t, out.Replaced)
	assert.Equal(t, 2, out.Chunks)
}

func TestCallTool_PutDocument_ReportsReplacement(t *testing.T) {
	// Given: server whose put returns a previous version
	eng := &MockEngine{
		PutFn: func(ctx context.Context, doc *document.Document) (*document.Document, error) {
			return sampleDoc(), nil
		},
	}
	srv := newTestServer(t, eng)

	// When: overwriting
	result, err := srv.CallTool(context.Background(), "put_document", map[string]any{
		"document": map[string]any{"docId": "news-0042"},
	})

	// Then: the output flags the replacement
	require.NoError(t, err)
	out := result.(*PutDocumentOutput)
	assert.True(t, out.Replaced)
}

func TestCallTool_PutDocument_RequiresDocument(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	_, err := srv.CallTool(context.Background(), "put_document", map[string]any{})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallTool_PutDocument_MapsIntegrityError(t *testing.T) {
	// Given: server whose engine rejects the document
	eng := &MockEngine{
		PutFn: func(ctx context.Context, doc *document.Document) (*document.Document, error) {
			return nil, cdxerrors.IntegrityError("title has 1 chunks but 0 embeddings", nil)
		},
	}
	srv := newTestServer(t, eng)

	// When: storing a misaligned document
	_, err := srv.CallTool(context.Background(), "put_document", map[string]any{
		"document": map[string]any{"docId": "bad-doc"},
	})

	// Then: document rejected
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentRejected, mcpErr.Code)
}

func TestCallTool_DeleteDocument_ReportsRemoved(t *testing.T) {
	// Given: server whose delete returns the removed version
	eng := &MockEngine{
		DeleteFn: func(ctx context.Context, docID string) (*document.Document, error) {
			return sampleDoc(), nil
		},
	}
	srv := newTestServer(t, eng)

	// When: deleting
	result, err := srv.CallTool(context.Background(), "delete_document", map[string]any{
		"doc_id": "news-0042",
	})

	// Then: the removed document is described
	require.NoError(t, err)
	out, ok := result.(*DeleteDocumentOutput)
	require.True(t, ok)
	assert.Equal(t, "news-0042", out.DocID)
	assert.Equal(t, "Cats in the News", out.Title)
	assert.Equal(t, 3, out.Chunks)
}

func TestCallTool_DeleteDocument_NotFound(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	_, err := srv.CallTool(context.Background(), "delete_document", map[string]any{
		"doc_id": "missing",
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
}

func TestCallTool_IndexStatus_ReportsCounters(t *testing.T) {
	// Given: server with populated engine stats
	eng := &MockEngine{
		StatsFn: func(ctx context.Context) (*engine.Stats, error) {
			return &engine.Stats{
				Documents:  120,
				StoreBytes: 1 << 20,
				Text: map[document.Field]textindex.FieldStats{
					document.FieldTitle:   {Documents: 120, Terms: 340, Postings: 800, AvgDocLength: 4.2},
					document.FieldContent: {Documents: 120, Terms: 2100, Postings: 9100, AvgDocLength: 87.5},
				},
				Vector: map[document.Field]vectorindex.FieldStats{
					document.FieldTitle:   {Nodes: 120, Documents: 120},
					document.FieldContent: {Nodes: 480, Documents: 120},
				},
			}, nil
		},
		DimensionsFn: func() int { return 384 },
	}
	srv := newTestServer(t, eng)

	// When: calling index_status
	result, err := srv.CallTool(context.Background(), "index_status", nil)

	// Then: corpus and per-field counters are reported in field order
	require.NoError(t, err)
	out, ok := result.(*StatusOutput)
	require.True(t, ok)
	assert.Equal(t, "chunkdex", out.Server.Name)
	assert.Equal(t, 120, out.Index.Documents)
	assert.Equal(t, int64(1<<20), out.Index.StoreBytes)
	assert.Equal(t, 384, out.Index.Dimensions)
	require.Len(t, out.Fields, 2)
	assert.Equal(t, "title", out.Fields[0].Field)
	assert.Equal(t, 340, out.Fields[0].Terms)
	assert.Equal(t, "content", out.Fields[1].Field)
	assert.Equal(t, 480, out.Fields[1].Vectors)
	assert.Nil(t, out.Cache)
}

func TestMCPSearchHandler_ReturnsStructuredOutput(t *testing.T) {
	// Given: server with mock search returning results
	eng := &MockEngine{
		SearchFn: func(ctx context.Context, q engine.Query) (*engine.SearchResponse, error) {
			return sampleResponse(), nil
		},
	}
	srv := newTestServer(t, eng)

	// When: invoking the typed handler
	_, out, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "cat"})

	// Then: structured output with match context
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "news-0042", out.Results[0].DocID)
	assert.Equal(t, []string{"cat"}, out.Results[0].MatchedTerms["title"])
	assert.Equal(t, "bm25", out.Profile)
}

func TestMCPSearchHandler_RequiresQueryInput(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	_, _, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestMCPGetDocumentHandler_ViewControlsEmbeddings(t *testing.T) {
	// Given: server with a stored document carrying embeddings
	eng := &MockEngine{
		GetFn: func(ctx context.Context, docID string) (*document.Document, error) {
			return sampleDoc(), nil
		},
	}
	srv := newTestServer(t, eng)

	// When: fetching with the default view
	_, out, err := srv.mcpGetDocumentHandler(context.Background(), nil, GetDocumentInput{DocID: "news-0042"})

	// Then: embeddings are stripped
	require.NoError(t, err)
	assert.Empty(t, out.Document.EmbeddingsTitle)
	assert.Empty(t, out.Document.EmbeddingsContent)

	// When: fetching with the all-summary view
	_, out, err = srv.mcpGetDocumentHandler(context.Background(), nil, GetDocumentInput{
		DocID:       "news-0042",
		SummaryView: "all-summary",
	})

	// Then: embeddings are included
	require.NoError(t, err)
	assert.Len(t, out.Document.EmbeddingsTitle, 1)
	assert.Len(t, out.Document.EmbeddingsContent, 2)
}

func TestMCPGetDocumentHandler_RejectsUnknownView(t *testing.T) {
	eng := &MockEngine{
		GetFn: func(ctx context.Context, docID string) (*document.Document, error) {
			return sampleDoc(), nil
		},
	}
	srv := newTestServer(t, eng)

	_, _, err := srv.mcpGetDocumentHandler(context.Background(), nil, GetDocumentInput{
		DocID:       "news-0042",
		SummaryView: "everything",
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestMCPPutDocumentHandler_RequiresDocID(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	_, _, err := srv.mcpPutDocumentHandler(context.Background(), nil, PutDocumentInput{})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestMCPDeleteDocumentHandler_RequiresDocID(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	_, _, err := srv.mcpDeleteDocumentHandler(context.Background(), nil, DeleteDocumentInput{})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServe_UnknownTransport(t *testing.T) {
	// Given: a server
	srv := newTestServer(t, &MockEngine{})

	// When: serving an unsupported transport
	err := srv.Serve(context.Background(), "carrier-pigeon", "")

	// Then: rejected with the supported transports named
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
	assert.Contains(t, err.Error(), "stdio")
}

func TestServe_SSENotImplemented(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	err := srv.Serve(context.Background(), "sse", ":8080")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not yet implemented")
}

func TestClose_ReturnsNil(t *testing.T) {
	srv := newTestServer(t, &MockEngine{})

	assert.NoError(t, srv.Close())
}

func TestGenerateRequestID(t *testing.T) {
	// When: generating request ids
	a := generateRequestID()
	b := generateRequestID()

	// Then:eight hex characters, distinct across calls
	assert.Len(t, a, 8)
	assert.Len(t, b, 8)
	assert.NotEqual(t, a, b)
}
