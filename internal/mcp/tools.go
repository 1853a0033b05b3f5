package mcp

import (
	"github.com/Aman-CERP/chunkdex/internal/document"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query       string    `json:"query,omitempty" jsonschema:"the lexical query text, required by the bm25 profile"`
	Profile     string    `json:"profile,omitempty" jsonschema:"rank profile: bm25 or embedding_similarity, default bm25"`
	Embedding   []float32 `json:"query_embedding,omitempty" jsonschema:"prenormalized query vector, required by embedding_similarity"`
	Fields      []string  `json:"fields,omitempty" jsonschema:"restrict matching to a subset of title and content"`
	Limit       int       `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, max 100"`
	Offset      int       `json:"offset,omitempty" jsonschema:"number of ranked results to skip before the page"`
	EfSearch    int       `json:"ef_search,omitempty" jsonschema:"vector search beam width override for this query"`
	SummaryView string    `json:"summary_view,omitempty" jsonschema:"result field set: all-non-vector-summary (default) or all-summary"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results   []SearchResultOutput `json:"results" jsonschema:"ranked search results"`
	Total     int                  `json:"total" jsonschema:"candidates that scored, before pagination"`
	Profile   string               `json:"profile" jsonschema:"rank profile that scored the results"`
	ElapsedMs float64              `json:"elapsed_ms" jsonschema:"query latency in milliseconds"`
}

// SearchResultOutput defines a single search result with match context.
type SearchResultOutput struct {
	DocID        string              `json:"doc_id" jsonschema:"document identifier"`
	Score        float64             `json:"score" jsonschema:"relevance score under the selected profile"`
	Title        string              `json:"title,omitempty" jsonschema:"document title"`
	URL          string              `json:"url,omitempty" jsonschema:"document URL attribute"`
	Domain       string              `json:"domain,omitempty" jsonschema:"document domain attribute"`
	DocDate      string              `json:"doc_date,omitempty" jsonschema:"document date attribute"`
	Snippet      string              `json:"snippet,omitempty" jsonschema:"best matching chunk text, or the content head"`
	BestField    string              `json:"best_field,omitempty" jsonschema:"field holding the overall closest chunk"`
	MatchedTerms map[string][]string `json:"matched_terms,omitempty" jsonschema:"query terms that matched, per field"`
	MatchReason  string              `json:"match_reason,omitempty" jsonschema:"human-readable explanation of why this result matched"`
}

// GetDocumentInput defines the input schema for the get_document tool.
type GetDocumentInput struct {
	DocID       string `json:"doc_id" jsonschema:"the document identifier to fetch"`
	SummaryView string `json:"summary_view,omitempty" jsonschema:"field set: all-non-vector-summary (default) or all-summary to include embeddings"`
}

// GetDocumentOutput defines the output schema for the get_document tool.
type GetDocumentOutput struct {
	Document document.Summary `json:"document" jsonschema:"the stored document projected through the requested view"`
}

// PutDocumentInput defines the input schema for the put_document tool.
type PutDocumentInput struct {
	Document document.Document `json:"document" jsonschema:"the document to store, with aligned chunk and embedding lists"`
}

// PutDocumentOutput defines the output schema for the put_document tool.
type PutDocumentOutput struct {
	DocID    string `json:"doc_id" jsonschema:"identifier the document was stored under"`
	Replaced bool   `json:"replaced" jsonschema:"true when a previous version was overwritten"`
	Chunks   int    `json:"chunks" jsonschema:"total chunk count across both fields"`
}

// DeleteDocumentInput defines the input schema for the delete_document tool.
type DeleteDocumentInput struct {
	DocID string `json:"doc_id" jsonschema:"the document identifier to remove"`
}

// DeleteDocumentOutput defines the output schema for the delete_document tool.
type DeleteDocumentOutput struct {
	DocID  string `json:"doc_id" jsonschema:"identifier of the removed document"`
	Title  string `json:"title,omitempty" jsonschema:"title of the removed document"`
	Chunks int    `json:"chunks" jsonschema:"chunk count the removed version carried"`
}

// StatusInput defines the input schema for the index_status tool (no parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the index_status tool.
type StatusOutput struct {
	Server ServerInfo    `json:"server"`
	Index  IndexInfo     `json:"index"`
	Fields []FieldStatus `json:"fields"`
	Cache  *CacheInfo    `json:"cache,omitempty"` // Present when the store cache is enabled
}

// ServerInfo identifies the serving binary.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// IndexInfo contains corpus-level counters.
type IndexInfo struct {
	Documents  int   `json:"documents"`
	StoreBytes int64 `json:"store_bytes"`
	Dimensions int   `json:"dimensions"`
}

// FieldStatus contains per-field index statistics.
type FieldStatus struct {
	Field           string  `json:"field"`
	TextDocuments   int     `json:"text_documents"`
	Terms           int     `json:"terms"`
	Postings        int     `json:"postings"`
	AvgDocLength    float64 `json:"avg_doc_length"`
	Vectors         int     `json:"vectors"`
	VectorDocuments int     `json:"vector_documents"`
}

// CacheInfo contains document cache counters.
type CacheInfo struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}
