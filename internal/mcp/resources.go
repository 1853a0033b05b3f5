package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/chunkdex/internal/document"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

// maxDocumentResources caps how many documents are registered as resources.
const maxDocumentResources = 10000

// Resource URI scheme.
const (
	// documentURIPrefix prefixes per-document resource URIs.
	documentURIPrefix = "chunkdex://document/"

	// metricsURI is the query telemetry resource.
	metricsURI = "chunkdex://query_metrics"
)

// DocumentURI returns the resource URI for a document id.
func DocumentURI(docID string) string {
	return documentURIPrefix + docID
}

// errStopScan ends a document scan early without reporting failure.
var errStopScan = errors.New("stop scan")

// RegisterResources enumerates stored documents and registers each as an
// MCP resource. This should be called after the server is created and
// before serving. Documents put after registration are still readable via
// ReadResource and the get_document tool; they just do not appear in the
// client's resource listing.
func (s *Server) RegisterResources(ctx context.Context) error {
	registered := 0
	err := s.engine.ForEach(ctx, func(doc *document.Document) error {
		if registered >= maxDocumentResources {
			return errStopScan
		}
		s.registerDocumentResource(doc.DocID, doc.Title)
		registered++
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	s.logger.Info("registered resources", "count", registered)
	return nil
}

// registerDocumentResource registers a single document as an MCP resource.
func (s *Server) registerDocumentResource(docID, title string) {
	desc := title
	if desc == "" {
		desc = docID
	}
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        docID,
			URI:         DocumentURI(docID),
			Description: desc,
			MIMEType:    "application/json",
		},
		s.makeDocumentHandler(docID),
	)
}

// makeDocumentHandler creates a read handler for a specific document id.
func (s *Server) makeDocumentHandler(docID string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadDocument(ctx, docID)
	}
}

// handleReadDocument reads the current stored version of a document.
// The resource carries the non-vector summary; embeddings stay out of
// resource payloads and are available via the get_document tool.
func (s *Server) handleReadDocument(ctx context.Context, docID string) (*mcp.ReadResourceResult, error) {
	doc, err := s.engine.Get(ctx, docID)
	if err != nil {
		var cdxErr *cdxerrors.ChunkdexError
		if errors.As(err, &cdxErr) && cdxErr.Category == cdxerrors.CategoryNotFound {
			return nil, NewResourceNotFoundError(DocumentURI(docID))
		}
		return nil, MapError(err)
	}

	content, err := json.MarshalIndent(doc.Summary(document.SummaryAllNonVector), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      DocumentURI(docID),
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

// ListResources returns all available resources.
func (s *Server) ListResources(ctx context.Context, cursor string) ([]ResourceInfo, string, error) {
	resources := make([]ResourceInfo, 0, 16)

	s.mu.RLock()
	hasMetrics := s.metrics != nil
	s.mu.RUnlock()

	if hasMetrics {
		resources = append(resources, ResourceInfo{
			URI:      metricsURI,
			Name:     "query_metrics",
			MIMEType: "application/json",
		})
	}

	err := s.engine.ForEach(ctx, func(doc *document.Document) error {
		if len(resources) >= maxDocumentResources {
			return errStopScan
		}
		resources = append(resources, ResourceInfo{
			URI:      DocumentURI(doc.DocID),
			Name:     doc.DocID,
			MIMEType: "application/json",
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, "", err
	}

	return resources, "", nil // No pagination for now
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	switch {
	case uri == metricsURI:
		content, err := s.queryMetricsJSON()
		if err != nil {
			return nil, err
		}
		return &ResourceContent{
			URI:      metricsURI,
			Content:  content,
			MIMEType: "application/json",
		}, nil

	case strings.HasPrefix(uri, documentURIPrefix):
		docID := strings.TrimPrefix(uri, documentURIPrefix)
		if docID == "" {
			return nil, NewResourceNotFoundError(uri)
		}
		result, err := s.handleReadDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		return &ResourceContent{
			URI:      uri,
			Content:  result.Contents[0].Text,
			MIMEType: result.Contents[0].MIMEType,
		}, nil

	default:
		return nil, NewResourceNotFoundError(uri)
	}
}

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	ProfileCounts       map[string]int64    `json:"profile_counts"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	Since         string  `json:"since"`
	ZeroResultPct float64 `json:"zero_result_pct"`
	ExactRepeats  int64   `json:"exact_repeats"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// registerQueryMetricsResource registers the query_metrics resource.
// Callers hold s.mu.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         metricsURI,
			Description: "Query pattern telemetry for search optimization",
			MIMEType:    "application/json",
		},
		s.makeQueryMetricsHandler(),
	)
}

// makeQueryMetricsHandler creates a handler for the query_metrics resource.
func (s *Server) makeQueryMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := s.queryMetricsJSON()
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      metricsURI,
					MIMEType: "application/json",
					Text:     content,
				},
			},
		}, nil
	}
}

// queryMetricsJSON renders the current telemetry snapshot as JSON.
func (s *Server) queryMetricsJSON() (string, error) {
	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()

	if metrics == nil {
		return "", NewInvalidParamsError("query metrics not available")
	}

	snapshot := metrics.Snapshot()

	// Convert to output format
	output := QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries:  snapshot.TotalQueries,
			Since:         snapshot.Since.Format(time.RFC3339),
			ZeroResultPct: snapshot.ZeroResultPercentage(),
			ExactRepeats:  snapshot.ExactRepeatCount,
		},
		ProfileCounts:       snapshot.ProfileCounts,
		TopTerms:            make([]QueryTermCount, 0, len(snapshot.TopTerms)),
		ZeroResultQueries:   snapshot.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64),
	}

	// Convert top terms
	for _, tc := range snapshot.TopTerms {
		output.TopTerms = append(output.TopTerms, QueryTermCount{
			Term:  tc.Term,
			Count: tc.Count,
		})
	}

	// Convert latency distribution
	for bucket, count := range snapshot.LatencyDistribution {
		output.LatencyDistribution[string(bucket)] = count
	}

	// Marshal to JSON
	content, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", MapError(err)
	}

	return string(content), nil
}
