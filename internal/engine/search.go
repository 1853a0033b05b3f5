package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/chunkdex/internal/document"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
	"github.com/Aman-CERP/chunkdex/internal/rank"
	"github.com/Aman-CERP/chunkdex/internal/telemetry"
	"github.com/Aman-CERP/chunkdex/internal/vectorindex"
)

// Query is one search request. Inputs the selected profile does not use
// are ignored; only a missing required input fails validation.
type Query struct {
	// Profile selects the rank profile. Empty uses the configured
	// default; an unknown name is a validation error, never a fallback.
	Profile string `json:"profile,omitempty"`

	// Text is the lexical query. The bm25 profile requires it to
	// analyze to at least one searchable term.
	Text string `json:"queryText,omitempty"`

	// Embedding is the query vector, required by embedding_similarity.
	// It must match the index width and is compared as-is, without
	// renormalization.
	Embedding []float32 `json:"queryEmbedding,omitempty"`

	// Fields restricts matching to a subset of the searchable fields.
	// Empty means all of them.
	Fields []string `json:"fields,omitempty"`

	// SummaryView picks the hydrated field set for each result. Empty
	// means the non-vector view.
	SummaryView string `json:"summaryView,omitempty"`

	// Limit caps the page size; 0 uses the configured default.
	Limit int `json:"limit,omitempty"`

	// Offset skips that many ranked results before the page starts.
	Offset int `json:"offset,omitempty"`

	// EfSearch widens the vector search beam for this query only. The
	// effective beam is never below the page depth; 0 keeps the
	// configured default.
	EfSearch int `json:"efSearch,omitempty"`
}

// Highlight is the chunk that best explains an embedding_similarity hit.
type Highlight struct {
	Field      document.Field `json:"field"`
	ChunkIndex int            `json:"chunkIndex"`
	Text       string         `json:"text"`
}

// Result is one ranked hit with its explanation and hydrated summary.
type Result struct {
	DocID     string              `json:"docId"`
	Score     float64             `json:"score"`
	Features  *rank.MatchFeatures `json:"matchFeatures,omitempty"`
	Highlight *Highlight          `json:"highlight,omitempty"`
	Summary   document.Summary    `json:"summary"`
}

// SearchResponse carries the ranked page plus query-level bookkeeping.
type SearchResponse struct {
	Results []Result `json:"results"`

	// Total counts every candidate that scored, before pagination.
	Total int `json:"total"`

	Profile rank.Profile  `json:"profile"`
	Elapsed time.Duration `json:"elapsed"`
}

// parsedQuery is a Query after validation, with defaults applied.
type parsedQuery struct {
	profile   rank.Profile
	fields    []document.Field
	terms     []string
	embedding []float32
	view      document.SummaryView
	limit     int
	offset    int
	k         int // limit+offset, the page depth
	ef        int // vector beam override, 0 = configured default
}

func (p *parsedQuery) inputs() rank.Inputs {
	return rank.Inputs{Fields: p.fields, Terms: p.terms, Embedding: p.embedding}
}

// parseQuery validates the request before any index is touched.
func (e *Engine) parseQuery(q Query) (*parsedQuery, error) {
	name := q.Profile
	if name == "" {
		name = e.cfg.Search.DefaultProfile
	}
	profile, err := rank.ParseProfile(name)
	if err != nil {
		return nil, err
	}

	fields, err := parseFields(q.Fields)
	if err != nil {
		return nil, err
	}

	view, err := document.ParseSummaryView(q.SummaryView)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	switch {
	case limit == 0:
		limit = e.cfg.Search.DefaultLimit
	case limit < 0:
		return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidPagination,
			fmt.Sprintf("limit must be positive, got %d", limit), nil)
	case limit > e.cfg.Search.MaxLimit:
		return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidPagination,
			fmt.Sprintf("limit %d exceeds the maximum of %d", limit, e.cfg.Search.MaxLimit), nil)
	}
	if q.Offset < 0 {
		return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidPagination,
			fmt.Sprintf("offset must be non-negative, got %d", q.Offset), nil)
	}
	if limit+q.Offset > e.cfg.Search.MaxResults {
		return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidPagination,
			fmt.Sprintf("limit %d + offset %d exceeds the %d result window", limit, q.Offset, e.cfg.Search.MaxResults), nil)
	}
	if q.EfSearch < 0 {
		return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("efSearch must be non-negative, got %d", q.EfSearch), nil)
	}

	p := &parsedQuery{
		profile: profile,
		fields:  fields,
		view:    view,
		limit:   limit,
		offset:  q.Offset,
		k:       limit + q.Offset,
		ef:      q.EfSearch,
	}

	switch profile {
	case rank.ProfileBM25:
		p.terms = e.text.Analyzer().QueryTerms(q.Text)
		if len(p.terms) == 0 {
			return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidQuery,
				"bm25 requires query text with at least one searchable term", nil)
		}
	case rank.ProfileEmbeddingSimilarity:
		if len(q.Embedding) == 0 {
			return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidQuery,
				"embedding_similarity requires a query embedding", nil)
		}
		if len(q.Embedding) != e.cfg.Vector.Dimensions {
			return nil, cdxerrors.New(cdxerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("query embedding has %d dimensions, the index requires %d",
					len(q.Embedding), e.cfg.Vector.Dimensions), nil)
		}
		if isZeroVector(q.Embedding) {
			return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidQuery,
				"query embedding is all zeros", nil)
		}
		p.embedding = q.Embedding
	}
	return p, nil
}

// parseFields maps the requested field names to the canonical field
// order, collapsing duplicates. Empty selects every searchable field.
func parseFields(names []string) ([]document.Field, error) {
	if len(names) == 0 {
		return document.TextFields(), nil
	}
	requested := make(map[document.Field]bool, len(names))
	for _, name := range names {
		f, err := document.ParseField(name)
		if err != nil {
			return nil, err
		}
		requested[f] = true
	}
	var fields []document.Field
	for _, f := range document.TextFields() {
		if requested[f] {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Search runs one query: validate, gather candidates, score, order,
// paginate, hydrate. Validation failures surface before any index
// access. Results order by score descending, then docId ascending.
func (e *Engine) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	if e.closed.Load() {
		return nil, cdxerrors.StorageError("engine is closed", nil)
	}
	p, err := e.parseQuery(q)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	candidates, err := e.gatherCandidates(ctx, p)
	if err != nil {
		return nil, err
	}
	ranked, err := e.evaluateCandidates(ctx, p, candidates)
	if err != nil {
		return nil, err
	}
	rank.Sort(ranked)

	results, err := e.hydrate(ctx, p, paginate(ranked, p.offset, p.limit))
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.recordQuery(q, p, len(ranked), elapsed)
	return &SearchResponse{
		Results: results,
		Total:   len(ranked),
		Profile: p.profile,
		Elapsed: elapsed,
	}, nil
}

// gatherCandidates collects the ids the profile's first phase surfaces:
// the union over queried fields of documents matching any term (bm25),
// or of documents owning a nearby chunk (embedding_similarity).
func (e *Engine) gatherCandidates(ctx context.Context, p *parsedQuery) ([]string, error) {
	switch p.profile {
	case rank.ProfileBM25:
		seen := make(map[string]struct{})
		var ids []string
		for _, field := range p.fields {
			for _, id := range e.text.Candidates(field, p.terms) {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		return ids, nil

	case rank.ProfileEmbeddingSimilarity:
		// One graph traversal per field, in parallel.
		hitsByField := make([][]vectorindex.Hit, len(p.fields))
		g, _ := errgroup.WithContext(ctx)
		for i, field := range p.fields {
			g.Go(func() error {
				hits, err := e.vector.Search(field, p.embedding, p.k, p.ef)
				if err != nil {
					return err
				}
				hitsByField[i] = hits
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, cdxerrors.New(cdxerrors.ErrCodeSearchFailed, "vector candidate search failed", err)
		}
		seen := make(map[string]struct{})
		var ids []string
		for _, hits := range hitsByField {
			for _, hit := range hits {
				if _, dup := seen[hit.DocID]; dup {
					continue
				}
				seen[hit.DocID] = struct{}{}
				ids = append(ids, hit.DocID)
			}
		}
		return ids, nil

	default:
		return nil, cdxerrors.New(cdxerrors.ErrCodeUnknownProfile,
			fmt.Sprintf("unknown rank profile %q", p.profile), nil)
	}
}

// evaluateCandidates scores each candidate under its document read lock
// so a concurrent replace cannot mix versions within one document's
// score. Candidates the profile cannot score drop out here.
func (e *Engine) evaluateCandidates(ctx context.Context, p *parsedQuery, candidates []string) ([]rank.Ranked, error) {
	in := p.inputs()
	ranked := make([]rank.Ranked, 0, len(candidates))
	for i, docID := range candidates {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		mu := e.locks.of(docID)
		mu.RLock()
		r, ok := e.eval.Evaluate(p.profile, in, docID)
		mu.RUnlock()
		if ok {
			ranked = append(ranked, r)
		}
	}
	return ranked, nil
}

func paginate(ranked []rank.Ranked, offset, limit int) []rank.Ranked {
	if offset >= len(ranked) {
		return nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

// hydrate loads the paged documents and re-scores each one under the
// same read lock, so score, match features, and summary all describe the
// version being returned. Documents deleted since scoring drop out.
func (e *Engine) hydrate(ctx context.Context, p *parsedQuery, page []rank.Ranked) ([]Result, error) {
	in := p.inputs()
	results := make([]Result, 0, len(page))
	for _, r := range page {
		mu := e.locks.of(r.DocID)
		mu.RLock()
		doc, err := e.store.Get(ctx, r.DocID)
		if err != nil {
			mu.RUnlock()
			if cdxerrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		fresh, ok := e.eval.Evaluate(p.profile, in, r.DocID)
		mu.RUnlock()
		if !ok {
			continue
		}
		res := Result{
			DocID:    r.DocID,
			Score:    fresh.Score,
			Features: fresh.Features,
			Summary:  doc.Summary(p.view),
		}
		if p.profile == rank.ProfileEmbeddingSimilarity {
			res.Highlight = buildHighlight(doc, fresh.Features)
		}
		results = append(results, res)
	}
	return results, nil
}

// buildHighlight resolves the best-chunk match feature to its text.
func buildHighlight(doc *document.Document, features *rank.MatchFeatures) *Highlight {
	if features == nil || features.BestField == "" {
		return nil
	}
	feature, ok := features.ClosestChunk[features.BestField]
	if !ok {
		return nil
	}
	chunks := doc.ChunksOf(features.BestField)
	if feature.ChunkIndex < 0 || feature.ChunkIndex >= len(chunks) {
		return nil
	}
	return &Highlight{
		Field:      features.BestField,
		ChunkIndex: feature.ChunkIndex,
		Text:       chunks[feature.ChunkIndex],
	}
}

func (e *Engine) recordQuery(q Query, p *parsedQuery, matched int, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       q.Text,
		Profile:     p.profile.String(),
		Terms:       p.terms,
		ResultCount: matched,
		Latency:     elapsed,
		Timestamp:   time.Now(),
	})
}
