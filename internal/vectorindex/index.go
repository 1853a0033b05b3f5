// Package vectorindex maintains per-field HNSW graphs over chunk
// embeddings.
//
// Every chunk of a document contributes one graph node per field, mapped
// back to its (docID, chunkIndex) pair. Like the text index this is
// derived state, rebuilt from the document store on open. Approximate
// search answers candidate generation; exact per-document rescoring is
// available through BestChunk for the ranking phase.
package vectorindex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Aman-CERP/chunkdex/internal/document"
)

// Config tunes the per-field graphs.
type Config struct {
	// Dimensions every stored and query vector must have.
	Dimensions int

	// MaxLinks is the max out-degree per node on upper layers; layer 0
	// allows twice as many.
	MaxLinks int

	// EfConstruction is the candidate breadth explored per insert.
	EfConstruction int

	// EfSearch is the default query-time beam width; individual searches
	// may override it, and it is never allowed below k.
	EfSearch int

	// Seed fixes the level-assignment RNG for reproducible graphs.
	// Zero seeds from the clock.
	Seed int64
}

// DefaultConfig mirrors the index schema: 384-dim vectors, 16 links,
// 512 explored at insert.
func DefaultConfig() Config {
	return Config{
		Dimensions:     384,
		MaxLinks:       16,
		EfConstruction: 512,
		EfSearch:       100,
	}
}

// ErrDimensionMismatch reports a vector whose width does not match the
// index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Hit is one search result: a chunk and its closeness to the query.
type Hit struct {
	DocID      string
	ChunkIndex int
	Closeness  float64
}

// ChunkRef locates a chunk within a document.
type ChunkRef struct {
	DocID      string
	ChunkIndex int
}

// FieldStats describes one field's graph.
type FieldStats struct {
	Nodes     int `json:"nodes"`
	Documents int `json:"documents"`
}

type chunkVector struct {
	chunk  int
	vector []float32
}

// fieldIndex pairs a graph with the maps tying nodes to chunks. The maps
// have their own lock; a search holds it only while translating node ids,
// never during traversal.
type fieldIndex struct {
	graph *graph

	mu      sync.RWMutex
	byNode  map[nodeID]ChunkRef
	byDoc   map[string][]nodeID
	vectors map[string][]chunkVector
}

func newFieldIndex(cfg Config) *fieldIndex {
	return &fieldIndex{
		graph:   newGraph(cfg.MaxLinks, cfg.EfConstruction, cfg.Seed),
		byNode:  make(map[nodeID]ChunkRef),
		byDoc:   make(map[string][]nodeID),
		vectors: make(map[string][]chunkVector),
	}
}

// Index is the chunked vector index over the searchable fields.
type Index struct {
	cfg    Config
	fields map[document.Field]*fieldIndex
}

// New creates empty per-field graphs.
func New(cfg Config) *Index {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultConfig().Dimensions
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = DefaultConfig().MaxLinks
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultConfig().EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultConfig().EfSearch
	}

	fields := make(map[document.Field]*fieldIndex, len(document.TextFields()))
	for _, field := range document.TextFields() {
		fields[field] = newFieldIndex(cfg)
	}
	return &Index{cfg: cfg, fields: fields}
}

// Dimensions returns the vector width this index accepts.
func (ix *Index) Dimensions() int {
	return ix.cfg.Dimensions
}

// Insert adds one chunk vector as a graph node. Replacing a document is
// retract-then-insert at the orchestration layer; inserting a chunk that
// is already present would create a second node for it.
func (ix *Index) Insert(docID string, field document.Field, chunkIndex int, vector []float32) error {
	fi := ix.fields[field]
	if fi == nil {
		return fmt.Errorf("unknown vector field %q", field)
	}
	if len(vector) != ix.cfg.Dimensions {
		return ErrDimensionMismatch{Expected: ix.cfg.Dimensions, Got: len(vector)}
	}

	id := fi.graph.insert(vector)

	fi.mu.Lock()
	fi.byNode[id] = ChunkRef{DocID: docID, ChunkIndex: chunkIndex}
	fi.byDoc[docID] = append(fi.byDoc[docID], id)
	fi.vectors[docID] = append(fi.vectors[docID], chunkVector{chunk: chunkIndex, vector: vector})
	fi.mu.Unlock()
	return nil
}

// RetractAll removes every node the document contributed to the field,
// repairing affected adjacency lists. Unknown documents are a no-op.
func (ix *Index) RetractAll(docID string, field document.Field) {
	fi := ix.fields[field]
	if fi == nil {
		return
	}

	// Unmap first: a concurrent search that still reaches these nodes
	// finds no chunk mapping and drops them.
	fi.mu.Lock()
	ids := fi.byDoc[docID]
	delete(fi.byDoc, docID)
	delete(fi.vectors, docID)
	for _, id := range ids {
		delete(fi.byNode, id)
	}
	fi.mu.Unlock()

	fi.graph.remove(ids)
}

// Search returns up to k chunks nearest to query, ordered by closeness
// descending with ties broken by ascending docID then chunk index. ef
// overrides the configured beam width when positive; the effective width
// is never below k. A document appears once per matching chunk.
func (ix *Index) Search(field document.Field, query []float32, k, ef int) ([]Hit, error) {
	fi := ix.fields[field]
	if fi == nil {
		return nil, fmt.Errorf("unknown vector field %q", field)
	}
	if len(query) != ix.cfg.Dimensions {
		return nil, ErrDimensionMismatch{Expected: ix.cfg.Dimensions, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}
	if ef <= 0 {
		ef = ix.cfg.EfSearch
	}

	raw := fi.graph.search(query, k, ef)

	fi.mu.RLock()
	hits := make([]Hit, 0, len(raw))
	for _, c := range raw {
		ref, ok := fi.byNode[c.id]
		if !ok {
			// Node is mid-retraction; its document is gone.
			continue
		}
		hits = append(hits, Hit{DocID: ref.DocID, ChunkIndex: ref.ChunkIndex, Closeness: Closeness(c.dist)})
	}
	fi.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Closeness != hits[j].Closeness {
			return hits[i].Closeness > hits[j].Closeness
		}
		if hits[i].DocID != hits[j].DocID {
			return hits[i].DocID < hits[j].DocID
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
	return hits, nil
}

// BestChunk scores every registered chunk of (docID, field) against the
// query exactly and returns the closest. ok is false when the document
// has no vectors in the field.
func (ix *Index) BestChunk(docID string, field document.Field, query []float32) (Hit, bool) {
	fi := ix.fields[field]
	if fi == nil {
		return Hit{}, false
	}

	fi.mu.RLock()
	defer fi.mu.RUnlock()

	cvs := fi.vectors[docID]
	if len(cvs) == 0 {
		return Hit{}, false
	}

	best := Hit{DocID: docID, ChunkIndex: cvs[0].chunk, Closeness: Dot(query, cvs[0].vector)}
	for _, cv := range cvs[1:] {
		closeness := Dot(query, cv.vector)
		if closeness > best.Closeness ||
			(closeness == best.Closeness && cv.chunk < best.ChunkIndex) {
			best = Hit{DocID: docID, ChunkIndex: cv.chunk, Closeness: closeness}
		}
	}
	return best, true
}

// HasDocument reports whether the document has vectors in the field.
func (ix *Index) HasDocument(docID string, field document.Field) bool {
	fi := ix.fields[field]
	if fi == nil {
		return false
	}
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return len(fi.byDoc[docID]) > 0
}

// Stats reports per-field node and document counts.
func (ix *Index) Stats() map[document.Field]FieldStats {
	stats := make(map[document.Field]FieldStats, len(ix.fields))
	for field, fi := range ix.fields {
		fi.mu.RLock()
		fs := FieldStats{
			Nodes:     len(fi.byNode),
			Documents: len(fi.byDoc),
		}
		fi.mu.RUnlock()
		stats[field] = fs
	}
	return stats
}

// CheckIntegrity verifies the structural invariants of every field graph
// and the node-to-chunk mappings. Meaningful when the index is quiescent.
func (ix *Index) CheckIntegrity() error {
	for field, fi := range ix.fields {
		if err := fi.graph.checkIntegrity(); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}

		fi.mu.RLock()
		err := fi.checkMappingsLocked()
		fi.mu.RUnlock()
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
	}
	return nil
}

func (fi *fieldIndex) checkMappingsLocked() error {
	if got, want := fi.graph.size(), len(fi.byNode); got != want {
		return fmt.Errorf("graph holds %d nodes but %d are mapped to chunks", got, want)
	}
	total := 0
	for docID, ids := range fi.byDoc {
		total += len(ids)
		for _, id := range ids {
			ref, ok := fi.byNode[id]
			if !ok {
				return fmt.Errorf("document %q references unmapped node %d", docID, id)
			}
			if ref.DocID != docID {
				return fmt.Errorf("node %d mapped to %q but indexed under %q", id, ref.DocID, docID)
			}
		}
	}
	if total != len(fi.byNode) {
		return fmt.Errorf("per-document lists hold %d nodes but %d are mapped", total, len(fi.byNode))
	}
	return nil
}
