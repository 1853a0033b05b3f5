package retrieval

import (
	"context"
	"errors"
	"os"

	"github.com/Aman-CERP/chunkdex/internal/config"
	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/engine"
	"github.com/Aman-CERP/chunkdex/internal/store"
)

// ErrNoLocation is returned when Open is given neither a data directory
// nor the in-memory option.
var ErrNoLocation = errors.New("a data directory or WithInMemory is required")

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("index is closed")

// Re-exported domain types, so callers need only this package.
type (
	// Document is one indexed record with its chunks and embeddings.
	Document = document.Document

	// ChunkEmbedding maps one chunk of a field to its vector.
	ChunkEmbedding = document.ChunkEmbedding

	// Query describes one search request.
	Query = engine.Query

	// SearchResponse is one page of ranked results.
	SearchResponse = engine.SearchResponse

	// Result is a single ranked hit.
	Result = engine.Result

	// Stats summarizes the index contents.
	Stats = engine.Stats
)

// Index is a handle to an open chunkdex index.
//
// All methods are safe for concurrent use. Writes to the same document
// id serialize; searches run concurrently with writes and observe each
// document either entirely before or entirely after a write.
type Index struct {
	eng *engine.Engine
}

type settings struct {
	dataDir        string
	inMemory       bool
	dimensions     int
	defaultProfile string
	cacheSize      int
}

// Option configures Open.
type Option func(*settings)

// WithDataDir stores the index under dir, creating it when missing. The
// directory is locked for the lifetime of the Index; a second opener
// fails fast.
func WithDataDir(dir string) Option {
	return func(s *settings) { s.dataDir = dir }
}

// WithInMemory keeps all state in process memory. Nothing survives
// Close.
func WithInMemory() Option {
	return func(s *settings) { s.inMemory = true }
}

// WithDimensions sets the required embedding width. Default: 384.
func WithDimensions(dims int) Option {
	return func(s *settings) { s.dimensions = dims }
}

// WithDefaultProfile sets the rank profile used when a query names
// none. Default: "bm25".
func WithDefaultProfile(profile string) Option {
	return func(s *settings) { s.defaultProfile = profile }
}

// WithCacheSize sets the document read-cache capacity. Zero disables
// the cache.
func WithCacheSize(n int) Option {
	return func(s *settings) { s.cacheSize = n }
}

// Open opens (or creates) an index and rebuilds the derived indexes
// from the stored documents.
func Open(ctx context.Context, opts ...Option) (*Index, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if !s.inMemory && s.dataDir == "" {
		return nil, ErrNoLocation
	}

	cfg := config.NewConfig()
	if s.inMemory {
		cfg.Store.Backend = string(store.BackendMemory)
	}
	if s.dimensions > 0 {
		cfg.Vector.Dimensions = s.dimensions
	}
	if s.defaultProfile != "" {
		cfg.Search.DefaultProfile = s.defaultProfile
	}
	cfg.Store.CacheSize = s.cacheSize
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var engineOpts []engine.Option
	if !s.inMemory {
		if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, engine.WithDataDir(s.dataDir))
	}

	eng, err := engine.Open(ctx, cfg, engineOpts...)
	if err != nil {
		return nil, err
	}
	return &Index{eng: eng}, nil
}

// Put stores doc and refreshes both derived indexes, replacing any
// previous version of the same id. It returns the replaced version, or
// nil when the id is new.
func (i *Index) Put(ctx context.Context, doc *Document) (*Document, error) {
	if i.eng == nil {
		return nil, ErrClosed
	}
	return i.eng.Put(ctx, doc)
}

// Get fetches a stored document by id.
func (i *Index) Get(ctx context.Context, docID string) (*Document, error) {
	if i.eng == nil {
		return nil, ErrClosed
	}
	return i.eng.Get(ctx, docID)
}

// Delete removes a document and all its index entries, returning the
// removed version. Deleting an unknown id is an error.
func (i *Index) Delete(ctx context.Context, docID string) (*Document, error) {
	if i.eng == nil {
		return nil, ErrClosed
	}
	return i.eng.Delete(ctx, docID)
}

// Search runs one query under a rank profile and returns a ranked page
// of results.
func (i *Index) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	if i.eng == nil {
		return nil, ErrClosed
	}
	return i.eng.Search(ctx, q)
}

// Stats reports corpus and index statistics.
func (i *Index) Stats(ctx context.Context) (*Stats, error) {
	if i.eng == nil {
		return nil, ErrClosed
	}
	return i.eng.Stats(ctx)
}

// Dimensions returns the embedding width the index was opened with.
func (i *Index) Dimensions() int {
	if i.eng == nil {
		return 0
	}
	return i.eng.Dimensions()
}

// Close releases the store, the directory lock, and all in-memory
// indexes. The Index must not be used afterwards.
func (i *Index) Close() error {
	if i.eng == nil {
		return nil
	}
	err := i.eng.Close()
	i.eng = nil
	return err
}
