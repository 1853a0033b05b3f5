// Package engine ties the document store and the derived text and vector
// indexes together into one retrieval surface: put, get, delete, search,
// stats. Writes to a document are all-or-nothing across all three
// components, and queries run concurrently with ingestion.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/chunkdex/internal/config"
	"github.com/Aman-CERP/chunkdex/internal/document"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
	"github.com/Aman-CERP/chunkdex/internal/rank"
	"github.com/Aman-CERP/chunkdex/internal/store"
	"github.com/Aman-CERP/chunkdex/internal/telemetry"
	"github.com/Aman-CERP/chunkdex/internal/textindex"
	"github.com/Aman-CERP/chunkdex/internal/vectorindex"
)

// Engine orchestrates the document store and both derived indexes behind
// a single, concurrency-safe API.
type Engine struct {
	cfg    *config.Config
	store  store.DocumentStore
	text   *textindex.Index
	vector *vectorindex.Index
	eval   *rank.Evaluator
	locks  *docLocks

	dirLock *store.DirLock           // nil when no data directory is used
	metrics *telemetry.QueryMetrics  // nil unless telemetry is attached
	closed  atomic.Bool
}

type options struct {
	store   store.DocumentStore
	dataDir string
	metrics *telemetry.QueryMetrics
}

// Option configures optional engine dependencies.
type Option func(*options)

// WithStore injects a pre-built document store. The engine owns its
// lifecycle from here on and closes it with the engine.
func WithStore(ds store.DocumentStore) Option {
	return func(o *options) { o.store = ds }
}

// WithDataDir points the engine at an index data directory. The engine
// acquires the directory's single-owner lock for its lifetime and, unless
// a store is injected, opens the configured backend inside it.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

// WithMetrics attaches a query telemetry collector. The engine records
// one event per completed search and closes the collector on Close.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// Open builds an engine: document store, fresh derived indexes, then a
// full rebuild replaying every stored document into them. A rebuild
// failure is fatal; the derived indexes must agree with the store before
// the first query runs.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, cdxerrors.ConfigError("engine configuration is required", nil)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var dirLock *store.DirLock
	if o.dataDir != "" {
		dirLock = store.NewDirLock(o.dataDir)
		if err := dirLock.Acquire(); err != nil {
			return nil, err
		}
	}
	fail := func(err error) (*Engine, error) {
		if dirLock != nil {
			_ = dirLock.Release()
		}
		return nil, err
	}

	ds := o.store
	if ds == nil {
		var err error
		ds, err = store.New(store.Options{
			Backend:       store.Backend(cfg.Store.Backend),
			DataDir:       o.dataDir,
			CacheSize:     cfg.Store.CacheSize,
			SQLiteCacheMB: cfg.Store.SQLiteCacheMB,
		})
		if err != nil {
			return fail(err)
		}
	}

	e := &Engine{
		cfg:   cfg,
		store: ds,
		text: textindex.New(textindex.Config{
			K1:             cfg.Text.K1,
			B:              cfg.Text.B,
			MinTokenLength: cfg.Text.MinTokenLength,
			StopWords:      cfg.Text.StopWords,
		}),
		vector: vectorindex.New(vectorindex.Config{
			Dimensions:     cfg.Vector.Dimensions,
			MaxLinks:       cfg.Vector.MaxLinks,
			EfConstruction: cfg.Vector.EfConstruction,
			EfSearch:       cfg.Vector.EfSearch,
		}),
		locks:   newDocLocks(0),
		dirLock: dirLock,
		metrics: o.metrics,
	}
	e.eval = rank.NewEvaluator(e.text, e.vector)

	if err := e.rebuild(ctx); err != nil {
		_ = ds.Close()
		return fail(err)
	}
	return e, nil
}

// rebuild replays every stored document into the empty derived indexes.
// The store is the source of truth; a document that no longer validates
// means the stored data is damaged, not the query path.
func (e *Engine) rebuild(ctx context.Context) error {
	start := time.Now()
	count := 0
	err := e.store.ForEach(ctx, func(doc *document.Document) error {
		if err := doc.Validate(e.cfg.Vector.Dimensions); err != nil {
			return cdxerrors.New(cdxerrors.ErrCodeStoreCorrupt,
				fmt.Sprintf("stored document %q fails validation during rebuild", doc.DocID), err)
		}
		if err := e.indexDocument(doc); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("index rebuild complete",
			slog.Int("documents", count),
			slog.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// indexDocument writes one document into both derived indexes, replacing
// any prior entries for its id. Callers hold the document's write lock,
// except during single-threaded open.
func (e *Engine) indexDocument(doc *document.Document) error {
	for _, field := range document.TextFields() {
		e.text.Index(doc.DocID, field, doc.TextOf(field))
		e.vector.RetractAll(doc.DocID, field)
		for _, emb := range doc.EmbeddingsOf(field) {
			if err := e.vector.Insert(doc.DocID, field, emb.ChunkIndex, emb.Vector); err != nil {
				return cdxerrors.InternalError(
					fmt.Sprintf("indexing %s chunk %d of document %q", field, emb.ChunkIndex, doc.DocID), err)
			}
		}
	}
	return nil
}

// retractDocument removes every derived index entry for the id. Callers
// hold the document's write lock.
func (e *Engine) retractDocument(docID string) {
	for _, field := range document.TextFields() {
		e.text.Retract(docID, field)
		e.vector.RetractAll(docID, field)
	}
}

// Put stores a document and refreshes both derived indexes, replacing any
// previous version. It returns the previous version, or nil when the id
// is new. Validation failures leave no trace; the indexes are touched
// only after the store accepts the document.
func (e *Engine) Put(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if e.closed.Load() {
		return nil, cdxerrors.StorageError("engine is closed", nil)
	}
	if doc == nil {
		return nil, cdxerrors.ValidationError("document is required", nil)
	}
	if err := doc.Validate(e.cfg.Vector.Dimensions); err != nil {
		return nil, err
	}

	mu := e.locks.of(doc.DocID)
	mu.Lock()
	defer mu.Unlock()

	previous, err := e.store.Put(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := e.indexDocument(doc); err != nil {
		return nil, err
	}
	return previous, nil
}

// Get returns the stored document for the id. The returned document is a
// copy the caller may mutate freely.
func (e *Engine) Get(ctx context.Context, docID string) (*document.Document, error) {
	if e.closed.Load() {
		return nil, cdxerrors.StorageError("engine is closed", nil)
	}
	if docID == "" {
		return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidDocID, "document id is required", nil)
	}

	mu := e.locks.of(docID)
	mu.RLock()
	defer mu.RUnlock()
	return e.store.Get(ctx, docID)
}

// Delete removes a document from the store and both derived indexes and
// returns the removed version. Deleting an absent id is a not-found
// error and leaves everything untouched.
func (e *Engine) Delete(ctx context.Context, docID string) (*document.Document, error) {
	if e.closed.Load() {
		return nil, cdxerrors.StorageError("engine is closed", nil)
	}
	if docID == "" {
		return nil, cdxerrors.New(cdxerrors.ErrCodeInvalidDocID, "document id is required", nil)
	}

	mu := e.locks.of(docID)
	mu.Lock()
	defer mu.Unlock()

	previous, err := e.store.Delete(ctx, docID)
	if err != nil {
		return nil, err
	}
	e.retractDocument(docID)
	return previous, nil
}

// Stats reports corpus-level counters across the store and both indexes.
type Stats struct {
	Documents  int                                       `json:"documents"`
	StoreBytes int64                                     `json:"storeBytes"`
	Text       map[document.Field]textindex.FieldStats   `json:"text"`
	Vector     map[document.Field]vectorindex.FieldStats `json:"vector"`
	Cache      *store.CacheStats                         `json:"cache,omitempty"`
	Telemetry  *telemetry.Snapshot                       `json:"telemetry,omitempty"`
}

func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	if e.closed.Load() {
		return nil, cdxerrors.StorageError("engine is closed", nil)
	}
	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	size, err := e.store.SizeBytes()
	if err != nil {
		return nil, err
	}
	s := &Stats{
		Documents:  count,
		StoreBytes: size,
		Text:       e.text.Stats(),
		Vector:     e.vector.Stats(),
	}
	if cached, ok := e.store.(*store.CachedStore); ok {
		cs := cached.Stats()
		s.Cache = &cs
	}
	if e.metrics != nil {
		s.Telemetry = e.metrics.Snapshot()
	}
	return s, nil
}

// Verify cross-checks the derived indexes against the store: the vector
// graph must pass its integrity check and each text field must hold
// exactly one entry per stored document. Only meaningful when no writes
// are in flight.
func (e *Engine) Verify(ctx context.Context) error {
	if e.closed.Load() {
		return cdxerrors.StorageError("engine is closed", nil)
	}
	if err := e.vector.CheckIntegrity(); err != nil {
		return cdxerrors.New(cdxerrors.ErrCodeIndexCorruption, "vector index integrity check failed", err)
	}
	count, err := e.store.Count(ctx)
	if err != nil {
		return err
	}
	for field, fs := range e.text.Stats() {
		if fs.Documents != count {
			return cdxerrors.New(cdxerrors.ErrCodeIndexCorruption,
				fmt.Sprintf("text index %s holds %d documents, store holds %d", field, fs.Documents, count), nil)
		}
	}
	for field, vs := range e.vector.Stats() {
		if vs.Documents > count {
			return cdxerrors.New(cdxerrors.ErrCodeIndexCorruption,
				fmt.Sprintf("vector index %s holds %d documents, store holds %d", field, vs.Documents, count), nil)
		}
	}
	return nil
}

// ForEach visits every stored document in ascending id order. The scan
// does not exclude writers; documents put or deleted mid-scan may or may
// not be visited. Use it for enumeration and reporting, not consistency
// checks.
func (e *Engine) ForEach(ctx context.Context, fn func(doc *document.Document) error) error {
	if e.closed.Load() {
		return cdxerrors.StorageError("engine is closed", nil)
	}
	return e.store.ForEach(ctx, fn)
}

// Dimensions returns the embedding width every vector must have.
func (e *Engine) Dimensions() int {
	return e.cfg.Vector.Dimensions
}

// QueryTerms previews how query text analyzes under the index's rules.
func (e *Engine) QueryTerms(text string) []string {
	return e.text.Analyzer().QueryTerms(text)
}

// Close flushes telemetry, closes the store, and releases the directory
// lock. Close is idempotent; operations after it fail.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	var errs []error
	if e.metrics != nil {
		errs = append(errs, e.metrics.Close())
	}
	errs = append(errs, e.store.Close())
	if e.dirLock != nil {
		errs = append(errs, e.dirLock.Release())
	}
	return errors.Join(errs...)
}
