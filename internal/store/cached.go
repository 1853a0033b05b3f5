package store

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/chunkdex/internal/document"
)

// CachedStore wraps a DocumentStore with an LRU read cache.
//
// Result hydration reads the same small set of documents over and over;
// the cache keeps those lookups off the backend. Writes invalidate the
// cached entry rather than updating it, so the backend stays the single
// source of truth.
type CachedStore struct {
	inner DocumentStore
	cache *lru.Cache[string, *document.Document]

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports read cache effectiveness.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hitRate"`
}

// NewCachedStore wraps inner with an LRU cache of size documents.
func NewCachedStore(inner DocumentStore, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *document.Document](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

// Put writes through to the backend and invalidates the cached entry.
func (s *CachedStore) Put(ctx context.Context, doc *document.Document) (*document.Document, error) {
	previous, err := s.inner.Put(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.cache.Remove(doc.DocID)
	return previous, nil
}

// Get serves from the cache when possible, falling back to the backend.
func (s *CachedStore) Get(ctx context.Context, docID string) (*document.Document, error) {
	if doc, ok := s.cache.Get(docID); ok {
		s.hits.Add(1)
		return doc.Clone(), nil
	}
	s.misses.Add(1)

	doc, err := s.inner.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(docID, doc)
	return doc.Clone(), nil
}

// Delete removes the document from the backend and the cache.
func (s *CachedStore) Delete(ctx context.Context, docID string) (*document.Document, error) {
	previous, err := s.inner.Delete(ctx, docID)
	if err != nil {
		return nil, err
	}
	s.cache.Remove(docID)
	return previous, nil
}

// ForEach scans the backend directly; full scans would only churn the cache.
func (s *CachedStore) ForEach(ctx context.Context, fn func(doc *document.Document) error) error {
	return s.inner.ForEach(ctx, fn)
}

// Count returns the backend document count.
func (s *CachedStore) Count(ctx context.Context) (int, error) {
	return s.inner.Count(ctx)
}

// SizeBytes returns the backend on-disk size.
func (s *CachedStore) SizeBytes() (int64, error) {
	return s.inner.SizeBytes()
}

// Close purges the cache and closes the backend.
func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}

// Stats returns cache hit/miss counters.
func (s *CachedStore) Stats() CacheStats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	stats := CacheStats{
		Hits:    hits,
		Misses:  misses,
		Entries: s.cache.Len(),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// Verify interface implementation.
var _ DocumentStore = (*CachedStore)(nil)
