// Package store persists documents for the retrieval engine.
//
// The document store is the system of record: the text and vector indexes
// are derived from it and rebuilt from a full scan on open. Two backends
// are provided, a SQLite backend for on-disk indexes and an in-memory
// backend for tests and ephemeral indexes. An optional LRU read cache
// wraps either backend.
package store

import (
	"context"

	"github.com/Aman-CERP/chunkdex/internal/document"
)

// Backend identifies a document store implementation.
type Backend string

const (
	// BackendSQLite stores documents in a single SQLite database file.
	BackendSQLite Backend = "sqlite"

	// BackendMemory stores documents in process memory only.
	BackendMemory Backend = "memory"
)

// DocumentStore is the persistence contract for documents.
//
// Put and Delete return the previous version of the document so callers
// can retract stale index entries before applying the new state. Returned
// documents are owned by the caller: mutating them never affects the
// store's copy.
type DocumentStore interface {
	// Put inserts or replaces the document under its id and returns the
	// prior version, or nil when the id was not present.
	Put(ctx context.Context, doc *document.Document) (*document.Document, error)

	// Get returns the stored document, or a not-found error.
	Get(ctx context.Context, docID string) (*document.Document, error)

	// Delete removes the document and returns the removed version.
	// Deleting an absent id is a not-found error.
	Delete(ctx context.Context, docID string) (*document.Document, error)

	// ForEach visits every stored document in ascending id order. The
	// engine uses it to rebuild derived indexes on open. An error from fn
	// stops the scan and is returned.
	ForEach(ctx context.Context, fn func(doc *document.Document) error) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// SizeBytes reports the on-disk footprint of the store. Memory-backed
	// stores report 0.
	SizeBytes() (int64, error)

	// Close releases store resources. Close is idempotent.
	Close() error
}

// Options selects and tunes a document store backend.
type Options struct {
	// Backend is "sqlite" or "memory".
	Backend Backend

	// DataDir is the index data directory. Required for the SQLite
	// backend, ignored by the memory backend.
	DataDir string

	// CacheSize is the capacity of the LRU read cache in documents.
	// Zero disables the cache.
	CacheSize int

	// SQLiteCacheMB is the SQLite page cache budget in megabytes.
	SQLiteCacheMB int
}
