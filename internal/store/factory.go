package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

// DocumentStorePath returns the SQLite database path inside dataDir.
func DocumentStorePath(dataDir string) string {
	return filepath.Join(dataDir, DocumentDBFile)
}

// New creates a document store for the configured backend, wrapped with an
// LRU read cache when opts.CacheSize > 0.
func New(opts Options) (DocumentStore, error) {
	var inner DocumentStore

	switch opts.Backend {
	case BackendSQLite:
		if opts.DataDir == "" {
			return nil, cdxerrors.ConfigError("sqlite store requires a data directory", nil)
		}
		s, err := NewSQLiteStore(DocumentStorePath(opts.DataDir), opts.SQLiteCacheMB)
		if err != nil {
			return nil, err
		}
		inner = s
	case BackendMemory:
		inner = NewMemoryStore()
	default:
		return nil, cdxerrors.ConfigError(
			fmt.Sprintf("unknown store backend %q (valid: sqlite, memory)", opts.Backend), nil)
	}

	if opts.CacheSize > 0 {
		return NewCachedStore(inner, opts.CacheSize)
	}
	return inner, nil
}

// SQLiteHandle unwraps ds to the live database handle when the store, or
// the store inside a cache wrapper, is SQLite-backed. Sidecar tables
// (telemetry) live in the same database file through this handle.
func SQLiteHandle(ds DocumentStore) (*sql.DB, bool) {
	switch s := ds.(type) {
	case *SQLiteStore:
		return s.db, true
	case *CachedStore:
		return SQLiteHandle(s.inner)
	default:
		return nil, false
	}
}

// Exists reports whether dataDir already holds a document database.
func Exists(dataDir string) bool {
	return fileExists(DocumentStorePath(dataDir))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
