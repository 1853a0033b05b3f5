package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	// modernc.org/sqlite is a pure-Go driver, so release binaries
	// cross-compile without cgo.
	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/chunkdex/internal/document"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

const (
	// DocumentDBFile is the database filename inside the data directory.
	DocumentDBFile = "documents.db"

	// defaultSQLiteCacheMB is the page cache budget when Options leaves
	// SQLiteCacheMB unset.
	defaultSQLiteCacheMB = 64

	// documentSchemaVersion guards against opening a database written by
	// an incompatible newer build.
	documentSchemaVersion = 1
)

// SQLiteStore persists documents in a single SQLite database file.
//
// Documents are stored as one JSON record per row, keyed by document id.
// The engine replaces whole documents on every put, so a serialized record
// column fits the access pattern better than per-field columns would.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteStore opens or creates a document database at path.
// Pass ":memory:" for a throwaway in-process database.
//
// The store is the system of record, so a file that fails the integrity
// pre-check is a fatal error rather than an auto-clear candidate: derived
// indexes can be rebuilt, lost source documents cannot.
func NewSQLiteStore(path string, cacheMB int) (*SQLiteStore, error) {
	if cacheMB <= 0 {
		cacheMB = defaultSQLiteCacheMB
	}

	var dsn string
	if path == ":memory:" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cdxerrors.New(cdxerrors.ErrCodeStoreOpen,
				fmt.Sprintf("create store directory %s", dir), err)
		}
		if err := validateSQLiteIntegrity(path); err != nil {
			slog.Error("document_store_corrupt",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil, cdxerrors.New(cdxerrors.ErrCodeStoreCorrupt,
				fmt.Sprintf("document store %s failed integrity check", path), err).
				WithSuggestion("restore the database from a backup, or remove the data directory and re-ingest")
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cdxerrors.New(cdxerrors.ErrCodeStoreOpen,
			fmt.Sprintf("open document store %s", path), err)
	}

	// modernc/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY churn and keeps transactions on one handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cdxerrors.New(cdxerrors.ErrCodeStoreOpen,
				fmt.Sprintf("apply %s", pragma), err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// validateSQLiteIntegrity runs a quick corruption check before the database
// is opened for writing.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open for integrity check: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick_check reported: %s", result)
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS documents (
		doc_id     TEXT PRIMARY KEY,
		record     BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return cdxerrors.New(cdxerrors.ErrCodeStoreOpen, "create document schema", err)
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, documentSchemaVersion); err != nil {
		return cdxerrors.New(cdxerrors.ErrCodeStoreOpen, "record schema version", err)
	}

	var stored int
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&stored); err != nil {
		return cdxerrors.New(cdxerrors.ErrCodeStoreOpen, "read schema version", err)
	}
	if stored > documentSchemaVersion {
		return cdxerrors.New(cdxerrors.ErrCodeStoreOpen,
			fmt.Sprintf("document store schema version %d is newer than supported version %d", stored, documentSchemaVersion), nil).
			WithSuggestion("upgrade chunkdex to a build that understands this data directory")
	}
	return nil
}

// Put inserts or replaces doc and returns the prior version, nil if new.
func (s *SQLiteStore) Put(ctx context.Context, doc *document.Document) (*document.Document, error) {
	record, err := json.Marshal(doc)
	if err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("encode document %q", doc.DocID), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, cdxerrors.StorageError("document store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cdxerrors.StorageError("begin put transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := readDocumentTx(ctx, tx, doc.DocID)
	if err != nil {
		return nil, err
	}

	// Replace-by-id: delete then insert keeps the write path identical for
	// both the fresh and the overwrite case.
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, doc.DocID); err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("clear previous record for %q", doc.DocID), err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (doc_id, record, updated_at) VALUES (?, ?, ?)`,
		doc.DocID, record, time.Now().Unix()); err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("write record for %q", doc.DocID), err)
	}

	if err := tx.Commit(); err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("commit put of %q", doc.DocID), err)
	}
	return previous, nil
}

// Get returns the stored document for docID.
func (s *SQLiteStore) Get(ctx context.Context, docID string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cdxerrors.StorageError("document store is closed", nil)
	}

	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM documents WHERE doc_id = ?`, docID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, cdxerrors.NotFoundError(docID)
	}
	if err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("read record for %q", docID), err)
	}
	return decodeDocument(docID, record)
}

// Delete removes docID and returns the removed document.
func (s *SQLiteStore) Delete(ctx context.Context, docID string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, cdxerrors.StorageError("document store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cdxerrors.StorageError("begin delete transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := readDocumentTx(ctx, tx, docID)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, cdxerrors.NotFoundError(docID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("delete record for %q", docID), err)
	}
	if err := tx.Commit(); err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("commit delete of %q", docID), err)
	}
	return previous, nil
}

// ForEach streams all documents in ascending id order.
func (s *SQLiteStore) ForEach(ctx context.Context, fn func(doc *document.Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return cdxerrors.StorageError("document store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT doc_id, record FROM documents ORDER BY doc_id`)
	if err != nil {
		return cdxerrors.StorageError("scan documents", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var docID string
		var record []byte
		if err := rows.Scan(&docID, &record); err != nil {
			return cdxerrors.StorageError("scan document row", err)
		}
		doc, err := decodeDocument(docID, record)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return cdxerrors.StorageError("iterate documents", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, cdxerrors.StorageError("document store is closed", nil)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, cdxerrors.StorageError("count documents", err)
	}
	return n, nil
}

// SizeBytes reports the database file size including the WAL.
func (s *SQLiteStore) SizeBytes() (int64, error) {
	if s.path == ":memory:" {
		return 0, nil
	}
	var total int64
	for _, p := range []string{s.path, s.path + "-wal"} {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, cdxerrors.StorageError(fmt.Sprintf("stat %s", p), err)
		}
		total += info.Size()
	}
	return total, nil
}

// Close checkpoints the WAL and closes the database. Close is idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// Fold the WAL into the main file so a plain copy of documents.db is a
	// complete backup.
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("wal_checkpoint_failed",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
	}
	if err := s.db.Close(); err != nil {
		return cdxerrors.StorageError("close document store", err)
	}
	return nil
}

func readDocumentTx(ctx context.Context, tx *sql.Tx, docID string) (*document.Document, error) {
	var record []byte
	err := tx.QueryRowContext(ctx, `SELECT record FROM documents WHERE doc_id = ?`, docID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cdxerrors.StorageError(fmt.Sprintf("read previous record for %q", docID), err)
	}
	return decodeDocument(docID, record)
}

func decodeDocument(docID string, record []byte) (*document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(record, &doc); err != nil {
		return nil, cdxerrors.New(cdxerrors.ErrCodeStoreCorrupt,
			fmt.Sprintf("decode stored record for %q", docID), err).
			WithSuggestion("the data directory may be damaged; re-ingest the affected document")
	}
	return &doc, nil
}

// Verify interface implementation.
var _ DocumentStore = (*SQLiteStore)(nil)
