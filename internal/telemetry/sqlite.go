package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// MetricsStore persists query metrics across process restarts.
type MetricsStore interface {
	// SaveProfileCounts adds per-profile query counts to one day's row.
	SaveProfileCounts(date string, counts map[string]int64) error

	// GetProfileCounts sums per-profile counts over a date range.
	GetProfileCounts(from, to string) (map[string]int64, error)

	// UpsertTermCounts adds term frequencies to the running totals.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms returns the most frequent terms, highest first.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery appends one zero-result query, trimming the
	// oldest rows past the retention window.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries returns recent zero-result queries, newest
	// first.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts adds latency-bucket counts to one day's row.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts sums latency-bucket counts over a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// Close releases store resources.
	Close() error
}

// zeroResultRetention is how many zero-result rows the table keeps.
const zeroResultRetention = 100

// SQLiteMetricsStore keeps the metrics tables in the same database file as
// the document store, on a handle it borrows rather than owns.
type SQLiteMetricsStore struct {
	db *sql.DB
}

var _ MetricsStore = (*SQLiteMetricsStore)(nil)

// NewSQLiteMetricsStore wraps an open handle. The telemetry tables must
// already exist; call InitSchema during index setup.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// InitSchema creates the telemetry tables if they don't exist. The SQL
// sticks to the common subset so the schema behaves identically across
// SQLite drivers.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_profile_stats (
		date TEXT NOT NULL,
		profile TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, profile)
	);

	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS query_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// SaveProfileCounts adds per-profile query counts to one day's row.
func (s *SQLiteMetricsStore) SaveProfileCounts(date string, counts map[string]int64) error {
	return s.upsertDailyCounts("query_profile_stats", "profile", date, counts)
}

// GetProfileCounts sums per-profile counts over a date range.
func (s *SQLiteMetricsStore) GetProfileCounts(from, to string) (map[string]int64, error) {
	return s.sumDailyCounts("query_profile_stats", "profile", from, to)
}

// UpsertTermCounts adds term frequencies to the running totals.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.Exec(term, count); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}

	return tx.Commit()
}

// GetTopTerms returns the most frequent terms, highest first.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQuery appends one zero-result query and trims the table to
// its retention window.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(`
		INSERT INTO zero_result_queries (query, timestamp)
		VALUES (?, ?)
	`, query, timestamp); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	if _, err := s.db.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, zeroResultRetention); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}

	return nil
}

// GetZeroResultQueries returns recent zero-result queries, newest first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts adds latency-bucket counts to one day's row.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	plain := make(map[string]int64, len(counts))
	for bucket, count := range counts {
		plain[string(bucket)] = count
	}
	return s.upsertDailyCounts("query_latency_stats", "bucket", date, plain)
}

// GetLatencyCounts sums latency-bucket counts over a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	plain, err := s.sumDailyCounts("query_latency_stats", "bucket", from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[LatencyBucket]int64, len(plain))
	for bucket, count := range plain {
		counts[LatencyBucket(bucket)] = count
	}
	return counts, nil
}

// upsertDailyCounts adds counts into (date, key) rows of a two-column
// daily stats table.
func (s *SQLiteMetricsStore) upsertDailyCounts(table, keyCol, date string, counts map[string]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (date, %s, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, %s) DO UPDATE SET count = count + excluded.count
	`, table, keyCol, keyCol))
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		if _, err := stmt.Exec(date, key, count); err != nil {
			return fmt.Errorf("insert %s count: %w", keyCol, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteMetricsStore) sumDailyCounts(table, keyCol, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s, SUM(count) AS total
		FROM %s
		WHERE date >= ? AND date <= ?
		GROUP BY %s
	`, keyCol, table, keyCol), from, to)
	if err != nil {
		return nil, fmt.Errorf("query %s counts: %w", keyCol, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// Close is a no-op: the handle belongs to the document store and stays
// open until the store itself closes.
func (s *SQLiteMetricsStore) Close() error {
	return nil
}
