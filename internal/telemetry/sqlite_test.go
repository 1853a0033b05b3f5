package telemetry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	// The production binary opens this database through modernc.org/sqlite;
	// exercising the schema through the cgo driver as well keeps the SQL on
	// the portable subset both drivers accept.
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	require.NoError(t, err)

	require.NoError(t, InitSchema(db))

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestSQLiteMetricsStore_RequiresHandle(t *testing.T) {
	_, err := NewSQLiteMetricsStore(nil)
	require.Error(t, err)
}

func TestSQLiteMetricsStore_ProfileCounts(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	counts := map[string]int64{"bm25": 5, "embedding_similarity": 3}
	require.NoError(t, store.SaveProfileCounts("2026-08-20", counts))

	got, err := store.GetProfileCounts("2026-08-20", "2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got["bm25"])
	assert.Equal(t, int64(3), got["embedding_similarity"])
}

func TestSQLiteMetricsStore_ProfileCountsAccumulate(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.SaveProfileCounts("2026-08-20", map[string]int64{"bm25": 5}))
	require.NoError(t, store.SaveProfileCounts("2026-08-20", map[string]int64{"bm25": 2}))

	got, err := store.GetProfileCounts("2026-08-20", "2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got["bm25"])
}

func TestSQLiteMetricsStore_ProfileCountsDateRange(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.SaveProfileCounts("2026-08-19", map[string]int64{"bm25": 1}))
	require.NoError(t, store.SaveProfileCounts("2026-08-20", map[string]int64{"bm25": 2}))
	require.NoError(t, store.SaveProfileCounts("2026-08-21", map[string]int64{"bm25": 4}))

	got, err := store.GetProfileCounts("2026-08-20", "2026-08-21")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got["bm25"])
}

func TestSQLiteMetricsStore_TermCounts(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.UpsertTermCounts(map[string]int64{"cat": 3, "dog": 1}))
	require.NoError(t, store.UpsertTermCounts(map[string]int64{"cat": 2}))

	terms, err := store.GetTopTerms(10)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, TermCount{Term: "cat", Count: 5}, terms[0])
	assert.Equal(t, TermCount{Term: "dog", Count: 1}, terms[1])
}

func TestSQLiteMetricsStore_TermCountsEmptyMapIsNoOp(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.UpsertTermCounts(nil))

	terms, err := store.GetTopTerms(10)
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestSQLiteMetricsStore_TopTermsLimit(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	counts := make(map[string]int64)
	for i := 0; i < 10; i++ {
		counts[fmt.Sprintf("term%02d", i)] = int64(i + 1)
	}
	require.NoError(t, store.UpsertTermCounts(counts))

	terms, err := store.GetTopTerms(3)
	require.NoError(t, err)
	require.Len(t, terms, 3)
	assert.Equal(t, "term09", terms[0].Term)
	assert.Equal(t, int64(10), terms[0].Count)
}

func TestSQLiteMetricsStore_ZeroResultRetention(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	for i := 0; i < zeroResultRetention+5; i++ {
		require.NoError(t, store.AddZeroResultQuery(fmt.Sprintf("query %03d", i), time.Now()))
	}

	queries, err := store.GetZeroResultQueries(zeroResultRetention * 2)
	require.NoError(t, err)
	require.Len(t, queries, zeroResultRetention)
	// Newest first; the oldest five were trimmed.
	assert.Equal(t, fmt.Sprintf("query %03d", zeroResultRetention+4), queries[0])
	assert.Equal(t, "query 005", queries[len(queries)-1])
}

func TestSQLiteMetricsStore_LatencyCounts(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.SaveLatencyCounts("2026-08-20", map[LatencyBucket]int64{
		BucketUnder10ms: 8,
		BucketSlow:      1,
	}))
	require.NoError(t, store.SaveLatencyCounts("2026-08-20", map[LatencyBucket]int64{
		BucketUnder10ms: 2,
	}))

	got, err := store.GetLatencyCounts("2026-08-20", "2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got[BucketUnder10ms])
	assert.Equal(t, int64(1), got[BucketSlow])
}

func TestQueryMetrics_FlushIntoSQLite(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	m := NewWithConfig(store, Config{FlushInterval: 0})
	m.Record(QueryEvent{Query: "cat dog", Profile: "bm25", Terms: []string{"cat", "dog"}, ResultCount: 2, Latency: 3 * time.Millisecond})
	m.Record(QueryEvent{Query: "nothing here", Profile: "bm25", Terms: []string{"nothing", "here"}, ResultCount: 0, Latency: 30 * time.Millisecond})

	require.NoError(t, m.Close())

	today := time.Now().Format("2006-01-02")
	profiles, err := store.GetProfileCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), profiles["bm25"])

	terms, err := store.GetTopTerms(10)
	require.NoError(t, err)
	assert.Len(t, terms, 4)

	zero, err := store.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"nothing here"}, zero)

	latency, err := store.GetLatencyCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latency[BucketUnder10ms])
	assert.Equal(t, int64(1), latency[BucketUnder50ms])
}
