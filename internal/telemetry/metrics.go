// Package telemetry aggregates local query statistics: per-profile query
// counts, a latency histogram, frequent query terms, and the most recent
// zero-result queries. Nothing leaves the machine; persistence, when
// enabled, lives in sidecar tables of the index's own SQLite database.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryEvent is one completed search, as reported by the engine.
type QueryEvent struct {
	// Query is the raw query text; empty for pure vector queries.
	Query string

	// Profile names the rank profile that served the query.
	Profile string

	// Terms are the analyzed query terms. The engine supplies them so the
	// statistics agree with what actually matched; telemetry never
	// re-tokenizes on its own rules.
	Terms []string

	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the query matched nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// LatencyBucket labels one band of the fixed query-latency histogram.
type LatencyBucket string

const (
	BucketUnder10ms  LatencyBucket = "<10ms"
	BucketUnder50ms  LatencyBucket = "10-50ms"
	BucketUnder100ms LatencyBucket = "50-100ms"
	BucketUnder500ms LatencyBucket = "100-500ms"
	BucketSlow       LatencyBucket = ">=500ms"
)

// Buckets returns the histogram buckets in ascending latency order.
func Buckets() []LatencyBucket {
	return []LatencyBucket{BucketUnder10ms, BucketUnder50ms, BucketUnder100ms, BucketUnder500ms, BucketSlow}
}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketUnder10ms
	case ms < 50:
		return BucketUnder50ms
	case ms < 100:
		return BucketUnder100ms
	case ms < 500:
		return BucketUnder500ms
	default:
		return BucketSlow
	}
}

// TermCount pairs a query term with its observed frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of the collected metrics.
type Snapshot struct {
	ProfileCounts       map[string]int64        `json:"profile_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries that matched nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Config sizes the in-memory aggregates.
type Config struct {
	// TopTermsCapacity bounds the term-frequency LRU.
	TopTermsCapacity int

	// ZeroResultsCapacity bounds the zero-result query ring.
	ZeroResultsCapacity int

	// RecentQueriesCapacity bounds the repeat-detection LRU.
	RecentQueriesCapacity int

	// FlushInterval is how often aggregates are persisted. Zero disables
	// the background flush; Close still flushes once.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         time.Minute,
	}
}

type zeroResult struct {
	query string
	at    time.Time
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	profiles        map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *Ring[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	startTime       time.Time

	// LRU of normalized query hashes, for exact-repeat tracking.
	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64

	store       MetricsStore
	cfg         Config
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool

	// Flush writes deltas, not cumulative totals; the watermarks record
	// what the store has already absorbed. pendingZero holds zero-result
	// rows not yet persisted.
	flushedProfiles  map[string]int64
	flushedTerms     map[string]int64
	flushedLatencies map[LatencyBucket]int64
	pendingZero      []zeroResult
}

// New creates a collector with default configuration. A nil store keeps
// the metrics in memory only.
func New(store MetricsStore) *QueryMetrics {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a collector with explicit sizing.
func NewWithConfig(store MetricsStore, cfg Config) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = 500
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		profiles:         make(map[string]int64),
		topTerms:         topTerms,
		zeroResults:      NewRing[string](cfg.ZeroResultsCapacity),
		latencies:        make(map[LatencyBucket]int64),
		startTime:        time.Now(),
		recentQueries:    recentQueries,
		store:            store,
		cfg:              cfg,
		stopCh:           make(chan struct{}),
		flushedProfiles:  make(map[string]int64),
		flushedTerms:     make(map[string]int64),
		flushedLatencies: make(map[LatencyBucket]int64),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one query. Thread-safe and non-blocking; persistence
// happens later, on the flush path.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.profiles[event.Profile]++
	m.totalQueries++

	for _, term := range event.Terms {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		m.zeroResultCount++
		if event.Query != "" {
			m.zeroResults.Add(event.Query)
			if m.store != nil {
				at := event.Timestamp
				if at.IsZero() {
					at = time.Now()
				}
				m.pendingZero = append(m.pendingZero, zeroResult{query: event.Query, at: at})
			}
		}
	}

	m.latencies[LatencyToBucket(event.Latency)]++

	if event.Query != "" {
		hash := hashQuery(event.Query)
		if _, seen := m.recentQueries.Get(hash); seen {
			m.exactRepeatCount++
		}
		m.recentQueries.Add(hash, struct{}{})
	}
}

// hashQuery normalizes and hashes a query for repeat detection.
func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns the current aggregates for reporting.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profileCounts := make(map[string]int64, len(m.profiles))
	for k, v := range m.profiles {
		profileCounts[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return &Snapshot{
		ProfileCounts:       profileCounts,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		ExactRepeatCount:    m.exactRepeatCount,
		Since:               m.startTime,
	}
}

// Store returns the persistence backend, or nil when metrics are
// in-memory only. Readers use it for historical aggregates that predate
// this session.
func (m *QueryMetrics) Store() MetricsStore {
	return m.store
}

// Flush persists what accumulated since the previous flush. Safe to call
// with no store configured.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	profileDelta := deltaCounts(m.profiles, m.flushedProfiles)
	latencyDelta := deltaCounts(m.latencies, m.flushedLatencies)
	termDelta := make(map[string]int64)
	currentTerms := make(map[string]int64)
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			currentTerms[key] = count
			if d := count - m.flushedTerms[key]; d > 0 {
				termDelta[key] = d
			}
		}
	}
	pending := m.pendingZero
	m.pendingZero = nil
	m.mu.Unlock()

	if err := m.writeDeltas(profileDelta, termDelta, latencyDelta, pending); err != nil {
		m.mu.Lock()
		m.pendingZero = append(pending, m.pendingZero...)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	for k, v := range profileDelta {
		m.flushedProfiles[k] += v
	}
	for k, v := range latencyDelta {
		m.flushedLatencies[k] += v
	}
	// Re-seed the term watermarks from the terms still resident in the
	// LRU; watermarks for evicted terms would otherwise pile up forever.
	m.flushedTerms = currentTerms
	m.mu.Unlock()
	return nil
}

func (m *QueryMetrics) writeDeltas(profiles map[string]int64, terms map[string]int64, latencies map[LatencyBucket]int64, pending []zeroResult) error {
	date := time.Now().Format("2006-01-02")

	if len(profiles) > 0 {
		if err := m.store.SaveProfileCounts(date, profiles); err != nil {
			return err
		}
	}
	if err := m.store.UpsertTermCounts(terms); err != nil {
		return err
	}
	if len(latencies) > 0 {
		if err := m.store.SaveLatencyCounts(date, latencies); err != nil {
			return err
		}
	}
	for _, z := range pending {
		if err := m.store.AddZeroResultQuery(z.query, z.at); err != nil {
			return err
		}
	}
	return nil
}

func deltaCounts[K comparable](current, flushed map[K]int64) map[K]int64 {
	delta := make(map[K]int64)
	for k, v := range current {
		if d := v - flushed[k]; d > 0 {
			delta[k] = d
		}
	}
	return delta
}

// Close stops the background flush, persists once more, and rejects
// further recording.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}
