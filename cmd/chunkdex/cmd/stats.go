package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chunkdex/internal/output"
	"github.com/Aman-CERP/chunkdex/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var (
		format        string
		showTelemetry bool
		days          int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Display corpus statistics: document count, per-field text index
and vector index sizes, store footprint, and cache hit rates.

With --telemetry, persisted query telemetry is included: per-profile
query counts, top query terms, recent zero-result queries, and the
latency distribution.`,
		Example: `  # Index statistics
  chunkdex stats

  # Include the last 30 days of query telemetry, as JSON
  chunkdex stats --telemetry --days 30 --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, format, showTelemetry, days)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json")
	cmd.Flags().BoolVar(&showTelemetry, "telemetry", false, "Include persisted query telemetry")
	cmd.Flags().IntVar(&days, "days", 7, "Telemetry window in days")

	return cmd
}

func runStats(cmd *cobra.Command, format string, showTelemetry bool, days int) error {
	ctx := cmd.Context()

	eng, metrics, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	stats, err := eng.Stats(ctx)
	if err != nil {
		return err
	}

	if showTelemetry {
		snap, err := persistedTelemetry(metrics, days)
		if err != nil {
			return err
		}
		stats.Telemetry = snap
	} else {
		// The session snapshot of a freshly opened engine is noise.
		stats.Telemetry = nil
	}

	printer := output.NewResultPrinter(cmd.OutOrStdout())
	return printer.Stats(stats, format)
}

// persistedTelemetry assembles a snapshot from the metrics tables in the
// store's database, covering the trailing window of whole days.
func persistedTelemetry(metrics *telemetry.QueryMetrics, days int) (*telemetry.Snapshot, error) {
	ms := metrics.Store()
	if ms == nil {
		return nil, fmt.Errorf("query telemetry requires the sqlite store backend")
	}

	if days < 1 {
		days = 1
	}
	now := time.Now()
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	to := now.Format("2006-01-02")

	profiles, err := ms.GetProfileCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get profile counts: %w", err)
	}
	topTerms, err := ms.GetTopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("get top terms: %w", err)
	}
	zeroResults, err := ms.GetZeroResultQueries(10)
	if err != nil {
		return nil, fmt.Errorf("get zero-result queries: %w", err)
	}
	latencies, err := ms.GetLatencyCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get latency counts: %w", err)
	}

	var total int64
	for _, count := range profiles {
		total += count
	}

	return &telemetry.Snapshot{
		ProfileCounts:       profiles,
		TopTerms:            topTerms,
		ZeroResultQueries:   zeroResults,
		LatencyDistribution: latencies,
		TotalQueries:        total,
		Since:               now.AddDate(0, 0, -(days - 1)),
	}, nil
}
