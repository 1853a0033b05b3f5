// Package cmd provides the CLI commands for chunkdex.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chunkdex/internal/config"
	"github.com/Aman-CERP/chunkdex/internal/engine"
	"github.com/Aman-CERP/chunkdex/internal/logging"
	"github.com/Aman-CERP/chunkdex/internal/store"
	"github.com/Aman-CERP/chunkdex/internal/telemetry"
	"github.com/Aman-CERP/chunkdex/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	flagDataDir    string
	flagConfigFile string
	flagLogLevel   string
	flagQuiet      bool
	debugMode      bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the chunkdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunkdex",
		Short: "Hybrid lexical + chunk-vector document retrieval engine",
		Long: `Chunkdex indexes documents for two kinds of retrieval at once:
BM25 lexical search over title and content, and approximate
nearest-neighbor search over per-chunk embeddings (HNSW).
Queries pick a rank profile ("bm25" or "embedding_similarity")
without re-indexing.

Running 'chunkdex' with an existing index starts the MCP server
on stdio; use the subcommands for everything else.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// MCP clients launch the bare binary; serve when an index
			// is present, otherwise point the user at init.
			root, err := resolveIndexRoot()
			if err == nil && config.IndexExists(root) {
				return runServe(cmd.Context(), "stdio", "")
			}
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("chunkdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Index data directory (default: discovered .chunkdex/)")
	cmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Project config file (default: discovered .chunkdex.yaml)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging sets up file logging for the invocation. Stdout stays
// reserved for command output (and for JSON-RPC under serve).
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
		cfg.WriteToStderr = true
	}
	if flagLogLevel != "" {
		cfg.Level = flagLogLevel
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		// A broken log destination should not block the command.
		slog.SetDefault(logging.Discard())
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveIndexRoot returns the directory that owns the index: the parent
// of --data-dir when given, the discovered project root otherwise.
func resolveIndexRoot() (string, error) {
	if flagDataDir != "" {
		abs, err := filepath.Abs(flagDataDir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve --data-dir: %w", err)
		}
		return filepath.Dir(abs), nil
	}
	root, err := config.FindIndexRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		return cwd, nil
	}
	return root, nil
}

// resolveDataDir returns the index data directory for this invocation.
func resolveDataDir() (string, error) {
	if flagDataDir != "" {
		return filepath.Abs(flagDataDir)
	}
	root, err := resolveIndexRoot()
	if err != nil {
		return "", err
	}
	return config.DataDir(root), nil
}

// loadConfig loads the effective configuration for the index root.
func loadConfig() (*config.Config, error) {
	if flagConfigFile != "" {
		return config.LoadWithFile(flagConfigFile)
	}
	root, err := resolveIndexRoot()
	if err != nil {
		return nil, err
	}
	return config.Load(root)
}

// openEngine opens the engine over the resolved data directory, wiring
// query telemetry into the store's own SQLite file when available. The
// caller must Close the engine; Close flushes telemetry too.
func openEngine(ctx context.Context) (*engine.Engine, *telemetry.QueryMetrics, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Store.Backend == string(store.BackendSQLite) && !store.Exists(dataDir) {
		return nil, nil, fmt.Errorf("no index found in %s\nRun 'chunkdex init' and 'chunkdex ingest' first", filepath.Dir(dataDir))
	}

	return openEngineAt(ctx, cfg, dataDir)
}

// openEngineForWrite is openEngine but creates the data directory and
// store when missing, for ingest and init.
func openEngineForWrite(ctx context.Context) (*engine.Engine, *telemetry.QueryMetrics, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Backend == string(store.BackendSQLite) {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return openEngineAt(ctx, cfg, dataDir)
}

func openEngineAt(ctx context.Context, cfg *config.Config, dataDir string) (*engine.Engine, *telemetry.QueryMetrics, error) {
	ds, err := store.New(store.Options{
		Backend:       store.Backend(cfg.Store.Backend),
		DataDir:       dataDir,
		CacheSize:     cfg.Store.CacheSize,
		SQLiteCacheMB: cfg.Store.SQLiteCacheMB,
	})
	if err != nil {
		return nil, nil, err
	}

	// Telemetry persists into the document store's database when the
	// backend is SQLite; otherwise it stays in memory for the session.
	var metrics *telemetry.QueryMetrics
	if db, ok := store.SQLiteHandle(ds); ok {
		if err := telemetry.InitSchema(db); err == nil {
			if ms, err := telemetry.NewSQLiteMetricsStore(db); err == nil {
				metrics = telemetry.New(ms)
			}
		}
	}
	if metrics == nil {
		metrics = telemetry.New(nil)
	}

	opts := []engine.Option{engine.WithStore(ds), engine.WithMetrics(metrics)}
	if cfg.Store.Backend == string(store.BackendSQLite) {
		// Single-owner rule applies only when state lives on disk.
		opts = append(opts, engine.WithDataDir(dataDir))
	}
	eng, err := engine.Open(ctx, cfg, opts...)
	if err != nil {
		_ = ds.Close()
		return nil, nil, err
	}
	return eng, metrics, nil
}
