package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/ui"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	workers int
	plain   bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest JSONL documents into the index",
		Long: `Ingest documents from a JSONL file (one JSON document per line),
or from stdin when no file is given.

Each document is validated and written atomically: the store, the
text index, and the vector index all see the new version or none
of them do. Re-ingesting an existing docId replaces it whole.`,
		Example: `  # Ingest from a file
  chunkdex ingest documents.jsonl

  # Ingest from stdin
  cat documents.jsonl | chunkdex ingest

  # Limit the worker pool
  chunkdex ingest documents.jsonl --workers 2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runIngest(ctx, cmd, path, opts)
		},
	}

	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent ingest workers (default: configured value)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain text progress (no TUI)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, path string, opts ingestOptions) error {
	input := cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		input = f
	}

	eng, _, err := openEngineForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Ingest.Workers
	}
	if workers < 1 {
		workers = 1
	}

	dataDir, _ := resolveDataDir()
	renderOut := cmd.OutOrStdout()
	if flagQuiet {
		renderOut = io.Discard
	}
	renderer := ui.NewRenderer(ui.NewConfig(renderOut,
		ui.WithForcePlain(opts.plain || flagQuiet),
		ui.WithDataDir(dataDir)))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()

	// Stage 1: read and decode the whole feed. Totals are unknown until
	// the stream ends, so progress is a running count.
	docs, readErrs := decodeFeed(renderer, input)
	readDone := time.Now()

	// Stage 2: write documents through the engine, a bounded pool of
	// workers over distinct documents.
	var (
		mu       sync.Mutex
		done     int
		replaced int
		failed   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, doc := range docs {
		g.Go(func() error {
			prev, err := eng.Put(gctx, doc)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				failed++
				renderer.AddError(ui.ErrorEvent{Ref: doc.DocID, Err: err})
			} else if prev != nil {
				replaced++
			}
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndexing,
				Current: done,
				Total:   len(docs),
				DocID:   doc.DocID,
			})
			// Per-document failures are reported, not fatal; only
			// cancellation stops the batch.
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	chunks := 0
	for _, doc := range docs {
		chunks += len(doc.EmbeddingsTitle) + len(doc.EmbeddingsContent)
	}

	renderer.Complete(ui.CompletionStats{
		Documents: len(docs) - failed,
		Chunks:    chunks,
		Replaced:  replaced,
		Duration:  time.Since(start),
		Errors:    failed + readErrs,
		Stages: ui.StageTimings{
			Read:  readDone.Sub(start),
			Index: time.Since(readDone),
		},
		Store: ui.StoreInfo{
			Backend:    cfg.Store.Backend,
			Dimensions: cfg.Vector.Dimensions,
		},
	})

	if failed+readErrs > 0 {
		return fmt.Errorf("%d of %d documents failed", failed+readErrs, len(docs)+readErrs)
	}
	return ctx.Err()
}

// decodeFeed reads every document from the JSONL stream, reporting
// malformed lines as errors and carrying on with the rest.
func decodeFeed(renderer ui.Renderer, input io.Reader) (docs []*document.Document, readErrs int) {
	dec := document.NewDecoder(input)
	for {
		doc, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErrs++
			renderer.AddError(ui.ErrorEvent{Ref: fmt.Sprintf("line %d", dec.Line()), Err: err})
			continue
		}
		docs = append(docs, doc)
		if len(docs)%64 == 0 {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageReading,
				Current: len(docs),
				DocID:   doc.DocID,
			})
		}
	}
	return docs, readErrs
}
