package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool
	stage   Stage
	errors  []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		noColor: cfg.NoColor,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// Format: [STAGE] current/total - message or document id
	var msg string
	if event.Message != "" {
		msg = event.Message
	} else if event.DocID != "" {
		msg = event.DocID
	}

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.Ref != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Ref, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents (%d chunks) in %s",
		stats.Documents, stats.Chunks, stats.Duration.Round(100*millisecond))

	if stats.Replaced > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d replaced", stats.Replaced)
	}

	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}

	_, _ = fmt.Fprintln(r.out)

	// Show the stage breakdown if available
	if stats.Stages.Read > 0 || stats.Stages.Index > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Read:  %s (input decoded)\n", stats.Stages.Read.Round(100*millisecond))
		if stats.Stages.Index > 0 && stats.Documents > 0 {
			docsPerSec := float64(stats.Documents) / stats.Stages.Index.Seconds()
			_, _ = fmt.Fprintf(r.out, "  Index: %s (%d documents @ %.1f/sec)\n",
				stats.Stages.Index.Round(100*millisecond), stats.Documents, docsPerSec)
		} else {
			_, _ = fmt.Fprintf(r.out, "  Index: %s (text + vector)\n", stats.Stages.Index.Round(100*millisecond))
		}
	}

	// Show store info if available
	if stats.Store.Backend != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintf(r.out, "Store: %s (%d dims)\n", stats.Store.Backend, stats.Store.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

const millisecond = 1000000 // nanoseconds
