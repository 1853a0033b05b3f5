package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating progress
	r.UpdateProgress(ProgressEvent{
		Stage:   StageReading,
		Current: 50,
		Total:   100,
		DocID:   "news-0050",
	})

	// Then: output is correctly formatted
	output := buf.String()
	assert.Contains(t, output, "[READ]")
	assert.Contains(t, output, "50/100")
	assert.Contains(t, output, "news-0050")
}

func TestPlainRenderer_UpdateProgress_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: rendering progress through all stages
	stages := []Stage{StageReading, StageIndexing, StageComplete}
	for _, stage := range stages {
		r.UpdateProgress(ProgressEvent{
			Stage:   stage,
			Current: 50,
			Total:   100,
			Message: "Processing...",
		})
	}

	// Then: output contains no ANSI escape codes
	output := buf.String()
	assert.NotContains(t, output, "\x1b[", "should not contain ANSI escape codes")
	assert.NotContains(t, output, "\033[", "should not contain ANSI escape codes")
}

func TestPlainRenderer_UpdateProgress_WithMessage(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating with message instead of document id
	r.UpdateProgress(ProgressEvent{
		Stage:   StageIndexing,
		Current: 100,
		Total:   200,
		Message: "Building vector index...",
	})

	// Then: message is shown
	output := buf.String()
	assert.Contains(t, output, "[INDEX]")
	assert.Contains(t, output, "Building vector index...")
}

func TestPlainRenderer_UpdateProgress_ZeroTotal(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating with zero total (unknown count)
	r.UpdateProgress(ProgressEvent{
		Stage:   StageReading,
		Total:   0,
		Message: "Reading input...",
	})

	// Then: shows message without count
	output := buf.String()
	assert.Contains(t, output, "[READ]")
	assert.Contains(t, output, "Reading input...")
	assert.NotContains(t, output, "0/0")
}

func TestPlainRenderer_AddError_Error(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: adding an error
	r.AddError(ErrorEvent{
		Ref:    "line 42",
		Err:    errors.New("invalid JSON"),
		IsWarn: false,
	})

	// Then: error is formatted correctly
	output := buf.String()
	assert.Contains(t, output, "ERROR:")
	assert.Contains(t, output, "line 42")
	assert.Contains(t, output, "invalid JSON")
}

func TestPlainRenderer_AddError_Warning(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: adding a warning
	r.AddError(ErrorEvent{
		Ref:    "news-0007",
		Err:    errors.New("document replaced"),
		IsWarn: true,
	})

	// Then: warning is formatted correctly
	output := buf.String()
	assert.Contains(t, output, "WARN:")
	assert.Contains(t, output, "news-0007")
}

func TestPlainRenderer_AddError_NoRef(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: adding an error without a reference
	r.AddError(ErrorEvent{
		Err: errors.New("store unavailable"),
	})

	// Then: error is shown without a ref prefix
	output := buf.String()
	assert.Contains(t, output, "ERROR: store unavailable")
}

func TestPlainRenderer_Complete_Summary(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with stats
	r.Complete(CompletionStats{
		Documents: 120,
		Chunks:    480,
		Duration:  3200 * time.Millisecond,
	})

	// Then: summary line shows documents and chunks
	output := buf.String()
	assert.Contains(t, output, "Complete: 120 documents (480 chunks)")
	assert.Contains(t, output, "3.2s")
	assert.NotContains(t, output, "errors")
}

func TestPlainRenderer_Complete_WithReplacedAndErrors(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with replacements and failures
	r.Complete(CompletionStats{
		Documents: 50,
		Chunks:    200,
		Replaced:  3,
		Duration:  time.Second,
		Errors:    2,
		Warnings:  1,
	})

	// Then: both counters appear
	output := buf.String()
	assert.Contains(t, output, "3 replaced")
	assert.Contains(t, output, "(2 errors, 1 warnings)")
}

func TestPlainRenderer_Complete_StageBreakdown(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with stage timings
	r.Complete(CompletionStats{
		Documents: 100,
		Chunks:    400,
		Duration:  5 * time.Second,
		Stages: StageTimings{
			Read:  1 * time.Second,
			Index: 4 * time.Second,
		},
	})

	// Then: the breakdown lists both stages with throughput
	output := buf.String()
	assert.Contains(t, output, "Stage Breakdown:")
	assert.Contains(t, output, "Read:  1s")
	assert.Contains(t, output, "Index: 4s")
	assert.Contains(t, output, "100 documents @ 25.0/sec")
}

func TestPlainRenderer_Complete_StoreInfo(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with store info
	r.Complete(CompletionStats{
		Documents: 10,
		Chunks:    40,
		Duration:  time.Second,
		Store:     StoreInfo{Backend: "sqlite", Dimensions: 384},
	})

	// Then: the store line is shown
	output := buf.String()
	assert.Contains(t, output, "Store: sqlite (384 dims)")
}

func TestPlainRenderer_StartStop_NoError(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: starting and stopping
	err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Stop())
}
