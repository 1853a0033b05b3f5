// Package preflight validates the environment before chunkdex touches
// an index.
//
// The package checks:
//   - Disk headroom (a baseline, doubled by an existing index so WAL
//     checkpoints and re-ingests have room)
//   - Write permissions in the index root
//   - File descriptor limits
//   - Index lock availability (no other process holds the index)
//   - Store integrity (the SQLite database opens)
//   - Configuration validity
//
// A passing run is recorded in a marker file keyed to the binary
// version; upgrading the binary forces a re-check.
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, "/path/to/project")
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
