package preflight

import (
	"fmt"
	"syscall"
)

// The engine itself holds only a handful of descriptors: the document
// database with its WAL and shm files, the directory lock, the log
// file, and one feed file per ingest.
const (
	// fdFloor is the descriptor limit below which even a single engine
	// cannot run safely.
	fdFloor = 256

	// fdComfortable is the limit below which parallel workloads (test
	// runs, several MCP clients) risk descriptor exhaustion.
	fdComfortable = 1024
)

// CheckFileDescriptors verifies the process descriptor limit leaves
// room for the store, lock, and log files.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	limit := rLimit.Cur
	result.Message = fmt.Sprintf("%d (floor: %d)", limit, fdFloor)

	switch {
	case limit < fdFloor:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' to raise the limit", fdComfortable)
	case limit < fdComfortable:
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' to avoid exhaustion under parallel load", fdComfortable)
	default:
		result.Status = StatusPass
	}
	return result
}
