package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/Aman-CERP/chunkdex/internal/config"
	"github.com/Aman-CERP/chunkdex/internal/ui"
)

// baselineDiskBytes is the headroom required before any index exists:
// room for the document database, its WAL, and the engine log.
const baselineDiskBytes = 64 * 1024 * 1024

// diskRequirement returns how much free space the index root needs.
// A WAL checkpoint or a full re-ingest can transiently claim about the
// store's current footprint again, so an existing index doubles it.
func diskRequirement(root string) uint64 {
	size := indexSizeBytes(config.DataDir(root))
	if need := 2 * size; need > baselineDiskBytes {
		return need
	}
	return baselineDiskBytes
}

// indexSizeBytes sums the regular files under the data directory.
// A missing directory counts as zero.
func indexSizeBytes(dataDir string) uint64 {
	var total uint64
	_ = filepath.Walk(dataDir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

// CheckDiskSpace verifies the filesystem under root has room for the
// index to grow and checkpoint.
func (c *Checker) CheckDiskSpace(root string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	required := diskRequirement(root)
	result.Message = fmt.Sprintf("%s free (need %s)",
		ui.FormatBytes(int64(available)), ui.FormatBytes(int64(required)))

	if available < required {
		result.Status = StatusFail
		result.Details = "Free up space, or move the index with --data-dir"
		return result
	}

	result.Status = StatusPass
	return result
}
