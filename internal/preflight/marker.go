package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/chunkdex/pkg/version"
)

// MarkerFile records the last passing system check inside the data
// directory: the binary version that ran it, then the timestamp.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether the system check should run again: no
// marker yet, an unreadable one, or one written by a different binary
// version. An upgrade may change the requirements, so it re-checks.
func NeedsCheck(dataDir string) bool {
	checkedBy, _, err := readMarker(dataDir)
	if err != nil {
		return true
	}
	return checkedBy != version.Version
}

// MarkPassed records a passing check for the current binary version,
// creating the data directory if needed.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	content := fmt.Sprintf("%s\n%s\n", version.Version, time.Now().Format(time.RFC3339))
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), []byte(content), 0o644)
}

// ClearMarker removes the marker, forcing a re-check on the next run.
// Clearing an absent marker is a no-op.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago the recorded check passed, or zero
// when there is no readable marker.
func MarkerAge(dataDir string) time.Duration {
	_, checkedAt, err := readMarker(dataDir)
	if err != nil {
		return 0
	}
	return time.Since(checkedAt)
}

// readMarker parses the marker into its version and timestamp lines.
func readMarker(dataDir string) (string, time.Time, error) {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return "", time.Time{}, err
	}
	lines := strings.SplitN(strings.TrimSpace(string(content)), "\n", 2)
	if len(lines) != 2 {
		return "", time.Time{}, fmt.Errorf("malformed marker file")
	}
	checkedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
	if err != nil {
		return "", time.Time{}, err
	}
	return lines[0], checkedAt, nil
}
