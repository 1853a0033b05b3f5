package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

// lockFileName is the advisory lock file inside the data directory.
const lockFileName = "lock"

// DirLock grants exclusive ownership of a data directory to one process.
//
// The engine holds the lock for its whole lifetime. Derived indexes live
// in process memory, so a second writer on the same directory would let
// the stores and indexes drift apart silently.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock prepares a lock for dataDir. No lock is taken until Acquire.
func NewDirLock(dataDir string) *DirLock {
	path := filepath.Join(dataDir, lockFileName)
	return &DirLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock without blocking. A directory already held by
// another process yields a retryable locked error.
func (l *DirLock) Acquire() error {
	if l.locked {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return cdxerrors.StorageError("create data directory for lock", err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return cdxerrors.StorageError(fmt.Sprintf("acquire lock %s", l.path), err)
	}
	if !ok {
		return cdxerrors.New(cdxerrors.ErrCodeDataDirLocked,
			fmt.Sprintf("data directory %s is in use by another process", filepath.Dir(l.path)), nil).
			WithSuggestion("stop the other chunkdex process, or point this one at a different index")
	}

	l.locked = true
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *DirLock) Release() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return cdxerrors.StorageError(fmt.Sprintf("release lock %s", l.path), err)
	}
	l.locked = false
	return nil
}

// IsHeld reports whether this process holds the lock.
func (l *DirLock) IsHeld() bool {
	return l.locked
}

// Path returns the lock file location.
func (l *DirLock) Path() string {
	return l.path
}
