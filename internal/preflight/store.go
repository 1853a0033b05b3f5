package preflight

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/chunkdex/internal/config"
	"github.com/Aman-CERP/chunkdex/internal/store"
)

// CheckIndexLock verifies no other process holds the index lock.
// Passes trivially when no index exists yet.
func (c *Checker) CheckIndexLock(root string) CheckResult {
	result := CheckResult{
		Name:     "index_lock",
		Required: true,
	}

	dataDir := config.DataDir(root)
	if !store.Exists(dataDir) {
		result.Status = StatusPass
		result.Message = "no index yet"
		return result
	}

	lock := store.NewDirLock(dataDir)
	if err := lock.Acquire(); err != nil {
		result.Status = StatusFail
		result.Message = "another process holds the index"
		result.Details = err.Error()
		return result
	}
	_ = lock.Release()

	result.Status = StatusPass
	result.Message = "available"
	return result
}

// CheckStore verifies the document database opens and answers a count.
// Passes trivially when no index exists yet.
func (c *Checker) CheckStore(ctx context.Context, root string) CheckResult {
	result := CheckResult{
		Name:     "store",
		Required: true,
	}

	dataDir := config.DataDir(root)
	if !store.Exists(dataDir) {
		result.Status = StatusPass
		result.Message = "no index yet"
		return result
	}

	ds, err := store.New(store.Options{
		Backend: store.BackendSQLite,
		DataDir: dataDir,
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("document database failed to open: %v", err)
		return result
	}
	defer func() { _ = ds.Close() }()

	count, err := ds.Count(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("document database is unreadable: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d document(s)", count)
	return result
}

// CheckConfig loads and validates the effective configuration for root.
func (c *Checker) CheckConfig(root string) CheckResult {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}

	cfg, err := config.Load(root)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("invalid: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("valid (backend: %s, profile: %s)",
		cfg.Store.Backend, cfg.Search.DefaultProfile)
	return result
}
