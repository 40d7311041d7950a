package governor

import (
	"os"
	"path/filepath"
	"time"

	"sandboxcore/internal/cache"
	"sandboxcore/internal/isolate"
)

// IsolateLister is the subset of the lifecycle manager the governor
// needs to find expired and active sandbox directories without importing
// it directly (lifecycle already depends on governor-adjacent packages).
type IsolateLister interface {
	// ReapExpired destroys any isolate idle past maxAge and returns how
	// many were removed.
	ReapExpired(maxAge time.Duration) int
	// ActiveSandboxPaths returns the sandbox directory of every live
	// isolate.
	ActiveSandboxPaths() []string
}

// DefaultTasks builds the five cleanup tasks, wired against the cache
// fabric, the lifecycle manager's expiry reaper, and the manager's
// scratch directories.
func DefaultTasks(fabric *cache.Fabric, isolates IsolateLister, managerRoot string) []*Task {
	return []*Task{
		{
			Name:        "expired_cache_entries",
			Description: "Evict expired analysis/operation cache entries and low-value plan templates.",
			Priority:    1,
			MaxAge:      1 * time.Hour,
			Enabled:     true,
			CleanupFn: func() error {
				fabric.RunExpiryCleanup()
				return nil
			},
		},
		{
			Name:        "old_sandbox_environments",
			Description: "Destroy isolates idle beyond the session timeout.",
			Priority:    2,
			MaxAge:      6 * time.Hour,
			Enabled:     true,
			CleanupFn: func() error {
				n := isolates.ReapExpired(24 * time.Hour)
				log.Debugw("reaped expired isolates", "count", n)
				return nil
			},
		},
		{
			Name:        "large_log_files",
			Description: "Rotate oversized .log/.out/.err files anywhere under the manager root.",
			Priority:    3,
			MaxAge:      12 * time.Hour,
			Enabled:     true,
			CleanupFn: func() error {
				return rotateLargeLogs(managerRoot, 100*1024*1024)
			},
		},
		{
			Name:        "temporary_files",
			Description: "Remove regenerable language caches (__pycache__, .pytest_cache, *.pyc, *.tmp, *.temp) from active isolates.",
			Priority:    4,
			MaxAge:      2 * time.Hour,
			Enabled:     true,
			CleanupFn: func() error {
				for _, path := range isolates.ActiveSandboxPaths() {
					if err := removeScratchCaches(path); err != nil {
						log.Warnw("remove scratch caches failed", "path", path, "error", err)
					}
				}
				return nil
			},
		},
		{
			Name:        "memory_cache_optimization",
			Description: "Drain the cache fabric down to its configured byte budget.",
			Priority:    5,
			MaxAge:      30 * time.Minute,
			Enabled:     true,
			CleanupFn: func() error {
				fabric.EnforceBudget()
				return nil
			},
		},
	}
}

var logExtensions = map[string]struct{}{".log": {}, ".out": {}, ".err": {}}

// rotateLargeLogs renames any .log/.out/.err file over maxBytes to a
// ".1" sibling, truncating the active name back to empty so the writer
// keeps appending to a fresh file instead of one that keeps growing.
func rotateLargeLogs(root string, maxBytes int64) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ok := logExtensions[filepath.Ext(path)]; !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() <= maxBytes {
			return nil
		}
		rotated := path + ".1"
		if err := os.Rename(path, rotated); err != nil {
			log.Warnw("rotate large log failed", "path", path, "error", err)
			return nil
		}
		if f, err := os.Create(path); err != nil {
			log.Warnw("recreate log after rotation failed", "path", path, "error", err)
		} else {
			f.Close()
		}
		return nil
	})
}

// removeScratchCaches walks one isolate's sandbox directory removing
// regenerable language-cache files and directories, leaving source files
// untouched.
func removeScratchCaches(sandboxPath string) error {
	var stale []string
	err := filepath.WalkDir(sandboxPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == sandboxPath {
			return nil
		}
		if isolate.IsScratchCacheEntry(d.Name(), d.IsDir()) {
			stale = append(stale, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	for _, path := range stale {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			log.Warnw("remove scratch cache entry failed", "path", path, "error", rmErr)
		}
	}
	return err
}
