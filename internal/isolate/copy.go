package isolate

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sandboxcore/internal/logging"
)

// excludedNames are directory/file names skipped during clone. Merge-back
// (copyTreeExcludingVCS) applies them only below the sandbox's top-level
// entries; at the top level it skips only .git.
var excludedNames = map[string]struct{}{
	"__pycache__":      {},
	"node_modules":     {},
	".venv":            {},
	"venv":             {},
	"build":            {},
	"dist":             {},
	".DS_Store":        {},
	"Thumbs.db":        {},
	".pytest_cache":    {},
	"tmp":              {},
	"temp":             {},
}

var excludedSuffixes = []string{".pyc", ".log"}

// scratchCacheNames are directory names the governor's temporary_files
// task reaps from a live isolate (language caches regenerated by running
// builds/tests, not present right after clone since isExcluded already
// strips them there).
var scratchCacheNames = map[string]struct{}{
	"__pycache__":   {},
	".pytest_cache": {},
}

var scratchCacheSuffixes = []string{".pyc", ".tmp", ".temp"}

// IsScratchCacheEntry reports whether name is a regenerable language-cache
// entry the Resource Governor may remove from a live isolate without
// touching source files.
func IsScratchCacheEntry(name string, isDir bool) bool {
	if isDir {
		_, ok := scratchCacheNames[name]
		return ok
	}
	for _, suf := range scratchCacheSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// isExcluded applies the general clone exclusion list. .git itself is
// never matched here: it is handled separately by cloneVCSMetadata,
// which clones the metadata directory verbatim (including objects/) so
// the subsequent working-tree reset in vcs.go has what it needs.
func isExcluded(relPath string, isDir bool) bool {
	base := filepath.Base(relPath)
	if base == ".git" {
		return false
	}
	if _, ok := excludedNames[base]; ok {
		return true
	}
	if !isDir {
		for _, suf := range excludedSuffixes {
			if strings.HasSuffix(base, suf) {
				return true
			}
		}
	}
	return false
}

// copyTree clones src into dst, applying the exclusion list. It prefers
// the `cp -a` tree-copy tool (fast, preserves permissions/timestamps and
// symlinks) and falls back to an in-process streaming walk if `cp` is
// unavailable or fails.
func copyTree(src, dst string) (int, error) {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, err
	}

	if n, err := copyTreeFast(src, dst); err == nil {
		return n, nil
	} else {
		logging.S().Debugw("fast tree copy failed, falling back", "error", err)
	}
	return copyTreeWalk(src, dst)
}

// copyTreeFast shells out to `cp -a` per top-level entry so the
// exclusion list can still be honored (cp itself has no exclude flag).
func copyTreeFast(src, dst string) (int, error) {
	if _, err := exec.LookPath("cp"); err != nil {
		return 0, fmt.Errorf("cp not available: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if isExcluded(name, entry.IsDir()) {
			continue
		}
		srcPath := filepath.Join(src, name)
		dstPath := filepath.Join(dst, name)

		if name == ".git" {
			n, err := cloneVCSMetadata(srcPath, dstPath)
			if err != nil {
				return count, err
			}
			count += n
			continue
		}

		cmd := exec.Command("cp", "-a", srcPath, dstPath)
		if out, err := cmd.CombinedOutput(); err != nil {
			return count, fmt.Errorf("cp -a %s: %w (%s)", srcPath, err, out)
		}
		n, err := countFiles(dstPath)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

func countFiles(root string) (int, error) {
	n := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	return n, err
}

// copyTreeWalk is the streaming in-process fallback: same exclusions,
// preserves permissions and timestamps.
func copyTreeWalk(src, dst string) (int, error) {
	count := 0
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." && info.IsDir() {
			return nil
		}
		if isExcluded(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linkTarget, target)
		case info.IsDir():
			return os.MkdirAll(target, info.Mode())
		default:
			if err := copyFile(path, target, info.Mode()); err != nil {
				return err
			}
			count++
			_ = os.Chtimes(target, info.ModTime(), info.ModTime())
			return nil
		}
	})
	return count, err
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// cloneVCSMetadata clones a .git directory verbatim so the working-tree
// reset in vcs.go has what it needs.
func cloneVCSMetadata(src, dst string) (int, error) {
	return copyTreeWalk(src, dst)
}
