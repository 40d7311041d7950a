package toolchain

import (
	"os"
	"path/filepath"
)

// artifactSnapshot maps a sandbox-relative file path to its mtime, for
// diffing what an invocation produced.
type artifactSnapshot map[string]int64

// snapshotArtifacts walks root and records every regular file's mtime.
// Best-effort: a walk error stops that branch but never fails the
// invocation.
func snapshotArtifacts(root string) artifactSnapshot {
	snap := make(artifactSnapshot)
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		snap[rel] = info.ModTime().UnixNano()
		return nil
	})
	return snap
}

// diffArtifacts counts files present (or changed) in after but not in
// before: new or freshly rewritten build artifacts.
func diffArtifacts(before, after artifactSnapshot) int {
	count := 0
	for rel, mtime := range after {
		if prev, ok := before[rel]; !ok || prev != mtime {
			count++
		}
	}
	return count
}
