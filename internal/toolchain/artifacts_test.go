package toolchain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiffArtifactsCountsNewAndRewrittenFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "unchanged.txt"), []byte("a"), 0o644))
	before := snapshotArtifacts(root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "dist.bin"), []byte("built"), 0o644))
	unchangedPath := filepath.Join(root, "unchanged.txt")
	newMtime := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(unchangedPath, newMtime, newMtime))
	after := snapshotArtifacts(root)

	require.Equal(t, 2, diffArtifacts(before, after))
}

func TestDiffArtifactsZeroWhenNothingChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	snap := snapshotArtifacts(root)
	require.Equal(t, 0, diffArtifacts(snap, snapshotArtifacts(root)))
}

func TestSnapshotArtifactsSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "file.txt"), []byte("x"), 0o644))

	snap := snapshotArtifacts(root)
	require.Len(t, snap, 1)
	_, ok := snap[filepath.Join("sub", "file.txt")]
	require.True(t, ok)
}
