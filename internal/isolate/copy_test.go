package isolate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsExcludedMatchesJunkNames(t *testing.T) {
	require.True(t, isExcluded("node_modules", true))
	require.True(t, isExcluded("__pycache__", true))
	require.True(t, isExcluded("foo.pyc", false))
	require.True(t, isExcluded("debug.log", false))
	require.False(t, isExcluded("main.go", false))
}

func TestIsExcludedNeverMatchesGit(t *testing.T) {
	require.False(t, isExcluded(".git", true))
}

func TestCopyTreeWalkCopiesFilesAndSkipsExcluded(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.go"), []byte("a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "dist", "bundle.js"), []byte("x"), 0o644))

	dst := t.TempDir()
	n, err := copyTreeWalk(src, dst)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(dst, "a.go"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, "dist"))
	require.True(t, os.IsNotExist(err))
}

func TestCopyTreeWalkPreservesSymlinks(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "real.txt"), []byte("r"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(src, "real.txt"), filepath.Join(src, "link.txt")))

	dst := t.TempDir()
	_, err := copyTreeWalk(src, dst)
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(dst, "link.txt"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(src, "real.txt"), target)
}

func TestCopyTreeExcludingVCSSkipsGitDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.go"), []byte("a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("x"), 0o644))

	dst := t.TempDir()
	n, err := copyTreeExcludingVCS(src, dst)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(dst, ".git"))
	require.True(t, os.IsNotExist(err))
}

func TestHasVCSMetadata(t *testing.T) {
	dir := t.TempDir()
	require.False(t, hasVCSMetadata(dir))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.True(t, hasVCSMetadata(dir))
}
