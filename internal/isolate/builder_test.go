package isolate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sandboxcore/internal/policy"
	"sandboxcore/internal/security"

	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	pol, err := policy.New()
	require.NoError(t, err)
	mediator := security.New(pol)
	b, err := NewBuilder(t.TempDir(), mediator, nil)
	require.NoError(t, err)
	return b
}

func newSourceTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "node_modules", "pkg", "index.js"), []byte("x"), 0o644))
	return src
}

func TestCreateIsolateClonesSourceExcludingJunk(t *testing.T) {
	b := newTestBuilder(t)
	src := newSourceTree(t)

	iso, err := b.CreateIsolate(context.Background(), src, "iso1", IsolationConfig{})
	require.NoError(t, err)
	require.Equal(t, StatusActive, iso.Status())
	require.Equal(t, 1, iso.TotalFiles())

	_, err = os.Stat(filepath.Join(iso.SandboxPath(), "main.go"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(iso.SandboxPath(), "node_modules"))
	require.True(t, os.IsNotExist(err))
}

func TestCreateIsolateRejectsNonDirectorySource(t *testing.T) {
	b := newTestBuilder(t)
	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := b.CreateIsolate(context.Background(), file, "bad", IsolationConfig{})
	require.Error(t, err)
}

func TestCreateIsolateGeneratesIDWhenEmpty(t *testing.T) {
	b := newTestBuilder(t)
	src := newSourceTree(t)

	iso, err := b.CreateIsolate(context.Background(), src, "", IsolationConfig{})
	require.NoError(t, err)
	require.NotEmpty(t, iso.ID)
}

func TestMergeBackCopiesExcludingVCS(t *testing.T) {
	b := newTestBuilder(t)
	src := newSourceTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))

	iso, err := b.CreateIsolate(context.Background(), src, "iso2", IsolationConfig{})
	require.NoError(t, err)

	target := t.TempDir()
	ok, err := b.MergeBack(iso, target)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = os.Stat(filepath.Join(target, "main.go"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(target, ".git"))
	require.True(t, os.IsNotExist(err))
}

func TestDestroyRemovesSandboxDirectory(t *testing.T) {
	b := newTestBuilder(t)
	src := newSourceTree(t)

	iso, err := b.CreateIsolate(context.Background(), src, "iso3", IsolationConfig{})
	require.NoError(t, err)

	ok := b.Destroy(context.Background(), iso)
	require.True(t, ok)
	require.Equal(t, StatusDestroyed, iso.Status())

	_, err = os.Stat(iso.SandboxPath())
	require.True(t, os.IsNotExist(err))
}

func TestSuspendResumeDirectoryScopedFallback(t *testing.T) {
	b := newTestBuilder(t)
	src := newSourceTree(t)

	iso, err := b.CreateIsolate(context.Background(), src, "iso4", IsolationConfig{})
	require.NoError(t, err)

	require.NoError(t, b.Suspend(context.Background(), iso))
	require.Equal(t, StatusSuspended, iso.Status())

	require.NoError(t, b.Resume(context.Background(), iso))
	require.Equal(t, StatusActive, iso.Status())
}

func TestDestroyIsTerminalForFurtherTransitions(t *testing.T) {
	b := newTestBuilder(t)
	src := newSourceTree(t)

	iso, err := b.CreateIsolate(context.Background(), src, "iso5", IsolationConfig{})
	require.NoError(t, err)

	b.Destroy(context.Background(), iso)
	require.Error(t, b.Suspend(context.Background(), iso))
}
