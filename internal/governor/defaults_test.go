package governor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sandboxcore/internal/cache"

	"github.com/stretchr/testify/require"
)

type fakeIsolateLister struct {
	sandboxPaths []string
}

func (f *fakeIsolateLister) ReapExpired(time.Duration) int { return 0 }
func (f *fakeIsolateLister) ActiveSandboxPaths() []string  { return f.sandboxPaths }

func TestDefaultTasksBuildsFiveTasksInPriorityOrder(t *testing.T) {
	tasks := DefaultTasks(cache.New(cache.DefaultBudget(), nil), &fakeIsolateLister{}, t.TempDir())
	require.Len(t, tasks, 5)
	for i, task := range tasks {
		require.Equal(t, i+1, task.Priority)
	}
}

func TestRotateLargeLogsRotatesOverThresholdAcrossExtensions(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 200)

	logPath := filepath.Join(root, "app.log")
	outPath := filepath.Join(root, "app.out")
	errPath := filepath.Join(root, "app.err")
	smallPath := filepath.Join(root, "small.log")
	require.NoError(t, os.WriteFile(logPath, big, 0o644))
	require.NoError(t, os.WriteFile(outPath, big, 0o644))
	require.NoError(t, os.WriteFile(errPath, big, 0o644))
	require.NoError(t, os.WriteFile(smallPath, []byte("x"), 0o644))

	require.NoError(t, rotateLargeLogs(root, 100))

	for _, p := range []string{logPath, outPath, errPath} {
		rotated, err := os.ReadFile(p + ".1")
		require.NoError(t, err)
		require.Len(t, rotated, 200)

		fresh, err := os.ReadFile(p)
		require.NoError(t, err)
		require.Empty(t, fresh)
	}

	_, err := os.Stat(smallPath + ".1")
	require.True(t, os.IsNotExist(err))
}

func TestRemoveScratchCachesRemovesRegenerableEntriesOnly(t *testing.T) {
	sandbox := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sandbox, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sandbox, "__pycache__", "mod.cpython-311.pyc"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(sandbox, ".pytest_cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sandbox, "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sandbox, "main.py"), []byte("print(1)"), 0o644))

	require.NoError(t, removeScratchCaches(sandbox))

	_, err := os.Stat(filepath.Join(sandbox, "__pycache__"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(sandbox, ".pytest_cache"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(sandbox, "scratch.tmp"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(sandbox, "main.py"))
	require.NoError(t, err)
}
