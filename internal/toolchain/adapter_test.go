package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sandboxcore/internal/isolate"
	"sandboxcore/internal/journal"
	"sandboxcore/internal/policy"
	"sandboxcore/internal/security"
)

func openTestJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func newTestIsolate(t *testing.T) *isolate.Isolate {
	t.Helper()
	p, err := policy.New()
	require.NoError(t, err)
	mediator := security.New(p)
	builder, err := isolate.NewBuilder(t.TempDir(), mediator, nil)
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "go.mod"), []byte("module fixture\n\ngo 1.22\n"), 0o644))

	iso, err := builder.CreateIsolate(context.Background(), src, "", isolate.IsolationConfig{})
	require.NoError(t, err)
	return iso
}

func TestAdapterInvokeGenericSuccess(t *testing.T) {
	j := openTestJournal(t)
	iso := newTestIsolate(t)
	a := New(j, "", 0)

	outcome, err := a.Invoke(context.Background(), iso, "sess-1", "task-1", VerbInstall)
	require.NoError(t, err)
	require.Equal(t, LangGo, outcome.Language)
	require.NotEmpty(t, outcome.ActionID)
	require.GreaterOrEqual(t, outcome.ArtifactsProduced, 0)

	actions, err := j.GetActions(journal.Query{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NotNil(t, actions[0].Command)
}

func TestAdapterInvokeUnknownVerbCombination(t *testing.T) {
	j := openTestJournal(t)
	iso := newTestIsolate(t)
	a := New(j, "", 0)

	_, err := a.Invoke(context.Background(), iso, "sess-1", "task-1", Verb("deploy"))
	require.Error(t, err)
}

func TestAdapterInvokeWiresCacheMountEnv(t *testing.T) {
	j := openTestJournal(t)
	iso := newTestIsolate(t)
	cacheRoot := t.TempDir()
	a := New(j, cacheRoot, 0)

	_, err := a.Invoke(context.Background(), iso, "sess-1", "task-1", VerbBuild)
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(cacheRoot, "go-build"))
	require.DirExists(t, filepath.Join(cacheRoot, "go-mod"))
}
