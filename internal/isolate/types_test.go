package isolate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestIsolateStub() *Isolate {
	return &Isolate{ID: "stub", status: StatusCreating}
}

func TestSetStatusAllowsForwardTransitions(t *testing.T) {
	iso := newTestIsolateStub()
	require.NoError(t, iso.setStatus(StatusActive))
	require.Equal(t, StatusActive, iso.Status())
	require.NoError(t, iso.setStatus(StatusSuspended))
	require.NoError(t, iso.setStatus(StatusActive))
}

func TestSetStatusErrorIsTerminal(t *testing.T) {
	iso := newTestIsolateStub()
	require.NoError(t, iso.setStatus(StatusError))
	require.Error(t, iso.setStatus(StatusActive))
	require.Equal(t, StatusError, iso.Status())
}

func TestSetStatusDestroyedIsTerminal(t *testing.T) {
	iso := newTestIsolateStub()
	require.NoError(t, iso.setStatus(StatusActive))
	require.NoError(t, iso.setStatus(StatusDestroyed))
	require.Error(t, iso.setStatus(StatusActive))
}

func TestSetTotalFiles(t *testing.T) {
	iso := newTestIsolateStub()
	iso.setTotalFiles(42)
	require.Equal(t, 42, iso.TotalFiles())
}
