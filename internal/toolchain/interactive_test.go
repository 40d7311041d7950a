package toolchain

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInteractiveSessionEchoesInput(t *testing.T) {
	sess, err := StartInteractive("/bin/sh", t.TempDir(), []string{"PS1="}, 24, 80)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	_, err = sess.Write([]byte("echo hello-toolchain\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(sess)
	deadline := time.Now().Add(5 * time.Second)
	found := false
	for time.Now().Before(deadline) {
		line, _ := reader.ReadString('\n')
		if line == "" {
			continue
		}
		if line == "hello-toolchain\r\n" || line == "hello-toolchain\n" {
			found = true
			break
		}
	}
	require.True(t, found, "expected echoed output from interactive shell")
}

func TestInteractiveSessionCloseIsIdempotent(t *testing.T) {
	sess, err := StartInteractive("/bin/sh", t.TempDir(), nil, 0, 0)
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func TestInteractiveRegistryOpenGetClose(t *testing.T) {
	iso := newTestIsolate(t)
	reg := NewInteractiveRegistry(0)

	id, sess, err := reg.Open(iso, "/bin/sh", nil, 24, 80)
	require.NoError(t, err)
	require.NotNil(t, sess)

	got, ok := reg.Get(id)
	require.True(t, ok)
	require.Same(t, sess, got)

	require.NoError(t, reg.Close(id))
	_, ok = reg.Get(id)
	require.False(t, ok)
}

func TestInteractiveRegistryCloseUnknownErrors(t *testing.T) {
	reg := NewInteractiveRegistry(0)
	require.Error(t, reg.Close("nope"))
}

func TestInteractiveRegistryReapIdle(t *testing.T) {
	iso := newTestIsolate(t)
	reg := NewInteractiveRegistry(10 * time.Millisecond)

	id, _, err := reg.Open(iso, "/bin/sh", nil, 24, 80)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, reg.ReapIdle())

	_, ok := reg.Get(id)
	require.False(t, ok)
}
