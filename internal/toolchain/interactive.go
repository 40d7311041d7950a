package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"sandboxcore/internal/logging"
)

// InteractiveSession is a single PTY-backed shell attached to an
// isolate's sandbox directory, for toolchains (REPLs, interactive
// installers) that aren't a single request/response command line. It has
// exactly one reader; there is no multi-client broadcast requirement
// here.
type InteractiveSession struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu         sync.Mutex
	lastActive time.Time
	closed     bool
}

// StartInteractive launches shellPath inside workDir with env, sized to
// rows/cols.
func StartInteractive(shellPath, workDir string, env []string, rows, cols uint16) (*InteractiveSession, error) {
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}

	cmd := exec.Command(shellPath)
	cmd.Dir = workDir
	cmd.Env = env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, fmt.Errorf("start interactive pty: %w", err)
	}

	return &InteractiveSession{cmd: cmd, ptmx: ptmx, lastActive: time.Now()}, nil
}

// Write sends input to the shell.
func (s *InteractiveSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
	return s.ptmx.Write(p)
}

// Read pulls output from the shell into p.
func (s *InteractiveSession) Read(p []byte) (int, error) {
	return s.ptmx.Read(p)
}

// Resize changes the PTY window size.
func (s *InteractiveSession) Resize(rows, cols uint16) error {
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// LastActive reports the last time Write was called, for idle eviction.
func (s *InteractiveSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close terminates the shell process and releases the PTY.
func (s *InteractiveSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil {
			logging.S().Debugw("interactive session kill failed", "error", err)
		}
	}
	return s.ptmx.Close()
}
