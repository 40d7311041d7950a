package toolchain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sandboxcore/internal/isolate"
)

// InteractiveRegistry tracks the live interactive sessions for a single
// isolate, keyed by session id, and reaps ones idle past maxIdle.
type InteractiveRegistry struct {
	maxIdle time.Duration

	mu       sync.Mutex
	sessions map[string]*InteractiveSession
}

// NewInteractiveRegistry builds a registry that evicts sessions idle
// longer than maxIdle (0 disables idle eviction).
func NewInteractiveRegistry(maxIdle time.Duration) *InteractiveRegistry {
	return &InteractiveRegistry{maxIdle: maxIdle, sessions: make(map[string]*InteractiveSession)}
}

// Open starts a shell inside iso's sandbox and registers it under a new
// session id.
func (r *InteractiveRegistry) Open(iso *isolate.Isolate, shellPath string, env []string, rows, cols uint16) (string, *InteractiveSession, error) {
	sess, err := StartInteractive(shellPath, iso.SandboxPath(), env, rows, cols)
	if err != nil {
		return "", nil, err
	}

	id := uuid.New().String()
	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return id, sess, nil
}

// Get returns the session for id, or false if unknown.
func (r *InteractiveRegistry) Get(id string) (*InteractiveSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close terminates and unregisters the session for id.
func (r *InteractiveRegistry) Close(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("interactive session %q not found", id)
	}
	return sess.Close()
}

// ReapIdle closes every session whose last activity is older than
// maxIdle, returning the count closed.
func (r *InteractiveRegistry) ReapIdle() int {
	if r.maxIdle <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-r.maxIdle)
	r.mu.Lock()
	stale := make(map[string]*InteractiveSession)
	for id, sess := range r.sessions {
		if sess.LastActive().Before(cutoff) {
			stale[id] = sess
		}
	}
	for id := range stale {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sess := range stale {
		_ = sess.Close()
	}
	return len(stale)
}

// CloseAll terminates every registered session, for shutdown.
func (r *InteractiveRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*InteractiveSession)
	r.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
}
