package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sandboxcore/internal/errtax"
	"sandboxcore/internal/isolate"
	"sandboxcore/internal/logging"
	"sandboxcore/internal/security"
)

var log = logging.Named("lifecycle")

// ResourceReader reports current resource usage for an isolate, used by
// get_workspace_status. Returning ok=false means usage is unknown (e.g.
// the isolate runs in the directory-scoped fallback with no container).
type ResourceReader func(iso *isolate.Isolate) (memoryMB int64, cpuPercent float64, ok bool)

// Manager owns the session table and orchestrates isolate lifecycles.
// A single mutex protects the table; Go mutexes aren't reentrant, so
// methods release it before calling helpers (such as
// cleanupExpiredSessions) that take it themselves.
type Manager struct {
	builder  *isolate.Builder
	mediator *security.Mediator
	resource ResourceReader

	maxConcurrent  int
	sessionTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string // creation order, for reverse-order shutdown

	handlersMu sync.Mutex
	handlers   []Handler
}

// New builds a Lifecycle Manager. resource may be nil, in which case
// get_workspace_status reports ResourceKnown=false.
func New(builder *isolate.Builder, mediator *security.Mediator, maxConcurrent int, sessionTimeout time.Duration, resource ResourceReader) *Manager {
	return &Manager{
		builder:        builder,
		mediator:       mediator,
		resource:       resource,
		maxConcurrent:  maxConcurrent,
		sessionTimeout: sessionTimeout,
		sessions:       make(map[string]*Session),
	}
}

// OnEvent registers a lifecycle event handler.
func (m *Manager) OnEvent(h Handler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers = append(m.handlers, h)
}

func (m *Manager) emit(evt Event) {
	evt.Timestamp = time.Now().UTC()
	m.handlersMu.Lock()
	handlers := append([]Handler(nil), m.handlers...)
	m.handlersMu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("lifecycle event handler panicked", "kind", evt.Kind, "recovered", r)
				}
			}()
			h(evt)
		}()
	}
}

// CreateWorkspace builds an isolate and registers a new session.
func (m *Manager) CreateWorkspace(ctx context.Context, source, sessionID string, cfg isolate.IsolationConfig, metadata map[string]string) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.maxConcurrent {
		m.mu.Unlock()
		m.cleanupExpiredSessions()
		m.mu.Lock()
		if len(m.sessions) >= m.maxConcurrent {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %d/%d workspaces in use", errtax.ErrCapacityExceeded, len(m.sessions), m.maxConcurrent)
		}
	}
	if sessionID != "" {
		if _, exists := m.sessions[sessionID]; exists {
			m.mu.Unlock()
			return nil, fmt.Errorf("session %q already exists", sessionID)
		}
	}
	m.mu.Unlock()

	iso, err := m.builder.CreateIsolate(ctx, source, sessionID, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errtax.ErrIsolateBuildError, err)
	}

	now := time.Now().UTC()
	sess := &Session{
		SessionID:    iso.ID,
		Isolate:      iso,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  0,
		Metadata:     metadata,
	}

	m.mu.Lock()
	if _, exists := m.sessions[sess.SessionID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %q already exists", sess.SessionID)
	}
	m.sessions[sess.SessionID] = sess
	m.order = append(m.order, sess.SessionID)
	m.mu.Unlock()

	m.emit(Event{Kind: EventSessionStarted, SessionID: sess.SessionID})
	m.emit(Event{Kind: EventWorkspaceCreated, SessionID: sess.SessionID, Details: map[string]any{"isolate_id": iso.ID}})
	if iso.Status() == isolate.StatusActive {
		m.emit(Event{Kind: EventWorkspaceActivated, SessionID: sess.SessionID})
	}
	return sess, nil
}

// GetSession returns the session, bumping LastAccessed/AccessCount.
// Returns nil if absent.
func (m *Manager) GetSession(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	sess.LastAccessed = time.Now().UTC()
	sess.AccessCount++
	return sess
}

// ListSessions returns all sessions without touching access bookkeeping.
func (m *Manager) ListSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, id := range m.order {
		if sess, ok := m.sessions[id]; ok {
			out = append(out, sess)
		}
	}
	return out
}

// SuspendWorkspace pauses the isolate's container (if any), else flips
// status only.
func (m *Manager) SuspendWorkspace(ctx context.Context, sessionID string) error {
	sess := m.GetSession(sessionID)
	if sess == nil {
		return fmt.Errorf("%w: session %q", errtax.ErrNotFound, sessionID)
	}
	if err := m.builder.Suspend(ctx, sess.Isolate); err != nil {
		return err
	}
	m.emit(Event{Kind: EventWorkspaceSuspended, SessionID: sessionID})
	return nil
}

// ResumeWorkspace unpauses the isolate's container, else flips status.
func (m *Manager) ResumeWorkspace(ctx context.Context, sessionID string) error {
	sess := m.GetSession(sessionID)
	if sess == nil {
		return fmt.Errorf("%w: session %q", errtax.ErrNotFound, sessionID)
	}
	if err := m.builder.Resume(ctx, sess.Isolate); err != nil {
		return err
	}
	m.emit(Event{Kind: EventWorkspaceResumed, SessionID: sessionID})
	return nil
}

// MergeWorkspaceChanges copies sandbox contents back to target.
func (m *Manager) MergeWorkspaceChanges(sessionID, target string) (bool, error) {
	sess := m.GetSession(sessionID)
	if sess == nil {
		return false, fmt.Errorf("%w: session %q", errtax.ErrNotFound, sessionID)
	}
	ok, err := m.builder.MergeBack(sess.Isolate, target)
	if err != nil {
		return false, err
	}
	if ok {
		m.emit(Event{Kind: EventWorkspaceMerged, SessionID: sessionID})
	}
	return ok, nil
}

// DestroyWorkspace destroys the isolate and removes the session. Calling
// it twice on the same session returns true then false, per testable
// property 8.
func (m *Manager) DestroyWorkspace(ctx context.Context, sessionID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, sessionID)
	for i, id := range m.order {
		if id == sessionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.emit(Event{Kind: EventCleanupStarted, SessionID: sessionID})
	ok = m.builder.Destroy(ctx, sess.Isolate)
	m.emit(Event{Kind: EventWorkspaceDestroyed, SessionID: sessionID})
	m.emit(Event{Kind: EventSessionEnded, SessionID: sessionID})
	return ok
}

// GetWorkspaceStatus returns a composite view of session bookkeeping,
// isolate status, resource usage, and metadata. The isolate's isolation
// config is not included.
func (m *Manager) GetWorkspaceStatus(sessionID string) (*WorkspaceStatus, bool) {
	sess := m.GetSession(sessionID)
	if sess == nil {
		return nil, false
	}
	status := &WorkspaceStatus{
		SessionID:     sess.SessionID,
		IsolateID:     sess.Isolate.ID,
		IsolateStatus: sess.Isolate.Status(),
		CreatedAt:     sess.CreatedAt,
		LastAccessed:  sess.LastAccessed,
		AccessCount:   sess.AccessCount,
		Metadata:      sess.Metadata,
	}
	if m.resource != nil {
		if mem, cpu, ok := m.resource(sess.Isolate); ok {
			status.MemoryMB, status.CPUPercent, status.ResourceKnown = mem, cpu, true
		}
	}
	return status, true
}

// cleanupExpiredSessions destroys any session idle past sessionTimeout.
func (m *Manager) cleanupExpiredSessions() int {
	m.mu.Lock()
	var expired []string
	now := time.Now()
	for id, sess := range m.sessions {
		if now.Sub(sess.LastAccessed) > m.sessionTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.DestroyWorkspace(context.Background(), id)
	}
	return len(expired)
}

// ReapExpired implements governor.IsolateLister: it ignores maxAge (the
// manager's own session_timeout governs expiry) and reports how many
// sessions were destroyed.
func (m *Manager) ReapExpired(_ time.Duration) int {
	return m.cleanupExpiredSessions()
}

// ActiveSandboxPaths implements governor.IsolateLister: it returns the
// sandbox directory of every live session, for cleanup tasks that walk
// each isolate's own scratch state rather than the manager root at large.
func (m *Manager) ActiveSandboxPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.sessions))
	for _, sess := range m.sessions {
		paths = append(paths, sess.Isolate.SandboxPath())
	}
	return paths
}

// Shutdown destroys every session in reverse-creation order.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	for i := len(ids) - 1; i >= 0; i-- {
		m.DestroyWorkspace(ctx, ids[i])
	}
}
