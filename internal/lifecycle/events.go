// Package lifecycle implements the Lifecycle Manager (C7): a session
// table mapping session-id to isolate, orchestrating create/suspend/
// resume/merge-back/destroy and emitting lifecycle events.
package lifecycle

import "time"

// EventKind enumerates the lifecycle event stream values.
type EventKind string

const (
	EventSessionStarted      EventKind = "SessionStarted"
	EventWorkspaceCreated    EventKind = "WorkspaceCreated"
	EventWorkspaceActivated  EventKind = "WorkspaceActivated"
	EventWorkspaceSuspended  EventKind = "WorkspaceSuspended"
	EventWorkspaceResumed    EventKind = "WorkspaceResumed"
	EventCleanupStarted      EventKind = "CleanupStarted"
	EventWorkspaceDestroyed  EventKind = "WorkspaceDestroyed"
	EventWorkspaceMerged     EventKind = "WorkspaceMerged"
	EventSessionEnded        EventKind = "SessionEnded"
	EventErrorOccurred       EventKind = "ErrorOccurred"
)

// Event is a single lifecycle notification.
type Event struct {
	Kind      EventKind
	SessionID string
	Timestamp time.Time
	Details   map[string]any
	Err       error
}

// Handler consumes lifecycle events. A panic inside a handler is
// isolated and logged, never propagated to the emitter.
type Handler func(Event)
