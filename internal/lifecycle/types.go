package lifecycle

import (
	"time"

	"sandboxcore/internal/isolate"
)

// Session is a named handle to an isolate with access bookkeeping.
type Session struct {
	SessionID    string
	Isolate      *isolate.Isolate
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
	Metadata     map[string]string
}

// WorkspaceStatus is the composite view returned by get_workspace_status,
// combining session bookkeeping, isolate status, and current resource
// usage. It does not carry the isolate's isolation config.
type WorkspaceStatus struct {
	SessionID      string
	IsolateID      string
	IsolateStatus  isolate.Status
	CreatedAt      time.Time
	LastAccessed   time.Time
	AccessCount    int64
	Metadata       map[string]string
	MemoryMB       int64
	CPUPercent     float64
	ResourceKnown  bool
}
