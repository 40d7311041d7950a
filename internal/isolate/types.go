// Package isolate implements the Isolate Builder (C5): clones a host
// directory into a sandbox directory with exclusions, preserves VCS
// history, optionally provisions a container isolate, and enforces
// resource limits via the security mediator.
package isolate

import (
	"fmt"
	"sync"
	"time"
)

// Status is the isolate lifecycle state. Transitions form a monotonic
// DAG: Creating → Active ↔ Suspended → Destroyed; Error is terminal.
type Status string

const (
	StatusCreating  Status = "creating"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDestroyed Status = "destroyed"
	StatusError     Status = "error"
)

// IsolationConfig controls how an isolate is provisioned.
type IsolationConfig struct {
	UseContainer     bool
	Image            string
	CPULimit         float64
	MemoryLimitMB    int64
	DiskLimitMB      int64
	NetworkIsolation bool
	AllowedHosts     []string
	EnvVars          map[string]string
	MountPoints      map[string]string
}

// Metadata carries the optional container handle and caller-supplied
// key/value bag.
type Metadata struct {
	ContainerID string
	Extra       map[string]string
}

// Isolate is a sandbox directory plus optional container handle and
// resource caps, derived from a source directory.
type Isolate struct {
	mu sync.RWMutex

	ID              string
	SourcePath      string
	sandboxPath     string
	IsolationConfig IsolationConfig
	CreatedAt       time.Time
	status          Status
	Metadata        Metadata

	totalFiles int
}

// SandboxPath implements security.IsolateView.
func (i *Isolate) SandboxPath() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.sandboxPath
}

// TotalFiles implements security.IsolateView.
func (i *Isolate) TotalFiles() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.totalFiles
}

// Status returns the current lifecycle status.
func (i *Isolate) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// setStatus refuses to move an isolate out of the terminal states Error
// and Destroyed; transitions between the other states are not checked.
func (i *Isolate) setStatus(s Status) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	switch i.status {
	case StatusError, StatusDestroyed:
		if s != i.status {
			return fmt.Errorf("isolate %s is terminal in state %s", i.ID, i.status)
		}
	}
	i.status = s
	return nil
}

func (i *Isolate) setTotalFiles(n int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.totalFiles = n
}
