// Package governor implements the Resource Governor (C6): a monitor loop
// sampling host usage against configured ceilings, and a cleanup loop
// running prioritized tasks.
package governor

import (
	"sync"
	"time"
)

// Task is a prioritized, scheduled cleanup job.
type Task struct {
	Name        string
	Description string
	Priority    int // 1 best … 10
	MaxAge      time.Duration
	Enabled     bool
	CleanupFn   func() error

	mu            sync.Mutex
	lastRun       time.Time
	totalCleanups int64
}

// ShouldRun reports whether the task is due: enabled and either never
// run, past MaxAge, or forced.
func (t *Task) ShouldRun(force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Enabled {
		return false
	}
	if force {
		return true
	}
	if t.lastRun.IsZero() {
		return true
	}
	return time.Since(t.lastRun) > t.MaxAge
}

// Run executes CleanupFn and records bookkeeping, swallowing panics so a
// faulting task cannot kill the governing loop.
func (t *Task) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &taskPanicError{task: t.Name, recovered: r}
		}
		t.mu.Lock()
		t.lastRun = time.Now()
		t.totalCleanups++
		t.mu.Unlock()
	}()
	return t.CleanupFn()
}

// LastRun and TotalCleanups expose bookkeeping for statistics.
func (t *Task) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *Task) TotalCleanups() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCleanups
}

type taskPanicError struct {
	task      string
	recovered any
}

func (e *taskPanicError) Error() string {
	return "cleanup task " + e.task + " panicked"
}
