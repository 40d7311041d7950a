package governor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskShouldRunRespectsMaxAge(t *testing.T) {
	task := &Task{Name: "t", Priority: 1, Enabled: true, MaxAge: time.Hour, CleanupFn: func() error { return nil }}
	require.True(t, task.ShouldRun(false))

	require.NoError(t, task.Run())
	require.False(t, task.ShouldRun(false))
	require.True(t, task.ShouldRun(true))
}

func TestTaskRunRecoversFromPanic(t *testing.T) {
	task := &Task{Name: "boom", Priority: 1, Enabled: true, CleanupFn: func() error { panic("kaboom") }}
	err := task.Run()
	require.Error(t, err)
	require.Equal(t, int64(1), task.TotalCleanups())
}

func TestTaskDisabledNeverRuns(t *testing.T) {
	task := &Task{Name: "t", Priority: 1, Enabled: false, CleanupFn: func() error { return nil }}
	require.False(t, task.ShouldRun(false))
}

func TestGovernorEmergencyCleanupOnViolation(t *testing.T) {
	var ranLowPriority, ranHighPriority atomic.Bool

	g := New(func() Sample {
		return Sample{MemoryMB: 9999}
	}, Limits{MaxMemoryMB: 100}, 10*time.Millisecond, time.Hour)

	g.AddTask(&Task{
		Name: "emergency", Priority: 1, Enabled: true, MaxAge: time.Hour,
		CleanupFn: func() error { ranLowPriority.Store(true); return nil },
	})
	g.AddTask(&Task{
		Name: "not-emergency", Priority: 5, Enabled: true, MaxAge: time.Hour,
		CleanupFn: func() error { ranHighPriority.Store(true); return nil },
	})

	var mu sync.Mutex
	var gotViolations []string
	g.OnViolation(func(sample Sample, violations []string) {
		mu.Lock()
		gotViolations = violations
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		return ranLowPriority.Load()
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotViolations) == 1 && gotViolations[0] == "memory"
	}, time.Second, 5*time.Millisecond)

	require.False(t, ranHighPriority.Load())

	g.Stop()
}

func TestGovernorCleanupLoopRunsDueTasksInPriorityOrder(t *testing.T) {
	g := New(func() Sample { return Sample{} }, Limits{}, time.Hour, 10*time.Millisecond)

	var mu sync.Mutex
	var order []string
	mk := func(name string, priority int) *Task {
		return &Task{
			Name: name, Priority: priority, Enabled: true, MaxAge: time.Nanosecond,
			CleanupFn: func() error {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			},
		}
	}
	g.AddTask(mk("low", 5))
	g.AddTask(mk("high", 1))
	g.AddTask(mk("mid", 3))

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{"high", "mid", "low"}, order[:3])
	mu.Unlock()

	g.Stop()
}

func TestGetResourceStatistics(t *testing.T) {
	samples := []Sample{{MemoryMB: 10}, {MemoryMB: 20}, {MemoryMB: 30}}
	idx := 0
	g := New(func() Sample {
		s := samples[idx%len(samples)]
		idx++
		return s
	}, Limits{MaxMemoryMB: 1000}, 5*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		return len(g.ring) >= 3
	}, time.Second, 5*time.Millisecond)

	g.Stop()

	stats := g.GetResourceStatistics()
	require.Equal(t, int64(10), stats.MemoryMinMB)
	require.Equal(t, int64(30), stats.MemoryMaxMB)
}

func TestGovernorStopIsIdempotentAndBounded(t *testing.T) {
	g := New(func() Sample { return Sample{} }, Limits{}, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	defer cancel()

	start := time.Now()
	g.Stop()
	require.Less(t, time.Since(start), 6*time.Second)
}
