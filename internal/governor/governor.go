package governor

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sandboxcore/internal/logging"
	"sandboxcore/internal/metrics"
)

var log = logging.Named("governor")

// Sample is a point-in-time resource usage reading.
type Sample struct {
	MemoryMB   int64
	DiskMB     int64
	CPUPercent float64
	OpenFiles  int
	Processes  int
	Timestamp  time.Time
}

// Limits mirror the policy ceilings the monitor loop compares samples
// against.
type Limits struct {
	MaxMemoryMB   int64
	MaxDiskMB     int64
	MaxCPUPercent float64
}

// Sampler provides one usage reading per call.
type Sampler func() Sample

// ViolationCallback is notified with the offending sample and the list
// of breached limit names.
type ViolationCallback func(sample Sample, violations []string)

const ringBufferCapacity = 1440 // ~24h at 1-min sampling

// Governor runs the monitor and cleanup loops on independent schedules.
type Governor struct {
	sampler Sampler
	limits  Limits

	monitorInterval time.Duration
	cleanupInterval time.Duration

	mu          sync.Mutex
	ring        []Sample
	tasks       []*Task
	violationCB []ViolationCallback

	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New builds a Governor. Register tasks with AddTask before Start.
func New(sampler Sampler, limits Limits, monitorInterval, cleanupInterval time.Duration) *Governor {
	return &Governor{
		sampler:         sampler,
		limits:          limits,
		monitorInterval: monitorInterval,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}
}

// AddTask registers a cleanup task. Must be called before Start.
func (g *Governor) AddTask(t *Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, t)
}

// OnViolation registers a resource-limit violation callback.
func (g *Governor) OnViolation(cb ViolationCallback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.violationCB = append(g.violationCB, cb)
}

// Start launches the monitor and cleanup loops.
func (g *Governor) Start(ctx context.Context) {
	g.wg.Add(2)
	go g.monitorLoop(ctx)
	go g.cleanupLoop(ctx)
}

// Stop signals both loops and waits up to 5s in total for them to drain.
func (g *Governor) Stop() {
	g.once.Do(func() { close(g.stop) })

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("governor stop timed out waiting for loops to drain")
	}
}

func (g *Governor) monitorLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *Governor) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("monitor tick panicked", "recovered", r)
		}
	}()

	sample := g.sampler()
	sample.Timestamp = time.Now()

	g.mu.Lock()
	g.ring = append(g.ring, sample)
	if len(g.ring) > ringBufferCapacity {
		g.ring = g.ring[len(g.ring)-ringBufferCapacity:]
	}
	g.mu.Unlock()

	if metrics.Enabled() {
		metrics.Get().ResourceMemoryMB.Set(float64(sample.MemoryMB))
		metrics.Get().ResourceCPUPercent.Set(sample.CPUPercent)
	}

	var violations []string
	if g.limits.MaxMemoryMB > 0 && sample.MemoryMB > g.limits.MaxMemoryMB {
		violations = append(violations, "memory")
	}
	if g.limits.MaxDiskMB > 0 && sample.DiskMB > g.limits.MaxDiskMB {
		violations = append(violations, "disk")
	}
	if g.limits.MaxCPUPercent > 0 && sample.CPUPercent > g.limits.MaxCPUPercent {
		violations = append(violations, "cpu")
	}

	if len(violations) == 0 {
		return
	}

	g.runEmergencyCleanup()

	g.mu.Lock()
	callbacks := append([]ViolationCallback(nil), g.violationCB...)
	g.mu.Unlock()
	for _, cb := range callbacks {
		cb(sample, violations)
	}
}

// runEmergencyCleanup runs every task of priority ≤ 2 immediately.
func (g *Governor) runEmergencyCleanup() {
	g.mu.Lock()
	tasks := append([]*Task(nil), g.tasks...)
	g.mu.Unlock()

	g2, _ := errgroup.WithContext(context.Background())
	for _, t := range tasks {
		if t.Priority > 2 {
			continue
		}
		t := t
		g2.Go(func() error {
			if err := t.Run(); err != nil {
				log.Warnw("emergency cleanup task failed", "task", t.Name, "error", err)
			}
			if metrics.Enabled() {
				metrics.Get().CleanupTasksRun.WithLabelValues(t.Name).Inc()
			}
			return nil
		})
	}
	_ = g2.Wait()
}

func (g *Governor) cleanupLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		case <-ticker.C:
			g.runDueTasks(false)
		}
	}
}

func (g *Governor) runDueTasks(force bool) {
	g.mu.Lock()
	tasks := append([]*Task(nil), g.tasks...)
	g.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Priority < tasks[j].Priority })

	for _, t := range tasks {
		if !t.ShouldRun(force) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("cleanup task panicked", "task", t.Name, "recovered", r)
				}
			}()
			if err := t.Run(); err != nil {
				log.Warnw("cleanup task failed", "task", t.Name, "error", err)
			}
			if metrics.Enabled() {
				metrics.Get().CleanupTasksRun.WithLabelValues(t.Name).Inc()
			}
		}()
	}
}

// RunAllNow forces every enabled task to run regardless of schedule.
func (g *Governor) RunAllNow() {
	g.runDueTasks(true)
}

// Statistics summarizes recent samples for get_resource_statistics.
type Statistics struct {
	MemoryMinMB, MemoryAvgMB, MemoryMaxMB int64
	DiskMinMB, DiskAvgMB, DiskMaxMB       int64
	CPUMin, CPUAvg, CPUMax                float64
	Limits                                Limits
}

// GetResourceStatistics returns recent min/avg/max for memory/disk/cpu
// plus configured limits.
func (g *Governor) GetResourceStatistics() Statistics {
	g.mu.Lock()
	samples := append([]Sample(nil), g.ring...)
	g.mu.Unlock()

	stats := Statistics{Limits: g.limits}
	if len(samples) == 0 {
		return stats
	}

	stats.MemoryMinMB, stats.MemoryMaxMB = samples[0].MemoryMB, samples[0].MemoryMB
	stats.DiskMinMB, stats.DiskMaxMB = samples[0].DiskMB, samples[0].DiskMB
	stats.CPUMin, stats.CPUMax = samples[0].CPUPercent, samples[0].CPUPercent

	var memSum, diskSum int64
	var cpuSum float64
	for _, s := range samples {
		memSum += s.MemoryMB
		diskSum += s.DiskMB
		cpuSum += s.CPUPercent
		if s.MemoryMB < stats.MemoryMinMB {
			stats.MemoryMinMB = s.MemoryMB
		}
		if s.MemoryMB > stats.MemoryMaxMB {
			stats.MemoryMaxMB = s.MemoryMB
		}
		if s.DiskMB < stats.DiskMinMB {
			stats.DiskMinMB = s.DiskMB
		}
		if s.DiskMB > stats.DiskMaxMB {
			stats.DiskMaxMB = s.DiskMB
		}
		if s.CPUPercent < stats.CPUMin {
			stats.CPUMin = s.CPUPercent
		}
		if s.CPUPercent > stats.CPUMax {
			stats.CPUMax = s.CPUPercent
		}
	}
	n := int64(len(samples))
	stats.MemoryAvgMB = memSum / n
	stats.DiskAvgMB = diskSum / n
	stats.CPUAvg = cpuSum / float64(n)
	return stats
}
