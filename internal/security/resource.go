package security

import "sandboxcore/internal/logging"

// ContainerBackend is the minimal surface the resource sub-mediator needs
// from a container runtime. internal/isolate's container backend
// implements it; the directory-scoped fallback has none.
type ContainerBackend interface {
	UpdateLimits(containerID string, cpuLimit float64, memoryMB int64, pids int) error
	Stats(containerID string) (cpuPercent float64, memoryMB int64, pidCount int, err error)
}

// ApplyResourceLimits issues the backend's update verb with ceilings
// derived from the policy. Failures degrade to a logged warning; they
// never propagate as an error, since a container that keeps its prior
// limits is still safe to run.
func (m *Mediator) ApplyResourceLimits(backend ContainerBackend, containerID string) {
	if backend == nil || containerID == "" {
		return
	}
	if err := backend.UpdateLimits(containerID, m.policy.MaxCPUPercent(), m.policy.MaxMemoryMB(), m.policy.MaxProcesses()); err != nil {
		logging.S().Warnw("apply resource limits failed", "container", containerID, "error", err)
	}
}

// ResourceSample is a point-in-time usage reading.
type ResourceSample struct {
	CPUPercent float64
	MemoryMB   int64
	OpenFiles  int
	Processes  int
}

// MonitorResourceUsage samples the backend for current usage. Failures
// degrade to a zero-value sample plus a logged warning.
func (m *Mediator) MonitorResourceUsage(backend ContainerBackend, containerID string) ResourceSample {
	if backend == nil || containerID == "" {
		return ResourceSample{}
	}
	cpu, mem, pids, err := backend.Stats(containerID)
	if err != nil {
		logging.S().Warnw("resource sampling failed", "container", containerID, "error", err)
		return ResourceSample{}
	}
	return ResourceSample{CPUPercent: cpu, MemoryMB: mem, Processes: pids}
}
