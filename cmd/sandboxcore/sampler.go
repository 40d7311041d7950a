package main

import (
	"os"
	"path/filepath"
	"runtime"
)

// diskUsageMB walks root and sums regular file sizes. Best-effort: a
// walk error on any entry just stops counting that subtree rather than
// failing the whole sample.
func diskUsageMB(root string) int64 {
	var total int64
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total / (1024 * 1024)
}

// processUsage reports the memory this process has obtained from the OS
// (runtime MemStats.Sys) as a memory-budget proxy and goroutine count as a coarse CPU-load proxy, since the
// example pack carries no host-wide resource-sampling library (container
// stats cover per-container usage only, via isolate.ContainerRuntime.Stats).
func processUsage() (memMB int64, cpuPercent float64) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	memMB = int64(mem.Sys / (1024 * 1024))
	cpuPercent = float64(runtime.NumGoroutine())
	return memMB, cpuPercent
}
