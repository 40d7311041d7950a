// Command sandboxcore loads the config document and wires together the
// nine sandbox-core components (policy, security mediator, action journal, cache fabric,
// isolate builder, resource governor, lifecycle manager, history
// analyzer, toolchain adapter) and runs until terminated. There is no
// RPC/CLI/web surface here: this is an init-and-wait harness with
// signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"sandboxcore/internal/cache"
	"sandboxcore/internal/config"
	"sandboxcore/internal/governor"
	"sandboxcore/internal/history"
	"sandboxcore/internal/isolate"
	"sandboxcore/internal/journal"
	"sandboxcore/internal/lifecycle"
	"sandboxcore/internal/logging"
	"sandboxcore/internal/metrics"
	"sandboxcore/internal/policy"
	"sandboxcore/internal/security"
	"sandboxcore/internal/toolchain"
)

func main() {
	logging.Init()
	defer logging.Sync()
	log := logging.S()

	configPath := flag.String("config", os.Getenv("SANDBOX_CONFIG"), "path to the sandbox core JSON config document")
	journalPath := flag.String("journal", envOr("SANDBOX_JOURNAL_PATH", "sandboxcore.db"), "action journal sqlite path")
	flag.Parse()

	log.Info("starting sandbox core")

	doc, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("load config", "error", err)
	}

	pol, err := policy.New(doc.Policy.ToPolicyOptions()...)
	if err != nil {
		log.Fatalw("construct policy", "error", err)
	}
	mediator := security.New(pol)

	j, err := journal.Open(*journalPath)
	if err != nil {
		log.Fatalw("open action journal", "error", err)
	}
	defer j.Close()

	var mirror *cache.RedisMirror
	if doc.Manager.RedisURL != "" {
		mirror, err = cache.NewRedisMirror(doc.Manager.RedisURL)
		if err != nil {
			log.Warnw("redis cache mirror unavailable, continuing without it", "error", err)
			mirror = nil
		}
	}
	budget := cache.DefaultBudget()
	if doc.Manager.CacheBudgetBytes > 0 {
		budget.MaxBytes = doc.Manager.CacheBudgetBytes
	}
	fabric := cache.New(budget, mirror)

	managerRoot := doc.Manager.ManagerRoot
	if managerRoot == "" {
		managerRoot = os.TempDir() + "/sandboxcore"
	}

	var runtime *isolate.ContainerRuntime
	if r, err := isolate.NewContainerRuntime(); err != nil {
		log.Warnw("container runtime unavailable, isolates fall back to directory-scoped mode", "error", err)
	} else {
		runtime = r
		defer runtime.Close()
	}

	builder, err := isolate.NewBuilder(managerRoot, mediator, runtime)
	if err != nil {
		log.Fatalw("construct isolate builder", "error", err)
	}

	lifecycleManager := lifecycle.New(
		builder,
		mediator,
		doc.Manager.MaxConcurrentWorkspaces,
		doc.Manager.SessionTimeout(),
		newResourceReader(runtime),
	)
	lifecycleManager.OnEvent(func(evt lifecycle.Event) {
		log.Debugw("lifecycle event", "kind", evt.Kind, "session", evt.SessionID)
		details := map[string]any{"kind": string(evt.Kind)}
		for k, v := range evt.Details {
			details[k] = v
		}
		if _, err := j.LogAction(journal.KindSystemConfig, string(evt.Kind), details, evt.SessionID, ""); err != nil {
			log.Warnw("record lifecycle event", "error", err)
		}
	})

	gov := governor.New(
		newGovernorSampler(managerRoot),
		governor.Limits{
			MaxMemoryMB:  pol.MaxMemoryMB(),
			MaxDiskMB:    pol.MaxDiskMB(),
			MaxCPUPercent: pol.MaxCPUPercent(),
		},
		doc.Manager.MonitoringInterval(),
		doc.Manager.CleanupInterval(),
	)
	for _, t := range governor.DefaultTasks(fabric, lifecycleManager, managerRoot) {
		gov.AddTask(t)
	}
	gov.OnViolation(func(sample governor.Sample, violations []string) {
		log.Warnw("resource governor violation", "violations", violations, "memory_mb", sample.MemoryMB, "cpu_percent", sample.CPUPercent)
	})

	// historyAnalyzer and toolchainAdapter are constructed here so the
	// full dependency graph is assembled in one place; the operations
	// they expose (AnalyzeTaskExecution, Invoke, ...) are driven by
	// whatever embeds this process as a library, not by this harness.
	historyAnalyzer := history.New(j)
	toolchainAdapter := toolchain.New(j, doc.Manager.CacheRoot, time.Duration(pol.MaxExecutionTimeSeconds())*time.Second)
	log.Debugw("components assembled", "history_analyzer", historyAnalyzer != nil, "toolchain_adapter", toolchainAdapter != nil)

	ctx, cancel := context.WithCancel(context.Background())
	gov.Start(ctx)

	var ready atomic.Bool
	ready.Store(true)
	log.Infow("sandbox core ready", "manager_root", managerRoot, "metrics_enabled", metrics.Enabled())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infow("received signal, starting graceful shutdown", "signal", sig.String())
	ready.Store(false)

	cancel()
	gov.Stop()
	log.Info("resource governor stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	lifecycleManager.Shutdown(shutdownCtx)
	log.Info("lifecycle manager stopped")

	log.Info("graceful shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newResourceReader adapts the container runtime's per-container stats
// into the lifecycle.ResourceReader shape, so GetWorkspaceStatus can
// report live memory/CPU when a session is container-backed.
func newResourceReader(runtime *isolate.ContainerRuntime) lifecycle.ResourceReader {
	if runtime == nil {
		return nil
	}
	return func(iso *isolate.Isolate) (int64, float64, bool) {
		if iso.Metadata.ContainerID == "" {
			return 0, 0, false
		}
		cpu, memMB, _, err := runtime.Stats(iso.Metadata.ContainerID)
		if err != nil {
			return 0, 0, false
		}
		return memMB, cpu, true
	}
}

// newGovernorSampler builds a host-level Sample from disk usage under
// managerRoot and process-level memory/CPU. There is no container-engine
// or gopsutil dependency in the example pack for host-wide sampling, so
// this is stdlib-only by necessity (DESIGN.md records the justification).
func newGovernorSampler(managerRoot string) governor.Sampler {
	return func() governor.Sample {
		diskMB := diskUsageMB(managerRoot)
		memMB, cpuPercent := processUsage()
		return governor.Sample{
			MemoryMB:   memMB,
			DiskMB:     diskMB,
			CPUPercent: cpuPercent,
			OpenFiles:  0,
			Processes:  0,
			Timestamp:  time.Now(),
		}
	}
}
