// Package metrics exports the Prometheus collectors the sandbox core
// produces, covering isolate execution, the security mediator, the
// cache fabric, the resource governor, and the action journal.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds the Prometheus collectors for the sandbox core.
type Metrics struct {
	// Isolate / execution
	IsolatesActive       prometheus.Gauge
	IsolatesCreatedTotal prometheus.Counter
	IsolateBuildDuration prometheus.Histogram
	CommandsExecutedTotal *prometheus.CounterVec
	CommandDuration       *prometheus.HistogramVec

	// Security mediator
	SecurityDeniesTotal *prometheus.CounterVec

	// Cache fabric
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheEvictions   prometheus.Counter
	CacheBytesInUse  prometheus.Gauge

	// Resource governor
	ResourceMemoryMB   prometheus.Gauge
	ResourceCPUPercent prometheus.Gauge
	CleanupTasksRun    *prometheus.CounterVec

	// Action journal
	JournalActionsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// Get returns the process-wide Metrics singleton, constructing it (and
// its own registry, so the embedding caller controls where it's
// exposed) on first use.
func Get() *Metrics {
	once.Do(func() {
		reg := prometheus.NewRegistry()
		factory := promauto.With(reg)
		instance = &Metrics{
			registry: reg,
			IsolatesActive: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sandbox_isolates_active", Help: "Currently active isolates.",
			}),
			IsolatesCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "sandbox_isolates_created_total", Help: "Isolates created.",
			}),
			IsolateBuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
				Name: "sandbox_isolate_build_duration_seconds", Help: "Isolate creation latency.",
			}),
			CommandsExecutedTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sandbox_commands_executed_total", Help: "Commands executed inside isolates.",
			}, []string{"exit_status"}),
			CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
				Name: "sandbox_command_duration_seconds", Help: "Command execution latency.",
			}, []string{"language"}),
			SecurityDeniesTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sandbox_security_denies_total", Help: "Operations denied by the security mediator.",
			}, []string{"kind"}),
			CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sandbox_cache_hits_total", Help: "Cache hits.",
			}, []string{"cache"}),
			CacheMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sandbox_cache_misses_total", Help: "Cache misses.",
			}, []string{"cache"}),
			CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
				Name: "sandbox_cache_evictions_total", Help: "Cache entries evicted.",
			}),
			CacheBytesInUse: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sandbox_cache_bytes_in_use", Help: "Approximate cache fabric footprint.",
			}),
			ResourceMemoryMB: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sandbox_resource_memory_mb", Help: "Most recent sampled memory usage.",
			}),
			ResourceCPUPercent: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sandbox_resource_cpu_percent", Help: "Most recent sampled CPU usage.",
			}),
			CleanupTasksRun: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sandbox_cleanup_tasks_run_total", Help: "Resource governor cleanup task runs.",
			}, []string{"task"}),
			JournalActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sandbox_journal_actions_total", Help: "Actions appended to the journal.",
			}, []string{"kind"}),
		}
	})
	return instance
}

// Enabled reports whether metrics have been initialized. Callers on a
// hot path that want to skip Get()'s allocation can check this first.
func Enabled() bool {
	return instance != nil
}

// Registry returns the registry backing the singleton, for the
// embedding caller to mount on an HTTP handler if desired.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
