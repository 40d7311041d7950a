package cache

import (
	"time"

	"sandboxcore/internal/logging"
	"sandboxcore/internal/metrics"
)

// Budget configures the shared byte budget and per-cache TTL defaults.
type Budget struct {
	MaxBytes         int64
	AnalysisTTL      time.Duration
	PlanTemplateTTL  time.Duration
	OperationTTL     time.Duration
	MaxAnalysisEntries int
}

// DefaultBudget returns conservative, tunable defaults for a single
// sandbox-core process.
func DefaultBudget() Budget {
	return Budget{
		MaxBytes:           256 * 1024 * 1024,
		AnalysisTTL:        60 * time.Minute,
		PlanTemplateTTL:    120 * time.Minute,
		OperationTTL:       30 * time.Minute,
		MaxAnalysisEntries: 1000,
	}
}

// Fabric is the CacheManager enforcing the shared budget across the
// three typed caches, draining in priority order (operation → analysis →
// plan-template) on breach.
type Fabric struct {
	Analysis *AnalysisCache
	Plans    *PlanTemplateCache
	Ops      *OperationCache

	budget Budget
	mirror *RedisMirror // optional, nil when unconfigured
}

// New builds a Fabric over budget. mirror may be nil; it is stored on the
// Fabric, but the three caches do not write their entries through it.
func New(budget Budget, mirror *RedisMirror) *Fabric {
	return &Fabric{
		Analysis: NewAnalysisCache(budget.MaxAnalysisEntries, budget.AnalysisTTL),
		Plans:    NewPlanTemplateCache(budget.PlanTemplateTTL),
		Ops:      NewOperationCache(budget.OperationTTL),
		budget:   budget,
		mirror:   mirror,
	}
}

// TotalBytes sums the approximate footprint of the analysis and operation
// caches. The plan-template cache has no byte accounting and is not
// counted.
func (f *Fabric) TotalBytes() int64 {
	return int64(f.Analysis.TotalBytes() + f.Ops.TotalBytes())
}

// EnforceBudget drains caches in priority order (operation → analysis →
// plan-template) until under budget, recording the eviction count via
// metrics.
func (f *Fabric) EnforceBudget() {
	for f.TotalBytes() > f.budget.MaxBytes {
		if f.Ops.Len() > 0 {
			f.evictOneOperation()
			continue
		}
		if f.Analysis.Len() > 0 {
			f.evictOneAnalysis()
			continue
		}
		if f.Plans.Len() > 0 {
			f.Plans.EvictOne()
			continue
		}
		break
	}
}

func (f *Fabric) evictOneOperation() {
	// Each pass evicts the single least-recently-accessed entry;
	// EnforceBudget repeats the pass until the fabric is under budget.
	f.Ops.mu.Lock()
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range f.Ops.entries {
		if first || e.lastAccessed.Before(oldestTime) {
			oldestKey, oldestTime, first = k, e.lastAccessed, false
		}
	}
	if oldestKey != "" {
		delete(f.Ops.entries, oldestKey)
	}
	f.Ops.mu.Unlock()
}

func (f *Fabric) evictOneAnalysis() {
	f.Analysis.mu.Lock()
	f.Analysis.evictOneLocked()
	f.Analysis.mu.Unlock()
}

// InvalidateWorkspaceCaches drops the operation-cache entries for root.
// The analysis and plan-template caches are not touched.
func (f *Fabric) InvalidateWorkspaceCaches(root string) {
	f.Ops.InvalidateWorkspace(root)
}

// RunExpiryCleanup removes TTL-expired entries from the analysis and
// operation caches and low-value templates from the plan-template cache
// (plan templates do not expire by age), returning the total removed —
// used by the Resource Governor's expired_cache_entries task.
func (f *Fabric) RunExpiryCleanup() int {
	n := f.Analysis.EvictExpired()
	n += f.Ops.EvictExpired()
	n += f.Plans.CleanupLowValue()
	if metrics.Enabled() {
		metrics.Get().CacheEvictions.Add(float64(n))
	}
	logging.S().Debugw("cache expiry cleanup", "removed", n)
	return n
}
