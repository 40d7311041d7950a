package cache

import (
	"sort"
	"sync"
	"time"
)

// TaskPlanTemplate is a cached build/test plan plus usage statistics.
type TaskPlanTemplate struct {
	TemplateKey           string
	Plan                  any
	ProjectCharacteristics map[string]string
	UsageCount            int
	SuccessCount          int
	SimilarityThreshold   float64
	CreatedAt             time.Time
	LastUsed              *time.Time
}

// SuccessRate returns success_count / usage_count, 0 when unused.
func (t *TaskPlanTemplate) SuccessRate() float64 {
	if t.UsageCount == 0 {
		return 0
	}
	return float64(t.SuccessCount) / float64(t.UsageCount)
}

// PlanTemplateCache is keyed by a caller-chosen template key.
type PlanTemplateCache struct {
	mu        sync.Mutex
	templates map[string]*TaskPlanTemplate
	ttl       time.Duration
}

// NewPlanTemplateCache builds a plan-template cache recording the given
// TTL (120 min if unset). Templates are not expired by age; they leave
// the cache through EvictOne and CleanupLowValue.
func NewPlanTemplateCache(ttl time.Duration) *PlanTemplateCache {
	if ttl <= 0 {
		ttl = 120 * time.Minute
	}
	return &PlanTemplateCache{templates: make(map[string]*TaskPlanTemplate), ttl: ttl}
}

// Put stores or replaces a template.
func (c *PlanTemplateCache) Put(t *TaskPlanTemplate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	c.templates[t.TemplateKey] = t
}

// Get returns the template for key, or nil if absent.
func (c *PlanTemplateCache) Get(key string) *TaskPlanTemplate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.templates[key]
}

// Similarity is (matching keys) / (common keys), 0 if no common keys.
func Similarity(a, b map[string]string) float64 {
	common := 0
	matching := 0
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		common++
		if av == bv {
			matching++
		}
	}
	if common == 0 {
		return 0
	}
	return float64(matching) / float64(common)
}

// SimilarTemplate is one candidate returned by FindSimilarTemplates.
type SimilarTemplate struct {
	Key        string
	Plan       any
	Similarity float64
}

// FindSimilarTemplates returns candidates with similarity ≥ each
// template's own threshold, sorted by (similarity desc, success rate
// desc), top-k.
func (c *PlanTemplateCache) FindSimilarTemplates(characteristics map[string]string, k int) []SimilarTemplate {
	c.mu.Lock()
	defer c.mu.Unlock()

	var candidates []SimilarTemplate
	var successRates []float64
	for _, t := range c.templates {
		sim := Similarity(characteristics, t.ProjectCharacteristics)
		if sim >= t.SimilarityThreshold {
			candidates = append(candidates, SimilarTemplate{Key: t.TemplateKey, Plan: t.Plan, Similarity: sim})
			successRates = append(successRates, t.SuccessRate())
		}
	}

	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		if candidates[a].Similarity != candidates[b].Similarity {
			return candidates[a].Similarity > candidates[b].Similarity
		}
		return successRates[a] > successRates[b]
	})

	sorted := make([]SimilarTemplate, 0, len(candidates))
	for _, i := range idx {
		sorted = append(sorted, candidates[i])
	}
	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// UpdateTemplateUsage increments usage and, on success, the success
// counter.
func (c *PlanTemplateCache) UpdateTemplateUsage(key string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.templates[key]
	if !ok {
		return
	}
	t.UsageCount++
	if success {
		t.SuccessCount++
	}
	now := time.Now()
	t.LastUsed = &now
}

// EvictOne removes the template with the lowest
// (success_rate, usage_count, last_used) lexicographically, if any.
func (c *PlanTemplateCache) EvictOne() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var worstKey string
	var worst *TaskPlanTemplate
	for k, t := range c.templates {
		if worst == nil || isWorse(t, worst) {
			worstKey = k
			worst = t
		}
	}
	if worstKey != "" {
		delete(c.templates, worstKey)
	}
}

func isWorse(a, b *TaskPlanTemplate) bool {
	if a.SuccessRate() != b.SuccessRate() {
		return a.SuccessRate() < b.SuccessRate()
	}
	if a.UsageCount != b.UsageCount {
		return a.UsageCount < b.UsageCount
	}
	at, bt := time.Time{}, time.Time{}
	if a.LastUsed != nil {
		at = *a.LastUsed
	}
	if b.LastUsed != nil {
		bt = *b.LastUsed
	}
	return at.Before(bt)
}

// CleanupLowValue removes templates with usage_count ≥ 5 and
// success_rate < 0.2: plans that keep getting tried and keep failing.
func (c *PlanTemplateCache) CleanupLowValue() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, t := range c.templates {
		if t.UsageCount >= 5 && t.SuccessRate() < 0.2 {
			delete(c.templates, k)
			n++
		}
	}
	return n
}

// Len reports the current template count.
func (c *PlanTemplateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.templates)
}
