package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFabricEnforceBudgetDrainsOperationAndAnalysisCaches(t *testing.T) {
	budget := Budget{MaxBytes: 1, AnalysisTTL: time.Hour, PlanTemplateTTL: time.Hour, OperationTTL: time.Hour, MaxAnalysisEntries: 100}
	f := New(budget, nil)

	_, err := f.Ops.CacheOperationResult("build", map[string]string{"x": "1"}, fixtureArtifact{Value: "big-enough-payload"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.Analysis.CacheAnalysis("hash1", fixtureArtifact{Value: "big-enough-payload"}, nil))

	f.EnforceBudget()

	require.Equal(t, 0, f.Ops.Len())
	require.Equal(t, 0, f.Analysis.Len())
}

func TestFabricRunExpiryCleanupAggregatesAcrossCaches(t *testing.T) {
	budget := Budget{MaxBytes: 1 << 30, AnalysisTTL: time.Millisecond, OperationTTL: time.Millisecond, PlanTemplateTTL: time.Hour, MaxAnalysisEntries: 100}
	f := New(budget, nil)

	require.NoError(t, f.Analysis.CacheAnalysis("a", fixtureArtifact{}, nil))
	_, err := f.Ops.CacheOperationResult("build", nil, fixtureArtifact{}, nil, nil)
	require.NoError(t, err)
	f.Plans.Put(&TaskPlanTemplate{TemplateKey: "low-value", UsageCount: 5, SuccessCount: 0})

	time.Sleep(5 * time.Millisecond)

	removed := f.RunExpiryCleanup()
	require.Equal(t, 3, removed)
}

func TestFabricTotalBytes(t *testing.T) {
	f := New(DefaultBudget(), nil)
	require.Equal(t, int64(0), f.TotalBytes())

	require.NoError(t, f.Analysis.CacheAnalysis("a", fixtureArtifact{Value: "x"}, nil))
	require.Greater(t, f.TotalBytes(), int64(0))
}

func TestFabricInvalidateWorkspaceCaches(t *testing.T) {
	f := New(DefaultBudget(), nil)
	_, err := f.Ops.CacheOperationResult("build", map[string]string{"x": "1"}, fixtureArtifact{}, []string{"/ws/main.go"}, nil)
	require.NoError(t, err)

	f.InvalidateWorkspaceCaches("/ws")
	require.Equal(t, 0, f.Ops.Len())
}
