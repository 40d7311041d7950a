package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlanTemplateCachePutGet(t *testing.T) {
	c := NewPlanTemplateCache(time.Hour)
	c.Put(&TaskPlanTemplate{TemplateKey: "k1", Plan: "plan-a"})

	got := c.Get("k1")
	require.NotNil(t, got)
	require.Equal(t, "plan-a", got.Plan)
	require.False(t, got.CreatedAt.IsZero())
}

func TestPlanTemplateSuccessRate(t *testing.T) {
	tpl := &TaskPlanTemplate{UsageCount: 0}
	require.Equal(t, 0.0, tpl.SuccessRate())

	tpl.UsageCount = 4
	tpl.SuccessCount = 1
	require.InDelta(t, 0.25, tpl.SuccessRate(), 0.001)
}

func TestSimilarity(t *testing.T) {
	a := map[string]string{"lang": "go", "build": "make"}
	b := map[string]string{"lang": "go", "build": "cmake"}
	require.InDelta(t, 0.5, Similarity(a, b), 0.001)
	require.Equal(t, 0.0, Similarity(a, map[string]string{"other": "x"}))
}

func TestFindSimilarTemplatesSortedBySimilarityThenSuccess(t *testing.T) {
	c := NewPlanTemplateCache(time.Hour)
	c.Put(&TaskPlanTemplate{TemplateKey: "low", ProjectCharacteristics: map[string]string{"lang": "go"}, SimilarityThreshold: 0, UsageCount: 10, SuccessCount: 2})
	c.Put(&TaskPlanTemplate{TemplateKey: "high", ProjectCharacteristics: map[string]string{"lang": "go"}, SimilarityThreshold: 0, UsageCount: 10, SuccessCount: 9})

	results := c.FindSimilarTemplates(map[string]string{"lang": "go"}, 5)
	require.Len(t, results, 2)
	require.Equal(t, "high", results[0].Key)
}

func TestUpdateTemplateUsage(t *testing.T) {
	c := NewPlanTemplateCache(time.Hour)
	c.Put(&TaskPlanTemplate{TemplateKey: "k1"})

	c.UpdateTemplateUsage("k1", true)
	c.UpdateTemplateUsage("k1", false)

	got := c.Get("k1")
	require.Equal(t, 2, got.UsageCount)
	require.Equal(t, 1, got.SuccessCount)
	require.NotNil(t, got.LastUsed)
}

func TestCleanupLowValue(t *testing.T) {
	c := NewPlanTemplateCache(time.Hour)
	c.Put(&TaskPlanTemplate{TemplateKey: "bad", UsageCount: 5, SuccessCount: 0})
	c.Put(&TaskPlanTemplate{TemplateKey: "good", UsageCount: 5, SuccessCount: 4})

	require.Equal(t, 1, c.CleanupLowValue())
	require.Nil(t, c.Get("bad"))
	require.NotNil(t, c.Get("good"))
}

func TestEvictOnePicksWorstTemplate(t *testing.T) {
	c := NewPlanTemplateCache(time.Hour)
	c.Put(&TaskPlanTemplate{TemplateKey: "worst", UsageCount: 10, SuccessCount: 0})
	c.Put(&TaskPlanTemplate{TemplateKey: "best", UsageCount: 10, SuccessCount: 10})

	c.EvictOne()
	require.Nil(t, c.Get("worst"))
	require.NotNil(t, c.Get("best"))
}
