package isolate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types/container"

	"github.com/stretchr/testify/require"
)

func TestWriteSeccompProfileWritesValidJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := writeSeccompProfile(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "seccomp.json"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var profile map[string]any
	require.NoError(t, json.Unmarshal(b, &profile))
	require.Equal(t, "SCMP_ACT_ERRNO", profile["defaultAction"])
}

func TestComputeCPUPercentHandlesZeroDeltas(t *testing.T) {
	s := &container.StatsResponse{}
	require.Equal(t, 0.0, computeCPUPercent(s))
}

func TestComputeCPUPercentComputesRatio(t *testing.T) {
	s := &container.StatsResponse{}
	s.CPUStats.CPUUsage.TotalUsage = 200
	s.PreCPUStats.CPUUsage.TotalUsage = 100
	s.CPUStats.SystemUsage = 1000
	s.PreCPUStats.SystemUsage = 500
	s.CPUStats.CPUUsage.PercpuUsage = []uint64{1, 2}

	pct := computeCPUPercent(s)
	require.InDelta(t, 40.0, pct, 0.001)
}
