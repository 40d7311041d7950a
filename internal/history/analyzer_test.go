package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sandboxcore/internal/journal"
)

func openTestJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestZeroActionSessionBoundary(t *testing.T) {
	j := openTestJournal(t)
	a := New(j)

	hist, err := a.GenerateSessionHistory("nope")
	require.NoError(t, err)
	require.Equal(t, 0, hist.TotalActions)
	require.Equal(t, 0.0, hist.OverallSuccessRate)
	require.Nil(t, hist.TimeRangeStart)
	require.Nil(t, hist.TimeRangeEnd)
}

func TestCommandOutcomeSuccess(t *testing.T) {
	j := openTestJournal(t)
	a := New(j)

	_, err := j.LogCommand("echo hi", "/ws", "hi\n", "", 0, 10*time.Millisecond, "S", "T")
	require.NoError(t, err)

	summary, err := a.AnalyzeTaskExecution("T", "S")
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, summary.Status)
	require.Equal(t, 1.0, summary.SuccessRate)
	require.Len(t, summary.VerifiedOutcomes, 1)
	require.Equal(t, StatusSuccess, summary.VerifiedOutcomes[0].Status)
}

func TestCommandOutcomeFailureMarksTaskError(t *testing.T) {
	j := openTestJournal(t)
	a := New(j)

	_, err := j.LogCommand("false", "/ws", "", "boom", 1, 10*time.Millisecond, "S", "T")
	require.NoError(t, err)
	_, err = j.LogError("RuntimeError", "boom", nil, nil, "S", "T")
	require.NoError(t, err)

	summary, err := a.AnalyzeTaskExecution("T", "S")
	require.NoError(t, err)
	require.Equal(t, TaskError, summary.Status)
	require.Equal(t, 1, summary.ErrorsEncountered)
}

func TestFileCreateOutcome(t *testing.T) {
	j := openTestJournal(t)
	a := New(j)

	after := "contents"
	_, err := j.LogFileChange(journal.ChangeCreate, "a.txt", nil, &after, "S", "T")
	require.NoError(t, err)

	summary, err := a.AnalyzeTaskExecution("T", "S")
	require.NoError(t, err)
	require.Equal(t, 1, summary.FilesModified)
	require.Equal(t, StatusSuccess, summary.VerifiedOutcomes[0].Status)
	require.Equal(t, "file_created", summary.VerifiedOutcomes[0].OutcomeType)
}

func TestSessionHistoryDeterministicExport(t *testing.T) {
	j := openTestJournal(t)
	a := New(j)

	_, err := j.LogCommand("go test ./...", "/ws", "ok", "", 0, 1500*time.Millisecond, "S", "T1")
	require.NoError(t, err)
	after := "x"
	_, err = j.LogFileChange(journal.ChangeCreate, "out.txt", nil, &after, "S", "T2")
	require.NoError(t, err)

	out1, err := a.ExportExecutionHistory("S", FormatJSON)
	require.NoError(t, err)
	out2, err := a.ExportExecutionHistory("S", FormatJSON)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

func TestExportUnsupportedFormat(t *testing.T) {
	j := openTestJournal(t)
	a := New(j)
	_, err := a.ExportExecutionHistory("S", Format("yaml"))
	require.Error(t, err)
}

func TestAddVerifiedOutcomeCustom(t *testing.T) {
	j := openTestJournal(t)
	a := New(j)

	id, err := j.LogAction(journal.KindSystemConfig, "configured", nil, "S", "T")
	require.NoError(t, err)

	a.AddVerifiedOutcome(id, VerifiedOutcome{OutcomeType: "custom_check", Status: StatusSuccess})

	summary, err := a.AnalyzeTaskExecution("T", "S")
	require.NoError(t, err)
	require.Len(t, summary.VerifiedOutcomes, 1)
	require.Equal(t, "custom_check", summary.VerifiedOutcomes[0].OutcomeType)
}
