package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalAppendOnly(t *testing.T) {
	j := openTestJournal(t)

	id, err := j.LogAction(KindSystemConfig, "boot", nil, "s1", "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	actions, err := j.GetActions(Query{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, id, actions[0].ID)
}

func TestFileWriteThenReadBack(t *testing.T) {
	j := openTestJournal(t)

	after := "hi"
	id, err := j.LogFileChange(ChangeCreate, "hello.txt", nil, &after, "S", "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	actions, err := j.GetActions(Query{SessionID: "S"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, KindFileCreate, actions[0].Kind)
	require.NotNil(t, actions[0].FileChange)
	require.Equal(t, "hi", *actions[0].FileChange.After)
}

func TestClearLogsRequiresFilter(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.ClearLogs("", nil)
	require.Error(t, err)
}

func TestClearLogsCascades(t *testing.T) {
	j := openTestJournal(t)

	after := "hi"
	_, err := j.LogFileChange(ChangeCreate, "a.txt", nil, &after, "S", "")
	require.NoError(t, err)

	deleted, err := j.ClearLogs("S", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	actions, err := j.GetActions(Query{SessionID: "S"})
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestGetLogSummaryEmpty(t *testing.T) {
	j := openTestJournal(t)
	s, err := j.GetLogSummary("nope", "")
	require.NoError(t, err)
	require.Equal(t, int64(0), s.TotalActions)
	require.Nil(t, s.TimeRangeStart)
}

func TestExportFormats(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.LogCommand("echo hi", "/tmp", "hi\n", "", 0, time.Millisecond, "S", "")
	require.NoError(t, err)

	jsonOut, err := j.Export(Query{SessionID: "S"}, FormatJSON)
	require.NoError(t, err)
	require.Contains(t, jsonOut, "echo hi")

	csvOut, err := j.Export(Query{SessionID: "S"}, FormatCSV)
	require.NoError(t, err)
	require.Contains(t, csvOut, "echo hi")

	_, err = j.Export(Query{SessionID: "S"}, "xml")
	require.Error(t, err)
}
