package journal

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
)

// Format enumerates export output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

type exportRecord struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Kind        Kind    `json:"kind"`
	Description string  `json:"description"`
	SessionID   string  `json:"session_id,omitempty"`
	TaskID      string  `json:"task_id,omitempty"`
	FileChange  *FileChange `json:"file_change,omitempty"`
	Command     *Command    `json:"command,omitempty"`
	Error       *Error      `json:"error,omitempty"`
}

// Export renders actions matching q in the requested format.
func (j *Journal) Export(q Query, format Format) (string, error) {
	actions, err := j.GetActions(q)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatJSON:
		return exportJSON(actions)
	case FormatCSV:
		return exportCSV(actions)
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func exportJSON(actions []Action) (string, error) {
	records := make([]exportRecord, 0, len(actions))
	for _, a := range actions {
		records = append(records, exportRecord{
			ID:          a.ID,
			Timestamp:   a.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Kind:        a.Kind,
			Description: a.Description,
			SessionID:   a.SessionID,
			TaskID:      a.TaskID,
			FileChange:  a.FileChange,
			Command:     a.Command,
			Error:       a.Error,
		})
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var csvHeader = []string{
	"id", "timestamp", "kind", "description", "session_id", "task_id",
	"file_path", "change_type", "command", "exit_code", "error_type", "error_message",
}

func exportCSV(actions []Action) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, a := range actions {
		row := []string{
			a.ID,
			a.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			string(a.Kind),
			a.Description,
			a.SessionID,
			a.TaskID,
			"", "", "", "", "", "",
		}
		if a.FileChange != nil {
			row[6] = a.FileChange.FilePath
			row[7] = string(a.FileChange.ChangeType)
		}
		if a.Command != nil {
			row[8] = a.Command.CommandLine
			row[9] = strconv.Itoa(a.Command.ExitCode)
		}
		if a.Error != nil {
			row[10] = a.Error.ErrorType
			row[11] = a.Error.Message
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
