// Package history implements the History Analyzer (C8): a pure reader
// over the Action Journal that derives verified outcomes per action and
// rolls them up into task and session summaries.
package history

import (
	"time"

	"sandboxcore/internal/journal"
)

// OutcomeStatus is the verdict attached to one derived outcome.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "Success"
	StatusFailure OutcomeStatus = "Failure"
	StatusPartial OutcomeStatus = "Partial"
)

// VerifiedOutcome is the derived or caller-attached judgement for one
// action.
type VerifiedOutcome struct {
	ActionID    string
	OutcomeType string
	Status      OutcomeStatus
	Evidence    map[string]any
	Timestamp   time.Time
}

// DeriveOutcome computes the verified outcome for one journal action from
// its side-record. Actions with no side-record recognized here (e.g.
// bare lifecycle/system-config rows) return nil.
func DeriveOutcome(a journal.Action) *VerifiedOutcome {
	switch {
	case a.FileChange != nil:
		return deriveFileOutcome(a)
	case a.Command != nil:
		return deriveCommandOutcome(a)
	case a.Error != nil:
		return deriveErrorOutcome(a)
	default:
		return nil
	}
}

func deriveFileOutcome(a journal.Action) *VerifiedOutcome {
	fc := a.FileChange
	var outcomeType string
	success := false

	switch fc.ChangeType {
	case journal.ChangeCreate:
		outcomeType = "file_created"
		success = fc.After != nil && *fc.After != ""
	case journal.ChangeModify:
		outcomeType = "file_modified"
		success = fc.After != nil && fc.Before != nil && *fc.After != *fc.Before
	case journal.ChangeDelete:
		outcomeType = "file_deleted"
		success = true
	}

	status := StatusFailure
	if success {
		status = StatusSuccess
	}

	evidence := map[string]any{
		"path": fc.FilePath,
	}
	if fc.Before != nil {
		evidence["before_bytes"] = len(*fc.Before)
	}
	if fc.After != nil {
		evidence["after_bytes"] = len(*fc.After)
	}
	evidence["timestamp"] = fc.Timestamp

	return &VerifiedOutcome{
		ActionID:    a.ID,
		OutcomeType: outcomeType,
		Status:      status,
		Evidence:    evidence,
		Timestamp:   fc.Timestamp,
	}
}

func deriveCommandOutcome(a journal.Action) *VerifiedOutcome {
	cmd := a.Command
	status := StatusFailure
	if cmd.ExitCode == 0 {
		status = StatusSuccess
	}

	return &VerifiedOutcome{
		ActionID:    a.ID,
		OutcomeType: "command_executed",
		Status:      status,
		Evidence: map[string]any{
			"command":           cmd.CommandLine,
			"exit_code":         cmd.ExitCode,
			"duration_seconds":  cmd.DurationSeconds,
			"stdout_len":        len(cmd.Stdout),
			"stderr_len":        len(cmd.Stderr),
			"working_directory": cmd.WorkingDirectory,
		},
		Timestamp: cmd.Timestamp,
	}
}

func deriveErrorOutcome(a journal.Action) *VerifiedOutcome {
	e := a.Error
	return &VerifiedOutcome{
		ActionID:    a.ID,
		OutcomeType: "error_occurred",
		Status:      StatusFailure,
		Evidence: map[string]any{
			"error_type":       e.ErrorType,
			"message":          e.Message,
			"has_stack_trace":  e.StackTrace != nil,
			"context_key_count": contextKeyCount(e.Context),
		},
		Timestamp: e.Timestamp,
	}
}
