package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sandboxcore/internal/errtax"
)

// Format enumerates export_execution_history's supported formats.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

type exportOutcome struct {
	ActionID    string         `json:"action_id"`
	OutcomeType string         `json:"outcome_type"`
	Status      string         `json:"status"`
	Evidence    map[string]any `json:"evidence"`
}

type exportTask struct {
	TaskID            string          `json:"task_id"`
	TaskDescription   string          `json:"task_description"`
	Status            string          `json:"status"`
	ActionsCount      int             `json:"actions_count"`
	FilesModified     int             `json:"files_modified"`
	CommandsExecuted  int             `json:"commands_executed"`
	ErrorsEncountered int             `json:"errors_encountered"`
	SuccessRate       float64         `json:"success_rate"`
	VerifiedOutcomes  []exportOutcome `json:"verified_outcomes"`
}

type exportSession struct {
	SessionID          string       `json:"session_id"`
	TotalActions       int          `json:"total_actions"`
	OverallSuccessRate float64      `json:"overall_success_rate"`
	KeyAchievements    []string     `json:"key_achievements"`
	RemainingIssues    []string     `json:"remaining_issues"`
	Recommendations    []string     `json:"recommendations"`
	Tasks              []exportTask `json:"tasks"`
}

// ExportExecutionHistory renders a session's history in the requested
// format. Unsupported formats fail.
func (a *Analyzer) ExportExecutionHistory(sessionID string, format Format) (string, error) {
	hist, err := a.GenerateSessionHistory(sessionID)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatJSON:
		return exportJSON(hist)
	case FormatMarkdown:
		return exportMarkdown(hist), nil
	default:
		return "", fmt.Errorf("%w: export format %q", errtax.ErrNotFound, format)
	}
}

func toExportSession(hist *SessionExecutionHistory) exportSession {
	es := exportSession{
		SessionID:          hist.SessionID,
		TotalActions:       hist.TotalActions,
		OverallSuccessRate: hist.OverallSuccessRate,
		KeyAchievements:    nonNil(hist.KeyAchievements),
		RemainingIssues:    nonNil(hist.RemainingIssues),
		Recommendations:    nonNil(hist.Recommendations),
	}
	for _, t := range hist.Tasks {
		et := exportTask{
			TaskID:            t.TaskID,
			TaskDescription:   t.TaskDescription,
			Status:            string(t.Status),
			ActionsCount:      t.ActionsCount,
			FilesModified:     t.FilesModified,
			CommandsExecuted:  t.CommandsExecuted,
			ErrorsEncountered: t.ErrorsEncountered,
			SuccessRate:       t.SuccessRate,
		}
		for _, o := range t.VerifiedOutcomes {
			et.VerifiedOutcomes = append(et.VerifiedOutcomes, exportOutcome{
				ActionID: o.ActionID, OutcomeType: o.OutcomeType, Status: string(o.Status), Evidence: o.Evidence,
			})
		}
		es.Tasks = append(es.Tasks, et)
	}
	return es
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// exportJSON marshals deterministically: map keys inside Evidence come
// from encoding/json's own alphabetical key ordering, and task/outcome
// order follows GenerateSessionHistory's sorted task-id iteration, so
// repeated calls over the same rows byte-identically match (testable
// property 9).
func exportJSON(hist *SessionExecutionHistory) (string, error) {
	b, err := json.MarshalIndent(toExportSession(hist), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func exportMarkdown(hist *SessionExecutionHistory) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Session %s\n\n", hist.SessionID)
	fmt.Fprintf(&sb, "Total actions: %d\n\n", hist.TotalActions)
	fmt.Fprintf(&sb, "Overall success rate: %.2f\n\n", hist.OverallSuccessRate)

	if len(hist.KeyAchievements) > 0 {
		sb.WriteString("## Key achievements\n\n")
		for _, a := range hist.KeyAchievements {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
		sb.WriteString("\n")
	}
	if len(hist.RemainingIssues) > 0 {
		sb.WriteString("## Remaining issues\n\n")
		for _, i := range hist.RemainingIssues {
			fmt.Fprintf(&sb, "- %s\n", i)
		}
		sb.WriteString("\n")
	}
	if len(hist.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, r := range hist.Recommendations {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Tasks\n\n")
	tasks := append([]TaskExecutionSummary(nil), hist.Tasks...)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].TaskID < tasks[j].TaskID })
	for _, t := range tasks {
		fmt.Fprintf(&sb, "### %s (%s)\n\n", t.TaskID, t.Status)
		fmt.Fprintf(&sb, "- actions: %d, files modified: %d, commands: %d, errors: %d, success rate: %.2f\n\n",
			t.ActionsCount, t.FilesModified, t.CommandsExecuted, t.ErrorsEncountered, t.SuccessRate)
	}
	return sb.String()
}
