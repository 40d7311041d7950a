package history

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"sandboxcore/internal/journal"
)

// TaskStatus is the derived status of one task's actions.
type TaskStatus string

const (
	TaskCompleted  TaskStatus = "Completed"
	TaskError      TaskStatus = "Error"
	TaskInProgress TaskStatus = "InProgress"
)

// TaskExecutionSummary is the task roll-up from analyze_task_execution.
type TaskExecutionSummary struct {
	TaskID           string
	TaskDescription  string
	StartTime        *time.Time
	EndTime          *time.Time
	Duration         time.Duration
	Status           TaskStatus
	ActionsCount     int
	FilesModified    int
	CommandsExecuted int
	ErrorsEncountered int
	VerifiedOutcomes []VerifiedOutcome
	SuccessRate      float64
}

// SessionExecutionHistory is the session roll-up from
// generate_session_history.
type SessionExecutionHistory struct {
	SessionID           string
	Tasks               []TaskExecutionSummary
	TotalActions        int
	OverallSuccessRate  float64
	KeyAchievements     []string
	RemainingIssues     []string
	Recommendations     []string
	TimeRangeStart      *time.Time
	TimeRangeEnd        *time.Time
}

// Analyzer is a pure reader over the Action Journal.
type Analyzer struct {
	j *journal.Journal

	mu       sync.Mutex
	custom   map[string][]VerifiedOutcome // actionID -> extra outcomes
}

// New builds an Analyzer over an open journal.
func New(j *journal.Journal) *Analyzer {
	return &Analyzer{j: j, custom: make(map[string][]VerifiedOutcome)}
}

// AddVerifiedOutcome attaches a caller-supplied outcome to an action in
// addition to whatever is derived from its journal row.
func (a *Analyzer) AddVerifiedOutcome(actionID string, outcome VerifiedOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	outcome.ActionID = actionID
	a.custom[actionID] = append(a.custom[actionID], outcome)
}

func (a *Analyzer) outcomesFor(actions []journal.Action) []VerifiedOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []VerifiedOutcome
	for _, act := range actions {
		if derived := DeriveOutcome(act); derived != nil {
			out = append(out, *derived)
		}
		out = append(out, a.custom[act.ID]...)
	}
	return out
}

func successRate(outcomes []VerifiedOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	success := 0
	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			success++
		}
	}
	return float64(success) / float64(len(outcomes))
}

// AnalyzeTaskExecution builds the task roll-up for task_id (optionally
// scoped to session_id).
func (a *Analyzer) AnalyzeTaskExecution(taskID, sessionID string) (*TaskExecutionSummary, error) {
	q := journal.Query{TaskID: taskID, SessionID: sessionID}
	actions, err := a.j.GetActions(q)
	if err != nil {
		return nil, err
	}

	summary := &TaskExecutionSummary{TaskID: taskID, ActionsCount: len(actions)}

	filesSeen := make(map[string]struct{})
	hasError := false
	for _, act := range actions {
		if act.Description != "" && summary.TaskDescription == "" {
			summary.TaskDescription = act.Description
		}
		if act.FileChange != nil {
			filesSeen[act.FileChange.FilePath] = struct{}{}
		}
		if act.Command != nil {
			summary.CommandsExecuted++
		}
		if act.Error != nil {
			summary.ErrorsEncountered++
			hasError = true
		}
		ts := act.Timestamp
		if summary.StartTime == nil || ts.Before(*summary.StartTime) {
			summary.StartTime = &ts
		}
		if summary.EndTime == nil || ts.After(*summary.EndTime) {
			summary.EndTime = &ts
		}
	}
	summary.FilesModified = len(filesSeen)
	if summary.StartTime != nil && summary.EndTime != nil {
		summary.Duration = summary.EndTime.Sub(*summary.StartTime)
	}

	summary.VerifiedOutcomes = a.outcomesFor(actions)
	summary.SuccessRate = successRate(summary.VerifiedOutcomes)

	switch {
	case hasError:
		summary.Status = TaskError
	case summary.SuccessRate > 0.8:
		summary.Status = TaskCompleted
	default:
		summary.Status = TaskInProgress
	}

	return summary, nil
}

// GenerateSessionHistory builds the session roll-up for session_id,
// null-safe for sessions with no actions.
func (a *Analyzer) GenerateSessionHistory(sessionID string) (*SessionExecutionHistory, error) {
	actions, err := a.j.GetActions(journal.Query{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	hist := &SessionExecutionHistory{SessionID: sessionID, TotalActions: len(actions)}
	if len(actions) == 0 {
		return hist, nil
	}

	start, end := actions[0].Timestamp, actions[0].Timestamp
	for _, act := range actions {
		if act.Timestamp.Before(start) {
			start = act.Timestamp
		}
		if act.Timestamp.After(end) {
			end = act.Timestamp
		}
	}
	hist.TimeRangeStart, hist.TimeRangeEnd = &start, &end

	taskIDs := uniqueTaskIDs(actions)
	sort.Strings(taskIDs)

	var allOutcomes []VerifiedOutcome
	var errorCount, bigFileModCount int
	completed := 0
	for _, tid := range taskIDs {
		summary, err := a.AnalyzeTaskExecution(tid, sessionID)
		if err != nil {
			return nil, err
		}
		hist.Tasks = append(hist.Tasks, *summary)
		allOutcomes = append(allOutcomes, summary.VerifiedOutcomes...)
		errorCount += summary.ErrorsEncountered
		if summary.FilesModified >= 10 {
			bigFileModCount++
		}
		if summary.Status == TaskCompleted {
			completed++
		}
	}
	// Actions not attached to any task_id still contribute to the
	// micro-average via their own derived/custom outcomes.
	allOutcomes = append(allOutcomes, a.outcomesFor(untaskedActions(actions))...)

	hist.OverallSuccessRate = successRate(allOutcomes)

	if completed > 0 {
		hist.KeyAchievements = append(hist.KeyAchievements, taskCountMsg(completed, "task(s) completed successfully"))
	}
	if bigFileModCount > 0 {
		hist.KeyAchievements = append(hist.KeyAchievements, taskCountMsg(bigFileModCount, "task(s) with substantial file changes"))
	}
	if errorCount > 0 {
		hist.RemainingIssues = append(hist.RemainingIssues, taskCountMsg(errorCount, "error(s) recorded"))
	}
	if hist.OverallSuccessRate < 0.5 {
		hist.Recommendations = append(hist.Recommendations, "review failing commands before continuing; overall success rate is below 50%")
	}
	if errorCount > 0 {
		hist.Recommendations = append(hist.Recommendations, "inspect recorded errors for root cause before the next run")
	}

	return hist, nil
}

func uniqueTaskIDs(actions []journal.Action) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range actions {
		if a.TaskID == "" {
			continue
		}
		if _, ok := seen[a.TaskID]; !ok {
			seen[a.TaskID] = struct{}{}
			ids = append(ids, a.TaskID)
		}
	}
	return ids
}

func untaskedActions(actions []journal.Action) []journal.Action {
	var out []journal.Action
	for _, a := range actions {
		if a.TaskID == "" {
			out = append(out, a)
		}
	}
	return out
}

func taskCountMsg(n int, suffix string) string {
	return strconv.Itoa(n) + " " + suffix
}
