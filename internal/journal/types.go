// Package journal implements the append-only indexed Action Journal (C3):
// a GORM-backed store over actions plus three side-tables, with filtered
// query, summary aggregation, export, and explicit cascading retention.
package journal

import "time"

// Kind enumerates the tagged-union action kinds the journal accepts.
type Kind string

const (
	KindCommandExecute   Kind = "command_execute"
	KindFileCreate       Kind = "file_create"
	KindFileModify       Kind = "file_modify"
	KindFileDelete       Kind = "file_delete"
	KindPackageInstall   Kind = "package_install"
	KindEnvironmentSetup Kind = "environment_setup"
	KindSessionCleanup   Kind = "session_cleanup"
	KindTaskStart        Kind = "task_start"
	KindTaskComplete     Kind = "task_complete"
	KindTaskError        Kind = "task_error"
	KindSystemConfig     Kind = "system_config"
	KindLifecycleEvent   Kind = "lifecycle_event"
)

// ChangeType enumerates FileChange.change_type.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// Action is the common header row. GORM table name: actions.
type Action struct {
	ID          string `gorm:"primaryKey"`
	Timestamp   time.Time `gorm:"index"`
	Kind        Kind   `gorm:"index"`
	Description string
	Details     string `gorm:"type:text"` // JSON-encoded map[string]any
	SessionID   string `gorm:"index"`
	TaskID      string `gorm:"index"`

	FileChange *FileChange `gorm:"foreignKey:ActionID;references:ID"`
	Command    *Command    `gorm:"foreignKey:ActionID;references:ID"`
	Error      *Error      `gorm:"foreignKey:ActionID;references:ID"`
}

// FileChange is a side-table row pointing back to its owning action.
type FileChange struct {
	ActionID   string `gorm:"primaryKey"`
	FilePath   string
	ChangeType ChangeType
	Before     *string `gorm:"type:text"`
	After      *string `gorm:"type:text"`
	Timestamp  time.Time
}

// Command is a side-table row pointing back to its owning action.
type Command struct {
	ActionID         string `gorm:"primaryKey"`
	CommandLine      string
	WorkingDirectory string
	Stdout           string `gorm:"type:text"`
	Stderr           string `gorm:"type:text"`
	ExitCode         int
	DurationSeconds  float64
	Timestamp        time.Time
}

// Error is a side-table row pointing back to its owning action.
type Error struct {
	ActionID   string `gorm:"primaryKey"`
	ErrorType  string
	Message    string
	StackTrace *string `gorm:"type:text"`
	Context    string  `gorm:"type:text"` // JSON-encoded map[string]any
	Timestamp  time.Time
}

// Query filters get_actions / export / summary reads.
type Query struct {
	SessionID string
	TaskID    string
	Kinds     []Kind
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Summary is the aggregated view returned by GetLogSummary.
type Summary struct {
	TotalActions     int64
	ActionsByKind    map[Kind]int64
	FilesModified    int64
	CommandsExecuted int64
	ErrorsEncountered int64
	TimeRangeStart   *time.Time
	TimeRangeEnd     *time.Time
}
