package journal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sandboxcore/internal/logging"
)

// Journal is the append-only indexed store. Writers serialize through an
// internal mutex (the gorm/sqlite driver is not safe for unguarded
// concurrent writes); readers see a prefix-consistent view since every
// write commits before returning.
type Journal struct {
	db *gorm.DB
	mu sync.Mutex
}

// Open creates or attaches to a sqlite-backed journal at path (use
// "file::memory:?cache=shared" for an ephemeral in-process journal).
func Open(path string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal store: %w", err)
	}
	if err := db.AutoMigrate(&Action{}, &FileChange{}, &Command{}, &Error{}); err != nil {
		return nil, fmt.Errorf("migrate journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func encodeDetails(details map[string]any) string {
	if details == nil {
		return "{}"
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// LogAction appends a bare header action and returns its fresh id.
func (j *Journal) LogAction(kind Kind, description string, details map[string]any, sessionID, taskID string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	a := &Action{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Kind:        kind,
		Description: description,
		Details:     encodeDetails(details),
		SessionID:   sessionID,
		TaskID:      taskID,
	}
	if err := j.db.Create(a).Error; err != nil {
		logging.S().Errorw("journal append failed", "error", err)
		return "", fmt.Errorf("append action: %w", err)
	}
	return a.ID, nil
}

// LogFileChange atomically writes the header plus the file_changes side
// row within a single transaction.
func (j *Journal) LogFileChange(changeType ChangeType, filePath string, before, after *string, sessionID, taskID string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	kind := KindFileModify
	switch changeType {
	case ChangeCreate:
		kind = KindFileCreate
	case ChangeDelete:
		kind = KindFileDelete
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	err := j.db.Transaction(func(tx *gorm.DB) error {
		a := &Action{
			ID:          id,
			Timestamp:   now,
			Kind:        kind,
			Description: fmt.Sprintf("file %s: %s", changeType, filePath),
			Details:     "{}",
			SessionID:   sessionID,
			TaskID:      taskID,
		}
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		fc := &FileChange{
			ActionID:   id,
			FilePath:   filePath,
			ChangeType: changeType,
			Before:     before,
			After:      after,
			Timestamp:  now,
		}
		return tx.Create(fc).Error
	})
	if err != nil {
		logging.S().Errorw("journal file-change append failed", "error", err)
		return "", fmt.Errorf("append file change: %w", err)
	}
	return id, nil
}

// LogCommand atomically writes the header plus the commands side row.
func (j *Journal) LogCommand(commandLine, workingDirectory, stdout, stderr string, exitCode int, duration time.Duration, sessionID, taskID string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	err := j.db.Transaction(func(tx *gorm.DB) error {
		a := &Action{
			ID:          id,
			Timestamp:   now,
			Kind:        KindCommandExecute,
			Description: commandLine,
			Details:     "{}",
			SessionID:   sessionID,
			TaskID:      taskID,
		}
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		c := &Command{
			ActionID:         id,
			CommandLine:      commandLine,
			WorkingDirectory: workingDirectory,
			Stdout:           stdout,
			Stderr:           stderr,
			ExitCode:         exitCode,
			DurationSeconds:  duration.Seconds(),
			Timestamp:        now,
		}
		return tx.Create(c).Error
	})
	if err != nil {
		logging.S().Errorw("journal command append failed", "error", err)
		return "", fmt.Errorf("append command: %w", err)
	}
	return id, nil
}

// LogError atomically writes the header plus the errors side row. Per
// §7, a security denial always writes a journal row of this kind before
// refusing the originating operation.
func (j *Journal) LogError(errorType, message string, stackTrace *string, context map[string]any, sessionID, taskID string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	err := j.db.Transaction(func(tx *gorm.DB) error {
		a := &Action{
			ID:          id,
			Timestamp:   now,
			Kind:        KindTaskError,
			Description: message,
			Details:     "{}",
			SessionID:   sessionID,
			TaskID:      taskID,
		}
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		e := &Error{
			ActionID:   id,
			ErrorType:  errorType,
			Message:    message,
			StackTrace: stackTrace,
			Context:    encodeDetails(context),
			Timestamp:  now,
		}
		return tx.Create(e).Error
	})
	if err != nil {
		// A failure to persist the error row is logged and returned with
		// an empty id; the caller still holds the original denial/error
		// it was reporting.
		logging.S().Errorw("journal error append failed", "error", err)
		return "", fmt.Errorf("append error: %w", err)
	}
	return id, nil
}

func (j *Journal) applyQuery(tx *gorm.DB, q Query) *gorm.DB {
	if q.SessionID != "" {
		tx = tx.Where("session_id = ?", q.SessionID)
	}
	if q.TaskID != "" {
		tx = tx.Where("task_id = ?", q.TaskID)
	}
	if len(q.Kinds) > 0 {
		tx = tx.Where("kind IN ?", q.Kinds)
	}
	if q.StartTime != nil {
		tx = tx.Where("timestamp >= ?", *q.StartTime)
	}
	if q.EndTime != nil {
		tx = tx.Where("timestamp <= ?", *q.EndTime)
	}
	return tx
}

// GetActions returns actions matching q, ordered by timestamp ascending,
// with side-table data inlined.
func (j *Journal) GetActions(q Query) ([]Action, error) {
	tx := j.applyQuery(j.db.Model(&Action{}), q).
		Preload("FileChange").Preload("Command").Preload("Error").
		Order("timestamp ASC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	var actions []Action
	if err := tx.Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	return actions, nil
}

// GetAction returns a single action by id, or nil if not found.
func (j *Journal) GetAction(id string) (*Action, error) {
	var a Action
	err := j.db.Preload("FileChange").Preload("Command").Preload("Error").
		First(&a, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// GetLogSummary computes aggregate counts pushed into the store rather
// than materializing every matching row.
func (j *Journal) GetLogSummary(sessionID, taskID string) (*Summary, error) {
	q := Query{SessionID: sessionID, TaskID: taskID}

	var total int64
	if err := j.applyQuery(j.db.Model(&Action{}), q).Count(&total).Error; err != nil {
		return nil, err
	}

	byKind := map[Kind]int64{}
	var rows []struct {
		Kind  Kind
		Count int64
	}
	if err := j.applyQuery(j.db.Model(&Action{}), q).
		Select("kind, count(*) as count").Group("kind").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		byKind[r.Kind] = r.Count
	}

	var filesModified int64
	j.applyQuery(j.db.Model(&Action{}), q).
		Where("kind IN ?", []Kind{KindFileCreate, KindFileModify, KindFileDelete}).
		Count(&filesModified)

	var commandsExecuted int64
	j.applyQuery(j.db.Model(&Action{}), q).
		Where("kind = ?", KindCommandExecute).Count(&commandsExecuted)

	var errorsEncountered int64
	j.applyQuery(j.db.Model(&Action{}), q).
		Where("kind = ?", KindTaskError).Count(&errorsEncountered)

	summary := &Summary{
		TotalActions:      total,
		ActionsByKind:     byKind,
		FilesModified:     filesModified,
		CommandsExecuted:  commandsExecuted,
		ErrorsEncountered: errorsEncountered,
	}

	if total > 0 {
		var first, last Action
		if err := j.applyQuery(j.db.Model(&Action{}), q).Order("timestamp ASC").Limit(1).Find(&first).Error; err == nil {
			t := first.Timestamp
			summary.TimeRangeStart = &t
		}
		if err := j.applyQuery(j.db.Model(&Action{}), q).Order("timestamp DESC").Limit(1).Find(&last).Error; err == nil {
			t := last.Timestamp
			summary.TimeRangeEnd = &t
		}
	}

	return summary, nil
}

// ClearLogs deletes actions (and cascades their side-rows explicitly,
// never relying on FK pragmas) matching sessionID and/or beforeTs. When
// both are zero-valued the call is refused.
func (j *Journal) ClearLogs(sessionID string, beforeTs *time.Time) (int64, error) {
	if sessionID == "" && beforeTs == nil {
		return 0, fmt.Errorf("clear_logs requires session_id or before_ts")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var deleted int64
	err := j.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&Action{})
		if sessionID != "" {
			q = q.Where("session_id = ?", sessionID)
		}
		if beforeTs != nil {
			q = q.Where("timestamp < ?", *beforeTs)
		}
		var ids []string
		if err := q.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("action_id IN ?", ids).Delete(&FileChange{}).Error; err != nil {
			return err
		}
		if err := tx.Where("action_id IN ?", ids).Delete(&Command{}).Error; err != nil {
			return err
		}
		if err := tx.Where("action_id IN ?", ids).Delete(&Error{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&Action{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear logs: %w", err)
	}
	return deleted, nil
}
