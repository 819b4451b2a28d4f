package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the SQLite history database. It implements Sink.
type Store struct {
	db     *sql.DB
	dbPath string
}

var _ Sink = (*Store)(nil)

// NewStore opens (creating if necessary) the history database at dbPath
// and brings its schema up to date. Pass ":memory:" for an ephemeral
// database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must come first so the remaining pragmas wait on
	// locks instead of failing during concurrent initialization.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry
// on "database is locked" errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordTask inserts a terminal task outcome.
func (s *Store) RecordTask(ctx context.Context, rec *TaskRecord) error {
	query := `INSERT INTO task_records
		(run_id, plan_name, task_id, title, category, agent_id, status, failure_reason, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.PlanName,
		rec.TaskID,
		rec.Title,
		rec.Category,
		rec.AgentID,
		rec.Status,
		rec.FailureReason,
		rec.DurationSecs,
	)
	if err != nil {
		return fmt.Errorf("insert task record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	rec.ID = id

	return nil
}

// RecordFileChange inserts an applied file operation.
func (s *Store) RecordFileChange(ctx context.Context, rec *FileChangeRecord) error {
	query := `INSERT INTO file_changes
		(run_id, path, task_id, agent_id, operation, version, summary, conflicts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.Path,
		rec.TaskID,
		rec.AgentID,
		rec.Operation,
		rec.Version,
		rec.Summary,
		rec.Conflicts,
	)
	if err != nil {
		return fmt.Errorf("insert file change: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	rec.ID = id

	return nil
}

// RecordRun inserts the summary row for a finished run.
func (s *Store) RecordRun(ctx context.Context, rec *RunRecord) error {
	query := `INSERT INTO run_records
		(run_id, plan_name, total_tasks, completed, failed, files_written, conflicts_resolved, handoffs, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.PlanName,
		rec.TotalTasks,
		rec.Completed,
		rec.Failed,
		rec.FilesWritten,
		rec.ConflictsResolved,
		rec.Handoffs,
		rec.DurationSecs,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	rec.ID = id

	return nil
}

// TasksForRun retrieves a run's task records in insertion order.
func (s *Store) TasksForRun(ctx context.Context, runID string) ([]*TaskRecord, error) {
	query := `SELECT id, run_id, plan_name, task_id, title, category, agent_id, status, failure_reason, duration_seconds, timestamp
		FROM task_records
		WHERE run_id = ?
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query task records: %w", err)
	}
	defer rows.Close()

	var records []*TaskRecord
	for rows.Next() {
		rec := &TaskRecord{}
		var planName, title, category, agentID, failureReason sql.NullString
		var durationSecs sql.NullInt64
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&planName,
			&rec.TaskID,
			&title,
			&category,
			&agentID,
			&rec.Status,
			&failureReason,
			&durationSecs,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan task record: %w", err)
		}

		if planName.Valid {
			rec.PlanName = planName.String
		}
		if title.Valid {
			rec.Title = title.String
		}
		if category.Valid {
			rec.Category = category.String
		}
		if agentID.Valid {
			rec.AgentID = agentID.String
		}
		if failureReason.Valid {
			rec.FailureReason = failureReason.String
		}
		if durationSecs.Valid {
			rec.DurationSecs = durationSecs.Int64
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task records: %w", err)
	}

	return records, nil
}

// FileChangesForPath retrieves every recorded change to a file across
// all runs, most recent first.
func (s *Store) FileChangesForPath(ctx context.Context, path string) ([]*FileChangeRecord, error) {
	return s.queryFileChanges(ctx, `WHERE path = ? ORDER BY id DESC`, path)
}

// FileChangesForRun retrieves a run's file changes in insertion order.
func (s *Store) FileChangesForRun(ctx context.Context, runID string) ([]*FileChangeRecord, error) {
	return s.queryFileChanges(ctx, `WHERE run_id = ? ORDER BY id ASC`, runID)
}

func (s *Store) queryFileChanges(ctx context.Context, filter string, arg interface{}) ([]*FileChangeRecord, error) {
	query := `SELECT id, run_id, path, task_id, agent_id, operation, version, summary, conflicts, timestamp
		FROM file_changes ` + filter

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query file changes: %w", err)
	}
	defer rows.Close()

	var records []*FileChangeRecord
	for rows.Next() {
		rec := &FileChangeRecord{}
		var taskID, agentID, summary sql.NullString
		var conflicts sql.NullInt64
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Path,
			&taskID,
			&agentID,
			&rec.Operation,
			&rec.Version,
			&summary,
			&conflicts,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan file change: %w", err)
		}

		if taskID.Valid {
			rec.TaskID = taskID.String
		}
		if agentID.Valid {
			rec.AgentID = agentID.String
		}
		if summary.Valid {
			rec.Summary = summary.String
		}
		if conflicts.Valid {
			rec.Conflicts = int(conflicts.Int64)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file changes: %w", err)
	}

	return records, nil
}

// RecentRuns retrieves up to limit run summaries, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, run_id, plan_name, total_tasks, completed, failed, files_written, conflicts_resolved, handoffs, duration_seconds, timestamp
		FROM run_records
		ORDER BY id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		var planName sql.NullString
		var durationSecs sql.NullInt64
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&planName,
			&rec.TotalTasks,
			&rec.Completed,
			&rec.Failed,
			&rec.FilesWritten,
			&rec.ConflictsResolved,
			&rec.Handoffs,
			&durationSecs,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}

		if planName.Valid {
			rec.PlanName = planName.String
		}
		if durationSecs.Valid {
			rec.DurationSecs = durationSecs.Int64
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}

	return records, nil
}
