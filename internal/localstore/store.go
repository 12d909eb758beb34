// Package localstore provides the durable local cache for tasks and notes.
//
// The store is the authoritative backend while no session is active, and the
// fallback the reactive state reloads from after logout. It is an embedded
// SQLite database (WAL mode) holding the two record collections plus the
// pending-change queue.
//
// Every operation is durable before it returns. Failures are surfaced to the
// caller; the store never retries internally.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mybrain/internal/model"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection holding the local record cache.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created along with the schema.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.InitSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection, checkpointing the WAL first.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates tables and indexes if they don't exist. Idempotent.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		tags TEXT,  -- JSON array
		due_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		tags TEXT,  -- JSON array
		parent_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pending_changes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,  -- JSON PendingChange body
		queued_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);
	CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);
	CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// PutTask inserts or replaces a task.
func (s *Store) PutTask(task *model.Task) error {
	return s.PutTaskContext(context.Background(), task)
}

// PutTaskContext inserts or replaces a task with context support.
func (s *Store) PutTaskContext(ctx context.Context, task *model.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tagsJSON, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO tasks (id, title, completed, tags, due_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		completed = excluded.completed,
		tags = excluded.tags,
		due_at = excluded.due_at,
		updated_at = excluded.updated_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		task.ID,
		task.Title,
		boolToInt(task.Completed),
		string(tagsJSON),
		timeToNullString(task.DueAt),
		task.CreatedAt.Format(time.RFC3339Nano),
		task.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put task %s: %w", task.ID, err)
	}
	return nil
}

// ListTasks returns all tasks ordered by createdAt descending.
func (s *Store) ListTasks() ([]model.Task, error) {
	return s.ListTasksContext(context.Background())
}

// ListTasksContext returns all tasks with context support.
func (s *Store) ListTasksContext(ctx context.Context) ([]model.Task, error) {
	query := `
	SELECT id, title, completed, tags, due_at, created_at, updated_at
	FROM tasks
	ORDER BY created_at DESC
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// UpdateTask applies a partial update to a task. Returns an error if the
// task does not exist.
func (s *Store) UpdateTask(id string, patch model.TaskPatch) error {
	return s.UpdateTaskContext(context.Background(), id, patch)
}

// UpdateTaskContext applies a partial update with context support.
func (s *Store) UpdateTaskContext(ctx context.Context, id string, patch model.TaskPatch) error {
	var sets []string
	var args []interface{}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*patch.Completed))
	}
	if patch.Tags != nil {
		tagsJSON, err := json.Marshal(*patch.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if patch.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, patch.DueAt.Format(time.RFC3339Nano))
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().Format(time.RFC3339Nano))
	args = append(args, id)

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// DeleteTask removes a task. Returns nil if the task doesn't exist.
func (s *Store) DeleteTask(id string) error {
	return s.DeleteTaskContext(context.Background(), id)
}

// DeleteTaskContext removes a task with context support.
func (s *Store) DeleteTaskContext(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// ClearTasks removes every task. Called after a successful merge to the
// remote store, when the remote copy becomes authoritative.
func (s *Store) ClearTasks() error {
	return s.ClearTasksContext(context.Background())
}

// ClearTasksContext removes every task with context support.
func (s *Store) ClearTasksContext(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}
	return nil
}

// PutNote inserts or replaces a note.
func (s *Store) PutNote(note *model.Note) error {
	return s.PutNoteContext(context.Background(), note)
}

// PutNoteContext inserts or replaces a note with context support.
func (s *Store) PutNoteContext(ctx context.Context, note *model.Note) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO notes (id, title, content, tags, parent_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		tags = excluded.tags,
		parent_id = excluded.parent_id,
		updated_at = excluded.updated_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		note.ID,
		note.Title,
		note.Content,
		string(tagsJSON),
		stringPtrToNull(note.ParentID),
		note.CreatedAt.Format(time.RFC3339Nano),
		note.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put note %s: %w", note.ID, err)
	}
	return nil
}

// ListNotes returns all notes ordered by createdAt descending.
func (s *Store) ListNotes() ([]model.Note, error) {
	return s.ListNotesContext(context.Background())
}

// ListNotesContext returns all notes with context support.
func (s *Store) ListNotesContext(ctx context.Context) ([]model.Note, error) {
	query := `
	SELECT id, title, content, tags, parent_id, created_at, updated_at
	FROM notes
	ORDER BY created_at DESC
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// UpdateNote applies a partial update to a note. Returns an error if the
// note does not exist.
func (s *Store) UpdateNote(id string, patch model.NotePatch) error {
	return s.UpdateNoteContext(context.Background(), id, patch)
}

// UpdateNoteContext applies a partial update with context support.
func (s *Store) UpdateNoteContext(ctx context.Context, id string, patch model.NotePatch) error {
	var sets []string
	var args []interface{}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Tags != nil {
		tagsJSON, err := json.Marshal(*patch.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if patch.ParentID != nil {
		sets = append(sets, "parent_id = ?")
		args = append(args, stringPtrToNull(*patch.ParentID))
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().Format(time.RFC3339Nano))
	args = append(args, id)

	query := "UPDATE notes SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update note %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %s not found", id)
	}
	return nil
}

// DeleteNote removes a note. Returns nil if the note doesn't exist.
func (s *Store) DeleteNote(id string) error {
	return s.DeleteNoteContext(context.Background(), id)
}

// DeleteNoteContext removes a note with context support.
func (s *Store) DeleteNoteContext(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return nil
}

// ClearNotes removes every note.
func (s *Store) ClearNotes() error {
	return s.ClearNotesContext(context.Background())
}

// ClearNotesContext removes every note with context support.
func (s *Store) ClearNotesContext(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task

	for rows.Next() {
		var task model.Task
		var completed int
		var tagsJSON sql.NullString
		var dueAt sql.NullString
		var createdAt, updatedAt string

		err := rows.Scan(&task.ID, &task.Title, &completed, &tagsJSON, &dueAt, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		task.Completed = completed != 0
		task.Tags = parseTags(tagsJSON)
		task.DueAt = nullStringToTime(dueAt)
		task.CreatedAt = parseTime(createdAt)
		task.UpdatedAt = parseTime(updatedAt)

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func scanNotes(rows *sql.Rows) ([]model.Note, error) {
	var notes []model.Note

	for rows.Next() {
		var note model.Note
		var tagsJSON sql.NullString
		var parentID sql.NullString
		var createdAt, updatedAt string

		err := rows.Scan(&note.ID, &note.Title, &note.Content, &tagsJSON, &parentID, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}

		note.Tags = parseTags(tagsJSON)
		if parentID.Valid {
			p := parentID.String
			note.ParentID = &p
		}
		note.CreatedAt = parseTime(createdAt)
		note.UpdatedAt = parseTime(updatedAt)

		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func parseTags(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return []string{}
	}
	return tags
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func stringPtrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
