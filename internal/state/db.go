// Package state provides task persistence for armtask.
// Backends are an in-memory store, SQLite (two drivers) and Postgres.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/armtask/pkg/models"
)

// SQLite driver names accepted by OpenWithDriver.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// DB wraps an SQLite database connection holding saved tasks.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// DefaultDBPath returns the project-local database path.
func DefaultDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".armtask", "tasks.db")
}

// Open opens an SQLite database at the given path with the pure-Go driver.
func Open(path string) (*DB, error) {
	return OpenWithDriver(DriverSQLite, path)
}

// OpenWithDriver opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func OpenWithDriver(driver, path string) (*DB, error) {
	if driver != DriverSQLite && driver != DriverSQLite3 {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &DB{
		conn:   conn,
		path:   path,
		driver: driver,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2LastExecutedIndex},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// seq preserves creation order; id is the public identifier.
const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	messages TEXT NOT NULL,
	created_at TEXT NOT NULL,
	last_executed TEXT
);
`

const migrationV2LastExecutedIndex = `
CREATE INDEX IF NOT EXISTS idx_tasks_last_executed ON tasks(last_executed);
`

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

const taskColumns = `id, name, messages, created_at, last_executed`

// CreateTask inserts a task. A task with the same id yields ErrDuplicateTask.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, t.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check task %s: %w", t.ID, err)
		}
		if exists > 0 {
			return ErrDuplicateTask
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, name, messages, created_at, last_executed)
			VALUES (?, ?, ?, ?, ?)
		`, t.ID, t.Name, string(messages), formatTime(t.CreatedAt), formatNullableTime(t.LastExecuted))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
}

// GetTask retrieves a task by id.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns all tasks in creation order.
func (db *DB) ListTasks(ctx context.Context) ([]models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// MarkExecuted stamps lastExecuted and returns the updated task.
func (db *DB) MarkExecuted(ctx context.Context, id string, ts time.Time) (*models.Task, error) {
	var updated *models.Task
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET last_executed = ? WHERE id = ?`, formatTime(ts), id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if n == 0 {
			return ErrTaskNotFound
		}

		updated, err = scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("reload task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t            models.Task
		messages     string
		createdAt    string
		lastExecuted sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &messages, &createdAt, &lastExecuted); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(messages), &t.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for task %s: %w", t.ID, err)
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for task %s: %w", t.ID, err)
	}
	t.CreatedAt = created
	t.LastExecuted = parseNullableTime(lastExecuted)

	return &t, nil
}

// formatTime formats a time.Time for SQLite storage.
// Nanosecond precision keeps lastExecuted comparable with createdAt.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
