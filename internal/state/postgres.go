package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ShayCichocki/armtask/pkg/models"
)

const pgTasksTable = "armtask_tasks"

// PostgresStore keeps tasks in Postgres so several server instances can share them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tasks table if it doesn't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store not initialized")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + pgTasksTable + ` (
    seq           BIGSERIAL PRIMARY KEY,
    id            TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    messages      JSONB NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    last_executed TIMESTAMPTZ
)`,
		`CREATE INDEX IF NOT EXISTS idx_armtask_tasks_last_executed ON ` + pgTasksTable + ` (last_executed)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, t *models.Task) error {
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
INSERT INTO `+pgTasksTable+` (id, name, messages, created_at, last_executed)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Name, string(messages), t.CreatedAt.UTC(), t.LastExecuted,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateTask
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM `+pgTasksTable+` WHERE id = $1`, id)
	t, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM `+pgTasksTable+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanPgTask(rows)
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

// MarkExecuted updates and reads back the row in one statement.
func (s *PostgresStore) MarkExecuted(ctx context.Context, id string, ts time.Time) (*models.Task, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE `+pgTasksTable+` SET last_executed = $2 WHERE id = $1
RETURNING `+taskColumns, id, ts.UTC())
	t, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark executed: %w", err)
	}
	return t, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func scanPgTask(row pgx.Row) (*models.Task, error) {
	var (
		t        models.Task
		messages []byte
	)
	if err := row.Scan(&t.ID, &t.Name, &messages, &t.CreatedAt, &t.LastExecuted); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &t.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for task %s: %w", t.ID, err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.LastExecuted != nil {
		executed := t.LastExecuted.UTC()
		t.LastExecuted = &executed
	}
	return &t, nil
}
