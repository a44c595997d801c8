package state

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ShayCichocki/armtask/pkg/models"
)

var (
	// ErrTaskNotFound is returned when no task has the requested id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateTask is returned when a task with the same id already exists.
	ErrDuplicateTask = errors.New("task already exists")
)

// TaskStore handles task persistence.
type TaskStore interface {
	// CreateTask inserts t atomically.
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	// ListTasks returns every task in creation order.
	ListTasks(ctx context.Context) ([]models.Task, error)
	// MarkExecuted sets lastExecuted and returns the updated task.
	MarkExecuted(ctx context.Context, id string, ts time.Time) (*models.Task, error)
}

// Store is a TaskStore that owns resources.
type Store interface {
	io.Closer
	TaskStore
}

// Compile-time verification that each backend implements Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*DB)(nil)
	_ Store = (*PostgresStore)(nil)
)
