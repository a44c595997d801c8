package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/armtask/internal/decompose"
	"github.com/ShayCichocki/armtask/internal/logging"
	"github.com/ShayCichocki/armtask/pkg/models"
)

// FailureMessage is the user-facing text for any execution failure.
const FailureMessage = "Task execution failed. Please try again later."

// ErrHalted is wrapped in an ExecutionError while the halt switch is engaged.
var ErrHalted = errors.New("execution halted")

// ExecutionError reports a run that did not complete.
type ExecutionError struct {
	TaskID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute task %s: %v", e.TaskID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Confirmation is returned for a successful execution.
type Confirmation struct {
	Success    bool      `json:"success"`
	ExecutedAt time.Time `json:"executedAt"`
	Message    string    `json:"message"`
}

// TaskRepository is the subset of the task service the dispatcher needs.
type TaskRepository interface {
	Get(ctx context.Context, id string) (*models.Task, error)
	MarkExecuted(ctx context.Context, id string, ts time.Time) (*models.Task, error)
}

// Config configures a Dispatcher.
type Config struct {
	Tasks   TaskRepository
	Backend ExecutionBackend
	// Halt is optional.
	Halt   *HaltSwitch
	Logger logrus.FieldLogger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Dispatcher validates execution requests and hands them to the backend.
type Dispatcher struct {
	tasks   TaskRepository
	backend ExecutionBackend
	halt    *HaltSwitch
	log     logrus.FieldLogger
	now     func() time.Time
}

func New(cfg Config) *Dispatcher {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		tasks:   cfg.Tasks,
		backend: cfg.Backend,
		halt:    cfg.Halt,
		log:     logging.OrNop(cfg.Logger),
		now:     now,
	}
}

// Backend returns the configured backend.
func (d *Dispatcher) Backend() ExecutionBackend {
	return d.backend
}

// Halted reports whether the halt switch is engaged.
func (d *Dispatcher) Halted() bool {
	return d.halt.Engaged()
}

// Execute runs the task repetitions times and records the execution time.
// Nothing is stored unless the backend reports success.
func (d *Dispatcher) Execute(ctx context.Context, taskID string, repetitions int) (*Confirmation, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, models.Invalid("taskId", "is required")
	}
	if repetitions < 1 {
		return nil, models.Invalid("repetitions", "must be at least 1")
	}

	task, err := d.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	log := d.log.WithFields(logrus.Fields{
		"task_id":     taskID,
		"repetitions": repetitions,
		"backend":     d.backend.Name(),
	})

	if d.halt.Engaged() {
		log.Warn("execution refused: halt switch engaged")
		return nil, &ExecutionError{TaskID: taskID, Err: ErrHalted}
	}

	run := Run{
		Task:        task,
		Commands:    Commands(task),
		Repetitions: repetitions,
	}

	start := time.Now()
	if _, err := d.backend.Execute(ctx, run); err != nil {
		log.WithError(err).Error("execution failed")
		return nil, &ExecutionError{TaskID: taskID, Err: err}
	}

	executedAt := d.now().UTC()
	// An execution always lands after the task was created, even on a coarse clock.
	if !executedAt.After(task.CreatedAt) {
		executedAt = task.CreatedAt.Add(time.Microsecond).UTC()
	}
	if _, err := d.tasks.MarkExecuted(ctx, taskID, executedAt); err != nil {
		log.WithError(err).Error("execution succeeded but could not be recorded")
		return nil, &ExecutionError{TaskID: taskID, Err: fmt.Errorf("record execution: %w", err)}
	}

	log.WithField("duration", time.Since(start)).Info("task executed")
	return &Confirmation{
		Success:    true,
		ExecutedAt: executedAt,
		Message:    fmt.Sprintf("Task executed successfully (%d repetitions)", repetitions),
	}, nil
}

// Commands derives the command list for a task: the subtasks of the newest
// assistant message that parses as a valid decomposition, or else the user
// messages in order. A clarification request has no subtasks and falls through.
func Commands(task *models.Task) []string {
	if d, ok := decompose.FirstValid(task.LastAssistantMessages()); ok {
		if cmds := d.Commands(); len(cmds) > 0 {
			return cmds
		}
	}
	return task.UserUtterances()
}
