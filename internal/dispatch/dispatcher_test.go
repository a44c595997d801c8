package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/armtask/internal/state"
	"github.com/ShayCichocki/armtask/internal/tasks"
	"github.com/ShayCichocki/armtask/pkg/models"
)

const validDecomposition = `{"task_name":"Pick and place","safety_level":"low","requires_clarification":false,"subtasks":[{"id":"1","command":"grip red block","preconditions":[],"success_criteria":"gripped","fallback":"open"},{"id":"2","command":"place on blue block","preconditions":[],"success_criteria":"placed","fallback":"home"}]}`

// recordingBackend captures runs and fails when err is set.
type recordingBackend struct {
	mu   sync.Mutex
	runs []Run
	err  error
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Execute(_ context.Context, run Run) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = append(b.runs, run)
	if b.err != nil {
		return nil, b.err
	}
	return &Result{Status: "success"}, nil
}

func setupDispatcher(t *testing.T, backend ExecutionBackend, halt *HaltSwitch) (*Dispatcher, *tasks.Service) {
	t.Helper()
	svc := tasks.NewService(state.NewMemoryStore())
	d := New(Config{Tasks: svc, Backend: backend, Halt: halt})
	return d, svc
}

func saveTask(t *testing.T, svc *tasks.Service, messages ...models.Message) *models.Task {
	t.Helper()
	if len(messages) == 0 {
		messages = []models.Message{
			{Role: models.RoleUser, Content: "pick up the red block and place it on the blue one"},
			{Role: models.RoleAssistant, Content: validDecomposition},
		}
	}
	task, err := svc.Create(context.Background(), "Pick and Place", messages)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return task
}

func TestExecute_Success(t *testing.T) {
	backend := &recordingBackend{}
	d, svc := setupDispatcher(t, backend, nil)
	task := saveTask(t, svc)

	before := time.Now().UTC()
	conf, err := d.Execute(context.Background(), task.ID, 3)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !conf.Success {
		t.Error("Success should be true")
	}
	if conf.Message != "Task executed successfully (3 repetitions)" {
		t.Errorf("Message = %q", conf.Message)
	}
	if conf.ExecutedAt.Before(before) {
		t.Errorf("ExecutedAt %v precedes call time %v", conf.ExecutedAt, before)
	}

	stored, _ := svc.Get(context.Background(), task.ID)
	if stored.LastExecuted == nil || !stored.LastExecuted.Equal(conf.ExecutedAt) {
		t.Errorf("stored LastExecuted = %v, want %v", stored.LastExecuted, conf.ExecutedAt)
	}
	if stored.LastExecuted.Before(stored.CreatedAt) {
		t.Error("LastExecuted should not precede CreatedAt")
	}

	if len(backend.runs) != 1 {
		t.Fatalf("backend runs = %d, want 1", len(backend.runs))
	}
	run := backend.runs[0]
	if run.Repetitions != 3 {
		t.Errorf("Repetitions = %d, want 3", run.Repetitions)
	}
	want := []string{"grip red block", "place on blue block"}
	if len(run.Commands) != 2 || run.Commands[0] != want[0] || run.Commands[1] != want[1] {
		t.Errorf("Commands = %v, want %v", run.Commands, want)
	}
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name        string
		taskID      string
		repetitions int
	}{
		{"empty task id", "", 1},
		{"blank task id", "  ", 1},
		{"zero repetitions", "use-saved", 0},
		{"negative repetitions", "use-saved", -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &recordingBackend{}
			d, svc := setupDispatcher(t, backend, nil)
			task := saveTask(t, svc)

			id := tt.taskID
			if id == "use-saved" {
				id = task.ID
			}

			_, err := d.Execute(context.Background(), id, tt.repetitions)
			if !errors.Is(err, models.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}

			stored, _ := svc.Get(context.Background(), task.ID)
			if stored.LastExecuted != nil {
				t.Error("validation failure should not mutate the task")
			}
			if len(backend.runs) != 0 {
				t.Error("validation failure should not reach the backend")
			}
		})
	}
}

func TestExecute_UnknownTask(t *testing.T) {
	d, _ := setupDispatcher(t, &recordingBackend{}, nil)

	_, err := d.Execute(context.Background(), "does-not-exist", 1)
	if !errors.Is(err, state.ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestExecute_BackendFailure(t *testing.T) {
	backend := &recordingBackend{err: errors.New("arm fault")}
	d, svc := setupDispatcher(t, backend, nil)
	task := saveTask(t, svc)

	_, err := d.Execute(context.Background(), task.ID, 2)

	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want ExecutionError", err)
	}
	if ee.TaskID != task.ID {
		t.Errorf("TaskID = %q, want %q", ee.TaskID, task.ID)
	}

	stored, _ := svc.Get(context.Background(), task.ID)
	if stored.LastExecuted != nil {
		t.Error("failed execution should not set LastExecuted")
	}
}

func TestExecute_Halted(t *testing.T) {
	halt, err := NewHaltSwitch(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewHaltSwitch failed: %v", err)
	}
	defer halt.Close()

	backend := &recordingBackend{}
	d, svc := setupDispatcher(t, backend, halt)
	task := saveTask(t, svc)

	if err := halt.Engage("test"); err != nil {
		t.Fatalf("Engage failed: %v", err)
	}
	if !d.Halted() {
		t.Error("Halted should report the engaged switch")
	}

	_, err = d.Execute(context.Background(), task.ID, 1)
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("err = %v, want ErrHalted", err)
	}
	if len(backend.runs) != 0 {
		t.Error("halted execution should not reach the backend")
	}

	if err := halt.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := d.Execute(context.Background(), task.ID, 1); err != nil {
		t.Errorf("Execute after release failed: %v", err)
	}
}

func TestCommands(t *testing.T) {
	clarification := `{"task_name":"Move knife","safety_level":"high","requires_clarification":true,"clarification_questions":["Where?"],"subtasks":[]}`

	tests := []struct {
		name     string
		messages []models.Message
		want     []string
	}{
		{
			name: "newest valid decomposition wins",
			messages: []models.Message{
				{Role: models.RoleUser, Content: "first"},
				{Role: models.RoleAssistant, Content: validDecomposition},
				{Role: models.RoleUser, Content: "second"},
				{Role: models.RoleAssistant, Content: "not json"},
			},
			want: []string{"grip red block", "place on blue block"},
		},
		{
			name: "falls back to user messages",
			messages: []models.Message{
				{Role: models.RoleUser, Content: "wave"},
				{Role: models.RoleAssistant, Content: "sure"},
				{Role: models.RoleUser, Content: "bow"},
			},
			want: []string{"wave", "bow"},
		},
		{
			name: "clarification request falls back",
			messages: []models.Message{
				{Role: models.RoleUser, Content: "move the knife"},
				{Role: models.RoleAssistant, Content: clarification},
			},
			want: []string{"move the knife"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Commands(&models.Task{Messages: tt.messages})
			if len(got) != len(tt.want) {
				t.Fatalf("Commands = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Commands[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSimulatedBackend(t *testing.T) {
	b := NewSimulatedBackend(20 * time.Millisecond)

	start := time.Now()
	res, err := b.Execute(context.Background(), Run{Repetitions: 5})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Status != "success" {
		t.Errorf("Status = %q", res.Status)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want at least the configured delay", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewSimulatedBackend(time.Hour)
	if _, err := slow.Execute(ctx, Run{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		opts     BackendOptions
		wantName string
		wantErr  bool
	}{
		{"default", BackendOptions{}, BackendSimulated, false},
		{"simulated", BackendOptions{Name: BackendSimulated, Delay: time.Second}, BackendSimulated, false},
		{"http", BackendOptions{Name: BackendHTTP, Endpoint: "http://localhost:9/run"}, BackendHTTP, false},
		{"http without endpoint", BackendOptions{Name: BackendHTTP}, "", true},
		{"unknown", BackendOptions{Name: "ros"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend failed: %v", err)
			}
			if b.Name() != tt.wantName {
				t.Errorf("Name = %q, want %q", b.Name(), tt.wantName)
			}
		})
	}
}

func TestExecute_FrozenClockStillAfterCreation(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := tasks.NewService(state.NewMemoryStore(), tasks.WithClock(func() time.Time { return frozen }))
	d := New(Config{Tasks: svc, Backend: &recordingBackend{}, Now: func() time.Time { return frozen }})
	task := saveTask(t, svc)

	conf, err := d.Execute(context.Background(), task.ID, 1)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !conf.ExecutedAt.After(task.CreatedAt) {
		t.Errorf("ExecutedAt %v should be strictly after CreatedAt %v", conf.ExecutedAt, task.CreatedAt)
	}
}

// unrecordableTasks serves tasks but cannot store an execution.
type unrecordableTasks struct {
	*tasks.Service
}

func (unrecordableTasks) MarkExecuted(context.Context, string, time.Time) (*models.Task, error) {
	return nil, errors.New("database is locked")
}

func TestExecute_RecordFailureIsExecutionError(t *testing.T) {
	svc := tasks.NewService(state.NewMemoryStore())
	backend := &recordingBackend{}
	d := New(Config{Tasks: unrecordableTasks{svc}, Backend: backend})
	task := saveTask(t, svc)

	_, err := d.Execute(context.Background(), task.ID, 2)
	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
	if ee.TaskID != task.ID {
		t.Errorf("TaskID = %q, want %q", ee.TaskID, task.ID)
	}
	if len(backend.runs) != 1 {
		t.Errorf("backend runs = %d, want 1", len(backend.runs))
	}
}
