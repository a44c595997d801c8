// Package tasks assigns identity to saved conversations and validates them
// before they reach the store.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/armtask/internal/state"
	"github.com/ShayCichocki/armtask/pkg/models"
)

// Service creates, lists and updates saved tasks.
type Service struct {
	store state.TaskStore
	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store state.TaskStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Create validates and saves a conversation as a named task.
func (s *Service) Create(ctx context.Context, name string, messages []models.Message) (*models.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.Invalid("name", "must not be empty")
	}
	if len(messages) == 0 {
		return nil, models.Invalid("messages", "must contain at least one message")
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return nil, models.Invalid("messages", fmt.Sprintf("message %d has unknown role %q", i, m.Role))
		}
	}

	task := &models.Task{
		ID:        s.newID(),
		Name:      name,
		Messages:  append([]models.Message(nil), messages...),
		CreatedAt: s.Now(),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) List(ctx context.Context) ([]models.Task, error) {
	return s.store.ListTasks(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// MarkExecuted stamps the task with ts.
func (s *Service) MarkExecuted(ctx context.Context, id string, ts time.Time) (*models.Task, error) {
	return s.store.MarkExecuted(ctx, id, ts)
}
