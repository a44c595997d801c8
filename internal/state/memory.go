package state

import (
	"context"
	"sync"
	"time"

	"github.com/ShayCichocki/armtask/pkg/models"
)

// MemoryStore keeps tasks in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]models.Task
	order []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Task)}
}

func (s *MemoryStore) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return ErrDuplicateTask
	}
	s.byID[t.ID] = t.Clone()
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	c := t.Clone()
	return &c, nil
}

func (s *MemoryStore) ListTasks(_ context.Context) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]models.Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, s.byID[id].Clone())
	}
	return tasks, nil
}

func (s *MemoryStore) MarkExecuted(_ context.Context, id string, ts time.Time) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	executed := ts.UTC()
	t.LastExecuted = &executed
	s.byID[id] = t

	c := t.Clone()
	return &c, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
