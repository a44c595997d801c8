// Package dispatch runs saved tasks against an execution backend.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/ShayCichocki/armtask/pkg/models"
)

// Backend names accepted by NewBackend.
const (
	BackendSimulated = "simulated"
	BackendHTTP      = "http"
)

// Run is one execution request handed to a backend.
// Repetitions is forwarded as-is; the backend owns cycling.
type Run struct {
	Task        *models.Task
	Commands    []string
	Repetitions int
}

// Result is what a backend reports for a successful run.
type Result struct {
	Status  string            `json:"status"`
	Results []json.RawMessage `json:"execution_results,omitempty"`
}

// ExecutionBackend carries out a run on the arm, or pretends to.
// A run either succeeds for every repetition or fails as a whole.
type ExecutionBackend interface {
	Name() string
	Execute(ctx context.Context, run Run) (*Result, error)
}
