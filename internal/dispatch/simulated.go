package dispatch

import (
	"context"
	"time"
)

// DefaultSimulatedDelay is how long the simulated backend "runs" a task.
const DefaultSimulatedDelay = 2 * time.Second

// SimulatedBackend waits for Delay and reports success.
type SimulatedBackend struct {
	Delay time.Duration
}

func NewSimulatedBackend(delay time.Duration) *SimulatedBackend {
	if delay < 0 {
		delay = 0
	}
	return &SimulatedBackend{Delay: delay}
}

func (b *SimulatedBackend) Name() string { return BackendSimulated }

// Execute sleeps once per request regardless of repetitions.
func (b *SimulatedBackend) Execute(ctx context.Context, _ Run) (*Result, error) {
	if b.Delay > 0 {
		timer := time.NewTimer(b.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return &Result{Status: "success"}, nil
}
