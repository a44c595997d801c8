package dispatch

import (
	"fmt"
	"time"
)

// BackendOptions selects and configures an execution backend.
type BackendOptions struct {
	Name     string
	Delay    time.Duration
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewBackend builds the backend named by opts.Name. Empty means simulated.
func NewBackend(opts BackendOptions) (ExecutionBackend, error) {
	switch opts.Name {
	case "", BackendSimulated:
		return NewSimulatedBackend(opts.Delay), nil
	case BackendHTTP:
		return NewHTTPBackend(opts.Endpoint, opts.APIKey, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown executor backend %q", opts.Name)
	}
}
