package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds a control-service request when none is configured.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPBackend posts runs to a robot control service.
type HTTPBackend struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPBackend constructs a backend for endpoint.
func NewHTTPBackend(endpoint, apiKey string, timeout time.Duration) (*HTTPBackend, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("executor endpoint is required for the http backend")
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPBackend{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

func (b *HTTPBackend) Name() string { return BackendHTTP }

type controlRequest struct {
	TaskID      string   `json:"task_id"`
	Task        string   `json:"task"`
	Commands    []string `json:"commands"`
	Repetitions int      `json:"repetitions"`
}

type controlResponse struct {
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	Results []json.RawMessage `json:"execution_results,omitempty"`
}

// Execute POSTs the run and interprets the control service's status field.
func (b *HTTPBackend) Execute(ctx context.Context, run Run) (*Result, error) {
	req := controlRequest{
		Commands:    run.Commands,
		Repetitions: run.Repetitions,
	}
	if run.Task != nil {
		req.TaskID = run.Task.ID
		req.Task = run.Task.Name
	}
	if req.Commands == nil {
		req.Commands = []string{}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode control request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build control request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("control service request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("control service http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out controlResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode control response: %w", err)
		}
	}
	if out.Status == "error" {
		return nil, fmt.Errorf("control service reported error: %s", out.Error)
	}
	if out.Status == "" {
		out.Status = "success"
	}
	return &Result{Status: out.Status, Results: out.Results}, nil
}
