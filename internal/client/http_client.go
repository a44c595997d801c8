// Package client talks to a running armtask server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ShayCichocki/armtask/internal/api"
	"github.com/ShayCichocki/armtask/internal/dispatch"
	"github.com/ShayCichocki/armtask/internal/server"
	"github.com/ShayCichocki/armtask/internal/version"
	"github.com/ShayCichocki/armtask/pkg/models"
)

// DefaultTimeout covers a full simulated execution plus a model call.
const DefaultTimeout = 2 * time.Minute

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// HTTPClient talks to the armtask API.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPClient constructs a client.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// Interpret calls POST /api/claude. A model failure is not an error: the
// reply carries the fallback text with Success false.
func (c *HTTPClient) Interpret(ctx context.Context, message string) (api.Reply, error) {
	var reply api.Reply
	status, body, err := c.do(ctx, http.MethodPost, "/api/claude", server.InterpretRequest{Message: message})
	if err != nil {
		return api.Reply{}, err
	}
	if jerr := json.Unmarshal(body, &reply); jerr != nil || reply.Message == "" {
		return api.Reply{}, statusError(status, body)
	}
	if status >= 400 && status < 500 {
		return api.Reply{}, &StatusError{Code: status, Message: reply.Message}
	}
	return reply, nil
}

// Decompose calls POST /api/claude/decompose.
func (c *HTTPClient) Decompose(ctx context.Context, message string) (*server.DecomposeResponse, error) {
	var out server.DecomposeResponse
	if err := c.call(ctx, http.MethodPost, "/api/claude/decompose", server.InterpretRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks calls GET /api/tasks.
func (c *HTTPClient) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out server.TaskListResponse
	if err := c.call(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// CreateTask calls POST /api/tasks.
func (c *HTTPClient) CreateTask(ctx context.Context, name string, messages []models.Message) (*models.Task, error) {
	var out server.TaskResponse
	req := server.CreateTaskRequest{Name: name, Messages: messages}
	if err := c.call(ctx, http.MethodPost, "/api/tasks", req, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

// Execute calls POST /api/tasks/execute.
func (c *HTTPClient) Execute(ctx context.Context, taskID string, repetitions int) (*dispatch.Confirmation, error) {
	var out dispatch.Confirmation
	req := server.ExecuteRequest{TaskID: taskID, Repetitions: repetitions}
	if err := c.call(ctx, http.MethodPost, "/api/tasks/execute", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status calls GET /api/tasks/execute?taskId=.
func (c *HTTPClient) Status(ctx context.Context, taskID string) (*server.ExecutionStatusResponse, error) {
	var out server.ExecutionStatusResponse
	path := "/api/tasks/execute?" + url.Values{"taskId": {taskID}}.Encode()
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls GET /health.
func (c *HTTPClient) Health(ctx context.Context) (*server.HealthResponse, error) {
	var out server.HealthResponse
	if err := c.call(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) call(ctx context.Context, method, path string, in, out any) error {
	status, body, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if status >= 400 {
		return statusError(status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in any) (int, []byte, error) {
	endpoint, err := c.resolve(path)
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	c.applyHeaders(httpReq)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *HTTPClient) resolve(path string) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	rel, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(rel).String(), nil
}

func (c *HTTPClient) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
}

func statusError(code int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return &StatusError{Code: code, Message: payload.Error}
	}
	return &StatusError{Code: code, Message: string(bytes.TrimSpace(body))}
}
