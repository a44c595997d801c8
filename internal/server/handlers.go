package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ShayCichocki/armtask/internal/api"
	"github.com/ShayCichocki/armtask/internal/decompose"
	"github.com/ShayCichocki/armtask/internal/dispatch"
	"github.com/ShayCichocki/armtask/internal/state"
	"github.com/ShayCichocki/armtask/internal/version"
	"github.com/ShayCichocki/armtask/pkg/models"
)

//go:embed web/index.html
var indexHTML []byte

const (
	maxBodyBytes         = 1 << 20
	internalErrorMessage = "Internal server error"
)

// InterpretRequest is the POST /api/claude payload.
type InterpretRequest struct {
	Message string `json:"message"`
}

// DecomposeResponse is the POST /api/claude/decompose success payload.
type DecomposeResponse struct {
	Decomposition *models.Decomposition `json:"decomposition"`
	Raw           string                `json:"raw"`
}

// SchemaViolationResponse is returned with 422.
type SchemaViolationResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems"`
	Raw      string   `json:"raw"`
}

// CreateTaskRequest is the POST /api/tasks payload.
type CreateTaskRequest struct {
	Name     string           `json:"name"`
	Messages []models.Message `json:"messages"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task *models.Task `json:"task"`
}

// TaskListResponse wraps the task list. Tasks is never null.
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks"`
}

// ExecuteRequest is the POST /api/tasks/execute payload.
type ExecuteRequest struct {
	TaskID      string `json:"taskId"`
	Repetitions int    `json:"repetitions"`
}

// ExecutionStatusResponse is the GET /api/tasks/execute payload.
type ExecutionStatusResponse struct {
	Task         *models.Task `json:"task"`
	LastExecuted *time.Time   `json:"lastExecuted"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Storage string    `json:"storage"`
	Backend string    `json:"backend"`
	Halted  bool      `json:"halted"`
	Tokens  api.Usage `json:"tokens"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req InterpretRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, api.Reply{Message: "Message is required", Success: false})
		return
	}

	// The model call runs to completion even if the client goes away.
	reply := s.cfg.Gateway.Interpret(context.WithoutCancel(r.Context()), req.Message)
	status := http.StatusOK
	if !reply.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, reply)
}

func (s *Server) handleDecompose(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req InterpretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	d, raw, err := s.cfg.Gateway.Decompose(context.WithoutCancel(r.Context()), req.Message)
	if err != nil {
		var sv *decompose.SchemaViolationError
		var ue *api.UpstreamError
		switch {
		case errors.As(err, &sv):
			writeJSON(w, http.StatusUnprocessableEntity, SchemaViolationResponse{
				Error:    "model reply did not match the decomposition schema",
				Problems: sv.Problems,
				Raw:      sv.Raw,
			})
		case errors.As(err, &ue):
			writeJSON(w, http.StatusBadGateway, errorBody{Error: api.FallbackMessage})
		default:
			s.writeError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, DecomposeResponse{Decomposition: d, Raw: raw})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := s.cfg.Tasks.List(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if tasks == nil {
			tasks = []models.Task{}
		}
		writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks})

	case http.MethodPost:
		var req CreateTaskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
			return
		}
		task, err := s.cfg.Tasks.Create(r.Context(), req.Name, req.Messages)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.log.WithField("task_id", task.ID).Info("task saved")
		writeJSON(w, http.StatusOK, TaskResponse{Task: task})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req ExecuteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
			return
		}
		conf, err := s.cfg.Dispatcher.Execute(context.WithoutCancel(r.Context()), req.TaskID, req.Repetitions)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conf)

	case http.MethodGet:
		taskID := strings.TrimSpace(r.URL.Query().Get("taskId"))
		if taskID == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "taskId is required"})
			return
		}
		task, err := s.cfg.Tasks.Get(r.Context(), taskID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ExecutionStatusResponse{Task: task, LastExecuted: task.LastExecuted})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	resp := HealthResponse{
		Status:  "ok",
		Version: version.Get(),
		Storage: s.cfg.StorageName,
	}
	if s.cfg.Dispatcher != nil {
		resp.Halted = s.cfg.Dispatcher.Halted()
		if b := s.cfg.Dispatcher.Backend(); b != nil {
			resp.Backend = b.Name()
		}
	}
	if s.cfg.Usage != nil {
		resp.Tokens = s.cfg.Usage()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// writeError maps domain errors to status codes. Upstream and execution
// causes are logged, never sent to the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ee *dispatch.ExecutionError
	switch {
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, state.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Task not found"})
	case errors.Is(err, state.ErrDuplicateTask):
		writeJSON(w, http.StatusConflict, errorBody{Error: "Task already exists"})
	case errors.As(err, &ee):
		s.log.WithError(err).WithField("task_id", ee.TaskID).Error("execution failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: dispatch.FailureMessage})
	default:
		s.log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: internalErrorMessage})
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	methodNotAllowed(w, method)
	return false
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
