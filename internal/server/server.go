// Package server exposes the chat, task and execution operations over HTTP
// and serves the browser UI.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/armtask/internal/api"
	"github.com/ShayCichocki/armtask/internal/dispatch"
	"github.com/ShayCichocki/armtask/internal/logging"
	"github.com/ShayCichocki/armtask/pkg/models"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Interpreter is the language model gateway.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string) api.Reply
	Decompose(ctx context.Context, utterance string) (*models.Decomposition, string, error)
}

// TaskService creates and reads saved tasks.
type TaskService interface {
	Create(ctx context.Context, name string, messages []models.Message) (*models.Task, error)
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
}

// Executor runs saved tasks.
type Executor interface {
	Execute(ctx context.Context, taskID string, repetitions int) (*dispatch.Confirmation, error)
	Halted() bool
	Backend() dispatch.ExecutionBackend
}

// Config wires a Server.
type Config struct {
	Addr        string
	CORSOrigins []string

	Gateway    Interpreter
	Tasks      TaskService
	Dispatcher Executor

	// Usage reports token totals for /health. Optional.
	Usage func() api.Usage
	// StorageName is reported by /health.
	StorageName string

	Logger logrus.FieldLogger
}

// Server is the armtask HTTP API.
type Server struct {
	cfg     Config
	log     logrus.FieldLogger
	handler http.Handler
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		log: logging.OrNop(cfg.Logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/claude", s.handleInterpret)
	mux.HandleFunc("/api/claude/decompose", s.handleDecompose)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/execute", s.handleExecute)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleIndex)

	s.handler = chain(mux,
		recoverer(s.log),
		requestLogger(s.log),
		cors(cfg.CORSOrigins),
	)
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
