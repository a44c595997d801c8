package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/armtask/internal/decompose"
	"github.com/ShayCichocki/armtask/internal/logging"
	"github.com/ShayCichocki/armtask/pkg/models"
)

// FallbackMessage is returned to the user whenever the model cannot be reached.
const FallbackMessage = "Unable to connect to Claude. Please try again later."

// ErrNoTextContent is returned when the model reply carries no text block.
var ErrNoTextContent = errors.New("response contained no text content")

// UpstreamError wraps a failure talking to the model.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream model call failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Reply is the result of interpreting an utterance.
type Reply struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// completer is the part of Client the gateway depends on.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// Gateway turns user utterances into model replies.
type Gateway struct {
	client completer
	prompt string
	log    logrus.FieldLogger
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Client *Client
	// Prompt selects the system prompt by name; see decompose.PromptFor.
	Prompt string
	Logger logrus.FieldLogger
}

// NewGateway creates a gateway over the given client.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		client: cfg.Client,
		prompt: decompose.PromptFor(cfg.Prompt),
		log:    logging.OrNop(cfg.Logger),
	}
}

// Interpret sends the utterance to the model and returns its reply verbatim.
// Failures never surface as errors: the caller gets FallbackMessage with
// Success false, and the cause is logged.
func (g *Gateway) Interpret(ctx context.Context, utterance string) Reply {
	text, err := g.client.complete(ctx, g.prompt, utterance)
	if err != nil {
		g.log.WithError(&UpstreamError{Op: "interpret", Err: err}).Warn("interpret failed")
		return Reply{Message: FallbackMessage, Success: false}
	}
	return Reply{Message: text, Success: true}
}

// Decompose asks the model for a decomposition and validates it.
// It always uses the structured decomposition prompt. On a schema failure
// the returned error is a *decompose.SchemaViolationError and raw holds the reply.
func (g *Gateway) Decompose(ctx context.Context, utterance string) (*models.Decomposition, string, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, "", models.Invalid("message", "must not be empty")
	}

	raw, err := g.client.complete(ctx, decompose.DecompositionPrompt, utterance)
	if err != nil {
		uerr := &UpstreamError{Op: "decompose", Err: err}
		g.log.WithError(uerr).Warn("decompose failed")
		return nil, "", uerr
	}

	d, err := decompose.Parse(raw)
	if err != nil {
		g.log.WithError(err).Info("model reply failed decomposition schema")
		return nil, raw, err
	}

	g.log.WithFields(logrus.Fields{
		"task_name": d.TaskName,
		"subtasks":  len(d.Subtasks),
		"safety":    d.SafetyLevel,
	}).Debug("decomposition parsed")
	return d, raw, nil
}
