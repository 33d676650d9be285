package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/cogniflow/internal/common"
)

// ModelFailure records why one model in the priority list failed.
type ModelFailure struct {
	Model string
	Err   error
}

// ExhaustedError is returned after every model in the list failed once.
type ExhaustedError struct {
	Failures []ModelFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return common.ErrAllModelsExhausted.Error()
	}
	last := e.Failures[len(e.Failures)-1]
	return fmt.Sprintf("all %d models failed, last error (%s): %v", len(e.Failures), last.Model, last.Err)
}

func (e *ExhaustedError) Is(target error) bool { return target == common.ErrAllModelsExhausted }

// Unwrap exposes the per-model causes.
func (e *ExhaustedError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRequestTimeout bounds each model attempt. Exceeding it counts as a
// transport failure and falls through to the next model.
func WithRequestTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithModelSwitchDelay pauses between a failed model and the next one.
func WithModelSwitchDelay(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.switchDelay = d }
}

// Gateway transforms a chunk by trying each model in priority order once.
// It is stateless per call and safe for concurrent use.
type Gateway struct {
	completer   Completer
	logger      *slog.Logger
	timeout     time.Duration
	switchDelay time.Duration
}

func NewGateway(completer Completer, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{completer: completer, logger: logger}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Transform renders the prompt and walks req.Models breadth-first: one
// attempt per model, never retrying the same model. The first non-empty
// completion wins.
func (g *Gateway) Transform(ctx context.Context, req TransformRequest) (Result, error) {
	if len(req.Models) == 0 {
		return Result{}, common.ConfigError("model priority list is empty")
	}
	if strings.TrimSpace(req.Credential) == "" {
		return Result{}, common.ConfigError("API key is not configured")
	}

	prompt := RenderPrompt(req.PromptTemplate, req.Text)
	jobID, chunkID := common.JobIDFromContext(ctx), common.ChunkIDFromContext(ctx)
	failures := make([]ModelFailure, 0, len(req.Models))

	for i, model := range req.Models {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		text, err := g.attempt(ctx, CompletionRequest{
			Model:        model,
			SystemPrompt: req.SystemPrompt,
			UserPrompt:   prompt,
			Temperature:  req.Temperature,
			MaxTokens:    req.MaxTokens,
			Credential:   req.Credential,
		})
		if err == nil {
			g.logger.Debug("llm.gateway.ok", "job_id", jobID, "chunk_id", chunkID, "model", model, "attempt", i+1, "chars", len(text))
			return Result{Text: text, Model: model}, nil
		}

		failures = append(failures, ModelFailure{Model: model, Err: err})
		g.logger.Warn("llm.gateway.model_failed", "job_id", jobID, "chunk_id", chunkID, "model", model, "attempt", i+1, "error", err)

		if i < len(req.Models)-1 {
			if err := common.Sleep(ctx, g.switchDelay); err != nil {
				return Result{}, err
			}
		}
	}
	return Result{}, &ExhaustedError{Failures: failures}
}

func (g *Gateway) attempt(ctx context.Context, req CompletionRequest) (string, error) {
	callCtx, cancel := common.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.completer.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: request timed out after %s", common.ErrTransport, g.timeout)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: model %s returned no content", common.ErrEmptyResponse, req.Model)
	}
	return text, nil
}
