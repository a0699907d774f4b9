package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"

	"github.com/ai-teammate/mytube/moments/internal/ingest"
)

// Ingester runs one job; *ingest.Service implements it.
type Ingester interface {
	Ingest(ctx context.Context, job ingest.Job) (ingest.Outcome, error)
}

// Handler is plugged into the asynq worker loop.
type Handler struct {
	ing Ingester
	log hclog.Logger
}

// NewHandler constructs a Handler. logger may be nil.
func NewHandler(ing Ingester, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{ing: ing, log: logger.Named("queue")}
}

// Mux registers the handler for TypeProcessMoment.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeProcessMoment, h)
	return mux
}

// ProcessTask implements asynq.Handler. Malformed payloads and rejected
// videos are not retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var job ingest.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	out, err := h.ing.Ingest(ctx, job)
	if err != nil {
		if errors.Is(err, ingest.ErrRejected) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	h.log.Debug("task done", "content_id", out.ContentID, "status", out.Status)
	return nil
}
