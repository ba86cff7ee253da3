package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

// BatchChecker runs batch consistency checks.
type BatchChecker interface {
	Check(ctx context.Context, payload domain.BatchCheckPayload) error
}

// ExportBuilder assembles export artifacts.
type ExportBuilder interface {
	Build(ctx context.Context, payload domain.ExportPayload) error
}

// Executor dispatches claimed jobs to the handler matching their payload
// variant. A job type without a handler is an error, not a silent success.
type Executor struct {
	batchChecker  BatchChecker
	exportBuilder ExportBuilder
	logger        *slog.Logger
}

// NewExecutor creates an Executor with both handlers injected.
func NewExecutor(batchChecker BatchChecker, exportBuilder ExportBuilder, logger *slog.Logger) *Executor {
	return &Executor{
		batchChecker:  batchChecker,
		exportBuilder: exportBuilder,
		logger:        logger,
	}
}

// Execute decodes the job payload and runs the matching handler. Errors
// propagate to the scheduler, which owns the failure transition.
func (e *Executor) Execute(ctx context.Context, job *domain.Job) error {
	payload, err := domain.ParsePayload(job.Type, job.Payload)
	if err != nil {
		return err
	}

	e.logger.Info("Executing job",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.Int("attempt", job.Attempts),
	)

	switch p := payload.(type) {
	case domain.BatchCheckPayload:
		return e.batchChecker.Check(ctx, p)
	case domain.ExportPayload:
		return e.exportBuilder.Build(ctx, p)
	default:
		// ParsePayload already rejects unknown types; this only fires if a
		// new variant is added without a handler.
		return fmt.Errorf("%w: no handler for %T", domain.ErrUnknownJobType, p)
	}
}
