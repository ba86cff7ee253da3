package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/expensio/expensio-be/internal/metrics"
	"github.com/expensio/expensio-be/internal/worker/domain"
)

// JobStore is the durable work queue contract the scheduler polls.
// ClaimNextJob must be atomic with respect to concurrent schedulers: two
// callers racing for the same row never both receive it.
type JobStore interface {
	ClaimNextJob(ctx context.Context, maxAttempts int) (*domain.Job, error)
	MarkJobCompleted(ctx context.Context, jobID string) error
	MarkJobFailed(ctx context.Context, jobID, errorMsg string, backoff time.Duration) error
}

// JobExecutor runs one claimed job to completion or error.
type JobExecutor interface {
	Execute(ctx context.Context, job *domain.Job) error
}

// Config holds scheduler configuration.
type Config struct {
	// PollInterval is the fixed tick between claim attempts.
	PollInterval time.Duration
	// MaxAttempts is the per-job retry budget.
	MaxAttempts int
	// RetryBackoff delays re-eligibility after a failure.
	RetryBackoff time.Duration
	// JobTimeout bounds a single handler execution so a stalled transfer
	// cannot block the loop forever.
	JobTimeout time.Duration
	// Notifications optionally wakes the loop before the next tick when the
	// API enqueues a job. May be nil.
	Notifications <-chan struct{}
}

// Scheduler is the single-threaded poll loop: every tick it claims at most
// one eligible job and executes it. Multiple worker processes may run
// against the same store; the atomic claim is the only synchronization
// between them.
type Scheduler struct {
	config   Config
	store    JobStore
	executor JobExecutor
	metrics  metrics.Sink
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler with all collaborators injected.
func NewScheduler(config Config, store JobStore, executor JobExecutor, sink metrics.Sink, logger *slog.Logger) *Scheduler {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Scheduler{
		config:   config,
		store:    store,
		executor: executor,
		metrics:  sink,
		logger:   logger,
	}
}

// Run polls until the context is canceled. Nothing below this loop is
// allowed to crash it: handler errors become failure transitions, claim
// errors are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started",
		slog.Duration("poll_interval", s.config.PollInterval),
		slog.Int("max_attempts", s.config.MaxAttempts),
		slog.Duration("retry_backoff", s.config.RetryBackoff),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-s.config.Notifications:
		}

		s.runOnce(ctx)
	}
}

// runOnce claims and processes at most one job. An empty claim is a no-op.
func (s *Scheduler) runOnce(ctx context.Context) {
	s.metrics.TickStarted()

	job, err := s.store.ClaimNextJob(ctx, s.config.MaxAttempts)
	if err != nil {
		s.metrics.ClaimError()
		s.logger.Error("Failed to claim job",
			slog.Any("error", err),
		)
		return
	}
	if job == nil {
		return
	}

	s.metrics.JobClaimed(string(job.Type))
	s.processJob(ctx, job)
}

func (s *Scheduler) processJob(ctx context.Context, job *domain.Job) {
	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := s.safeExecute(jobCtx, job)
	duration := time.Since(start)

	if err != nil {
		// A claim already incremented attempts, so equality means the
		// budget is spent and the row will never match the eligibility
		// predicate again.
		dead := job.Attempts >= s.config.MaxAttempts
		s.metrics.JobFailed(string(job.Type), dead)

		s.logger.Error("Job execution failed",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
			slog.Int("attempt", job.Attempts),
			slog.Any("error", err),
		)
		if dead {
			s.logger.Warn("Job exhausted its retry budget and will not be claimed again",
				slog.String("job_id", job.ID),
				slog.String("job_type", string(job.Type)),
				slog.Int("attempts", job.Attempts),
			)
		}

		if markErr := s.store.MarkJobFailed(ctx, job.ID, err.Error(), s.config.RetryBackoff); markErr != nil {
			s.logger.Error("Failed to record job failure",
				slog.String("job_id", job.ID),
				slog.Any("error", markErr),
			)
		}
		return
	}

	s.metrics.JobCompleted(string(job.Type), duration)
	s.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.Duration("duration", duration),
	)

	if err := s.store.MarkJobCompleted(ctx, job.ID); err != nil {
		s.logger.Error("Failed to record job completion",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}

// safeExecute converts handler panics into errors so a misbehaving handler
// degrades into a normal failure transition instead of killing the loop.
func (s *Scheduler) safeExecute(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.executor.Execute(ctx, job)
}
