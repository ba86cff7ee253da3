package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// claimNextJobQuery selects, locks, and transitions one eligible job in a
// single statement; SKIP LOCKED keeps concurrent workers from blocking on or
// double-claiming the same row. error_message stays NULL until the first
// failure, so freshly inserted jobs need the COALESCE to scan into a plain
// string.
const claimNextJobQuery = `
	UPDATE jobs
	SET status = $1,
	    attempts = attempts + 1,
	    started_at = NOW(),
	    updated_at = NOW()
	WHERE job_id = (
		SELECT job_id
		FROM jobs
		WHERE status IN ($2, $3)
		  AND attempts < $4
		  AND scheduled_at <= NOW()
		ORDER BY scheduled_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	)
	RETURNING job_id, job_type, payload, status,
	          COALESCE(error_message, '') AS error_message, attempts,
	          scheduled_at, started_at, completed_at, created_at, updated_at
`

// ClaimNextJob atomically claims one eligible job: status pending or failed,
// attempts below the budget, scheduled_at due. Returns (nil, nil) when no
// job is eligible.
func (s *Storage) ClaimNextJob(ctx context.Context, maxAttempts int) (*domain.Job, error) {
	var job domain.Job
	err := s.db.QueryRowxContext(ctx, claimNextJobQuery,
		domain.JobStatusProcessing,
		domain.JobStatusPending,
		domain.JobStatusFailed,
		maxAttempts,
	).StructScan(&job)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.Int("attempts", job.Attempts),
	)

	return &job, nil
}

// MarkJobCompleted transitions a processing job to its terminal success state.
func (s *Storage) MarkJobCompleted(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = '',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, domain.JobStatusCompleted, jobID); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	return nil
}

// MarkJobFailed records the handler error and pushes scheduled_at past the
// backoff window so the job only becomes claimable again after the delay.
// Once attempts reach the budget the row simply stops matching the claim
// predicate; no separate status is written.
func (s *Storage) MarkJobFailed(ctx context.Context, jobID, errorMsg string, backoff time.Duration) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    scheduled_at = NOW() + make_interval(secs => $3),
		    updated_at = NOW()
		WHERE job_id = $4
	`

	if _, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, errorMsg, backoff.Seconds(), jobID); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return nil
}

// getExportRecordQuery reads the exports table the API service inserts into.
// storage_key, file_url and file_size are NULL until the artifact is built.
const getExportRecordQuery = `
	SELECT export_id, batch_id, user_id, export_type, status,
	       COALESCE(storage_key, '') AS storage_key,
	       COALESCE(file_url, '') AS file_url,
	       COALESCE(file_size, 0) AS file_size,
	       expires_at, created_at, updated_at
	FROM exports
	WHERE export_id = $1 AND user_id = $2
`

// GetExportRecord fetches an export request scoped to its owner.
func (s *Storage) GetExportRecord(ctx context.Context, exportID, userID string) (*domain.ExportRecord, error) {
	var record domain.ExportRecord
	err := s.db.GetContext(ctx, &record, getExportRecordQuery, exportID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExportNotFound
		}
		return nil, fmt.Errorf("failed to get export record: %w", err)
	}

	return &record, nil
}

const updateExportStatusQuery = `
	UPDATE exports
	SET status = $1, updated_at = NOW()
	WHERE export_id = $2
`

// UpdateExportStatus moves an export record along its state machine.
func (s *Storage) UpdateExportStatus(ctx context.Context, exportID, status string) error {
	if _, err := s.db.ExecContext(ctx, updateExportStatusQuery, status, exportID); err != nil {
		return fmt.Errorf("failed to update export status: %w", err)
	}

	return nil
}

const markExportDoneQuery = `
	UPDATE exports
	SET status = $1,
	    storage_key = $2,
	    file_url = $3,
	    file_size = $4,
	    expires_at = $5,
	    updated_at = NOW()
	WHERE export_id = $6
`

// MarkExportDone records the finished artifact's location, size and expiry.
func (s *Storage) MarkExportDone(ctx context.Context, exportID, storageKey, fileURL string, fileSize int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, markExportDoneQuery,
		domain.ExportStatusDone, storageKey, fileURL, fileSize, expiresAt, exportID)
	if err != nil {
		return fmt.Errorf("failed to mark export done: %w", err)
	}

	return nil
}

// MarkExportFailed transitions an export record to its terminal failure state.
func (s *Storage) MarkExportFailed(ctx context.Context, exportID string) error {
	return s.UpdateExportStatus(ctx, exportID, domain.ExportStatusFailed)
}

// GetBatch fetches a saved filter by id.
func (s *Storage) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	query := `
		SELECT batch_id, project_id, user_id, name,
		       date_from, date_to, statuses, categories
		FROM batches
		WHERE batch_id = $1
	`

	var batch domain.Batch
	err := s.db.GetContext(ctx, &batch, query, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return &batch, nil
}

// UpdateBatchIssueSummary writes the issue-type counts computed by the
// batch check handler.
func (s *Storage) UpdateBatchIssueSummary(ctx context.Context, batchID string, summary map[string]int) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal issue summary: %w", err)
	}

	query := `
		UPDATE batches
		SET issue_summary = $1, checked_at = NOW(), updated_at = NOW()
		WHERE batch_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, data, batchID); err != nil {
		return fmt.Errorf("failed to update batch issue summary: %w", err)
	}

	return nil
}

// ListExpenses returns expenses matching the filter in a stable order
// (creation order, id as tiebreak) so downstream sorts are reproducible.
func (s *Storage) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	query := `
		SELECT expense_id, project_id, user_id, expense_date, amount,
		       category, note, merchant, status, created_at
		FROM expenses
		WHERE user_id = $1 AND project_id = ANY($2)
	`
	args := []interface{}{filter.UserID, pq.Array(filter.ProjectIDs)}
	argIdx := 3

	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND status = ANY($%d)", argIdx)
		args = append(args, pq.Array(filter.Statuses))
		argIdx++
	}

	if len(filter.Categories) > 0 {
		query += fmt.Sprintf(" AND category = ANY($%d)", argIdx)
		args = append(args, pq.Array(filter.Categories))
		argIdx++
	}

	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND expense_date >= $%d", argIdx)
		args = append(args, *filter.DateFrom)
		argIdx++
	}

	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND expense_date <= $%d", argIdx)
		args = append(args, *filter.DateTo)
		argIdx++
	}

	query += " ORDER BY created_at ASC, expense_id ASC"

	var expenses []domain.Expense
	if err := s.db.SelectContext(ctx, &expenses, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	return expenses, nil
}

// ListReceipts returns the owner's non-deleted receipts across the projects.
func (s *Storage) ListReceipts(ctx context.Context, userID string, projectIDs []string) ([]domain.Receipt, error) {
	query := `
		SELECT receipt_id, project_id, user_id, file_name, content_type,
		       amount, receipt_date, category, storage_key, matched_expense_id, created_at
		FROM receipts
		WHERE user_id = $1 AND project_id = ANY($2) AND deleted_at IS NULL
		ORDER BY created_at ASC, receipt_id ASC
	`

	var receipts []domain.Receipt
	if err := s.db.SelectContext(ctx, &receipts, query, userID, pq.Array(projectIDs)); err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	return receipts, nil
}

// GetExportTemplate returns the owner's template settings, or (nil, nil)
// when the user never customized them and config defaults apply.
func (s *Storage) GetExportTemplate(ctx context.Context, userID string) (*domain.ExportTemplate, error) {
	query := `
		SELECT user_id, sort_descending, include_merchant,
		       include_expense_id, include_receipt_ids, include_pdf_index
		FROM export_templates
		WHERE user_id = $1
	`

	var template domain.ExportTemplate
	err := s.db.GetContext(ctx, &template, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get export template: %w", err)
	}

	return &template, nil
}
