package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/expensio/expensio-be/internal/worker/domain"
	"github.com/expensio/expensio-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateJob inserts one pending job row. The worker's eligibility predicate
// picks it up on the next tick.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, job_type, payload, status,
			attempts, scheduled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Type,
		job.Payload,
		job.Status,
		job.Attempts,
		job.ScheduledAt,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// createExportQuery writes the exports table the worker's export builder
// reads from.
const createExportQuery = `
	INSERT INTO exports (
		export_id, batch_id, user_id, export_type,
		status, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7
	)
`

// CreateExportWithJob inserts the export record and its job in one
// transaction, so there is never a job pointing at a missing record or an
// orphaned record no job will ever build.
func (s *Storage) CreateExportWithJob(ctx context.Context, record *domain.ExportRecord, job *domain.Job) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, createExportQuery,
		record.ID,
		record.BatchID,
		record.UserID,
		record.Type,
		record.Status,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create export record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (
			job_id, job_type, payload, status,
			attempts, scheduled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`,
		job.ID,
		job.Type,
		job.Payload,
		job.Status,
		job.Attempts,
		job.ScheduledAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export creation: %w", err)
	}

	return nil
}

func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT
			job_id, job_type, payload, status,
			COALESCE(error_message, '') AS error_message, attempts,
			scheduled_at, started_at, completed_at, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

const getExportQuery = `
	SELECT
		export_id, batch_id, user_id, export_type, status,
		COALESCE(storage_key, '') AS storage_key,
		COALESCE(file_url, '') AS file_url,
		COALESCE(file_size, 0) AS file_size,
		expires_at, created_at, updated_at
	FROM exports
	WHERE export_id = $1 AND user_id = $2
`

func (s *Storage) GetExport(ctx context.Context, exportID, userID string) (*domain.ExportRecord, error) {
	var record domain.ExportRecord
	err := s.db.GetContext(ctx, &record, getExportQuery, exportID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExportNotFound
		}
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	return &record, nil
}

// GetBatch resolves a batch owned by the given user.
func (s *Storage) GetBatch(ctx context.Context, batchID, userID string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `
		SELECT
			batch_id, project_id, user_id, name,
			date_from, date_to, statuses, categories
		FROM batches
		WHERE batch_id = $1 AND user_id = $2
	`

	err := s.db.GetContext(ctx, &batch, query, batchID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return &batch, nil
}

type ExportFilter struct {
	UserID   string
	Status   string
	Type     string
	PageSize int
	Cursor   *ExportCursor
}

type ExportCursor struct {
	CreatedAt time.Time
	ExportID  string
}

// ListExports pages through a user's exports, newest first. Fetches one row
// beyond the page size so the caller can tell whether more results exist.
func (s *Storage) ListExports(ctx context.Context, filter ExportFilter) ([]domain.ExportRecord, error) {
	query := `
		SELECT
			export_id, batch_id, user_id, export_type, status,
			COALESCE(storage_key, '') AS storage_key,
			COALESCE(file_url, '') AS file_url,
			COALESCE(file_size, 0) AS file_size,
			expires_at, created_at, updated_at
		FROM exports
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND export_type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, export_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ExportID)
		argIdx += 2
	}

	// Order by created_at DESC, export_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, export_id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var records []domain.ExportRecord
	err := s.db.SelectContext(ctx, &records, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	return records, nil
}
