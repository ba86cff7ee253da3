package domain

import (
	"encoding/json"
	"time"
)

// JobType identifies which handler a claimed job is dispatched to.
type JobType string

const (
	JobTypeBatchCheck JobType = "batch_check"
	JobTypeExport     JobType = "export"
)

// Job status constants. A job whose attempts have reached the configured
// maximum while status=failed is never claimed again; there is no separate
// dead status, dead jobs simply stop matching the eligibility predicate.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job is one durable unit of asynchronous work. Rows are inserted by the API
// service with status=pending and attempts=0, mutated only by the worker,
// and never deleted (they double as an audit trail).
type Job struct {
	ID          string          `db:"job_id"`
	Type        JobType         `db:"job_type"`
	Payload     json.RawMessage `db:"payload"`
	Status      string          `db:"status"`
	Error       string          `db:"error_message"`
	Attempts    int             `db:"attempts"`
	ScheduledAt time.Time       `db:"scheduled_at"`
	StartedAt   *time.Time      `db:"started_at"`
	CompletedAt *time.Time      `db:"completed_at"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// JobNotification is the message published by the API service after
// inserting a job row. It only wakes the poller early; the database row
// remains the source of truth and a lost message costs at most one tick.
type JobNotification struct {
	JobID string `json:"job_id"`
}
