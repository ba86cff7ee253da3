package dto

type JobDTO struct {
	JobID       string `json:"job_id"`
	JobType     string `json:"job_type"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	ScheduledAt string `json:"scheduled_at"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type TriggerBatchCheckRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type TriggerBatchCheckResponse struct {
	JobID   string `json:"job_id"`
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
}
