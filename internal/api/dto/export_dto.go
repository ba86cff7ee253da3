package dto

type CreateExportRequest struct {
	UserID     string   `json:"user_id" binding:"required"`
	Type       string   `json:"type" binding:"required"`
	BatchID    string   `json:"batch_id"`
	ProjectIDs []string `json:"project_ids"`
}

type ListExportsRequest struct {
	UserID   string `form:"user_id" binding:"required"`
	Status   string `form:"status"`
	Type     string `form:"type"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListExportsResponse struct {
	Exports    []ExportDTO `json:"exports"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type ExportDTO struct {
	ExportID  string `json:"export_id"`
	BatchID   string `json:"batch_id,omitempty"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	FileURL   string `json:"file_url,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type CreateExportResponse struct {
	Export ExportDTO `json:"export"`
	JobID  string    `json:"job_id"`
}
