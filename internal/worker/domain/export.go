package domain

import "time"

// ExportType selects the artifact an export job renders.
type ExportType string

const (
	ExportTypeCSV  ExportType = "csv"
	ExportTypeZIP  ExportType = "zip"
	ExportTypePDF  ExportType = "pdf"
	ExportTypeHTML ExportType = "html"
)

// Export record status constants.
const (
	ExportStatusPending = "pending"
	ExportStatusRunning = "running"
	ExportStatusDone    = "done"
	ExportStatusFailed  = "failed"
)

// ExportRecord tracks one export request from creation to a downloadable
// artifact. StorageKey, FileURL and FileSize are written only on success;
// the record is immutable once done or failed.
type ExportRecord struct {
	ID         string     `db:"export_id"`
	BatchID    *string    `db:"batch_id"`
	UserID     string     `db:"user_id"`
	Type       ExportType `db:"export_type"`
	Status     string     `db:"status"`
	StorageKey string     `db:"storage_key"`
	FileURL    string     `db:"file_url"`
	FileSize   int64      `db:"file_size"`
	ExpiresAt  *time.Time `db:"expires_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// ExportTemplate is the per-user configuration controlling which optional
// columns and sections appear in generated artifacts.
type ExportTemplate struct {
	UserID            string `db:"user_id"`
	SortDescending    bool   `db:"sort_descending"`
	IncludeMerchant   bool   `db:"include_merchant"`
	IncludeExpenseID  bool   `db:"include_expense_id"`
	IncludeReceiptIDs bool   `db:"include_receipt_ids"`
	IncludePDFIndex   bool   `db:"include_pdf_index"`
}
