package domain

import (
	"time"

	"github.com/lib/pq"
)

// Expense is one reimbursable entry inside a project.
type Expense struct {
	ID        string    `db:"expense_id"`
	ProjectID string    `db:"project_id"`
	UserID    string    `db:"user_id"`
	Date      time.Time `db:"expense_date"`
	Amount    float64   `db:"amount"`
	Category  string    `db:"category"`
	Note      string    `db:"note"`
	Merchant  string    `db:"merchant"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// Receipt is an uploaded file, optionally linked to an expense. Amount and
// date come from upload-time extraction and may be absent. StorageKey may be
// empty for receipts whose upload never finished; such receipts are skipped
// by archive builders.
type Receipt struct {
	ID               string     `db:"receipt_id"`
	ProjectID        string     `db:"project_id"`
	UserID           string     `db:"user_id"`
	FileName         string     `db:"file_name"`
	ContentType      string     `db:"content_type"`
	Amount           *float64   `db:"amount"`
	Date             *time.Time `db:"receipt_date"`
	Category         string     `db:"category"`
	StorageKey       string     `db:"storage_key"`
	MatchedExpenseID *string    `db:"matched_expense_id"`
	CreatedAt        time.Time  `db:"created_at"`
}

// Batch is a saved, reusable filter over one project's expenses. The batch
// check handler writes IssueSummary; nothing else touches it.
type Batch struct {
	ID         string         `db:"batch_id"`
	ProjectID  string         `db:"project_id"`
	UserID     string         `db:"user_id"`
	Name       string         `db:"name"`
	DateFrom   *time.Time     `db:"date_from"`
	DateTo     *time.Time     `db:"date_to"`
	Statuses   pq.StringArray `db:"statuses"`
	Categories pq.StringArray `db:"categories"`
}

// ExpenseFilter narrows expense queries. All present predicates combine
// conjunctively.
type ExpenseFilter struct {
	UserID     string
	ProjectIDs []string
	Statuses   []string
	Categories []string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Issue types counted into a batch's issue summary.
const (
	IssueMissingReceipt   = "missing_receipt"
	IssueUnmatchedReceipt = "unmatched_receipt"
	IssueSuggestedMatch   = "suggested_match"
	IssueAmountMismatch   = "amount_mismatch"
	IssueDateMismatch     = "date_mismatch"
)
