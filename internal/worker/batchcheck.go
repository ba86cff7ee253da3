package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/expensio/expensio-be/internal/matching"
	"github.com/expensio/expensio-be/internal/worker/domain"
)

// BatchCheckStore is the slice of the database the batch check needs.
type BatchCheckStore interface {
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	ListReceipts(ctx context.Context, userID string, projectIDs []string) ([]domain.Receipt, error)
	UpdateBatchIssueSummary(ctx context.Context, batchID string, summary map[string]int) error
}

// BatchCheck scans the expenses and receipts selected by a batch filter for
// consistency issues and writes the per-issue counts back onto the batch.
type BatchCheck struct {
	store  BatchCheckStore
	rules  matching.Rules
	logger *slog.Logger
}

// NewBatchCheck creates the batch check handler.
func NewBatchCheck(store BatchCheckStore, rules matching.Rules, logger *slog.Logger) *BatchCheck {
	return &BatchCheck{
		store:  store,
		rules:  rules,
		logger: logger,
	}
}

// Check runs the consistency check for one batch. A vanished batch is a
// benign no-op.
func (c *BatchCheck) Check(ctx context.Context, payload domain.BatchCheckPayload) error {
	batch, err := c.store.GetBatch(ctx, payload.BatchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			c.logger.Warn("Batch vanished, skipping check",
				slog.String("batch_id", payload.BatchID),
			)
			return nil
		}
		return fmt.Errorf("failed to load batch: %w", err)
	}

	filter := domain.ExpenseFilter{
		UserID:     batch.UserID,
		ProjectIDs: []string{batch.ProjectID},
		Statuses:   batch.Statuses,
		Categories: batch.Categories,
		DateFrom:   batch.DateFrom,
		DateTo:     batch.DateTo,
	}

	expenses, err := c.store.ListExpenses(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to query expenses: %w", err)
	}

	receipts, err := c.store.ListReceipts(ctx, batch.UserID, []string{batch.ProjectID})
	if err != nil {
		return fmt.Errorf("failed to query receipts: %w", err)
	}

	summary := c.summarize(expenses, receipts)

	if err := c.store.UpdateBatchIssueSummary(ctx, batch.ID, summary); err != nil {
		return fmt.Errorf("failed to store issue summary: %w", err)
	}

	c.logger.Info("Batch check completed",
		slog.String("batch_id", batch.ID),
		slog.Int("expenses", len(expenses)),
		slog.Int("receipts", len(receipts)),
		slog.Any("summary", summary),
	)

	return nil
}

// summarize counts consistency issues across the batch. All issue types are
// present in the result, zero-valued when clean, so consumers see a stable
// shape.
func (c *BatchCheck) summarize(expenses []domain.Expense, receipts []domain.Receipt) map[string]int {
	summary := map[string]int{
		domain.IssueMissingReceipt:   0,
		domain.IssueUnmatchedReceipt: 0,
		domain.IssueSuggestedMatch:   0,
		domain.IssueAmountMismatch:   0,
		domain.IssueDateMismatch:     0,
	}

	linkedByExpense := make(map[string][]domain.Receipt)
	for _, r := range receipts {
		if r.MatchedExpenseID != nil {
			linkedByExpense[*r.MatchedExpenseID] = append(linkedByExpense[*r.MatchedExpenseID], r)
		}
	}

	for _, expense := range expenses {
		linked := linkedByExpense[expense.ID]
		if len(linked) == 0 {
			summary[domain.IssueMissingReceipt]++
			continue
		}

		for _, r := range linked {
			if r.Amount != nil {
				diff := expense.Amount - *r.Amount
				if diff < 0 {
					diff = -diff
				}
				if diff > c.rules.AmountTolerance {
					summary[domain.IssueAmountMismatch]++
				}
			}
			if r.Date != nil && matching.DaysBetween(expense.Date, *r.Date) > c.rules.DateWindowDays {
				summary[domain.IssueDateMismatch]++
			}
		}
	}

	// Unlinked receipts either have a plausible home among the batch's
	// expenses or are truly orphaned.
	for _, r := range receipts {
		if r.MatchedExpenseID != nil {
			continue
		}
		if len(matching.FindCandidates(r, expenses, c.rules)) > 0 {
			summary[domain.IssueSuggestedMatch]++
		} else {
			summary[domain.IssueUnmatchedReceipt]++
		}
	}

	return summary
}
