package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensio/expensio-be/internal/matching"
	"github.com/expensio/expensio-be/internal/worker/domain"
)

type fakeBatchCheckStore struct {
	batch    *domain.Batch
	expenses []domain.Expense
	receipts []domain.Receipt

	summaries      map[string]map[string]int
	expenseFilters []domain.ExpenseFilter
}

func newFakeBatchCheckStore() *fakeBatchCheckStore {
	return &fakeBatchCheckStore{summaries: make(map[string]map[string]int)}
}

func (f *fakeBatchCheckStore) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	if f.batch == nil || f.batch.ID != batchID {
		return nil, domain.ErrBatchNotFound
	}
	return f.batch, nil
}

func (f *fakeBatchCheckStore) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	f.expenseFilters = append(f.expenseFilters, filter)
	return f.expenses, nil
}

func (f *fakeBatchCheckStore) ListReceipts(ctx context.Context, userID string, projectIDs []string) ([]domain.Receipt, error) {
	return f.receipts, nil
}

func (f *fakeBatchCheckStore) UpdateBatchIssueSummary(ctx context.Context, batchID string, summary map[string]int) error {
	f.summaries[batchID] = summary
	return nil
}

func defaultRules() matching.Rules {
	return matching.Rules{
		DateWindowDays:  3,
		AmountTolerance: 0.01,
	}
}

func strPtr(s string) *string        { return &s }
func floatPtr(f float64) *float64    { return &f }
func timePtr(t time.Time) *time.Time { return &t }
func day(d int) time.Time            { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func TestBatchCheck_VanishedBatchIsNoOp(t *testing.T) {
	store := newFakeBatchCheckStore()
	check := NewBatchCheck(store, defaultRules(), testLogger())

	err := check.Check(context.Background(), domain.BatchCheckPayload{BatchID: "gone", UserID: "u1"})

	require.NoError(t, err)
	assert.Empty(t, store.summaries)
	assert.Empty(t, store.expenseFilters)
}

func TestBatchCheck_FilterComesFromBatch(t *testing.T) {
	from := day(1)
	to := day(31)
	store := newFakeBatchCheckStore()
	store.batch = &domain.Batch{
		ID:         "b1",
		ProjectID:  "p1",
		UserID:     "u1",
		DateFrom:   &from,
		DateTo:     &to,
		Statuses:   []string{"submitted"},
		Categories: []string{"travel"},
	}

	check := NewBatchCheck(store, defaultRules(), testLogger())
	err := check.Check(context.Background(), domain.BatchCheckPayload{BatchID: "b1", UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, store.expenseFilters, 1)
	filter := store.expenseFilters[0]
	assert.Equal(t, "u1", filter.UserID)
	assert.Equal(t, []string{"p1"}, filter.ProjectIDs)
	assert.Equal(t, []string{"submitted"}, filter.Statuses)
	assert.Equal(t, []string{"travel"}, filter.Categories)
	assert.Equal(t, &from, filter.DateFrom)
	assert.Equal(t, &to, filter.DateTo)
}

func TestBatchCheck_SummaryCounts(t *testing.T) {
	store := newFakeBatchCheckStore()
	store.batch = &domain.Batch{ID: "b1", ProjectID: "p1", UserID: "u1"}

	store.expenses = []domain.Expense{
		// Fully covered by r1 below.
		{ID: "e1", Date: day(10), Amount: 50, Category: "meals"},
		// No receipt at all.
		{ID: "e2", Date: day(11), Amount: 75, Category: "travel"},
		// Linked receipt disagrees on both amount and date.
		{ID: "e3", Date: day(12), Amount: 100, Category: "supplies"},
		// Plausible home for the unlinked r3.
		{ID: "e4", Date: day(20), Amount: 33.5, Category: "meals"},
	}
	store.receipts = []domain.Receipt{
		{ID: "r1", MatchedExpenseID: strPtr("e1"), Amount: floatPtr(50), Date: timePtr(day(10))},
		{ID: "r2", MatchedExpenseID: strPtr("e3"), Amount: floatPtr(90), Date: timePtr(day(25))},
		{ID: "r3", Amount: floatPtr(33.5), Date: timePtr(day(20)), Category: "meals"},
		// No amount and a date far from everything: a true orphan.
		{ID: "r4", Date: timePtr(day(1))},
	}

	check := NewBatchCheck(store, defaultRules(), testLogger())
	err := check.Check(context.Background(), domain.BatchCheckPayload{BatchID: "b1", UserID: "u1"})
	require.NoError(t, err)

	summary := store.summaries["b1"]
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary[domain.IssueMissingReceipt], "e2 has no receipt")
	assert.Equal(t, 1, summary[domain.IssueAmountMismatch], "r2 is off by 10 against e3")
	assert.Equal(t, 1, summary[domain.IssueDateMismatch], "r2 is 13 days away from e3")
	assert.Equal(t, 1, summary[domain.IssueSuggestedMatch], "r3 fits e4")
	assert.Equal(t, 1, summary[domain.IssueUnmatchedReceipt], "r4 fits nothing")
}

func TestBatchCheck_CleanBatchKeepsStableShape(t *testing.T) {
	store := newFakeBatchCheckStore()
	store.batch = &domain.Batch{ID: "b1", ProjectID: "p1", UserID: "u1"}
	store.expenses = []domain.Expense{
		{ID: "e1", Date: day(10), Amount: 50, Category: "meals"},
	}
	store.receipts = []domain.Receipt{
		{ID: "r1", MatchedExpenseID: strPtr("e1"), Amount: floatPtr(50), Date: timePtr(day(10))},
	}

	check := NewBatchCheck(store, defaultRules(), testLogger())
	err := check.Check(context.Background(), domain.BatchCheckPayload{BatchID: "b1", UserID: "u1"})
	require.NoError(t, err)

	summary := store.summaries["b1"]
	require.NotNil(t, summary)
	require.Len(t, summary, 5, "all issue types must be present even when zero")
	for issue, count := range summary {
		assert.Zero(t, count, "unexpected %s count", issue)
	}
}

func TestBatchCheck_ReceiptWithoutExtractionOnlyChecksLinkage(t *testing.T) {
	store := newFakeBatchCheckStore()
	store.batch = &domain.Batch{ID: "b1", ProjectID: "p1", UserID: "u1"}
	store.expenses = []domain.Expense{
		{ID: "e1", Date: day(10), Amount: 50},
	}
	// Linked but nothing was extracted: no amount or date to disagree on.
	store.receipts = []domain.Receipt{
		{ID: "r1", MatchedExpenseID: strPtr("e1")},
	}

	check := NewBatchCheck(store, defaultRules(), testLogger())
	err := check.Check(context.Background(), domain.BatchCheckPayload{BatchID: "b1", UserID: "u1"})
	require.NoError(t, err)

	summary := store.summaries["b1"]
	assert.Zero(t, summary[domain.IssueAmountMismatch])
	assert.Zero(t, summary[domain.IssueDateMismatch])
	assert.Zero(t, summary[domain.IssueMissingReceipt])
}
