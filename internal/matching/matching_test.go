package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func amountPtr(v float64) *float64 {
	return &v
}

func TestFindCandidates(t *testing.T) {
	defaultRules := Rules{
		DateWindowDays:       3,
		AmountTolerance:      0,
		RequireCategoryMatch: false,
	}

	tests := []struct {
		name     string
		receipt  domain.Receipt
		expenses []domain.Expense
		rules    Rules
		want     []Candidate
	}{
		{
			name: "exact match yields single high confidence candidate",
			receipt: domain.Receipt{
				ID:       "r1",
				Amount:   amountPtr(100),
				Date:     datePtr("2024-05-01"),
				Category: "travel",
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01"), Category: "travel"},
				{ID: "b", Amount: 50, Date: date("2024-05-01"), Category: "travel"},
			},
			rules: defaultRules,
			want: []Candidate{
				{ExpenseID: "a", Confidence: ConfidenceHigh, Reason: "date+/-0d, category"},
			},
		},
		{
			name: "amount outside tolerance rejects regardless of date and category",
			receipt: domain.Receipt{
				Amount:   amountPtr(120),
				Date:     datePtr("2024-05-01"),
				Category: "travel",
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01"), Category: "travel"},
			},
			rules: defaultRules,
			want:  nil,
		},
		{
			name: "amount within tolerance passes the gate",
			receipt: domain.Receipt{
				Amount: amountPtr(99.5),
				Date:   datePtr("2024-05-01"),
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01")},
			},
			rules: Rules{DateWindowDays: 3, AmountTolerance: 1},
			want: []Candidate{
				{ExpenseID: "a", Confidence: ConfidenceHigh, Reason: "date+/-0d, category"},
			},
		},
		{
			name: "receipt with neither amount nor date returns nothing",
			receipt: domain.Receipt{
				Category: "travel",
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01"), Category: "travel"},
			},
			rules: defaultRules,
			want:  nil,
		},
		{
			name: "receipt without amount fails the gate even with a date",
			receipt: domain.Receipt{
				Date: datePtr("2024-05-01"),
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01")},
			},
			rules: defaultRules,
			want:  nil,
		},
		{
			name: "expense without date is discarded",
			receipt: domain.Receipt{
				Amount: amountPtr(100),
				Date:   datePtr("2024-05-01"),
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100},
			},
			rules: defaultRules,
			want:  nil,
		},
		{
			name: "two day gap is medium confidence",
			receipt: domain.Receipt{
				Amount: amountPtr(100),
				Date:   datePtr("2024-05-01"),
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-03")},
			},
			rules: defaultRules,
			want: []Candidate{
				{ExpenseID: "a", Confidence: ConfidenceMedium, Reason: "date+/-2d, category"},
			},
		},
		{
			name: "category mismatch under strict rules blocks high tier but not medium",
			receipt: domain.Receipt{
				Amount:   amountPtr(100),
				Date:     datePtr("2024-05-01"),
				Category: "meals",
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01"), Category: "travel"},
			},
			rules: Rules{DateWindowDays: 3, AmountTolerance: 0, RequireCategoryMatch: true},
			want: []Candidate{
				{ExpenseID: "a", Confidence: ConfidenceMedium, Reason: "date+/-0d"},
			},
		},
		{
			name: "strict category rules still match when either side lacks a category",
			receipt: domain.Receipt{
				Amount: amountPtr(100),
				Date:   datePtr("2024-05-01"),
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01"), Category: "travel"},
			},
			rules: Rules{DateWindowDays: 3, AmountTolerance: 0, RequireCategoryMatch: true},
			want: []Candidate{
				{ExpenseID: "a", Confidence: ConfidenceHigh, Reason: "date+/-0d, category"},
			},
		},
		{
			name: "amount-only match outside the date window is suppressed",
			receipt: domain.Receipt{
				Amount: amountPtr(100),
				Date:   datePtr("2024-05-01"),
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-09")},
			},
			rules: defaultRules,
			want:  nil,
		},
		{
			name: "receipt without date never reaches the date window",
			receipt: domain.Receipt{
				Amount: amountPtr(100),
			},
			expenses: []domain.Expense{
				{ID: "a", Amount: 100, Date: date("2024-05-01")},
			},
			rules: defaultRules,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindCandidates(tt.receipt, tt.expenses, tt.rules)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindCandidates_TopThreeByDescendingScore(t *testing.T) {
	receipt := domain.Receipt{
		Amount: amountPtr(100),
		Date:   datePtr("2024-05-10"),
	}

	// Five valid candidates with distinct scores, listed worst-first so the
	// sort has to do real work.
	expenses := []domain.Expense{
		{ID: "e4", Amount: 100, Date: date("2024-05-14")},
		{ID: "e3", Amount: 100, Date: date("2024-05-13")},
		{ID: "e2", Amount: 100, Date: date("2024-05-12")},
		{ID: "e1", Amount: 100, Date: date("2024-05-11")},
		{ID: "e0", Amount: 100, Date: date("2024-05-10")},
	}

	got := FindCandidates(receipt, expenses, Rules{DateWindowDays: 7, AmountTolerance: 0})

	require.Len(t, got, 3)
	assert.Equal(t, "e0", got[0].ExpenseID)
	assert.Equal(t, "e1", got[1].ExpenseID)
	assert.Equal(t, "e2", got[2].ExpenseID)
}

func TestFindCandidates_TiesKeepInputOrder(t *testing.T) {
	receipt := domain.Receipt{
		Amount: amountPtr(42),
		Date:   datePtr("2024-05-10"),
	}

	// Same date distance either side of the receipt, identical scores.
	expenses := []domain.Expense{
		{ID: "first", Amount: 42, Date: date("2024-05-12")},
		{ID: "second", Amount: 42, Date: date("2024-05-08")},
	}

	got := FindCandidates(receipt, expenses, Rules{DateWindowDays: 7, AmountTolerance: 0})

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ExpenseID)
	assert.Equal(t, "second", got[1].ExpenseID)
}

func TestFindCandidates_Deterministic(t *testing.T) {
	receipt := domain.Receipt{
		Amount:   amountPtr(100),
		Date:     datePtr("2024-05-01"),
		Category: "travel",
	}
	expenses := []domain.Expense{
		{ID: "a", Amount: 100, Date: date("2024-05-01"), Category: "travel"},
		{ID: "b", Amount: 100, Date: date("2024-05-02"), Category: "travel"},
		{ID: "c", Amount: 100, Date: date("2024-05-03"), Category: "meals"},
	}
	rules := Rules{DateWindowDays: 3, AmountTolerance: 0}

	first := FindCandidates(receipt, expenses, rules)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FindCandidates(receipt, expenses, rules))
	}
}
