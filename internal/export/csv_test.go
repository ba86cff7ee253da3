package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

func TestRenderCSV_StartsWithBOM(t *testing.T) {
	data, err := renderCSV(nil, domain.ExportTemplate{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, utf8BOM))
}

func TestRenderCSV_AllOptionalColumns(t *testing.T) {
	rows := []row{
		{
			Seq:     1,
			Expense: domain.Expense{ID: "exp-1", Date: day(5), Amount: 10, Category: "meals", Note: "lunch", Merchant: "Cafe Nine"},
			Receipts: []receiptFile{
				{Receipt: domain.Receipt{ID: "r1"}},
				{Receipt: domain.Receipt{ID: "r2"}},
			},
		},
	}
	template := domain.ExportTemplate{
		IncludeMerchant:   true,
		IncludeExpenseID:  true,
		IncludeReceiptIDs: true,
	}

	data, err := renderCSV(rows, template)
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t,
		[]string{"No.", "Date", "Amount", "Category", "Note", "Merchant", "Expense ID", "Receipt IDs"},
		records[0])
	assert.Equal(t,
		[]string{"1", "2024-03-05", "10.00", "meals", "lunch", "Cafe Nine", "exp-1", "r1;r2"},
		records[1])
}

func TestRenderCSV_QuotesEmbeddedDelimiters(t *testing.T) {
	rows := []row{
		{
			Seq:     1,
			Expense: domain.Expense{ID: "exp-1", Date: day(5), Amount: 10, Note: `dinner, "team"`},
		},
	}

	data, err := renderCSV(rows, domain.ExportTemplate{})
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t, `dinner, "team"`, records[1][4])
}
