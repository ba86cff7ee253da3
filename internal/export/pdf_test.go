package export

import (
	"bytes"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

func TestRenderPDF_ListsExpensesAndReceipts(t *testing.T) {
	rows := []row{
		{
			Seq:     1,
			Expense: domain.Expense{ID: "e1", Date: day(5), Amount: 12.5, Category: "travel", Note: "airport taxi"},
			Receipts: []receiptFile{
				{Receipt: domain.Receipt{ID: "r1"}, FileName: "001_20240305_12.50_travel_r1.jpg"},
			},
		},
		{
			Seq:     2,
			Expense: domain.Expense{ID: "e2", Date: day(6), Amount: 99, Category: "meals"},
		},
	}

	data, err := renderPDF(rows)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	text := extractPDFText(t, data)
	assert.Contains(t, text, "Expense Export Index")
	assert.Contains(t, text, "2024-03-05")
	assert.Contains(t, text, "12.50")
	assert.Contains(t, text, "travel")
	assert.Contains(t, text, "001_20240305_12.50_travel_r1.jpg")
	assert.Contains(t, text, "99.00")
}

func TestRenderPDF_LongNoteTruncated(t *testing.T) {
	longNote := ""
	for i := 0; i < 20; i++ {
		longNote += "abcdefghij"
	}
	rows := []row{
		{Seq: 1, Expense: domain.Expense{ID: "e1", Date: day(5), Amount: 1, Note: longNote}},
	}

	data, err := renderPDF(rows)
	require.NoError(t, err)

	text := extractPDFText(t, data)
	assert.Contains(t, text, longNote[:40])
	assert.NotContains(t, text, longNote)
}

func TestRenderPDF_EmptySelection(t *testing.T) {
	data, err := renderPDF(nil)
	require.NoError(t, err)

	text := extractPDFText(t, data)
	assert.Contains(t, text, "No expenses matched the export filter.")
}

func extractPDFText(t *testing.T, data []byte) string {
	t.Helper()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var sb bytes.Buffer
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		require.NoError(t, err)
		sb.WriteString(content)
	}
	return sb.String()
}
