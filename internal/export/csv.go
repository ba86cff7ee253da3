package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

// utf8BOM makes spreadsheet applications detect the encoding correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const csvDateFormat = "2006-01-02"

// renderCSV emits the fixed header row plus one row per expense, extended
// with the optional columns the template enables. An empty expense set still
// yields a valid header-only file.
func renderCSV(rows []row, template domain.ExportTemplate) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)

	header := []string{"No.", "Date", "Amount", "Category", "Note"}
	if template.IncludeMerchant {
		header = append(header, "Merchant")
	}
	if template.IncludeExpenseID {
		header = append(header, "Expense ID")
	}
	if template.IncludeReceiptIDs {
		header = append(header, "Receipt IDs")
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			fmt.Sprintf("%d", r.Seq),
			r.Expense.Date.Format(csvDateFormat),
			fmt.Sprintf("%.2f", r.Expense.Amount),
			r.Expense.Category,
			r.Expense.Note,
		}
		if template.IncludeMerchant {
			record = append(record, r.Expense.Merchant)
		}
		if template.IncludeExpenseID {
			record = append(record, r.Expense.ID)
		}
		if template.IncludeReceiptIDs {
			ids := make([]string, len(r.Receipts))
			for i, rf := range r.Receipts {
				ids[i] = rf.Receipt.ID
			}
			record = append(record, strings.Join(ids, ";"))
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row %d: %w", r.Seq, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
