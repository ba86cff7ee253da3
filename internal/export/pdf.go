package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// maxNoteInPDF bounds how much of a note the index shows per expense.
const maxNoteInPDF = 80

// renderPDF produces the human-scannable index: one block per expense with
// its sequence number, date, amount, category, truncated note, and the
// archive filenames of its receipts. It is an index, not a full archive.
func renderPDF(rows []row) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Expense Export Index", false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, "Expense Export Index", "", 1, "L", false, 0, "")
	doc.Ln(2)

	if len(rows) == 0 {
		doc.SetFont("Helvetica", "I", 11)
		doc.CellFormat(0, 8, "No expenses matched the export filter.", "", 1, "L", false, 0, "")
	}

	for _, r := range rows {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 7, fmt.Sprintf("#%03d  %s  %.2f",
			r.Seq, r.Expense.Date.Format("2006-01-02"), r.Expense.Amount),
			"", 1, "L", false, 0, "")

		doc.SetFont("Helvetica", "", 10)
		if r.Expense.Category != "" {
			doc.CellFormat(0, 5, "Category: "+r.Expense.Category, "", 1, "L", false, 0, "")
		}
		if r.Expense.Note != "" {
			doc.MultiCell(0, 5, "Note: "+truncate(r.Expense.Note, maxNoteInPDF), "", "L", false)
		}
		for _, rf := range r.Receipts {
			doc.CellFormat(0, 5, "Receipt: "+rf.FileName, "", 1, "L", false, 0, "")
		}
		doc.Ln(3)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
