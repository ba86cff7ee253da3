package export

import (
	"fmt"
	"path"
	"strings"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

// maxNoteInFileName keeps note fragments from blowing up filename length.
const maxNoteInFileName = 20

// receiptFileName derives a normalized, unique and stable archive filename
// for one receipt of one expense. The sub-index suffix appears only when the
// expense has more than one receipt.
func receiptFileName(seq int, expense domain.Expense, receipt domain.Receipt, subIndex, total int) string {
	parts := []string{
		fmt.Sprintf("%03d", seq),
		expense.Date.Format("20060102"),
		fmt.Sprintf("%.2f", expense.Amount),
	}

	if expense.Category != "" {
		parts = append(parts, sanitizeFileNamePart(expense.Category))
	}
	if note := sanitizeFileNamePart(truncate(expense.Note, maxNoteInFileName)); note != "" {
		parts = append(parts, note)
	}
	parts = append(parts, shortID(receipt.ID))

	name := strings.Join(parts, "_")
	if total > 1 {
		name = fmt.Sprintf("%s-%d", name, subIndex)
	}

	return name + receiptExtension(receipt)
}

// receiptExtension prefers the uploaded filename's extension and falls back
// to the content type.
func receiptExtension(receipt domain.Receipt) string {
	if ext := strings.ToLower(path.Ext(receipt.FileName)); ext != "" {
		return ext
	}

	switch receipt.ContentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

// sanitizeFileNamePart replaces anything outside [A-Za-z0-9-] with
// underscores and collapses runs so names stay portable across filesystems.
func sanitizeFileNamePart(s string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(sb.String(), "_")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// shortID keeps filenames readable while still tying them to a receipt row.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
