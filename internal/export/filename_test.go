package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

func TestReceiptFileName(t *testing.T) {
	expense := domain.Expense{
		ID:       "exp-1",
		Date:     day(7),
		Amount:   42.5,
		Category: "meals",
		Note:     "team lunch",
	}
	receipt := domain.Receipt{
		ID:       "aabbccddeeff",
		FileName: "IMG_2041.JPG",
	}

	name := receiptFileName(3, expense, receipt, 1, 1)

	assert.Equal(t, "003_20240307_42.50_meals_team_lunch_aabbccdd.jpg", name)
}

func TestReceiptFileName_SubIndexOnlyWhenMultiple(t *testing.T) {
	expense := domain.Expense{ID: "exp-1", Date: day(7), Amount: 10}
	receipt := domain.Receipt{ID: "r1", FileName: "scan.pdf"}

	single := receiptFileName(1, expense, receipt, 1, 1)
	assert.NotContains(t, single, "-1", "single receipt needs no sub-index")

	first := receiptFileName(1, expense, receipt, 1, 2)
	second := receiptFileName(1, expense, receipt, 2, 2)
	assert.Contains(t, first, "-1.pdf")
	assert.Contains(t, second, "-2.pdf")
	assert.NotEqual(t, first, second)
}

func TestReceiptFileName_LongNoteTruncated(t *testing.T) {
	expense := domain.Expense{
		ID:     "exp-1",
		Date:   day(7),
		Amount: 10,
		Note:   "a very long note that definitely exceeds the limit",
	}
	receipt := domain.Receipt{ID: "r1", FileName: "x.png"}

	name := receiptFileName(1, expense, receipt, 1, 1)

	assert.Contains(t, name, "a_very_long_note_tha")
	assert.NotContains(t, name, "exceeds")
}

func TestReceiptFileName_UnsafeCharactersCollapsed(t *testing.T) {
	expense := domain.Expense{
		ID:       "exp-1",
		Date:     day(7),
		Amount:   10,
		Category: "café & bar",
		Note:     "räksmörgås!!",
	}
	receipt := domain.Receipt{ID: "r1", FileName: "x.png"}

	name := receiptFileName(1, expense, receipt, 1, 1)

	assert.Equal(t, "001_20240307_10.00_caf_bar_r_ksm_rg_s_r1.png", name)
}

func TestReceiptExtension(t *testing.T) {
	tests := []struct {
		name    string
		receipt domain.Receipt
		want    string
	}{
		{"from filename", domain.Receipt{FileName: "photo.JPG"}, ".jpg"},
		{"filename wins over content type", domain.Receipt{FileName: "photo.png", ContentType: "application/pdf"}, ".png"},
		{"jpeg content type", domain.Receipt{ContentType: "image/jpeg"}, ".jpg"},
		{"png content type", domain.Receipt{ContentType: "image/png"}, ".png"},
		{"pdf content type", domain.Receipt{ContentType: "application/pdf"}, ".pdf"},
		{"nothing known", domain.Receipt{}, ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, receiptExtension(tt.receipt))
		})
	}
}

func TestSanitizeFileNamePart(t *testing.T) {
	assert.Equal(t, "taxi-ride", sanitizeFileNamePart("taxi-ride"))
	assert.Equal(t, "a_b", sanitizeFileNamePart("a   b"))
	assert.Equal(t, "trimmed", sanitizeFileNamePart("  trimmed  "))
	assert.Equal(t, "", sanitizeFileNamePart("!!!"))
}
