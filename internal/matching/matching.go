// Package matching scores receipts against candidate expenses. It is a pure
// function over its inputs: no storage, no clock, safe for concurrent use.
package matching

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

// Rules are the externally supplied matching defaults.
type Rules struct {
	DateWindowDays       int
	AmountTolerance      float64
	RequireCategoryMatch bool
}

// Confidence classifies how reliable a receipt-to-expense match is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Candidate is one suggested expense for a receipt. The internal ranking
// score is not part of the result shape.
type Candidate struct {
	ExpenseID  string
	Confidence Confidence
	Reason     string
}

// maxCandidates caps how many suggestions are surfaced per receipt.
const maxCandidates = 3

// noDateDiff marks a candidate whose date distance could not be computed.
// It sorts below any real window and forces the low confidence tier.
const noDateDiff = int(^uint(0) >> 1)

type scored struct {
	candidate Candidate
	score     int
}

// FindCandidates returns up to three expenses the receipt plausibly belongs
// to, ordered by descending score with ties broken by input order.
func FindCandidates(receipt domain.Receipt, expenses []domain.Expense, rules Rules) []Candidate {
	// A receipt with neither amount nor date cannot discriminate anything.
	if receipt.Amount == nil && receipt.Date == nil {
		return nil
	}

	var survivors []scored
	for _, expense := range expenses {
		// Hard amount gate: both sides need an amount, the expense needs a
		// date, and the amounts must agree within tolerance.
		if receipt.Amount == nil || expense.Date.IsZero() {
			continue
		}
		diff := expense.Amount - *receipt.Amount
		if diff < 0 {
			diff = -diff
		}
		if diff > rules.AmountTolerance {
			continue
		}

		dateDiff := noDateDiff
		if receipt.Date != nil {
			dateDiff = DaysBetween(expense.Date, *receipt.Date)
		}
		dateMatch := dateDiff != noDateDiff && dateDiff <= rules.DateWindowDays

		categoryMatch := !rules.RequireCategoryMatch ||
			receipt.Category == "" || expense.Category == "" ||
			receipt.Category == expense.Category

		var confidence Confidence
		switch {
		case dateDiff <= 1 && categoryMatch:
			confidence = ConfidenceHigh
		case dateDiff <= 3:
			confidence = ConfidenceMedium
		default:
			confidence = ConfidenceLow
		}

		// Amount-only matches outside the date window are not worth surfacing.
		if !dateMatch && confidence == ConfidenceLow {
			continue
		}

		score := 0
		if dateDiff != noDateDiff && dateDiff < 10 {
			score = 10 - dateDiff
		}
		if categoryMatch {
			score += 2
		}

		survivors = append(survivors, scored{
			candidate: Candidate{
				ExpenseID:  expense.ID,
				Confidence: confidence,
				Reason:     buildReason(dateDiff, categoryMatch),
			},
			score: score,
		})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].score > survivors[j].score
	})
	if len(survivors) > maxCandidates {
		survivors = survivors[:maxCandidates]
	}

	var candidates []Candidate
	for _, s := range survivors {
		candidates = append(candidates, s.candidate)
	}
	return candidates
}

// buildReason concatenates the date and category segments in a fixed order.
// When neither applies the match rests on the amount alone.
func buildReason(dateDiff int, categoryMatch bool) string {
	var parts []string
	if dateDiff != noDateDiff {
		parts = append(parts, fmt.Sprintf("date+/-%dd", dateDiff))
	}
	if categoryMatch {
		parts = append(parts, "category")
	}
	if len(parts) == 0 {
		return "amount"
	}
	return strings.Join(parts, ", ")
}

// DaysBetween returns the absolute distance in calendar days, ignoring the
// time-of-day component on both sides.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(au.Sub(bu).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
