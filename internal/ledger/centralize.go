package ledger

import (
	"sort"
	"time"
)

// centralizedLabel is the fixed ref label carried by synthetic lines.
const centralizedLabel = "Centralized entries"

// centralizeAccount collapses the account's lines into one synthetic line per
// journal per calendar month. Group structure is discarded; the cumulative
// fold is rerun over the synthetic lines from the account's initial balance.
func centralizeAccount(node *AccountNode, initialBalance float64, dateTo time.Time, future map[int64]struct{}) {
	type monthKey struct {
		journalID int64
		year      int
		month     time.Month
	}
	buckets := make(map[monthKey]*MovementLine)

	collapse := func(line MovementLine) {
		key := monthKey{journalID: line.JournalID, year: line.Date.Year(), month: line.Date.Month()}
		ml, ok := buckets[key]
		if !ok {
			ml = &MovementLine{
				JournalID: line.JournalID,
				RefLabel:  centralizedLabel,
				Date:      monthEndClamped(line.Date, dateTo),
			}
			buckets[key] = ml
		}
		ml.Debit += line.Debit
		ml.Credit += line.Credit
		ml.Balance += line.Debit - line.Credit
		ml.CurrencyBalance += line.CurrencyBalance
	}

	if len(node.Groups) > 0 {
		for _, g := range node.Groups {
			for _, line := range g.Lines {
				collapse(line)
			}
		}
	}
	for _, line := range node.Lines {
		collapse(line)
	}

	lines := make([]MovementLine, 0, len(buckets))
	for _, ml := range buckets {
		lines = append(lines, *ml)
	}
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].JournalID < lines[j].JournalID
	})
	recalculateCumulative(lines, initialBalance, future)

	node.Lines = lines
	node.Groups = nil
	node.GroupedBy = GroupingNone
}

// monthEndClamped returns the last day of the date's month, clamped to the
// period end when the natural month end falls after it.
func monthEndClamped(date, dateTo time.Time) time.Time {
	end := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location()).
		AddDate(0, 1, -1)
	if end.After(dateTo) {
		return dateTo
	}
	return end
}
