package roster

import (
	"sort"
	"strings"
	"time"
)

const maxSummaryDates = 3

// Relevant reports whether the change between two canonical roster versions
// touches at least one event inside the alert window [today,
// today+windowDays], and produces a short human-readable summary of the
// earliest affected dates for the notification body. Only the event records
// that actually differ count: a roster routinely carries unchanged near-term
// duties next to a far-future edit, and far-future edits are routinely
// re-revised before they matter.
func Relevant(previousCanonical, canonical string, windowDays int, now time.Time) (bool, string) {
	today := dateOnly(now)
	end := today.AddDate(0, 0, windowDays)

	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, block := range changedBlocks(previousCanonical, canonical) {
		start, ok := eventStart(block)
		if !ok {
			continue
		}
		if start.Before(today) || start.After(end) {
			continue
		}
		if seen[start] {
			continue
		}
		seen[start] = true
		dates = append(dates, start)
	}

	if len(dates) == 0 {
		return false, ""
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) > maxSummaryDates {
		dates = dates[:maxSummaryDates]
	}

	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = d.Format("Mon, 2 Jan")
	}

	// Each date already contains a comma, so the list separator must not.
	return true, strings.Join(formatted, "; ")
}

// changedBlocks returns the symmetric difference of the event blocks of two
// canonical versions: records added, removed, or modified relative to the
// previous version (a modified event contributes both its old and new form).
func changedBlocks(previous, current string) [][]string {
	unmatched := countBlocks(previous)

	var changed [][]string
	for _, block := range splitEvents(strings.Split(current, "\n")) {
		key := strings.Join(block, "\n")
		if unmatched[key] > 0 {
			unmatched[key]--
			continue
		}
		changed = append(changed, block)
	}

	for key, n := range unmatched {
		for ; n > 0; n-- {
			changed = append(changed, strings.Split(key, "\n"))
		}
	}

	return changed
}

func countBlocks(canonical string) map[string]int {
	counts := make(map[string]int)
	for _, block := range splitEvents(strings.Split(canonical, "\n")) {
		counts[strings.Join(block, "\n")]++
	}
	return counts
}
