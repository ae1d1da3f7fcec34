// Package dateutil holds the ISO calendar-date helpers shared by the store,
// the anchor resolver and the ranking engine. All dates travel as strings in
// "2006-01-02" form so that lexicographic comparison matches chronological
// order, both in Go and in SQLite.
package dateutil

import (
	"fmt"
	"time"
)

const isoLayout = "2006-01-02"

// ParseISO parses an ISO calendar date.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatISO renders a time as an ISO calendar date.
func FormatISO(t time.Time) string {
	return t.Format(isoLayout)
}

// DaysAgo returns the ISO date n calendar days before date.
func DaysAgo(date string, n int) (string, error) {
	t, err := ParseISO(date)
	if err != nil {
		return "", err
	}
	return FormatISO(t.AddDate(0, 0, -n)), nil
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseISO(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseISO(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// MostFrequent returns the modal value of dates. Ties resolve to the value
// seen earliest in the input, so a handful of stale rows cannot destabilize
// a market's as-of label.
func MostFrequent(dates []string) string {
	counts := make(map[string]int, len(dates))
	var order []string
	for _, d := range dates {
		if counts[d] == 0 {
			order = append(order, d)
		}
		counts[d]++
	}

	best := ""
	bestCount := 0
	for _, d := range order {
		if counts[d] > bestCount {
			best = d
			bestCount = counts[d]
		}
	}
	return best
}
