package infer

import (
	"strings"
	"time"
)

// TwoDigitYearPivot controls how 2-digit years are interpreted. A parsed
// year more than this many years in the future is pushed back a century,
// so with pivot 20 in 2025: "46" means 1946, "24" means 2024.
var TwoDigitYearPivot = 20

// Layouts are split by year width because only 2-digit years need the
// pivot adjustment.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// ParseDateTime parses value under the loader's permissive date rule.
// It reports false for values no known layout accepts.
func ParseDateTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		// time.Parse maps 00-68 to 20xx and 69-99 to 19xx; apply our own
		// pivot so "46" stays in the past century.
		if t.Year() > pivotYear {
			t = t.AddDate(-100, 0, 0)
		}
		return t, true
	}

	return time.Time{}, false
}
