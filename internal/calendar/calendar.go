// Package calendar converts between projection month indexes and ISO dates.
//
// Every date handled here is normalized to the first day of its month, so a
// projection start of 2025-06-15 behaves exactly like 2025-06-01.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
)

// ISOLayout is the YYYY-MM-DD layout used by chart data and projections.
const ISOLayout = "2006-01-02"

// ParseISO parses YYYY-MM-DD (or YYYY-MM) into a UTC time.
func ParseISO(iso string) (time.Time, error) {
	iso = strings.TrimSpace(iso)
	if t, err := time.Parse(ISOLayout, iso); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01", iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", iso, err)
	}
	return t, nil
}

// FirstOfMonth drops the day and clock, keeping year and month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NormalizeStart parses a projection start and forces it to day 1.
func NormalizeStart(iso string) (time.Time, error) {
	t, err := ParseISO(iso)
	if err != nil {
		return time.Time{}, err
	}
	return FirstOfMonth(t), nil
}

// AddMonths advances the normalized start by i calendar months (i may be negative).
func AddMonths(start time.Time, i int) time.Time {
	s := FirstOfMonth(start)
	return time.Date(s.Year(), s.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween is the integer month difference to - from, ignoring days.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// MonthIndexToISO returns start advanced by i months, formatted YYYY-MM-DD.
func MonthIndexToISO(start string, i int) (string, error) {
	s, err := ParseISO(start)
	if err != nil {
		return "", err
	}
	return AddMonths(s, i).Format(ISOLayout), nil
}

// ISOToMonthIndex is the inverse of MonthIndexToISO.
func ISOToMonthIndex(start, iso string) (int, error) {
	s, err := ParseISO(start)
	if err != nil {
		return 0, err
	}
	t, err := ParseISO(iso)
	if err != nil {
		return 0, err
	}
	return MonthsBetween(s, t), nil
}

// DateAt builds the ProjectionDate for month index i.
func DateAt(start time.Time, i int) core.ProjectionDate {
	t := AddMonths(start, i)
	return core.ProjectionDate{
		ISO:        t.Format(ISOLayout),
		Year:       t.Year(),
		Month:      int(t.Month()),
		Day:        1,
		MonthIndex: i,
	}
}

// Range builds the inclusive range between two month indexes. Reversed
// bounds are swapped so TotalMonths is always at least 1.
func Range(start time.Time, startIndex, endIndex int) core.ProjectionRange {
	if endIndex < startIndex {
		startIndex, endIndex = endIndex, startIndex
	}
	return core.ProjectionRange{
		Start:       DateAt(start, startIndex),
		End:         DateAt(start, endIndex),
		TotalMonths: endIndex - startIndex + 1,
	}
}

// SubtractMonthsClamped moves t back n months keeping the day when possible
// and clamping it to the last day of the target month otherwise.
func SubtractMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// MonthLabel renders an ISO date as "Jan 2024"; unparsable input is returned as is.
func MonthLabel(iso string) string {
	t, err := ParseISO(iso)
	if err != nil {
		return iso
	}
	return t.Format("Jan 2006")
}
