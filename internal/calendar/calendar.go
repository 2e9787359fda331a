package calendar

import (
	"errors"
	"strings"
	"time"
)

// Layout is the wire and storage format for civil dates.
const Layout = "2006-01-02"

type TermType string

const (
	Daily       TermType = "daily"
	SemiMonthly TermType = "semi_monthly"
	Weeks       TermType = "weeks"
	Months      TermType = "months"
)

var (
	ErrUnknownTermType = errors.New("unknown term type")
	ErrInvalidDate     = errors.New("invalid date")
)

var TermTypes = []TermType{Daily, SemiMonthly, Weeks, Months}

func (t TermType) Valid() bool {
	switch t {
	case Daily, SemiMonthly, Weeks, Months:
		return true
	}
	return false
}

// Label is the singular period name shown next to a term count.
func (t TermType) Label() string {
	switch t {
	case Daily:
		return "Day"
	case SemiMonthly:
		return "Semi-Monthly"
	case Weeks:
		return "Week"
	case Months:
		return "Month"
	}
	return "Period"
}

func ParseTermType(raw string) (TermType, error) {
	t := TermType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ErrUnknownTermType
	}
	return t, nil
}

// DateOf truncates t to midnight UTC of its civil date in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func LastDayOfMonth(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the civil date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(Layout, raw); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return DateOf(parsed), nil
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

// Step returns the next occurrence after date for one period of unit.
//
// Months use normalising month addition: Jan 31 plus one month is Mar 2 or
// Mar 3 depending on the year. Semi-monthly alternates between the 15th and
// the last day of the month regardless of the starting day.
func Step(date time.Time, unit TermType) (time.Time, error) {
	date = DateOf(date)
	switch unit {
	case Daily:
		return date.AddDate(0, 0, 1), nil
	case Weeks:
		return date.AddDate(0, 0, 7), nil
	case Months:
		return date.AddDate(0, 1, 0), nil
	case SemiMonthly:
		y, m, d := date.Date()
		last := LastDayOfMonth(date)
		switch {
		case d < 15:
			return time.Date(y, m, 15, 0, 0, 0, 0, time.UTC), nil
		case d < last:
			return time.Date(y, m, last, 0, 0, 0, 0, time.UTC), nil
		default:
			return time.Date(y, m+1, 15, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, ErrUnknownTermType
}

// DaysBetween counts whole civil days from a to b; negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
