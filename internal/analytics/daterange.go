package analytics

import (
	"errors"
	"time"
)

// ErrInvalidDate is returned for query dates that are not strict YYYY-MM-DD.
// Its message is part of the wire contract.
var ErrInvalidDate = errors.New("Invalid date format. Use YYYY-MM-DD format.")

// DefaultWindowDays is the lookback applied when a request supplies no dates.
const DefaultWindowDays = 30

// DateRange is a request-scoped [Start, End] pair of instants. A reversed
// range (End before Start) is not an error; every consumer treats it as an
// empty window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a strict YYYY-MM-DD query parameter.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// RangeFromDates builds an inclusive range covering both calendar days:
// start at midnight through the last instant of end's day.
func RangeFromDates(start, end time.Time) DateRange {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location()).
		AddDate(0, 0, 1).Add(-time.Nanosecond)
	return DateRange{Start: s, End: e}
}

// DefaultWindow returns the last 30 days through now.
func DefaultWindow(now time.Time) DateRange {
	return DateRange{Start: now.AddDate(0, 0, -DefaultWindowDays), End: now}
}

// Reversed reports whether the range can never match anything.
func (r DateRange) Reversed() bool {
	return r.End.Before(r.Start)
}

// Days returns the number of whole days between the range's calendar dates.
// A single-day range yields 0.
func (r DateRange) Days() int {
	s := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, r.Start.Location())
	e := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, r.End.Location())
	return int(e.Sub(s).Hours() / 24)
}

// EachDay enumerates every calendar day from Start's date to End's date
// inclusive. Empty for reversed ranges.
func (r DateRange) EachDay() []time.Time {
	if r.Reversed() {
		return nil
	}
	days := make([]time.Time, 0, r.Days()+1)
	d := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, r.Start.Location())
	last := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, r.End.Location())
	for !d.After(last) {
		days = append(days, d)
		d = d.AddDate(0, 0, 1)
	}
	return days
}

// Contains reports whether t falls within the inclusive range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
