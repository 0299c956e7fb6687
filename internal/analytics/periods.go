package analytics

import (
	"fmt"
	"time"
)

// Timestamp and label formats used across all dashboard responses.
const (
	TimestampFormat = "2006-01-02 15:04:05"
	DateFormat      = "2006-01-02"
	MonthFormat     = "2006-01"
)

// WeekKey returns the "YYYY-WW" bucket key for t, using Sunday-aligned week
// numbering: all days before the first Sunday of the year fall in week 0.
// This matches the keys already stored in user counter maps, so it must not
// be swapped for ISO week numbering.
func WeekKey(t time.Time) string {
	yday := t.YearDay() - 1
	wday := int(t.Weekday())
	return fmt.Sprintf("%d-%02d", t.Year(), (yday+7-wday)/7)
}

// MonthKey returns the "YYYY-MM" bucket key for t.
func MonthKey(t time.Time) string {
	return t.Format(MonthFormat)
}

// WeekStart returns the Sunday that opens t's week, truncated to midnight in
// t's location. Used as the label date for weekly comparison buckets.
func WeekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return d.AddDate(0, 0, -int(d.Weekday()))
}
