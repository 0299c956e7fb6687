package analytics

import (
	"time"

	"github.com/tmercer/authpulse/internal/models"
)

// Stats is the per-user statistics result. Field names are the wire contract.
type Stats struct {
	TotalLogins int            `json:"total_logins"`
	LastLogin   *string        `json:"last_login"`
	WeeklyData  map[string]int `json:"weekly_data"`
	MonthlyData map[string]int `json:"monthly_data"`
	LoginTrend  int            `json:"login_trend"`
}

// FormatInstant renders an instant in the dashboard timestamp format.
func FormatInstant(t time.Time) string {
	return t.Format(TimestampFormat)
}

// CounterStats builds the unranged statistics view from the user's
// denormalized counters. The caller must pass a freshly loaded user row;
// serving a stale in-memory copy would leak unresolved increments.
func CounterStats(u *models.User, now time.Time) Stats {
	weekly := u.WeeklyLogins
	if weekly == nil {
		weekly = map[string]int{}
	}
	monthly := u.MonthlyLogins
	if monthly == nil {
		monthly = map[string]int{}
	}

	var last *string
	if u.LastLoginTimestamp != nil {
		s := FormatInstant(*u.LastLoginTimestamp)
		last = &s
	}

	return Stats{
		TotalLogins: u.LoginCount,
		LastLogin:   last,
		WeeklyData:  weekly,
		MonthlyData: monthly,
		LoginTrend:  MonthlyTrend(monthly, now),
	}
}

// MonthlyTrend is the percentage change between the current month's bucket
// and the bucket 30 days prior. A zero prior bucket yields 100 when the
// current bucket is positive, else 0. The result is truncated, not rounded.
func MonthlyTrend(monthly map[string]int, now time.Time) int {
	current := monthly[MonthKey(now)]
	prev := monthly[MonthKey(now.AddDate(0, 0, -30))]

	if prev == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - prev) * 100 / prev
}

// RangedStats computes statistics purely from successful login timestamps
// within rng, bypassing the denormalized counters so the ranged view always
// agrees with raw events. times must already be filtered to the range.
func RangedStats(times []time.Time, rng DateRange) Stats {
	stats := Stats{
		WeeklyData:  map[string]int{},
		MonthlyData: map[string]int{},
	}
	if rng.Reversed() {
		return stats
	}

	var last time.Time
	for _, t := range times {
		stats.TotalLogins++
		stats.WeeklyData[WeekKey(t)]++
		stats.MonthlyData[MonthKey(t)]++
		if t.After(last) {
			last = t
		}
	}
	if !last.IsZero() {
		s := FormatInstant(last)
		stats.LastLogin = &s
	}

	stats.LoginTrend = splitTrend(times, rng)
	return stats
}

// splitTrend splits the range at its midpoint and compares login counts in
// the two halves: events strictly before the midpoint against events at or
// after it.
func splitTrend(times []time.Time, rng DateRange) int {
	mid := rng.Start.Add(rng.End.Sub(rng.Start) / 2)

	var first, second int
	for _, t := range times {
		if t.Before(mid) {
			first++
		} else {
			second++
		}
	}

	switch {
	case first == 0 && second > 0:
		return 100
	case first == 0:
		return 0
	default:
		return (second - first) * 100 / first
	}
}
