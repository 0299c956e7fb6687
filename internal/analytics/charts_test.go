package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmercer/authpulse/internal/models"
)

func chartEvent(at time.Time, success bool, userAgent string) models.LoginEvent {
	return models.LoginEvent{
		Timestamp: at,
		Success:   success,
		UserAgent: userAgent,
	}
}

func chartRange(t *testing.T, start, end string) DateRange {
	t.Helper()
	s, err := ParseDate(start)
	require.NoError(t, err)
	e, err := ParseDate(end)
	require.NoError(t, err)
	return RangeFromDates(s, e)
}

func TestTrendChart_ZeroFilledDays(t *testing.T) {
	rng := chartRange(t, "2026-03-01", "2026-03-03")
	events := []models.LoginEvent{
		chartEvent(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), true, "ua"),
		chartEvent(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), true, "ua"),
		chartEvent(time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC), false, "ua"),
		// Outside the range, must not leak into any bucket
		chartEvent(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), true, "ua"),
	}

	chart := TrendChart(events, rng, false)

	assert.Equal(t, []string{"2026-03-01", "2026-03-02", "2026-03-03"}, chart.Labels)
	require.Len(t, chart.Datasets, 2)
	assert.Equal(t, "Successful Logins", chart.Datasets[0].Label)
	assert.Equal(t, []int{2, 0, 0}, chart.Datasets[0].Data)
	assert.Equal(t, "Failed Logins", chart.Datasets[1].Label)
	assert.Equal(t, []int{0, 0, 1}, chart.Datasets[1].Data)
}

func TestTrendChart_CombinedSuffix(t *testing.T) {
	rng := chartRange(t, "2026-03-01", "2026-03-01")
	chart := TrendChart(nil, rng, true)

	assert.Equal(t, "Successful Logins (Combined)", chart.Datasets[0].Label)
	assert.Equal(t, "Failed Logins (Combined)", chart.Datasets[1].Label)
}

func TestTrendChart_ReversedRange(t *testing.T) {
	rng := chartRange(t, "2026-03-10", "2026-03-01")
	chart := TrendChart([]models.LoginEvent{
		chartEvent(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), true, "ua"),
	}, rng, false)

	assert.Empty(t, chart.Labels)
	require.Len(t, chart.Datasets, 2)
	assert.Empty(t, chart.Datasets[0].Data)
}

func TestComparisonChart_WeeklyForShortRange(t *testing.T) {
	rng := chartRange(t, "2026-03-01", "2026-03-28")
	events := []models.LoginEvent{
		chartEvent(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), true, "ua"),  // week of Mar 1
		chartEvent(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), true, "ua"),  // week of Mar 1
		chartEvent(time.Date(2026, 3, 17, 9, 0, 0, 0, time.UTC), true, "ua"), // week of Mar 15
		chartEvent(time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC), false, "ua"),
	}

	chart := ComparisonChart(events, rng, false)

	// The empty week of Mar 8 is omitted, not zero-filled
	assert.Equal(t, []string{"2026-03-01", "2026-03-15"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, "Login Count", chart.Datasets[0].Label)
	assert.Equal(t, []int{2, 1}, chart.Datasets[0].Data)
}

func TestComparisonChart_MonthlyForLongRange(t *testing.T) {
	rng := chartRange(t, "2026-01-01", "2026-03-31")
	events := []models.LoginEvent{
		chartEvent(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), true, "ua"),
		chartEvent(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), true, "ua"),
		chartEvent(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), true, "ua"),
	}

	chart := ComparisonChart(events, rng, true)

	assert.Equal(t, []string{"2026-01", "2026-03"}, chart.Labels)
	assert.Equal(t, "Login Count (Combined)", chart.Datasets[0].Label)
	assert.Equal(t, []int{1, 2}, chart.Datasets[0].Data)
}

func TestDistributionChart_SuccessRatio(t *testing.T) {
	rng := chartRange(t, "2026-03-01", "2026-03-31")
	events := []models.LoginEvent{
		chartEvent(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), true, "Firefox"),
		chartEvent(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), true, "Firefox"),
		chartEvent(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), false, "curl"),
	}

	dist := DistributionChart(events, rng, false)

	assert.Equal(t, []string{"Successful", "Failed"}, dist.SuccessRatio.Labels)
	assert.Equal(t, []int{2, 1}, dist.SuccessRatio.Datasets[0].Data)
}

func TestDistributionChart_TopFiveUserAgents(t *testing.T) {
	rng := chartRange(t, "2026-03-01", "2026-03-31")

	var events []models.LoginEvent
	agents := map[string]int{
		"agent-a": 6,
		"agent-b": 5,
		"agent-c": 4,
		"agent-d": 3,
		"agent-e": 2,
		"agent-f": 1,
	}
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for ua, n := range agents {
		for i := 0; i < n; i++ {
			events = append(events, chartEvent(at, true, ua))
		}
	}

	dist := DistributionChart(events, rng, false)

	assert.Equal(t, []string{"agent-a", "agent-b", "agent-c", "agent-d", "agent-e"}, dist.UserAgents.Labels)
	assert.Equal(t, []int{6, 5, 4, 3, 2}, dist.UserAgents.Datasets[0].Data)
}

func TestDistributionChart_TiesBreakAlphabetically(t *testing.T) {
	rng := chartRange(t, "2026-03-01", "2026-03-31")
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []models.LoginEvent{
		chartEvent(at, true, "zephyr"),
		chartEvent(at, true, "aurora"),
	}

	dist := DistributionChart(events, rng, false)
	assert.Equal(t, []string{"aurora", "zephyr"}, dist.UserAgents.Labels)
}

func TestUserGrowthChart_SortedMonths(t *testing.T) {
	chart := UserGrowthChart(map[string]int{
		"2026-03": 4,
		"2025-11": 9,
		"2026-01": 2,
	})

	assert.Equal(t, []string{"2025-11", "2026-01", "2026-03"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, "New Users", chart.Datasets[0].Label)
	assert.Equal(t, []int{9, 2, 4}, chart.Datasets[0].Data)
}
