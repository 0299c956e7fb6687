package analytics

import (
	"sort"

	"github.com/tmercer/authpulse/internal/models"
)

// Chart.js-compatible palette. Stable across deployments because the
// frontend snapshots chart colors in tests.
const (
	successBorder = "rgb(75, 192, 192)"
	successFill   = "rgba(75, 192, 192, 0.2)"
	failedBorder  = "rgb(255, 99, 132)"
	failedFill    = "rgba(255, 99, 132, 0.2)"
	barFill       = "rgba(54, 162, 235, 0.6)"
	growthBorder  = "rgb(153, 102, 255)"
	growthFill    = "rgba(153, 102, 255, 0.2)"
)

var pieFills = []string{
	"rgba(75, 192, 192, 0.6)",
	"rgba(255, 99, 132, 0.6)",
	"rgba(54, 162, 235, 0.6)",
	"rgba(255, 206, 86, 0.6)",
	"rgba(153, 102, 255, 0.6)",
}

// Dataset is one Chart.js series. BackgroundColor is a string for line and
// bar charts and a []string for pie-style charts.
type Dataset struct {
	Label           string `json:"label,omitempty"`
	Data            []int  `json:"data"`
	BorderColor     string `json:"borderColor,omitempty"`
	BackgroundColor any    `json:"backgroundColor,omitempty"`
}

// ChartData is the labels+datasets envelope every chart endpoint returns.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Distribution pairs the success/failure ratio with the top user agents.
type Distribution struct {
	SuccessRatio ChartData `json:"success_ratio"`
	UserAgents   ChartData `json:"user_agents"`
}

// AdminCharts is the admin-wide chart bundle.
type AdminCharts struct {
	UserGrowth    ChartData `json:"user_growth"`
	LoginActivity ChartData `json:"login_activity"`
	SuccessRatio  ChartData `json:"success_ratio"`
}

func seriesLabel(base string, combined bool) string {
	if combined {
		return base + " (Combined)"
	}
	return base
}

// TrendChart builds the daily time series over rng: one label per calendar
// day, successful and failed counts per day, never omitting a zero day.
// A reversed range yields empty labels and empty series, not an error.
func TrendChart(events []models.LoginEvent, rng DateRange, combined bool) ChartData {
	days := rng.EachDay()

	labels := make([]string, 0, len(days))
	successData := make([]int, 0, len(days))
	failedData := make([]int, 0, len(days))

	successByDay := map[string]int{}
	failedByDay := map[string]int{}
	for _, e := range events {
		if !rng.Contains(e.Timestamp) {
			continue
		}
		key := e.Timestamp.Format(DateFormat)
		if e.Success {
			successByDay[key]++
		} else {
			failedByDay[key]++
		}
	}

	for _, day := range days {
		key := day.Format(DateFormat)
		labels = append(labels, key)
		successData = append(successData, successByDay[key])
		failedData = append(failedData, failedByDay[key])
	}

	return ChartData{
		Labels: labels,
		Datasets: []Dataset{
			{
				Label:           seriesLabel("Successful Logins", combined),
				Data:            successData,
				BorderColor:     successBorder,
				BackgroundColor: successFill,
			},
			{
				Label:           seriesLabel("Failed Logins", combined),
				Data:            failedData,
				BorderColor:     failedBorder,
				BackgroundColor: failedFill,
			},
		},
	}
}

// ComparisonChart buckets successful logins weekly when the range spans at
// most 30 days, monthly otherwise. Unlike the trend chart, buckets with no
// logins are omitted. Weekly labels are the Sunday opening each week.
func ComparisonChart(events []models.LoginEvent, rng DateRange, combined bool) ChartData {
	dataset := Dataset{
		Label:           seriesLabel("Login Count", combined),
		Data:            []int{},
		BackgroundColor: barFill,
	}
	if rng.Reversed() {
		return ChartData{Labels: []string{}, Datasets: []Dataset{dataset}}
	}

	weekly := rng.Days() <= DefaultWindowDays
	counts := map[string]int{}
	for _, e := range events {
		if !e.Success || !rng.Contains(e.Timestamp) {
			continue
		}
		if weekly {
			counts[WeekStart(e.Timestamp).Format(DateFormat)]++
		} else {
			counts[MonthKey(e.Timestamp)]++
		}
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		dataset.Data = append(dataset.Data, counts[label])
	}
	return ChartData{Labels: labels, Datasets: []Dataset{dataset}}
}

// DistributionChart builds the success/failure ratio (always exactly the
// two labels, in order) and the five most frequent user agents in the
// window. Ties among user agents break lexicographically for stable output.
func DistributionChart(events []models.LoginEvent, rng DateRange, combined bool) Distribution {
	var success, failed int
	uaCounts := map[string]int{}

	if !rng.Reversed() {
		for _, e := range events {
			if !rng.Contains(e.Timestamp) {
				continue
			}
			if e.Success {
				success++
			} else {
				failed++
			}
			uaCounts[e.UserAgent]++
		}
	}

	agents := make([]string, 0, len(uaCounts))
	for ua := range uaCounts {
		agents = append(agents, ua)
	}
	sort.Slice(agents, func(i, j int) bool {
		if uaCounts[agents[i]] != uaCounts[agents[j]] {
			return uaCounts[agents[i]] > uaCounts[agents[j]]
		}
		return agents[i] < agents[j]
	})
	if len(agents) > 5 {
		agents = agents[:5]
	}

	uaData := make([]int, 0, len(agents))
	for _, ua := range agents {
		uaData = append(uaData, uaCounts[ua])
	}

	return Distribution{
		SuccessRatio: ChartData{
			Labels: []string{"Successful", "Failed"},
			Datasets: []Dataset{{
				Label:           seriesLabel("Login Attempts", combined),
				Data:            []int{success, failed},
				BackgroundColor: pieFills[:2],
			}},
		},
		UserAgents: ChartData{
			Labels: agents,
			Datasets: []Dataset{{
				Label:           seriesLabel("User Agents", combined),
				Data:            uaData,
				BackgroundColor: pieFills,
			}},
		},
	}
}

// UserGrowthChart turns per-month registration counts into a sorted series.
func UserGrowthChart(joinCounts map[string]int) ChartData {
	labels := make([]string, 0, len(joinCounts))
	for month := range joinCounts {
		labels = append(labels, month)
	}
	sort.Strings(labels)

	data := make([]int, 0, len(labels))
	for _, month := range labels {
		data = append(data, joinCounts[month])
	}

	return ChartData{
		Labels: labels,
		Datasets: []Dataset{{
			Label:           "New Users",
			Data:            data,
			BorderColor:     growthBorder,
			BackgroundColor: growthFill,
		}},
	}
}
