package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/models"
)

// ChartService builds the Chart.js-shaped payloads for the dashboard views.
type ChartService struct {
	users  AnalyticsUserReader
	events AnalyticsEventReader
	logger *slog.Logger
}

func NewChartService(users AnalyticsUserReader, events AnalyticsEventReader, logger *slog.Logger) *ChartService {
	return &ChartService{
		users:  users,
		events: events,
		logger: logger,
	}
}

// cohortEvents resolves the filter and loads the cohort's events for the
// range. A reversed range yields no events, which the chart builders render
// as an empty chart.
func (s *ChartService) cohortEvents(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) ([]models.LoginEvent, bool, error) {
	cohortUsers, combined, err := resolveCohortUsers(ctx, s.users, requester, f)
	if err != nil {
		return nil, false, err
	}

	if rng.Reversed() || len(cohortUsers) == 0 {
		return nil, combined, nil
	}

	ids := make([]int64, len(cohortUsers))
	for i, u := range cohortUsers {
		ids[i] = u.ID
	}

	events, err := s.events.EventsForUsers(ctx, ids, rng.Start, rng.End)
	if err != nil {
		s.logger.Error("failed to load cohort events", slog.Any("error", err))
		return nil, false, models.ErrInternalServer
	}
	return events, combined, nil
}

// TrendChart returns day-by-day success and failure lines over the range.
func (s *ChartService) TrendChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
	events, combined, err := s.cohortEvents(ctx, requester, f, rng)
	if err != nil {
		return nil, err
	}

	chart := analytics.TrendChart(events, rng, combined)
	return &chart, nil
}

// ComparisonChart returns bucketed success counts, weekly for short ranges
// and monthly beyond that.
func (s *ChartService) ComparisonChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
	events, combined, err := s.cohortEvents(ctx, requester, f, rng)
	if err != nil {
		return nil, err
	}

	chart := analytics.ComparisonChart(events, rng, combined)
	return &chart, nil
}

// DistributionChart returns the success/failure ratio and top user agents.
func (s *ChartService) DistributionChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.Distribution, error) {
	events, combined, err := s.cohortEvents(ctx, requester, f, rng)
	if err != nil {
		return nil, err
	}

	dist := analytics.DistributionChart(events, rng, combined)
	return &dist, nil
}

// AdminOverview assembles the staff dashboard charts: signup growth by
// month plus system-wide login activity and success ratio. Events with no
// resolvable account are included, unlike cohort charts.
func (s *ChartService) AdminOverview(ctx context.Context, rng analytics.DateRange) (*analytics.AdminCharts, error) {
	joinCounts, err := s.users.JoinMonthCounts(ctx)
	if err != nil {
		s.logger.Error("failed to load signup counts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	var events []models.LoginEvent
	if !rng.Reversed() {
		events, err = s.events.EventsInWindow(ctx, rng.Start, rng.End)
		if err != nil {
			s.logger.Error("failed to load events for overview", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	growth := analytics.UserGrowthChart(joinCounts)
	activity := analytics.TrendChart(events, rng, true)
	dist := analytics.DistributionChart(events, rng, true)

	return &analytics.AdminCharts{
		UserGrowth:    growth,
		LoginActivity: activity,
		SuccessRatio:  dist.SuccessRatio,
	}, nil
}

// DefaultRange is the window used when a chart request carries no dates.
func DefaultRange() analytics.DateRange {
	return analytics.DefaultWindow(time.Now())
}
