package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/handlers"
	"github.com/tmercer/authpulse/internal/models"
)

func TestLoginTrends_WrappedResponse(t *testing.T) {
	mockService := &handlers.MockChartService{
		TrendChartFunc: func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
			return &analytics.ChartData{
				Labels: []string{"2026-03-01", "2026-03-02"},
				Datasets: []analytics.Dataset{
					{Label: "Successful Logins", Data: []int{1, 0}},
					{Label: "Failed Logins", Data: []int{0, 2}},
				},
			}, nil
		},
	}

	handler := handlers.NewChartHandler(mockService, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/charts/login-trends?start_date=2026-03-01&end_date=2026-03-02", nil)
	req = handlers.WithAuthContext(req, 42, "member")

	w := httptest.NewRecorder()
	handler.LoginTrends(w, req)

	var resp map[string]analytics.ChartData
	handlers.AssertJSONResponse(t, w, 200, &resp)
	chart, ok := resp["login_trends"]
	require.True(t, ok)
	assert.Equal(t, []string{"2026-03-01", "2026-03-02"}, chart.Labels)
	assert.Equal(t, "Successful Logins", chart.Datasets[0].Label)
}

func TestLoginTrends_DefaultWindowWhenNoDates(t *testing.T) {
	mockService := &handlers.MockChartService{
		TrendChartFunc: func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
			assert.False(t, rng.Reversed())
			days := rng.Days()
			assert.InDelta(t, analytics.DefaultWindowDays, days, 1)
			return &analytics.ChartData{}, nil
		},
	}

	handler := handlers.NewChartHandler(mockService, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/charts/login-trends", nil)
	req = handlers.WithAuthContext(req, 42, "member")

	w := httptest.NewRecorder()
	handler.LoginTrends(w, req)

	assert.Equal(t, 200, w.Code)
}

func TestLoginTrends_InvalidDate(t *testing.T) {
	handler := handlers.NewChartHandler(&handlers.MockChartService{}, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/charts/login-trends?start_date=03/01/2026&end_date=2026-03-31", nil)
	req = handlers.WithAuthContext(req, 42, "member")

	w := httptest.NewRecorder()
	handler.LoginTrends(w, req)

	handlers.AssertFlatError(t, w, 400, "Invalid date format. Use YYYY-MM-DD format.")
}

func TestLoginTrends_CohortFilterForwarded(t *testing.T) {
	mockService := &handlers.MockChartService{
		TrendChartFunc: func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
			assert.Equal(t, "admin", f.Role)
			assert.Equal(t, "all", f.FilterType)
			assert.True(t, f.SelfOnly)
			return &analytics.ChartData{}, nil
		},
	}

	handler := handlers.NewChartHandler(mockService, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "GET", "/charts/login-trends?role=admin&filter=all&me=true", nil)
	req = handlers.WithAuthContext(req, 1, "root")

	w := httptest.NewRecorder()
	handler.LoginTrends(w, req)

	assert.Equal(t, 200, w.Code)
}

func TestLoginTrends_ForbiddenCohort(t *testing.T) {
	mockService := &handlers.MockChartService{
		TrendChartFunc: func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
			return nil, models.ErrForbidden
		},
	}

	handler := handlers.NewChartHandler(mockService, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/charts/login-trends?filter=all", nil)
	req = handlers.WithAuthContext(req, 42, "member")

	w := httptest.NewRecorder()
	handler.LoginTrends(w, req)

	handlers.AssertFlatError(t, w, 403, "permission")
}

func TestLoginComparison_WrappedResponse(t *testing.T) {
	mockService := &handlers.MockChartService{
		ComparisonChartFunc: func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
			return &analytics.ChartData{Labels: []string{"2026-03-01"}}, nil
		},
	}

	handler := handlers.NewChartHandler(mockService, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/charts/login-comparison", nil)
	req = handlers.WithAuthContext(req, 42, "member")

	w := httptest.NewRecorder()
	handler.LoginComparison(w, req)

	var resp map[string]json.RawMessage
	handlers.AssertJSONResponse(t, w, 200, &resp)
	_, ok := resp["login_comparison"]
	assert.True(t, ok)
}

func TestLoginDistribution_WrappedResponse(t *testing.T) {
	mockService := &handlers.MockChartService{
		DistributionChartFunc: func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.Distribution, error) {
			return &analytics.Distribution{
				SuccessRatio: analytics.ChartData{Labels: []string{"Successful", "Failed"}},
			}, nil
		},
	}

	handler := handlers.NewChartHandler(mockService, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/charts/login-distribution", nil)
	req = handlers.WithAuthContext(req, 42, "member")

	w := httptest.NewRecorder()
	handler.LoginDistribution(w, req)

	var resp map[string]analytics.Distribution
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, []string{"Successful", "Failed"}, resp["login_distribution"].SuccessRatio.Labels)
}

func TestAdminCharts_WrappedResponse(t *testing.T) {
	mockService := &handlers.MockChartService{
		AdminOverviewFunc: func(ctx context.Context, rng analytics.DateRange) (*analytics.AdminCharts, error) {
			assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), rng.Start)
			return &analytics.AdminCharts{
				UserGrowth: analytics.ChartData{Labels: []string{"2026-01"}},
			}, nil
		},
	}

	handler := handlers.NewChartHandler(mockService, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "GET", "/charts/admin?start_date=2026-03-01&end_date=2026-03-31", nil)
	req = handlers.WithAuthContext(req, 1, "root")

	w := httptest.NewRecorder()
	handler.AdminCharts(w, req)

	var resp map[string]analytics.AdminCharts
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, []string{"2026-01"}, resp["admin_charts"].UserGrowth.Labels)
}
