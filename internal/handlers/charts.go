package handlers

import (
	"context"
	"net/http"

	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/models"
	"github.com/tmercer/authpulse/internal/services"
	pkghttp "github.com/tmercer/authpulse/pkg/http"
)

// ChartServiceInterface defines the interface for chart building
type ChartServiceInterface interface {
	TrendChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error)
	ComparisonChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error)
	DistributionChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.Distribution, error)
	AdminOverview(ctx context.Context, rng analytics.DateRange) (*analytics.AdminCharts, error)
}

// ChartHandler serves the Chart.js payload endpoints. Like the dashboard
// endpoints they answer errors in the flat {"error": ...} shape.
type ChartHandler struct {
	service    ChartServiceInterface
	requesters RequesterSource
}

// NewChartHandler creates a new ChartHandler
func NewChartHandler(service ChartServiceInterface, requesters RequesterSource) *ChartHandler {
	return &ChartHandler{
		service:    service,
		requesters: requesters,
	}
}

// chartRange reads the requested date range, defaulting to the trailing
// window when no dates are given. Charts always operate over a range.
func chartRange(r *http.Request) (analytics.DateRange, error) {
	rng, err := parseOptionalRange(r)
	if err != nil {
		return analytics.DateRange{}, err
	}
	if rng == nil {
		return services.DefaultRange(), nil
	}
	return *rng, nil
}

// LoginTrends returns day-by-day success and failure counts
func (h *ChartHandler) LoginTrends(w http.ResponseWriter, r *http.Request) {
	requester, err := currentUser(r, h.requesters)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	rng, err := chartRange(r)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	chart, err := h.service.TrendChart(r.Context(), requester, parseCohortFilter(r), rng)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]*analytics.ChartData{"login_trends": chart})
}

// LoginComparison returns weekly or monthly success buckets
func (h *ChartHandler) LoginComparison(w http.ResponseWriter, r *http.Request) {
	requester, err := currentUser(r, h.requesters)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	rng, err := chartRange(r)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	chart, err := h.service.ComparisonChart(r.Context(), requester, parseCohortFilter(r), rng)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]*analytics.ChartData{"login_comparison": chart})
}

// LoginDistribution returns the success ratio and top user agents
func (h *ChartHandler) LoginDistribution(w http.ResponseWriter, r *http.Request) {
	requester, err := currentUser(r, h.requesters)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	rng, err := chartRange(r)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	dist, err := h.service.DistributionChart(r.Context(), requester, parseCohortFilter(r), rng)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]*analytics.Distribution{"login_distribution": dist})
}

// AdminCharts returns the system-wide chart bundle. Staff enforcement is
// handled by the route middleware.
func (h *ChartHandler) AdminCharts(w http.ResponseWriter, r *http.Request) {
	rng, err := chartRange(r)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	charts, err := h.service.AdminOverview(r.Context(), rng)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]*analytics.AdminCharts{"admin_charts": charts})
}
