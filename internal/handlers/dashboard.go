package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/models"
	"github.com/tmercer/authpulse/internal/services"
	pkghttp "github.com/tmercer/authpulse/pkg/http"
)

// DashboardServiceInterface defines the interface for the statistics views
type DashboardServiceInterface interface {
	UserStats(ctx context.Context, requester *models.User, targetID int64, rng *analytics.DateRange) (*analytics.Stats, error)
	UserActivity(ctx context.Context, requester *models.User, targetID int64, page, pageSize int) (*services.ActivityPage, error)
	BatchStats(ctx context.Context, requester *models.User, f analytics.Filter, rng *analytics.DateRange) (map[string]analytics.Stats, error)
	AdminSummary(ctx context.Context) (*services.AdminSummary, error)
}

// DashboardHandler serves the per-user and admin statistics endpoints.
// These endpoints keep the flat {"error": ...} response shape their
// dashboard clients already parse, unlike the rest of the API.
type DashboardHandler struct {
	service    DashboardServiceInterface
	requesters RequesterSource
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(service DashboardServiceInterface, requesters RequesterSource) *DashboardHandler {
	return &DashboardHandler{
		service:    service,
		requesters: requesters,
	}
}

// writeAnalyticsError maps a service error onto the flat error shape.
func writeAnalyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrInvalidDate):
		pkghttp.WriteFlatError(w, http.StatusBadRequest, analytics.ErrInvalidDate.Error())
	case errors.Is(err, models.ErrBadRequest):
		msg := strings.TrimPrefix(err.Error(), models.ErrBadRequest.Error()+": ")
		pkghttp.WriteFlatError(w, http.StatusBadRequest, msg)
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteFlatError(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteFlatError(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteFlatError(w, http.StatusUnauthorized, "Authentication required.")
	default:
		pkghttp.WriteFlatError(w, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

// UserStats returns one user's login statistics: counter-backed without a
// range, recomputed from events when start_date and end_date are given.
func (h *DashboardHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		pkghttp.WriteFlatError(w, http.StatusBadRequest, "Invalid user ID format. User IDs must be integers.")
		return
	}

	requester, err := currentUser(r, h.requesters)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	rng, err := parseOptionalRange(r)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	stats, err := h.service.UserStats(r.Context(), requester, id, rng)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// UserActivity returns a page of one user's login history
func (h *DashboardHandler) UserActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		pkghttp.WriteFlatError(w, http.StatusBadRequest, "Invalid user ID format. User IDs must be integers.")
		return
	}

	requester, err := currentUser(r, h.requesters)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	page := intQueryParam(r, "page", 1)
	size := intQueryParam(r, "size", 20)

	activity, err := h.service.UserActivity(r.Context(), requester, id, page, size)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, activity)
}

// BatchStats returns statistics for every user in the requested cohort,
// keyed by user id
func (h *DashboardHandler) BatchStats(w http.ResponseWriter, r *http.Request) {
	requester, err := currentUser(r, h.requesters)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	rng, err := parseOptionalRange(r)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	results, err := h.service.BatchStats(r.Context(), requester, parseCohortFilter(r), rng)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, results)
}

// AdminDashboard returns the staff dashboard summary. Route-level staff
// enforcement happens in the middleware stack.
func (h *DashboardHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.AdminSummary(r.Context())
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, summary)
}

// intQueryParam reads a positive integer query parameter, falling back to
// def when absent or malformed.
func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}
