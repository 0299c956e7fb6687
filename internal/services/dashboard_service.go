package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/models"
)

// AnalyticsUserReader is the user-side query surface the analytics services
// need: cohort selection and the denormalized counters.
type AnalyticsUserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListFiltered(ctx context.Context, ids []int64, admin, active *bool) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
	JoinMonthCounts(ctx context.Context) (map[string]int, error)
}

// AnalyticsEventReader is the event-side query surface.
type AnalyticsEventReader interface {
	SuccessTimes(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error)
	EventsForUsers(ctx context.Context, userIDs []int64, start, end time.Time) ([]models.LoginEvent, error)
	EventsInWindow(ctx context.Context, start, end time.Time) ([]models.LoginEvent, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.LoginEvent, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	CountSuccessful(ctx context.Context) (int, error)
	ListRecent(ctx context.Context, limit int) ([]models.LoginEvent, error)
}

// DashboardService serves the statistics views: per-user stats, activity
// history, batch stats over a cohort, and the admin dashboard summary.
type DashboardService struct {
	users  AnalyticsUserReader
	events AnalyticsEventReader
	logger *slog.Logger
}

func NewDashboardService(users AnalyticsUserReader, events AnalyticsEventReader, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		users:  users,
		events: events,
		logger: logger,
	}
}

// EventResponse is one activity row in the HTTP response.
type EventResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

// ActivityPage is a paginated slice of a user's login history.
type ActivityPage struct {
	Results  []EventResponse `json:"results"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// AdminSummary is the admin dashboard view: headline totals, the most
// recent login activity, and signup growth by month.
type AdminSummary struct {
	TotalUsers    int                 `json:"total_users"`
	ActiveUsers   int                 `json:"active_users"`
	TotalLogins   int                 `json:"total_logins"`
	LoginActivity []EventResponse     `json:"login_activity"`
	UserGrowth    analytics.ChartData `json:"user_growth"`
}

// resolveCohortUsers turns a filter into the concrete user rows it targets,
// enforcing that elevated filters are only used by staff. The second return
// reports whether the cohort spans more than the requester.
func resolveCohortUsers(ctx context.Context, users AnalyticsUserReader, requester *models.User, f analytics.Filter) ([]*models.User, bool, error) {
	cohort, err := analytics.ResolveCohort(f)
	if err != nil {
		return nil, false, err
	}

	if f.RequiresElevated() && !requester.IsAdmin() {
		return nil, false, models.ErrForbidden
	}

	if cohort.Self {
		self, err := users.GetByID(ctx, requester.ID)
		if err != nil {
			return nil, false, err
		}
		return []*models.User{self}, false, nil
	}

	if len(cohort.IDs) > 0 {
		found, err := users.ListFiltered(ctx, cohort.IDs, nil, nil)
		if err != nil {
			return nil, false, err
		}

		byID := make(map[int64]*models.User, len(found))
		for _, u := range found {
			byID[u.ID] = u
		}
		for _, id := range cohort.IDs {
			if _, ok := byID[id]; !ok {
				return nil, false, fmt.Errorf("%w: User with ID '%d' not found.", models.ErrBadRequest, id)
			}
		}

		// Active narrowing applies after existence is established, so a
		// request naming an inactive user is not mistaken for a bad id.
		result := found
		if cohort.Active != nil {
			result = result[:0]
			for _, u := range found {
				if u.IsActive == *cohort.Active {
					result = append(result, u)
				}
			}
		}
		return result, true, nil
	}

	selected, err := users.ListFiltered(ctx, nil, cohort.Admin, cohort.Active)
	if err != nil {
		return nil, false, err
	}
	return selected, true, nil
}

// UserStats returns login statistics for one user. Without a range the
// figures come straight from the maintained counters; with a range they are
// recomputed from the event log.
func (s *DashboardService) UserStats(ctx context.Context, requester *models.User, targetID int64, rng *analytics.DateRange) (*analytics.Stats, error) {
	if requester.ID != targetID && !requester.IsAdmin() {
		return nil, models.ErrForbidden
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user for stats", slog.Int64("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if rng == nil {
		stats := analytics.CounterStats(target, time.Now())
		return &stats, nil
	}

	var times []time.Time
	if !rng.Reversed() {
		times, err = s.events.SuccessTimes(ctx, []int64{target.ID}, rng.Start, rng.End)
		if err != nil {
			s.logger.Error("failed to load success times", slog.Int64("user_id", targetID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	stats := analytics.RangedStats(times, *rng)
	return &stats, nil
}

// UserActivity returns a page of a user's login history, newest first.
func (s *DashboardService) UserActivity(ctx context.Context, requester *models.User, targetID int64, page, pageSize int) (*ActivityPage, error) {
	if requester.ID != targetID && !requester.IsAdmin() {
		return nil, models.ErrForbidden
	}

	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user for activity", slog.Int64("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	events, err := s.events.ListByUser(ctx, targetID, pageSize, (page-1)*pageSize)
	if err != nil {
		s.logger.Error("failed to list activity", slog.Int64("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.events.CountByUser(ctx, targetID)
	if err != nil {
		s.logger.Error("failed to count activity", slog.Int64("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &ActivityPage{
		Results:  eventsToResponses(events),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// BatchStats computes statistics for every user in a cohort, keyed by the
// user's id in decimal string form.
func (s *DashboardService) BatchStats(ctx context.Context, requester *models.User, f analytics.Filter, rng *analytics.DateRange) (map[string]analytics.Stats, error) {
	cohortUsers, _, err := resolveCohortUsers(ctx, s.users, requester, f)
	if err != nil {
		return nil, err
	}

	results := make(map[string]analytics.Stats, len(cohortUsers))

	if rng == nil {
		now := time.Now()
		for _, u := range cohortUsers {
			results[strconv.FormatInt(u.ID, 10)] = analytics.CounterStats(u, now)
		}
		return results, nil
	}

	timesByUser := make(map[int64][]time.Time, len(cohortUsers))
	if !rng.Reversed() && len(cohortUsers) > 0 {
		ids := make([]int64, len(cohortUsers))
		for i, u := range cohortUsers {
			ids[i] = u.ID
		}

		events, err := s.events.EventsForUsers(ctx, ids, rng.Start, rng.End)
		if err != nil {
			s.logger.Error("failed to load cohort events", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		for _, e := range events {
			if e.Success && e.UserID != nil {
				timesByUser[*e.UserID] = append(timesByUser[*e.UserID], e.Timestamp)
			}
		}
	}

	for _, u := range cohortUsers {
		results[strconv.FormatInt(u.ID, 10)] = analytics.RangedStats(timesByUser[u.ID], *rng)
	}
	return results, nil
}

// AdminSummary assembles the admin dashboard.
func (s *DashboardService) AdminSummary(ctx context.Context) (*AdminSummary, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	activeUsers, err := s.users.CountActive(ctx)
	if err != nil {
		s.logger.Error("failed to count active users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	successfulLogins, err := s.events.CountSuccessful(ctx)
	if err != nil {
		s.logger.Error("failed to count successful logins", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	recent, err := s.events.ListRecent(ctx, 10)
	if err != nil {
		s.logger.Error("failed to list recent activity", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	joinCounts, err := s.users.JoinMonthCounts(ctx)
	if err != nil {
		s.logger.Error("failed to load signup counts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AdminSummary{
		TotalUsers:    totalUsers,
		ActiveUsers:   activeUsers,
		TotalLogins:   successfulLogins,
		LoginActivity: eventsToResponses(recent),
		UserGrowth:    analytics.UserGrowthChart(joinCounts),
	}, nil
}

func eventsToResponses(events []models.LoginEvent) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = EventResponse{
			ID:        e.ID,
			Username:  e.Username,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			Success:   e.Success,
			Timestamp: e.Timestamp.Format(analytics.TimestampFormat),
		}
	}
	return out
}
