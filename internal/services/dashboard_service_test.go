package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/models"
)

func adminUser() *models.User {
	return &models.User{ID: 1, Username: "admin", IsStaff: true, IsActive: true}
}

func regularUser(id int64) *models.User {
	return &models.User{ID: id, Username: "user", IsActive: true}
}

func usersByID(users ...*models.User) *MockUserRepository {
	index := make(map[int64]*models.User, len(users))
	for _, u := range users {
		index[u.ID] = u
	}
	return &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			if u, ok := index[id]; ok {
				return u, nil
			}
			return nil, models.ErrNotFound
		},
		ListFilteredFunc: func(ctx context.Context, ids []int64, admin, active *bool) ([]*models.User, error) {
			var out []*models.User
			if ids != nil {
				for _, id := range ids {
					if u, ok := index[id]; ok {
						out = append(out, u)
					}
				}
				return out, nil
			}
			for _, u := range users {
				if admin != nil && u.IsAdmin() != *admin {
					continue
				}
				if active != nil && u.IsActive != *active {
					continue
				}
				out = append(out, u)
			}
			return out, nil
		},
	}
}

func TestDashboardService_UserStats_ForbiddenForOtherUser(t *testing.T) {
	svc := NewDashboardService(usersByID(regularUser(2), regularUser(3)), &MockLoginEventRepository{}, testLogger())

	_, err := svc.UserStats(context.Background(), regularUser(2), 3, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestDashboardService_UserStats_AdminCanReadAnyone(t *testing.T) {
	target := regularUser(3)
	target.LoginCount = 12
	svc := NewDashboardService(usersByID(adminUser(), target), &MockLoginEventRepository{}, testLogger())

	stats, err := svc.UserStats(context.Background(), adminUser(), 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalLogins)
}

func TestDashboardService_UserStats_UnknownTarget(t *testing.T) {
	svc := NewDashboardService(usersByID(adminUser()), &MockLoginEventRepository{}, testLogger())

	_, err := svc.UserStats(context.Background(), adminUser(), 99, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDashboardService_UserStats_UnrangedUsesCounters(t *testing.T) {
	last := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	target := regularUser(2)
	target.LoginCount = 5
	target.LastLoginTimestamp = &last
	target.WeeklyLogins = map[string]int{"2026-06": 3}
	target.MonthlyLogins = map[string]int{"2026-02": 5}

	events := &MockLoginEventRepository{
		SuccessTimesFunc: func(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error) {
			t.Error("unranged stats must not query the event log")
			return nil, nil
		},
	}

	svc := NewDashboardService(usersByID(target), events, testLogger())

	stats, err := svc.UserStats(context.Background(), target, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalLogins)
	require.NotNil(t, stats.LastLogin)
	assert.Equal(t, "2026-02-10 09:00:00", *stats.LastLogin)
	assert.Equal(t, 3, stats.WeeklyData["2026-06"])
}

func TestDashboardService_UserStats_RangedUsesEvents(t *testing.T) {
	target := regularUser(2)
	target.LoginCount = 100 // counters must be ignored for ranged stats

	rng := analytics.RangeFromDates(
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	)

	events := &MockLoginEventRepository{
		SuccessTimesFunc: func(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error) {
			assert.Equal(t, []int64{2}, userIDs)
			return []time.Time{
				time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
				time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	svc := NewDashboardService(usersByID(target), events, testLogger())

	stats, err := svc.UserStats(context.Background(), target, 2, &rng)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLogins)
	require.NotNil(t, stats.LastLogin)
	assert.Equal(t, "2026-03-09 08:00:00", *stats.LastLogin)
}

func TestDashboardService_UserStats_ReversedRangeIsEmpty(t *testing.T) {
	target := regularUser(2)
	rng := analytics.RangeFromDates(
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	)

	events := &MockLoginEventRepository{
		SuccessTimesFunc: func(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error) {
			t.Error("reversed ranges must not query the event log")
			return nil, nil
		},
	}

	svc := NewDashboardService(usersByID(target), events, testLogger())

	stats, err := svc.UserStats(context.Background(), target, 2, &rng)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalLogins)
	assert.Nil(t, stats.LastLogin)
}

func TestDashboardService_UserActivity_Pagination(t *testing.T) {
	target := regularUser(2)

	events := &MockLoginEventRepository{
		ListByUserFunc: func(ctx context.Context, userID int64, limit, offset int) ([]models.LoginEvent, error) {
			assert.Equal(t, 10, limit)
			assert.Equal(t, 20, offset)
			return []models.LoginEvent{
				{ID: 30, Username: "user", Success: true, Timestamp: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)},
			}, nil
		},
		CountByUserFunc: func(ctx context.Context, userID int64) (int, error) {
			return 31, nil
		},
	}

	svc := NewDashboardService(usersByID(target), events, testLogger())

	page, err := svc.UserActivity(context.Background(), target, 2, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 31, page.Total)
	assert.Equal(t, 3, page.Page)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "2026-03-09 08:00:00", page.Results[0].Timestamp)
}

func TestDashboardService_BatchStats_KeyedByIDString(t *testing.T) {
	u2, u3 := regularUser(2), regularUser(3)
	u2.LoginCount = 4
	u3.LoginCount = 9

	svc := NewDashboardService(usersByID(adminUser(), u2, u3), &MockLoginEventRepository{}, testLogger())

	results, err := svc.BatchStats(context.Background(), adminUser(), analytics.Filter{UserIDs: []string{"2", "3"}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 4, results["2"].TotalLogins)
	assert.Equal(t, 9, results["3"].TotalLogins)
}

func TestDashboardService_BatchStats_UnknownIDRejected(t *testing.T) {
	svc := NewDashboardService(usersByID(adminUser(), regularUser(2)), &MockLoginEventRepository{}, testLogger())

	_, err := svc.BatchStats(context.Background(), adminUser(), analytics.Filter{UserIDs: []string{"2", "99"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Contains(t, err.Error(), "not found")
}

func TestDashboardService_BatchStats_NonAdminForbidden(t *testing.T) {
	svc := NewDashboardService(usersByID(regularUser(2), regularUser(3)), &MockLoginEventRepository{}, testLogger())

	_, err := svc.BatchStats(context.Background(), regularUser(2), analytics.Filter{UserIDs: []string{"3"}}, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestDashboardService_BatchStats_SelfAllowedForRegularUser(t *testing.T) {
	u2 := regularUser(2)
	u2.LoginCount = 6

	svc := NewDashboardService(usersByID(u2), &MockLoginEventRepository{}, testLogger())

	results, err := svc.BatchStats(context.Background(), u2, analytics.Filter{SelfOnly: true}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 6, results["2"].TotalLogins)
}

func TestDashboardService_BatchStats_RangedGroupsPerUser(t *testing.T) {
	u2, u3 := regularUser(2), regularUser(3)
	rng := analytics.RangeFromDates(
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	)

	id2, id3 := int64(2), int64(3)
	events := &MockLoginEventRepository{
		EventsForUsersFunc: func(ctx context.Context, userIDs []int64, start, end time.Time) ([]models.LoginEvent, error) {
			return []models.LoginEvent{
				{UserID: &id2, Success: true, Timestamp: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
				{UserID: &id2, Success: false, Timestamp: time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)},
				{UserID: &id3, Success: true, Timestamp: time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)},
				{UserID: &id3, Success: true, Timestamp: time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)},
			}, nil
		},
	}

	svc := NewDashboardService(usersByID(adminUser(), u2, u3), events, testLogger())

	results, err := svc.BatchStats(context.Background(), adminUser(), analytics.Filter{UserIDs: []string{"2", "3"}}, &rng)
	require.NoError(t, err)
	assert.Equal(t, 1, results["2"].TotalLogins)
	assert.Equal(t, 2, results["3"].TotalLogins)
}

func TestDashboardService_AdminSummary(t *testing.T) {
	users := usersByID(adminUser())
	users.CountFunc = func(ctx context.Context) (int, error) { return 40, nil }
	users.CountActiveFunc = func(ctx context.Context) (int, error) { return 35, nil }
	users.JoinMonthCountsFunc = func(ctx context.Context) (map[string]int, error) {
		return map[string]int{"2026-01": 12, "2026-02": 8}, nil
	}

	events := &MockLoginEventRepository{
		CountSuccessfulFunc: func(ctx context.Context) (int, error) { return 900, nil },
		ListRecentFunc: func(ctx context.Context, limit int) ([]models.LoginEvent, error) {
			assert.Equal(t, 10, limit)
			return []models.LoginEvent{{ID: 1, Username: "alice", Success: true, Timestamp: time.Now()}}, nil
		},
	}

	svc := NewDashboardService(users, events, testLogger())

	summary, err := svc.AdminSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, summary.TotalUsers)
	assert.Equal(t, 35, summary.ActiveUsers)
	assert.Equal(t, 900, summary.TotalLogins)
	require.Len(t, summary.LoginActivity, 1)
	assert.Equal(t, []string{"2026-01", "2026-02"}, summary.UserGrowth.Labels)
}
