package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/services"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		// No docker available; the unit suites still cover the logic
		os.Exit(0)
	}
	testDB = db

	code := m.Run()

	testDB.Teardown(ctx)
	os.Exit(code)
}

func newRecorder(t *testing.T) *services.RecorderService {
	t.Helper()
	userRepo, eventRepo, _, _ := InitializeRepositories(testDB.DB)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewRecorderService(testDB.DB, eventRepo, userRepo, logger)
}

func cleanTables(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
}

func TestRecorder_SuccessCommitsEventAndCounters(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	userRepo, eventRepo, _, _ := InitializeRepositories(testDB.DB)
	recorder := newRecorder(t)

	username, email, password := TestAccount("recorder")
	user, err := SeedUser(ctx, userRepo, username, email, password, false)
	require.NoError(t, err)

	at := time.Date(2026, 3, 16, 9, 30, 0, 0, time.UTC)
	event, err := recorder.RecordAttempt(ctx, services.AttemptRecord{
		UserID:    &user.ID,
		IPAddress: "203.0.113.7",
		UserAgent: "Mozilla/5.0",
		Success:   true,
		At:        at,
	})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.NotZero(t, event.ID)
	assert.True(t, event.Success)

	count, err := eventRepo.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	updated, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.LoginCount)
	require.NotNil(t, updated.LastLoginTimestamp)
	assert.WithinDuration(t, at, *updated.LastLoginTimestamp, time.Second)
	assert.Equal(t, 1, updated.WeeklyLogins[analytics.WeekKey(at)])
	assert.Equal(t, 1, updated.MonthlyLogins[analytics.MonthKey(at)])
}

func TestRecorder_FailureLeavesCountersUntouched(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	userRepo, eventRepo, _, _ := InitializeRepositories(testDB.DB)
	recorder := newRecorder(t)

	username, email, password := TestAccount("failure")
	user, err := SeedUser(ctx, userRepo, username, email, password, false)
	require.NoError(t, err)

	_, err = recorder.RecordAttempt(ctx, services.AttemptRecord{
		UserID:            &user.ID,
		AttemptedUsername: username,
		IPAddress:         "203.0.113.8",
		Success:           false,
	})
	require.NoError(t, err)

	events, err := eventRepo.ListByUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)

	updated, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.LoginCount)
	assert.Nil(t, updated.LastLoginTimestamp)
}

func TestRecorder_UnknownIdentityKeepsAttemptedUsername(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	_, eventRepo, _, _ := InitializeRepositories(testDB.DB)
	recorder := newRecorder(t)

	_, err := recorder.RecordAttempt(ctx, services.AttemptRecord{
		AttemptedUsername: "ghost@example.com",
		IPAddress:         "198.51.100.4",
		Success:           false,
	})
	require.NoError(t, err)

	events, err := eventRepo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].UserID)
	assert.Equal(t, "ghost@example.com", events[0].Username)
}

func TestUserRepository_ListFiltered(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	userRepo, _, _, _ := InitializeRepositories(testDB.DB)

	adminName, adminEmail, password := TestAccount("admin")
	admin, err := SeedUser(ctx, userRepo, adminName, adminEmail, password, true)
	require.NoError(t, err)

	regularName, regularEmail, _ := TestAccount("regular")
	regular, err := SeedUser(ctx, userRepo, regularName, regularEmail, password, false)
	require.NoError(t, err)

	inactiveName, inactiveEmail, _ := TestAccount("inactive")
	inactive, err := SeedUser(ctx, userRepo, inactiveName, inactiveEmail, password, false)
	require.NoError(t, err)
	inactive.IsActive = false
	_, err = userRepo.Update(ctx, inactive.ID, inactive)
	require.NoError(t, err)

	adminOnly := true
	admins, err := userRepo.ListFiltered(ctx, nil, &adminOnly, nil)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.ID, admins[0].ID)

	activeOnly := true
	active, err := userRepo.ListFiltered(ctx, nil, nil, &activeOnly)
	require.NoError(t, err)
	require.Len(t, active, 2)

	byID, err := userRepo.ListFiltered(ctx, []int64{regular.ID}, nil, nil)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, regular.Username, byID[0].Username)
}

func TestUserRepository_OverwriteCountersRoundTrip(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	userRepo, _, _, _ := InitializeRepositories(testDB.DB)

	username, email, password := TestAccount("overwrite")
	user, err := SeedUser(ctx, userRepo, username, email, password, false)
	require.NoError(t, err)

	last := time.Date(2026, 2, 28, 18, 0, 0, 0, time.UTC)
	err = userRepo.OverwriteCounters(ctx, user.ID, 42, &last,
		map[string]int{"2026-08": 5, "2026-09": 3},
		map[string]int{"2026-02": 8},
	)
	require.NoError(t, err)

	updated, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.LoginCount)
	require.NotNil(t, updated.LastLoginTimestamp)
	assert.WithinDuration(t, last, *updated.LastLoginTimestamp, time.Second)
	assert.Equal(t, map[string]int{"2026-08": 5, "2026-09": 3}, updated.WeeklyLogins)
	assert.Equal(t, map[string]int{"2026-02": 8}, updated.MonthlyLogins)
}

func TestLoginEventRepository_SuccessTimesWindow(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	userRepo, eventRepo, _, _ := InitializeRepositories(testDB.DB)

	username, email, password := TestAccount("window")
	user, err := SeedUser(ctx, userRepo, username, email, password, false)
	require.NoError(t, err)

	inWindow := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	beforeWindow := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, SeedLoginEvent(ctx, testDB, &user.ID, username, true, inWindow))
	require.NoError(t, SeedLoginEvent(ctx, testDB, &user.ID, username, true, beforeWindow))
	// Failures never count toward success times
	require.NoError(t, SeedLoginEvent(ctx, testDB, &user.ID, username, false, inWindow.Add(time.Hour)))

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	times, err := eventRepo.SuccessTimes(ctx, []int64{user.ID}, start, end)
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.WithinDuration(t, inWindow, times[0], time.Second)

	all, err := eventRepo.SuccessTimes(ctx, []int64{user.ID}, time.Time{}, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestVerificationTokenRepository_Lifecycle(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	userRepo, _, _, tokenRepo := InitializeRepositories(testDB.DB)

	username, email, password := TestAccount("token")
	user, err := SeedUser(ctx, userRepo, username, email, password, false)
	require.NoError(t, err)

	expires := time.Now().Add(24 * time.Hour)
	token, err := tokenRepo.Create(ctx, user.ID, "hash-abc", "email_verify", email, expires)
	require.NoError(t, err)
	assert.Nil(t, token.UsedAt)

	fetched, err := tokenRepo.GetByTokenHash(ctx, "hash-abc", "email_verify")
	require.NoError(t, err)
	assert.Equal(t, token.ID, fetched.ID)
	assert.Equal(t, user.ID, fetched.UserID)

	pending, err := tokenRepo.GetPendingByEmail(ctx, email, "email_verify")
	require.NoError(t, err)
	assert.Equal(t, token.ID, pending.ID)

	require.NoError(t, tokenRepo.MarkAsUsed(ctx, token.ID))
	// Second redemption must fail
	assert.Error(t, tokenRepo.MarkAsUsed(ctx, token.ID))

	used, err := tokenRepo.GetByTokenHash(ctx, "hash-abc", "email_verify")
	require.NoError(t, err)
	assert.NotNil(t, used.UsedAt)
}

func TestTokenRevocationRepository_RevokeAndCleanup(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	userRepo, _, revokeRepo, _ := InitializeRepositories(testDB.DB)

	username, email, password := TestAccount("revoke")
	user, err := SeedUser(ctx, userRepo, username, email, password, false)
	require.NoError(t, err)

	err = revokeRepo.RevokeToken(ctx, "jti-live", user.ID, "refresh", time.Now().Add(time.Hour), "logout")
	require.NoError(t, err)
	err = revokeRepo.RevokeToken(ctx, "jti-stale", user.ID, "refresh", time.Now().Add(-time.Hour), "logout")
	require.NoError(t, err)

	revoked, err := revokeRepo.IsTokenRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, revoked)

	unknown, err := revokeRepo.IsTokenRevoked(ctx, "jti-unknown")
	require.NoError(t, err)
	assert.False(t, unknown)

	deleted, err := revokeRepo.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	stillRevoked, err := revokeRepo.IsTokenRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, stillRevoked)
}
