package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tmercer/authpulse/internal/database"
	"github.com/tmercer/authpulse/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockUserRepository implements the user repository interfaces for testing
type MockUserRepository struct {
	GetByIDFunc          func(ctx context.Context, id int64) (*models.User, error)
	GetByEmailFunc       func(ctx context.Context, email string) (*models.User, error)
	GetByUsernameFunc    func(ctx context.Context, username string) (*models.User, error)
	ListFunc             func(ctx context.Context, limit, offset int) ([]*models.User, error)
	ListFilteredFunc     func(ctx context.Context, ids []int64, admin, active *bool) ([]*models.User, error)
	CreateFunc           func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc           func(ctx context.Context, id int64, user *models.User) (*models.User, error)
	DeleteFunc           func(ctx context.Context, id int64) error
	CountFunc            func(ctx context.Context) (int, error)
	CountActiveFunc      func(ctx context.Context) (int, error)
	JoinMonthCountsFunc  func(ctx context.Context) (map[string]int, error)
	SetEmailVerifiedFunc func(ctx context.Context, id int64) error
	SetPasswordHashFunc  func(ctx context.Context, id int64, hash string) error
	ApplyLoginSuccessFunc func(ctx context.Context, q database.Querier, userID int64, at time.Time, weekKey, monthKey string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) ListFiltered(ctx context.Context, ids []int64, admin, active *bool) ([]*models.User, error) {
	if m.ListFilteredFunc != nil {
		return m.ListFilteredFunc(ctx, ids, admin, active)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id int64, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockUserRepository) CountActive(ctx context.Context) (int, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx)
	}
	return 0, nil
}

func (m *MockUserRepository) JoinMonthCounts(ctx context.Context) (map[string]int, error) {
	if m.JoinMonthCountsFunc != nil {
		return m.JoinMonthCountsFunc(ctx)
	}
	return map[string]int{}, nil
}

func (m *MockUserRepository) SetEmailVerified(ctx context.Context, id int64) error {
	if m.SetEmailVerifiedFunc != nil {
		return m.SetEmailVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	if m.SetPasswordHashFunc != nil {
		return m.SetPasswordHashFunc(ctx, id, hash)
	}
	return nil
}

func (m *MockUserRepository) ApplyLoginSuccess(ctx context.Context, q database.Querier, userID int64, at time.Time, weekKey, monthKey string) error {
	if m.ApplyLoginSuccessFunc != nil {
		return m.ApplyLoginSuccessFunc(ctx, q, userID, at, weekKey, monthKey)
	}
	return nil
}

// MockLoginEventRepository implements the event repository interfaces for testing
type MockLoginEventRepository struct {
	InsertFunc                  func(ctx context.Context, q database.Querier, event *models.LoginEvent) (*models.LoginEvent, error)
	ListByUserFunc              func(ctx context.Context, userID int64, limit, offset int) ([]models.LoginEvent, error)
	ListRecentFunc              func(ctx context.Context, limit int) ([]models.LoginEvent, error)
	CountByUserFunc             func(ctx context.Context, userID int64) (int, error)
	CountSuccessfulFunc         func(ctx context.Context) (int, error)
	SuccessTimesFunc            func(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error)
	EventsForUsersFunc          func(ctx context.Context, userIDs []int64, start, end time.Time) ([]models.LoginEvent, error)
	EventsInWindowFunc          func(ctx context.Context, start, end time.Time) ([]models.LoginEvent, error)
	CountFailedByIdentifierFunc func(ctx context.Context, identifier string, since time.Time) (int, error)
	CountFailedByIPFunc         func(ctx context.Context, ip string, since time.Time) (int, error)
}

func (m *MockLoginEventRepository) Insert(ctx context.Context, q database.Querier, event *models.LoginEvent) (*models.LoginEvent, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, q, event)
	}
	created := *event
	created.ID = 1
	return &created, nil
}

func (m *MockLoginEventRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.LoginEvent, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	return []models.LoginEvent{}, nil
}

func (m *MockLoginEventRepository) ListRecent(ctx context.Context, limit int) ([]models.LoginEvent, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return []models.LoginEvent{}, nil
}

func (m *MockLoginEventRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockLoginEventRepository) CountSuccessful(ctx context.Context) (int, error) {
	if m.CountSuccessfulFunc != nil {
		return m.CountSuccessfulFunc(ctx)
	}
	return 0, nil
}

func (m *MockLoginEventRepository) SuccessTimes(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error) {
	if m.SuccessTimesFunc != nil {
		return m.SuccessTimesFunc(ctx, userIDs, start, end)
	}
	return []time.Time{}, nil
}

func (m *MockLoginEventRepository) EventsForUsers(ctx context.Context, userIDs []int64, start, end time.Time) ([]models.LoginEvent, error) {
	if m.EventsForUsersFunc != nil {
		return m.EventsForUsersFunc(ctx, userIDs, start, end)
	}
	return []models.LoginEvent{}, nil
}

func (m *MockLoginEventRepository) EventsInWindow(ctx context.Context, start, end time.Time) ([]models.LoginEvent, error) {
	if m.EventsInWindowFunc != nil {
		return m.EventsInWindowFunc(ctx, start, end)
	}
	return []models.LoginEvent{}, nil
}

func (m *MockLoginEventRepository) CountFailedByIdentifier(ctx context.Context, identifier string, since time.Time) (int, error) {
	if m.CountFailedByIdentifierFunc != nil {
		return m.CountFailedByIdentifierFunc(ctx, identifier, since)
	}
	return 0, nil
}

func (m *MockLoginEventRepository) CountFailedByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	if m.CountFailedByIPFunc != nil {
		return m.CountFailedByIPFunc(ctx, ip, since)
	}
	return 0, nil
}

// MockTxRunner runs the transaction body with a nil tx. Mocked repositories
// never touch the querier, so this is safe for unit tests.
type MockTxRunner struct {
	WithTransactionFunc func(ctx context.Context, fn func(pgx.Tx) error) error
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// MockTokenRevocationRepository implements TokenRevocationRepository for testing
type MockTokenRevocationRepository struct {
	RevokeTokenFunc    func(ctx context.Context, jti string, userID int64, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevokedFunc func(ctx context.Context, jti string) (bool, error)
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti string, userID int64, tokenType string, expiresAt time.Time, reason string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, tokenType, expiresAt, reason)
	}
	return nil
}

func (m *MockTokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti)
	}
	return false, nil
}

// MockVerificationTokenRepo implements VerificationTokenRepo for testing
type MockVerificationTokenRepo struct {
	CreateFunc            func(ctx context.Context, userID int64, tokenHash, purpose, email string, expiresAt time.Time) (*models.VerificationToken, error)
	GetByTokenHashFunc    func(ctx context.Context, tokenHash, purpose string) (*models.VerificationToken, error)
	MarkAsUsedFunc        func(ctx context.Context, id string) error
	DeleteByUserFunc      func(ctx context.Context, userID int64, purpose string) error
	GetPendingByEmailFunc func(ctx context.Context, email, purpose string) (*models.VerificationToken, error)
}

func (m *MockVerificationTokenRepo) Create(ctx context.Context, userID int64, tokenHash, purpose, email string, expiresAt time.Time) (*models.VerificationToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, tokenHash, purpose, email, expiresAt)
	}
	return &models.VerificationToken{ID: "token_123", UserID: userID, Email: email, Purpose: purpose, TokenHash: tokenHash, ExpiresAt: expiresAt}, nil
}

func (m *MockVerificationTokenRepo) GetByTokenHash(ctx context.Context, tokenHash, purpose string) (*models.VerificationToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash, purpose)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationTokenRepo) MarkAsUsed(ctx context.Context, id string) error {
	if m.MarkAsUsedFunc != nil {
		return m.MarkAsUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockVerificationTokenRepo) DeleteByUser(ctx context.Context, userID int64, purpose string) error {
	if m.DeleteByUserFunc != nil {
		return m.DeleteByUserFunc(ctx, userID, purpose)
	}
	return nil
}

func (m *MockVerificationTokenRepo) GetPendingByEmail(ctx context.Context, email, purpose string) (*models.VerificationToken, error) {
	if m.GetPendingByEmailFunc != nil {
		return m.GetPendingByEmailFunc(ctx, email, purpose)
	}
	return nil, models.ErrNotFound
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc  func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}
