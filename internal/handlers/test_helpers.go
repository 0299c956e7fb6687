package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/auth"
	"github.com/tmercer/authpulse/internal/models"
	"github.com/tmercer/authpulse/internal/services"
	pkghttp "github.com/tmercer/authpulse/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID int64, username string) *http.Request {
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Type:     "access",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// AssertFlatError checks the {"error": msg} shape of the analytics endpoints
func AssertFlatError(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, msgContains string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Contains(t, resp["error"], msgContains)
}

// MockRequesterSource implements RequesterSource for testing
type MockRequesterSource struct {
	GetByIDFunc func(ctx context.Context, id int64) (*models.User, error)
}

func (m *MockRequesterSource) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

// RequesterFixture returns a MockRequesterSource serving the given users by id
func RequesterFixture(users ...*models.User) *MockRequesterSource {
	byID := make(map[int64]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return &MockRequesterSource{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			if u, ok := byID[id]; ok {
				return u, nil
			}
			return nil, models.ErrNotFound
		},
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, identifier, password string, lc services.LoginContext) (*services.AuthResponse, error)
	RegisterFunc     func(ctx context.Context, username, email, password string) (*services.AuthResponse, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	LogoutFunc       func(ctx context.Context, accessToken string) error
}

func (m *MockAuthService) Login(ctx context.Context, identifier, password string, lc services.LoginContext) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, identifier, password, lc)
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) (*services.AuthResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, username, email, password)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accessToken)
}

// MockEmailVerificationService for testing
type MockEmailVerificationService struct {
	SendVerificationEmailFunc func(ctx context.Context, userID int64, email string) error
	VerifyEmailFunc           func(ctx context.Context, plainToken string) (int64, error)
	ResendVerificationFunc    func(ctx context.Context, email string) error
}

func (m *MockEmailVerificationService) SendVerificationEmail(ctx context.Context, userID int64, email string) error {
	if m.SendVerificationEmailFunc == nil {
		return nil
	}
	return m.SendVerificationEmailFunc(ctx, userID, email)
}

func (m *MockEmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (int64, error) {
	if m.VerifyEmailFunc == nil {
		return 0, models.ErrUnauthorized
	}
	return m.VerifyEmailFunc(ctx, plainToken)
}

func (m *MockEmailVerificationService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc == nil {
		return nil
	}
	return m.ResendVerificationFunc(ctx, email)
}

// MockPasswordResetService for testing
type MockPasswordResetService struct {
	RequestResetFunc  func(ctx context.Context, email string) error
	ResetPasswordFunc func(ctx context.Context, plainToken, newPassword string) error
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, email string) error {
	if m.RequestResetFunc == nil {
		return nil
	}
	return m.RequestResetFunc(ctx, email)
}

func (m *MockPasswordResetService) ResetPassword(ctx context.Context, plainToken, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrUnauthorized
	}
	return m.ResetPasswordFunc(ctx, plainToken, newPassword)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserByIDFunc func(ctx context.Context, id int64) (*models.User, error)
	ListUsersFunc   func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateUserFunc  func(ctx context.Context, user *models.User, password string) (*models.User, error)
	UpdateUserFunc  func(ctx context.Context, id int64, user *models.User) (*models.User, error)
	DeleteUserFunc  func(ctx context.Context, id int64) error
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetUserByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserByIDFunc(ctx, id)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, limit, offset)
}

func (m *MockUserService) CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if m.CreateUserFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateUserFunc(ctx, user, password)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id int64, user *models.User) (*models.User, error) {
	if m.UpdateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateUserFunc(ctx, id, user)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id int64) error {
	if m.DeleteUserFunc == nil {
		return nil
	}
	return m.DeleteUserFunc(ctx, id)
}

// MockDashboardService implements DashboardServiceInterface for testing
type MockDashboardService struct {
	UserStatsFunc    func(ctx context.Context, requester *models.User, targetID int64, rng *analytics.DateRange) (*analytics.Stats, error)
	UserActivityFunc func(ctx context.Context, requester *models.User, targetID int64, page, pageSize int) (*services.ActivityPage, error)
	BatchStatsFunc   func(ctx context.Context, requester *models.User, f analytics.Filter, rng *analytics.DateRange) (map[string]analytics.Stats, error)
	AdminSummaryFunc func(ctx context.Context) (*services.AdminSummary, error)
}

func (m *MockDashboardService) UserStats(ctx context.Context, requester *models.User, targetID int64, rng *analytics.DateRange) (*analytics.Stats, error) {
	if m.UserStatsFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UserStatsFunc(ctx, requester, targetID, rng)
}

func (m *MockDashboardService) UserActivity(ctx context.Context, requester *models.User, targetID int64, page, pageSize int) (*services.ActivityPage, error) {
	if m.UserActivityFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UserActivityFunc(ctx, requester, targetID, page, pageSize)
}

func (m *MockDashboardService) BatchStats(ctx context.Context, requester *models.User, f analytics.Filter, rng *analytics.DateRange) (map[string]analytics.Stats, error) {
	if m.BatchStatsFunc == nil {
		return map[string]analytics.Stats{}, nil
	}
	return m.BatchStatsFunc(ctx, requester, f, rng)
}

func (m *MockDashboardService) AdminSummary(ctx context.Context) (*services.AdminSummary, error) {
	if m.AdminSummaryFunc == nil {
		return &services.AdminSummary{}, nil
	}
	return m.AdminSummaryFunc(ctx)
}

// MockChartService implements ChartServiceInterface for testing
type MockChartService struct {
	TrendChartFunc        func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error)
	ComparisonChartFunc   func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error)
	DistributionChartFunc func(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.Distribution, error)
	AdminOverviewFunc     func(ctx context.Context, rng analytics.DateRange) (*analytics.AdminCharts, error)
}

func (m *MockChartService) TrendChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
	if m.TrendChartFunc == nil {
		return &analytics.ChartData{}, nil
	}
	return m.TrendChartFunc(ctx, requester, f, rng)
}

func (m *MockChartService) ComparisonChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.ChartData, error) {
	if m.ComparisonChartFunc == nil {
		return &analytics.ChartData{}, nil
	}
	return m.ComparisonChartFunc(ctx, requester, f, rng)
}

func (m *MockChartService) DistributionChart(ctx context.Context, requester *models.User, f analytics.Filter, rng analytics.DateRange) (*analytics.Distribution, error) {
	if m.DistributionChartFunc == nil {
		return &analytics.Distribution{}, nil
	}
	return m.DistributionChartFunc(ctx, requester, f, rng)
}

func (m *MockChartService) AdminOverview(ctx context.Context, rng analytics.DateRange) (*analytics.AdminCharts, error) {
	if m.AdminOverviewFunc == nil {
		return &analytics.AdminCharts{}, nil
	}
	return m.AdminOverviewFunc(ctx, rng)
}
