package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmercer/authpulse/internal/auth"
	"github.com/tmercer/authpulse/internal/models"
	pkgauth "github.com/tmercer/authpulse/pkg/auth"
	pkglogger "github.com/tmercer/authpulse/pkg/logger"
)

// TokenRevocationRepository defines the interface for token revocation operations
type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti string, userID int64, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AttemptRecorder records login outcomes for the analytics pipeline.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord) (*models.LoginEvent, error)
}

// RateLimiter gates login attempts before credentials are checked.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, identifier, ipAddress string) error
}

// AuthService handles authentication business logic
type AuthService struct {
	repo            UserRepository
	revokeRepo      TokenRevocationRepository
	recorder        AttemptRecorder
	rateLimiter     RateLimiter
	tm              *auth.TokenManager
	logger          *slog.Logger
	auditLogger     *pkglogger.AuditLogger
	requireVerified bool
}

func NewAuthService(repo UserRepository, tm *auth.TokenManager, revokeRepo TokenRevocationRepository, recorder AttemptRecorder, rateLimiter RateLimiter, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, requireVerified bool) *AuthService {
	return &AuthService{
		repo:            repo,
		revokeRepo:      revokeRepo,
		recorder:        recorder,
		rateLimiter:     rateLimiter,
		tm:              tm,
		logger:          logger,
		auditLogger:     auditLogger,
		requireVerified: requireVerified,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	IsActive      bool   `json:"is_active"`
	IsStaff       bool   `json:"is_staff"`
	EmailVerified bool   `json:"email_verified"`
	DateJoined    string `json:"date_joined"`
	LastLogin     string `json:"last_login,omitempty"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// LoginContext carries request metadata recorded with every attempt.
type LoginContext struct {
	IPAddress string
	UserAgent string
}

// Login authenticates a user by username or email and returns tokens.
// Every attempt is recorded in the event log: a success under the resolved
// user, a bad password under the user, and an unknown identity under the
// raw submitted username.
func (s *AuthService) Login(ctx context.Context, identifier, password string, lc LoginContext) (*AuthResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		s.logger.Warn("login attempt with empty identifier")
		return nil, models.ErrUnauthorized
	}

	// A limiter denial happens before any credential check, so it is not
	// recorded as an attempt: recording it would let a retry loop extend
	// its own lockout window indefinitely.
	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckRateLimit(ctx, identifier, lc.IPAddress); err != nil {
			return nil, err
		}
	}

	user, err := s.lookupUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.recordAttempt(ctx, AttemptRecord{
				AttemptedUsername: identifier,
				IPAddress:         lc.IPAddress,
				UserAgent:         lc.UserAgent,
				Success:           false,
			})
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     lc.IPAddress,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.IsActive {
		s.logger.Info("login blocked: account inactive", slog.Int64("user_id", user.ID))
		s.recordAttempt(ctx, AttemptRecord{
			UserID:    &user.ID,
			IPAddress: lc.IPAddress,
			UserAgent: lc.UserAgent,
			Success:   false,
		})
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     lc.IPAddress,
			FailureReason: "account_inactive",
			Success:       false,
		})
		return nil, models.ErrAccountInactive
	}

	if s.requireVerified && !user.EmailVerified {
		s.logger.Info("login blocked: email not verified", slog.Int64("user_id", user.ID))
		s.recordAttempt(ctx, AttemptRecord{
			UserID:    &user.ID,
			IPAddress: lc.IPAddress,
			UserAgent: lc.UserAgent,
			Success:   false,
		})
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     lc.IPAddress,
			FailureReason: "email_not_verified",
			Success:       false,
		})
		return nil, models.ErrEmailNotVerified
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.recordAttempt(ctx, AttemptRecord{
			UserID:    &user.ID,
			IPAddress: lc.IPAddress,
			UserAgent: lc.UserAgent,
			Success:   false,
		})
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     lc.IPAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	s.recordAttempt(ctx, AttemptRecord{
		UserID:    &user.ID,
		IPAddress: lc.IPAddress,
		UserAgent: lc.UserAgent,
		Success:   true,
	})

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Username, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Username, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: lc.IPAddress,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// lookupUser resolves an identifier against email when it looks like one,
// otherwise against username.
func (s *AuthService) lookupUser(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return s.repo.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return s.repo.GetByUsername(ctx, identifier)
}

// recordAttempt never lets a recording failure break the login flow.
func (s *AuthService) recordAttempt(ctx context.Context, rec AttemptRecord) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.RecordAttempt(ctx, rec); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}
}

// RefreshToken generates a new token pair from a refresh token
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.Int64("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	if revoked, err := s.revokeRepo.IsTokenRevoked(ctx, claims.ID); err == nil && revoked {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found for token refresh", slog.Int64("user_id", claims.UserID))
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.Int64("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.IsActive {
		s.logger.Info("token refresh blocked: account inactive", slog.Int64("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Username, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	newRefreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Username, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("token refreshed", slog.Int64("user_id", user.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		IsActive:     true,
	}

	createdUser, err := s.repo.Create(ctx, user)
	if err != nil {
		s.logger.Error("failed to create user", slog.Any("error", err))
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(createdUser.ID, createdUser.Username, createdUser.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Int64("user_id", createdUser.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(createdUser.ID, createdUser.Username, createdUser.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Int64("user_id", createdUser.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.Int64("user_id", createdUser.ID))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID, "", nil)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(createdUser),
	}, nil
}

// Logout revokes the current access token
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	expiresAt := claims.ExpiresAt.Time
	err = s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, expiresAt, "logout")
	if err != nil {
		s.logger.Error("failed to revoke token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.Int64("user_id", claims.UserID))
	return nil
}

// userModelToResponse converts a user model to response DTO
func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		IsActive:      user.IsActive,
		IsStaff:       user.IsStaff,
		EmailVerified: user.EmailVerified,
		DateJoined:    user.DateJoined.Format(time.RFC3339),
	}
	if user.LastLoginTimestamp != nil {
		resp.LastLogin = user.LastLoginTimestamp.Format(time.RFC3339)
	}
	return resp
}
