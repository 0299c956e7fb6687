package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmercer/authpulse/internal/models"
	pkgauth "github.com/tmercer/authpulse/pkg/auth"
	pkglogger "github.com/tmercer/authpulse/pkg/logger"
)

// PasswordResetService handles the forgot-password flow
type PasswordResetService struct {
	tokens       VerificationTokenRepo
	users        AccountStateWriter
	emailService EmailService
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	tokenExpiry  time.Duration
}

func NewPasswordResetService(tokens VerificationTokenRepo, users AccountStateWriter, emailService EmailService, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, tokenExpiry time.Duration) *PasswordResetService {
	return &PasswordResetService{
		tokens:       tokens,
		users:        users,
		emailService: emailService,
		logger:       logger,
		auditLogger:  auditLogger,
		tokenExpiry:  tokenExpiry,
	}
}

// RequestReset mails a reset link to the given address if an account exists.
// Always reports success to prevent account enumeration.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		}
		return nil
	}

	// One outstanding reset link per account
	if err := s.tokens.DeleteByUser(ctx, user.ID, models.TokenPurposePasswordReset); err != nil {
		s.logger.Error("failed to delete old reset tokens",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
	}

	plainToken, tokenHash, err := generatePlainToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return nil
	}

	expiresAt := time.Now().Add(s.tokenExpiry)

	if _, err := s.tokens.Create(ctx, user.ID, tokenHash, models.TokenPurposePasswordReset, email, expiresAt); err != nil {
		s.logger.Error("failed to create reset token",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return nil
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send reset email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return nil
	}

	s.logger.Info("password reset email sent", slog.Int64("user_id", user.ID))
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *PasswordResetService) ResetPassword(ctx context.Context, plainToken, newPassword string) error {
	if plainToken == "" {
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	token, err := s.tokens.GetByTokenHash(ctx, hashPlainToken(plainToken), models.TokenPurposePasswordReset)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("reset token not found")
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to retrieve reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if token.IsUsed() || token.IsExpired() {
		s.logger.Info("reset token unusable",
			slog.String("token_id", token.ID),
			slog.Bool("used", token.IsUsed()))
		return models.ErrUnauthorized
	}

	if err := s.tokens.MarkAsUsed(ctx, token.ID); err != nil {
		s.logger.Error("failed to mark reset token as used",
			slog.String("token_id", token.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.SetPasswordHash(ctx, token.UserID, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.Int64("user_id", token.UserID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset", slog.Int64("user_id", token.UserID))
	s.auditLogger.LogPasswordChange(token.UserID, "", true)
	return nil
}
