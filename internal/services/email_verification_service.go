package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmercer/authpulse/internal/models"
)

// VerificationTokenRepo defines the interface for single-use token storage
type VerificationTokenRepo interface {
	Create(ctx context.Context, userID int64, tokenHash, purpose, email string, expiresAt time.Time) (*models.VerificationToken, error)
	GetByTokenHash(ctx context.Context, tokenHash, purpose string) (*models.VerificationToken, error)
	MarkAsUsed(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID int64, purpose string) error
	GetPendingByEmail(ctx context.Context, email, purpose string) (*models.VerificationToken, error)
}

// AccountStateWriter is the user-side surface the token flows need.
type AccountStateWriter interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetEmailVerified(ctx context.Context, id int64) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
}

// EmailVerificationService handles email verification business logic
type EmailVerificationService struct {
	tokens         VerificationTokenRepo
	users          AccountStateWriter
	emailService   EmailService
	logger         *slog.Logger
	tokenExpiry    time.Duration
	resendCooldown time.Duration
}

func NewEmailVerificationService(tokens VerificationTokenRepo, users AccountStateWriter, emailService EmailService, logger *slog.Logger, tokenExpiry time.Duration) *EmailVerificationService {
	return &EmailVerificationService{
		tokens:         tokens,
		users:          users,
		emailService:   emailService,
		logger:         logger,
		tokenExpiry:    tokenExpiry,
		resendCooldown: 20 * time.Minute,
	}
}

// generatePlainToken returns a URL-safe random token and its storage hash.
func generatePlainToken() (string, string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}

	plainToken := base64.URLEncoding.EncodeToString(tokenBytes)
	hash := sha256.Sum256([]byte(plainToken))
	return plainToken, hex.EncodeToString(hash[:]), nil
}

func hashPlainToken(plainToken string) string {
	hash := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(hash[:])
}

// SendVerificationEmail generates a token and sends a verification email
func (s *EmailVerificationService) SendVerificationEmail(ctx context.Context, userID int64, email string) error {
	plainToken, tokenHash, err := generatePlainToken()
	if err != nil {
		s.logger.Error("failed to generate random token", slog.Any("error", err))
		return err
	}

	expiresAt := time.Now().Add(s.tokenExpiry)

	_, err = s.tokens.Create(ctx, userID, tokenHash, models.TokenPurposeEmailVerify, email, expiresAt)
	if err != nil {
		s.logger.Error("failed to create email verification token",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return fmt.Errorf("failed to create token: %w", err)
	}

	if err := s.emailService.SendVerificationEmail(ctx, email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send verification email",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("verification email sent", slog.Int64("user_id", userID))
	return nil
}

// VerifyEmail verifies a token and marks the user's email as verified
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (int64, error) {
	if plainToken == "" {
		s.logger.Warn("empty verification token provided")
		return 0, models.ErrUnauthorized
	}

	token, err := s.tokens.GetByTokenHash(ctx, hashPlainToken(plainToken), models.TokenPurposeEmailVerify)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("verification token not found")
			return 0, models.ErrUnauthorized
		}
		s.logger.Error("failed to retrieve verification token", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	if token.IsUsed() {
		s.logger.Warn("attempt to reuse verification token", slog.String("token_id", token.ID))
		return 0, models.ErrUnauthorized
	}

	if token.IsExpired() {
		s.logger.Info("verification token expired",
			slog.String("token_id", token.ID),
			slog.Time("expires_at", token.ExpiresAt))
		return 0, models.ErrUnauthorized
	}

	if err := s.tokens.MarkAsUsed(ctx, token.ID); err != nil {
		s.logger.Error("failed to mark token as used",
			slog.String("token_id", token.ID),
			slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	if err := s.users.SetEmailVerified(ctx, token.UserID); err != nil {
		s.logger.Error("failed to update email verification status",
			slog.Int64("user_id", token.UserID),
			slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.Int64("user_id", token.UserID))
	return token.UserID, nil
}

// ResendVerification sends a new verification email if the cooldown allows.
// Always reports success to the caller to prevent account enumeration.
func (s *EmailVerificationService) ResendVerification(ctx context.Context, email string) error {
	existingToken, err := s.tokens.GetPendingByEmail(ctx, email, models.TokenPurposeEmailVerify)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for existing tokens", slog.Any("error", err))
		return nil
	}

	if existingToken == nil {
		return nil
	}

	if time.Since(existingToken.CreatedAt) < s.resendCooldown {
		s.logger.Info("resend rate limited",
			slog.Duration("time_since_last_resend", time.Since(existingToken.CreatedAt)))
		return nil
	}

	if err := s.tokens.DeleteByUser(ctx, existingToken.UserID, models.TokenPurposeEmailVerify); err != nil {
		s.logger.Error("failed to delete old tokens",
			slog.Int64("user_id", existingToken.UserID),
			slog.Any("error", err))
	}

	return s.SendVerificationEmail(ctx, existingToken.UserID, email)
}
