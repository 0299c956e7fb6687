package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmercer/authpulse/internal/models"
)

// FailureCounter reads failed-attempt counts from the login event log.
type FailureCounter interface {
	CountFailedByIdentifier(ctx context.Context, identifier string, since time.Time) (int, error)
	CountFailedByIP(ctx context.Context, ip string, since time.Time) (int, error)
}

// RateLimitConfig holds thresholds for login throttling.
type RateLimitConfig struct {
	MaxFailedPerIdentifier int
	MaxFailedPerIP         int
	LookbackWindow         time.Duration
}

// RateLimitService throttles login attempts using the same event log the
// analytics run on. No separate attempt table is kept.
type RateLimitService struct {
	events FailureCounter
	config RateLimitConfig
	logger *slog.Logger
}

func NewRateLimitService(events FailureCounter, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		events: events,
		config: config,
		logger: logger,
	}
}

// CheckRateLimit reports whether a login attempt should be allowed.
// DB errors fail open so an analytics outage cannot lock everyone out;
// exceeded thresholds still fail closed.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, identifier, ipAddress string) error {
	lookback := time.Now().Add(-s.config.LookbackWindow)

	failedCount, err := s.events.CountFailedByIdentifier(ctx, identifier, lookback)
	if err != nil {
		s.logger.Error("failed to check identifier rate limit", slog.Any("error", err))
		return nil
	}

	if failedCount >= s.config.MaxFailedPerIdentifier {
		s.logger.Warn("account rate limited",
			slog.Int("failed_attempts", failedCount))
		return models.ErrRateLimitExceeded
	}

	ipCount, err := s.events.CountFailedByIP(ctx, ipAddress, lookback)
	if err != nil {
		s.logger.Error("failed to check IP rate limit", slog.Any("error", err))
		return nil
	}

	if ipCount >= s.config.MaxFailedPerIP {
		s.logger.Warn("IP rate limited",
			slog.String("ip_address", ipAddress),
			slog.Int("failed_attempts", ipCount))
		return models.ErrRateLimitExceeded
	}

	return nil
}
