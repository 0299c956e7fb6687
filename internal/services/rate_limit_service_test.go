package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tmercer/authpulse/internal/models"
)

func newRateLimitService(events *MockLoginEventRepository) *RateLimitService {
	return NewRateLimitService(events, RateLimitConfig{
		MaxFailedPerIdentifier: 5,
		MaxFailedPerIP:         20,
		LookbackWindow:         15 * time.Minute,
	}, testLogger())
}

func TestRateLimitService_AllowsUnderThreshold(t *testing.T) {
	svc := newRateLimitService(&MockLoginEventRepository{
		CountFailedByIdentifierFunc: func(ctx context.Context, identifier string, since time.Time) (int, error) {
			return 4, nil
		},
		CountFailedByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 19, nil
		},
	})

	err := svc.CheckRateLimit(context.Background(), "alice", "10.0.0.1")
	assert.NoError(t, err)
}

func TestRateLimitService_BlocksByIdentifier(t *testing.T) {
	svc := newRateLimitService(&MockLoginEventRepository{
		CountFailedByIdentifierFunc: func(ctx context.Context, identifier string, since time.Time) (int, error) {
			return 5, nil
		},
	})

	err := svc.CheckRateLimit(context.Background(), "alice", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)
}

func TestRateLimitService_BlocksByIP(t *testing.T) {
	svc := newRateLimitService(&MockLoginEventRepository{
		CountFailedByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 20, nil
		},
	})

	err := svc.CheckRateLimit(context.Background(), "alice", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)
}

func TestRateLimitService_FailsOpenOnDBError(t *testing.T) {
	svc := newRateLimitService(&MockLoginEventRepository{
		CountFailedByIdentifierFunc: func(ctx context.Context, identifier string, since time.Time) (int, error) {
			return 0, errors.New("db down")
		},
	})

	err := svc.CheckRateLimit(context.Background(), "alice", "10.0.0.1")
	assert.NoError(t, err)
}
