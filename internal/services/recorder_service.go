package services

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/database"
	"github.com/tmercer/authpulse/internal/models"
)

// LoginEventWriter appends login events on a caller-supplied querier.
type LoginEventWriter interface {
	Insert(ctx context.Context, q database.Querier, event *models.LoginEvent) (*models.LoginEvent, error)
}

// CounterWriter applies the denormalized per-user counters.
type CounterWriter interface {
	ApplyLoginSuccess(ctx context.Context, q database.Querier, userID int64, at time.Time, weekKey, monthKey string) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// AttemptRecord describes one authentication attempt to be recorded.
type AttemptRecord struct {
	UserID            *int64
	AttemptedUsername string
	IPAddress         string
	UserAgent         string
	Success           bool
	At                time.Time
}

// RecorderService persists login attempts and keeps the per-user counters in
// step with the event log. The event insert and the counter update commit
// together, so a crash between them cannot leave the two out of sync.
type RecorderService struct {
	db       TxRunner
	events   LoginEventWriter
	counters CounterWriter
	logger   *slog.Logger
}

func NewRecorderService(db TxRunner, events LoginEventWriter, counters CounterWriter, logger *slog.Logger) *RecorderService {
	return &RecorderService{
		db:       db,
		events:   events,
		counters: counters,
		logger:   logger,
	}
}

// RecordAttempt writes one attempt. A successful attempt with a known user
// also increments that user's login_count, last_login_timestamp and the
// weekly/monthly buckets, atomically with the event insert.
func (s *RecorderService) RecordAttempt(ctx context.Context, rec AttemptRecord) (*models.LoginEvent, error) {
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	userAgent := truncateUserAgent(rec.UserAgent)

	event := &models.LoginEvent{
		UserID:    rec.UserID,
		IPAddress: rec.IPAddress,
		UserAgent: userAgent,
		Success:   rec.Success,
		Timestamp: at,
	}
	if rec.AttemptedUsername != "" {
		attempted := rec.AttemptedUsername
		event.AttemptedUsername = &attempted
	}

	var created *models.LoginEvent
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var txErr error
		created, txErr = s.events.Insert(ctx, tx, event)
		if txErr != nil {
			return txErr
		}

		if rec.Success && rec.UserID != nil {
			weekKey := analytics.WeekKey(at)
			monthKey := analytics.MonthKey(at)
			if txErr = s.counters.ApplyLoginSuccess(ctx, tx, *rec.UserID, at, weekKey, monthKey); txErr != nil {
				return txErr
			}
		}

		return nil
	})
	if err != nil {
		s.logger.Error("failed to record login attempt",
			slog.Bool("success", rec.Success),
			slog.Any("error", err))
		return nil, err
	}

	return created, nil
}

// truncateUserAgent caps the stored user agent at MaxUserAgentLen bytes,
// backing off to a rune boundary so the cut never produces invalid UTF-8.
func truncateUserAgent(ua string) string {
	if len(ua) <= models.MaxUserAgentLen {
		return ua
	}
	cut := models.MaxUserAgentLen
	for cut > 0 && !utf8.RuneStart(ua[cut]) {
		cut--
	}
	return ua[:cut]
}
