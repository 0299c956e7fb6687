package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmercer/authpulse/internal/analytics"
)

// CounterStore is the user-side surface the reconciler writes to.
type CounterStore interface {
	ListIDs(ctx context.Context) ([]int64, error)
	OverwriteCounters(ctx context.Context, userID int64, count int, last *time.Time, weekly, monthly map[string]int) error
}

// SuccessHistory yields the successful login instants the counters are
// derived from.
type SuccessHistory interface {
	SuccessTimes(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error)
}

// TokenPurger removes revocation entries whose tokens have expired anyway.
type TokenPurger interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// VerificationPurger removes verification and reset tokens past retention.
type VerificationPurger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// ReconcileManager periodically recomputes the denormalized login counters
// from the event log and purges expired tokens. The login path keeps the
// counters current on its own; reconciliation exists to repair drift after
// manual event edits or partial restores.
type ReconcileManager struct {
	counters      CounterStore
	history       SuccessHistory
	tokens        TokenPurger
	verifications VerificationPurger
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

// NewReconcileManager creates a new reconcile manager
func NewReconcileManager(
	counters CounterStore,
	history SuccessHistory,
	tokens TokenPurger,
	verifications VerificationPurger,
	logger *slog.Logger,
	interval time.Duration,
) *ReconcileManager {
	return &ReconcileManager{
		counters:      counters,
		history:       history,
		tokens:        tokens,
		verifications: verifications,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic reconcile task
func (rm *ReconcileManager) Start(ctx context.Context) {
	ticker := time.NewTicker(rm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	rm.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			rm.runOnce(ctx)
		case <-rm.stopCh:
			rm.logger.Info("reconcile manager stopped")
			return
		case <-ctx.Done():
			rm.logger.Info("reconcile manager context cancelled")
			return
		}
	}
}

// Stop signals the reconcile manager to stop
func (rm *ReconcileManager) Stop() {
	close(rm.stopCh)
}

func (rm *ReconcileManager) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := rm.ReconcileCounters(runCtx); err != nil {
		rm.logger.Error("counter reconciliation failed", slog.Any("error", err))
	}
	rm.purgeExpired(runCtx)
}

// ReconcileCounters rebuilds every user's login counters from the event
// log. A per-user failure is logged and skipped so one bad row cannot stall
// the whole sweep.
func (rm *ReconcileManager) ReconcileCounters(ctx context.Context) error {
	ids, err := rm.counters.ListIDs(ctx)
	if err != nil {
		return err
	}

	reconciled := 0
	for _, id := range ids {
		if err := rm.reconcileUser(ctx, id); err != nil {
			rm.logger.Error("failed to reconcile user counters",
				slog.Int64("user_id", id), slog.Any("error", err))
			continue
		}
		reconciled++
	}

	rm.logger.Info("counter reconciliation completed",
		slog.Int("users", reconciled), slog.Int("total", len(ids)))
	return nil
}

// reconcileUser reads the user's event history and overwrites their
// counters without locking the user row. A login that commits between the
// read and the overwrite is clobbered until the next sweep, so counter
// drift is bounded by one reconcile interval, never permanent.
func (rm *ReconcileManager) reconcileUser(ctx context.Context, userID int64) error {
	times, err := rm.history.SuccessTimes(ctx, []int64{userID}, time.Time{}, time.Now().UTC())
	if err != nil {
		return err
	}

	weekly := make(map[string]int)
	monthly := make(map[string]int)
	var last *time.Time

	for i := range times {
		t := times[i]
		weekly[analytics.WeekKey(t)]++
		monthly[analytics.MonthKey(t)]++
		if last == nil || t.After(*last) {
			last = &times[i]
		}
	}

	return rm.counters.OverwriteCounters(ctx, userID, len(times), last, weekly, monthly)
}

func (rm *ReconcileManager) purgeExpired(ctx context.Context) {
	if rm.tokens != nil {
		if n, err := rm.tokens.CleanupExpiredTokens(ctx); err != nil {
			rm.logger.Error("failed to purge revoked tokens", slog.Any("error", err))
		} else if n > 0 {
			rm.logger.Info("purged expired revoked tokens", slog.Int64("rows_deleted", n))
		}
	}

	if rm.verifications != nil {
		if n, err := rm.verifications.CleanupExpired(ctx); err != nil {
			rm.logger.Error("failed to purge verification tokens", slog.Any("error", err))
		} else if n > 0 {
			rm.logger.Info("purged expired verification tokens", slog.Int64("rows_deleted", n))
		}
	}
}
