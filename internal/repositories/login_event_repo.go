package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmercer/authpulse/internal/database"
	"github.com/tmercer/authpulse/internal/models"
)

const eventColumns = `e.id, e.user_id, e.attempted_username, e.ip_address, e.user_agent, e.success, e.timestamp`

// LoginEventRepository handles the append-only login_events table, the
// system of record for all analytics.
type LoginEventRepository struct {
	pool *pgxpool.Pool
}

func NewLoginEventRepository(db *database.DB) *LoginEventRepository {
	return &LoginEventRepository{pool: db.Pool}
}

func scanEventRow(scanner rowScanner, withUsername bool) (*models.LoginEvent, error) {
	var e models.LoginEvent
	var username *string

	dest := []any{&e.ID, &e.UserID, &e.AttemptedUsername, &e.IPAddress, &e.UserAgent, &e.Success, &e.Timestamp}
	if withUsername {
		dest = append(dest, &username)
	}

	if err := scanner.Scan(dest...); err != nil {
		return nil, database.MapPostgresError(err)
	}

	if username != nil {
		e.Username = *username
	} else if e.AttemptedUsername != nil {
		e.Username = *e.AttemptedUsername
	}

	return &e, nil
}

// Insert appends one event. Runs on the caller's querier so the recorder can
// pair it with the counter update in one transaction.
func (r *LoginEventRepository) Insert(ctx context.Context, q database.Querier, event *models.LoginEvent) (*models.LoginEvent, error) {
	query := `
		INSERT INTO login_events (user_id, attempted_username, ip_address, user_agent, success, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, attempted_username, ip_address, user_agent, success, timestamp
	`

	created, err := scanEventRow(q.QueryRow(ctx, query,
		event.UserID, event.AttemptedUsername, event.IPAddress,
		event.UserAgent, event.Success, event.Timestamp,
	), false)
	if err != nil {
		return nil, fmt.Errorf("failed to insert login event: %w", err)
	}

	return created, nil
}

func scanEvents(rows pgx.Rows, withUsername bool) ([]models.LoginEvent, error) {
	defer rows.Close()

	events := make([]models.LoginEvent, 0)
	for rows.Next() {
		e, err := scanEventRow(rows, withUsername)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// ListByUser returns a user's events most recent first.
func (r *LoginEventRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.LoginEvent, error) {
	query := `
		SELECT ` + eventColumns + `, u.username
		FROM login_events e
		LEFT JOIN users u ON u.id = e.user_id
		WHERE e.user_id = $1
		ORDER BY e.timestamp DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query login events: %w", err)
	}
	return scanEvents(rows, true)
}

// ListRecent returns the newest events across all users, including failed
// attempts with no resolvable account.
func (r *LoginEventRepository) ListRecent(ctx context.Context, limit int) ([]models.LoginEvent, error) {
	query := `
		SELECT ` + eventColumns + `, u.username
		FROM login_events e
		LEFT JOIN users u ON u.id = e.user_id
		ORDER BY e.timestamp DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent login events: %w", err)
	}
	return scanEvents(rows, true)
}

func (r *LoginEventRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM login_events WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// CountSuccessful counts all successful logins system-wide.
func (r *LoginEventRepository) CountSuccessful(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM login_events WHERE success`).Scan(&count)
	return count, err
}

// SuccessTimes returns timestamps of successful logins for the given users
// within [start, end]. The ranged statistics view is computed from these
// rather than the denormalized counters.
func (r *LoginEventRepository) SuccessTimes(ctx context.Context, userIDs []int64, start, end time.Time) ([]time.Time, error) {
	query := `
		SELECT timestamp FROM login_events
		WHERE success AND user_id = ANY($1) AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp
	`

	rows, err := r.pool.Query(ctx, query, userIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query success times: %w", err)
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan timestamp: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// EventsForUsers returns all events (successes and failures) for the given
// users within [start, end], oldest first, for the chart builders.
func (r *LoginEventRepository) EventsForUsers(ctx context.Context, userIDs []int64, start, end time.Time) ([]models.LoginEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM login_events e
		WHERE e.user_id = ANY($1) AND e.timestamp >= $2 AND e.timestamp <= $3
		ORDER BY e.timestamp
	`

	rows, err := r.pool.Query(ctx, query, userIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for users: %w", err)
	}
	return scanEvents(rows, false)
}

// EventsInWindow returns every event in [start, end] regardless of owner,
// including unknown-identity failures. Used by admin-wide charts.
func (r *LoginEventRepository) EventsInWindow(ctx context.Context, start, end time.Time) ([]models.LoginEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM login_events e
		WHERE e.timestamp >= $1 AND e.timestamp <= $2
		ORDER BY e.timestamp
	`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events in window: %w", err)
	}
	return scanEvents(rows, false)
}

// CountFailedByIdentifier counts failed attempts since the given time for a
// submitted identity (matched against both resolved accounts and the raw
// attempted username), for login throttling.
func (r *LoginEventRepository) CountFailedByIdentifier(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM login_events e
		LEFT JOIN users u ON u.id = e.user_id
		WHERE NOT e.success AND e.timestamp >= $2
		  AND (u.email = $1 OR e.attempted_username = $1)
	`

	var count int
	err := r.pool.QueryRow(ctx, query, identifier, since).Scan(&count)
	return count, err
}

// CountFailedByIP counts failed attempts from an address since the given time.
func (r *LoginEventRepository) CountFailedByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM login_events WHERE NOT success AND ip_address = $1 AND timestamp >= $2`,
		ip, since).Scan(&count)
	return count, err
}
