package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmercer/authpulse/internal/database"
	"github.com/tmercer/authpulse/internal/models"
)

const userColumns = `id, username, email, password_hash, is_active, is_staff, is_superuser,
		email_verified, date_joined, login_count, last_login_timestamp, weekly_logins, monthly_logins`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and the JSONB counter maps
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash *string
	var lastLogin *time.Time
	var weeklyRaw, monthlyRaw []byte

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &passwordHash,
		&user.IsActive, &user.IsStaff, &user.IsSuperuser, &user.EmailVerified,
		&user.DateJoined, &user.LoginCount, &lastLogin, &weeklyRaw, &monthlyRaw,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.LastLoginTimestamp = lastLogin

	user.WeeklyLogins = map[string]int{}
	if len(weeklyRaw) > 0 {
		if err := json.Unmarshal(weeklyRaw, &user.WeeklyLogins); err != nil {
			return nil, fmt.Errorf("failed to decode weekly_logins: %w", err)
		}
	}
	user.MonthlyLogins = map[string]int{}
	if len(monthlyRaw) > 0 {
		if err := json.Unmarshal(monthlyRaw, &user.MonthlyLogins); err != nil {
			return nil, fmt.Errorf("failed to decode monthly_logins: %w", err)
		}
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// ListFiltered returns users matching the cohort predicates: an explicit id
// set, an admin-role predicate (staff OR superuser), and an active-status
// predicate. Nil predicates mean "no restriction"; all three compose.
func (r *UserRepository) ListFiltered(ctx context.Context, ids []int64, admin, active *bool) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []any{}

	if ids != nil {
		args = append(args, ids)
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	if admin != nil {
		if *admin {
			query += " AND (is_staff OR is_superuser)"
		} else {
			query += " AND NOT is_staff AND NOT is_superuser"
		}
	}
	if active != nil {
		args = append(args, *active)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filtered users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}

	query := `
		INSERT INTO users (username, email, password_hash, is_active, is_staff, is_superuser, email_verified, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.Email, passwordHash, user.IsActive,
		user.IsStaff, user.IsSuperuser, user.EmailVerified, user.DateJoined,
	))
}

func (r *UserRepository) Update(ctx context.Context, id int64, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET username = $1, email = $2, is_active = $3, is_staff = $4, is_superuser = $5, email_verified = $6
		WHERE id = $7
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.Email, user.IsActive, user.IsStaff, user.IsSuperuser, user.EmailVerified, id,
	))
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET email_verified = true WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes the user; login events cascade at the schema level.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *UserRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_active`).Scan(&count)
	return count, err
}

// JoinMonthCounts returns how many users registered in each "YYYY-MM" month.
func (r *UserRepository) JoinMonthCounts(ctx context.Context) (map[string]int, error) {
	query := `SELECT to_char(date_joined, 'YYYY-MM'), COUNT(*) FROM users GROUP BY 1`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query join months: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var month string
		var n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, fmt.Errorf("failed to scan join month: %w", err)
		}
		counts[month] = n
	}
	return counts, rows.Err()
}

// ApplyLoginSuccess advances all four aggregate counters for one successful
// login in a single UPDATE, so the increment resolves at the data store and
// concurrent logins cannot lose updates. The row lock taken by the UPDATE
// also serializes the weekly/monthly map rewrites per user. Runs on the
// caller's transaction alongside the event insert.
func (r *UserRepository) ApplyLoginSuccess(ctx context.Context, q database.Querier, userID int64, at time.Time, weekKey, monthKey string) error {
	query := `
		UPDATE users SET
			login_count = login_count + 1,
			last_login_timestamp = $2,
			weekly_logins = jsonb_set(
				COALESCE(weekly_logins, '{}'::jsonb),
				ARRAY[$3::text],
				to_jsonb(COALESCE((weekly_logins->>$3)::int, 0) + 1)
			),
			monthly_logins = jsonb_set(
				COALESCE(monthly_logins, '{}'::jsonb),
				ARRAY[$4::text],
				to_jsonb(COALESCE((monthly_logins->>$4)::int, 0) + 1)
			)
		WHERE id = $1
	`

	result, err := q.Exec(ctx, query, userID, at, weekKey, monthKey)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// OverwriteCounters replaces the aggregate counters wholesale. Only the
// reconciliation path may call this; it recomputes the values from
// login_events and repairs any drift in the denormalized fields.
func (r *UserRepository) OverwriteCounters(ctx context.Context, userID int64, count int, last *time.Time, weekly, monthly map[string]int) error {
	weeklyRaw, err := json.Marshal(weekly)
	if err != nil {
		return fmt.Errorf("failed to encode weekly_logins: %w", err)
	}
	monthlyRaw, err := json.Marshal(monthly)
	if err != nil {
		return fmt.Errorf("failed to encode monthly_logins: %w", err)
	}

	query := `
		UPDATE users SET login_count = $2, last_login_timestamp = $3, weekly_logins = $4, monthly_logins = $5
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID, count, last, weeklyRaw, monthlyRaw)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListIDs returns every user id, for the reconciliation sweep.
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
