package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmercer/authpulse/internal/database"
	"github.com/tmercer/authpulse/internal/models"
)

// VerificationTokenRepository handles single-use tokens for email
// verification and password resets.
type VerificationTokenRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationTokenRepository(db *database.DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{pool: db.Pool}
}

func scanTokenRow(row rowScanner) (*models.VerificationToken, error) {
	var token models.VerificationToken
	var usedAt *time.Time

	err := row.Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Purpose,
		&token.Email, &token.ExpiresAt, &usedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	token.UsedAt = usedAt
	return &token, nil
}

// Create stores a new token. Only the SHA-256 hash of the raw token is
// persisted.
func (r *VerificationTokenRepository) Create(ctx context.Context, userID int64, tokenHash, purpose, email string, expiresAt time.Time) (*models.VerificationToken, error) {
	query := `
		INSERT INTO verification_tokens (user_id, token_hash, purpose, email, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, token_hash, purpose, email, expires_at, used_at, created_at
	`

	token, err := scanTokenRow(r.pool.QueryRow(ctx, query, userID, tokenHash, purpose, email, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification token: %w", err)
	}

	return token, nil
}

// GetByTokenHash retrieves a token of the given purpose by its hash.
func (r *VerificationTokenRepository) GetByTokenHash(ctx context.Context, tokenHash, purpose string) (*models.VerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, purpose, email, expires_at, used_at, created_at
		FROM verification_tokens
		WHERE token_hash = $1 AND purpose = $2
	`

	return scanTokenRow(r.pool.QueryRow(ctx, query, tokenHash, purpose))
}

// MarkAsUsed marks a token as consumed. Returns ErrNotFound if the token was
// already used.
func (r *VerificationTokenRepository) MarkAsUsed(ctx context.Context, id string) error {
	query := `
		UPDATE verification_tokens
		SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark token as used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteByUser deletes all tokens of a purpose for a user, invalidating any
// outstanding links before issuing a fresh one.
func (r *VerificationTokenRepository) DeleteByUser(ctx context.Context, userID int64, purpose string) error {
	query := `DELETE FROM verification_tokens WHERE user_id = $1 AND purpose = $2`

	_, err := r.pool.Exec(ctx, query, userID, purpose)
	if err != nil {
		return fmt.Errorf("failed to delete tokens for user: %w", err)
	}

	return nil
}

// GetPendingByEmail gets the most recent unused, unexpired token for an email.
func (r *VerificationTokenRepository) GetPendingByEmail(ctx context.Context, email, purpose string) (*models.VerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, purpose, email, expires_at, used_at, created_at
		FROM verification_tokens
		WHERE email = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanTokenRow(r.pool.QueryRow(ctx, query, email, purpose))
}

// CleanupExpired deletes tokens past their expiry by more than the retention
// window.
func (r *VerificationTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM verification_tokens
		WHERE expires_at < NOW() - INTERVAL '30 days'
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
