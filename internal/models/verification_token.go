package models

import "time"

// Token purposes for the verification_tokens table.
const (
	TokenPurposeEmailVerify   = "email_verify"
	TokenPurposePasswordReset = "password_reset"
)

// VerificationToken is a single-use, expiring token mailed to a user for
// email verification or password reset. Only the SHA-256 hash is stored.
type VerificationToken struct {
	ID        string
	UserID    int64
	Email     string
	Purpose   string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t *VerificationToken) IsUsed() bool {
	return t.UsedAt != nil
}

func (t *VerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
