package models

import "time"

// MaxUserAgentLen is the stored length limit for user agent strings.
// Longer values are truncated silently, never rejected.
const MaxUserAgentLen = 500

// LoginEvent is an immutable record of one authentication attempt.
// UserID is nil when the attempted identity did not resolve to an account;
// in that case AttemptedUsername holds the raw credential string for admin
// review. Events are append-only and removed only by user cascade-delete.
type LoginEvent struct {
	ID                int64
	UserID            *int64
	AttemptedUsername *string
	IPAddress         string
	UserAgent         string
	Success           bool
	Timestamp         time.Time

	// Username is populated on reads that join the owning user. Falls back
	// to AttemptedUsername for events without a resolvable account.
	Username string
}
