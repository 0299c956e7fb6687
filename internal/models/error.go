package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountInactive  = errors.New("account is inactive")
	ErrEmailNotVerified = errors.New("email address not verified")

	// Login throttling
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)
