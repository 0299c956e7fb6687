package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims carries the identity embedded in access and refresh tokens.
type TokenClaims struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
