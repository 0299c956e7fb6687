package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/tmercer/authpulse/pkg/http"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter)
		code     int
		errCode  string
		message  string
	}{
		{"bad request", func(w http.ResponseWriter) { pkghttp.WriteBadRequest(w, "Invalid input") },
			400, "bad_request", "Invalid input"},
		{"unauthorized", func(w http.ResponseWriter) { pkghttp.WriteUnauthorized(w, "Invalid credentials") },
			401, "unauthorized", "Invalid credentials"},
		{"forbidden", func(w http.ResponseWriter) { pkghttp.WriteForbidden(w, "Access denied") },
			403, "forbidden", "Access denied"},
		{"not found", func(w http.ResponseWriter) { pkghttp.WriteNotFound(w, "Resource not found") },
			404, "not_found", "Resource not found"},
		{"conflict", func(w http.ResponseWriter) { pkghttp.WriteConflict(w, "Email already exists") },
			409, "conflict", "Email already exists"},
		{"rate limited", func(w http.ResponseWriter) { pkghttp.WriteTooManyRequests(w, "Too many requests") },
			429, "rate_limit_exceeded", "Too many requests"},
		{"internal", func(w http.ResponseWriter) { pkghttp.WriteInternalError(w, "Internal server error") },
			500, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.errCode, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteErrorWithDetails(w, 400, "bad_request", "Validation failed", "username is required")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "username is required", resp.Details)
}

func TestWriteFlatError(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteFlatError(w, 404, "User not found.")

	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	// Exactly one key, no code/message wrapper
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"error": "User not found."}, resp)
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteJSON(w, 201, map[string]int{"id": 7})

	assert.Equal(t, 201, w.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp["id"])
}
