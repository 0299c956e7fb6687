package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/tmercer/authpulse/internal/analytics"
	"github.com/tmercer/authpulse/internal/auth"
	"github.com/tmercer/authpulse/internal/models"
)

// RequesterSource loads the authenticated user's account row. The token
// claims only carry the user id; authorization decisions need the current
// staff and active flags, so handlers re-read the account per request.
type RequesterSource interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// currentUser resolves the request's authenticated account from the token
// claims injected by the auth middleware.
func currentUser(r *http.Request, src RequesterSource) (*models.User, error) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		return nil, models.ErrUnauthorized
	}

	user, err := src.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

// parseOptionalRange reads start_date/end_date. A range is only in effect
// when both bounds are present; a lone bound is ignored rather than guessed.
func parseOptionalRange(r *http.Request) (*analytics.DateRange, error) {
	startStr := r.URL.Query().Get("start_date")
	endStr := r.URL.Query().Get("end_date")

	if startStr == "" || endStr == "" {
		return nil, nil
	}

	start, err := analytics.ParseDate(startStr)
	if err != nil {
		return nil, err
	}
	end, err := analytics.ParseDate(endStr)
	if err != nil {
		return nil, err
	}

	rng := analytics.RangeFromDates(start, end)
	return &rng, nil
}

// parseCohortFilter reads the cohort axes from the query string. Clients
// differ in how they send the user id list: some use the literal
// "user_ids[]" key, some leave the brackets percent-encoded, and some drop
// the brackets entirely. All three spellings are accepted.
func parseCohortFilter(r *http.Request) analytics.Filter {
	q := r.URL.Query()

	ids := q["user_ids[]"]
	if len(ids) == 0 {
		ids = q["user_ids%5B%5D"]
	}
	if len(ids) == 0 {
		ids = q["user_ids"]
	}

	f := analytics.Filter{
		UserIDs:    ids,
		Role:       q.Get("role"),
		FilterType: q.Get("filter"),
	}

	if me := q.Get("me"); me == "true" || me == "1" {
		f.SelfOnly = true
	}

	switch strings.ToLower(q.Get("is_active")) {
	case "true", "1":
		active := true
		f.ActiveOnly = &active
	case "false", "0":
		active := false
		f.ActiveOnly = &active
	}

	return f
}
