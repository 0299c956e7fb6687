package analytics

import (
	"fmt"
	"strconv"

	"github.com/tmercer/authpulse/internal/models"
)

// Filter carries the raw cohort parameters of a dashboard request.
// The axes are mutually exclusive by precedence (SelfOnly wins, then
// UserIDs, then Role, then FilterType); ActiveOnly composes with whichever
// rule matched.
type Filter struct {
	SelfOnly   bool
	UserIDs    []string
	Role       string
	FilterType string
	ActiveOnly *bool
}

// Cohort is a resolved target population, ready to be turned into a user
// query: either the requester themselves, an explicit id set, a role
// predicate, or all users, optionally narrowed to active accounts.
type Cohort struct {
	Self   bool
	IDs    []int64
	Admin  *bool
	Active *bool
}

// Combined reports whether the cohort aggregates more than the requester's
// own events, which switches chart builders to their combined variants.
func (c *Cohort) Combined() bool {
	return !c.Self
}

// RequiresElevated reports whether the filter may only be used by staff or
// superusers. Self-scoped requests never need elevation.
func (f Filter) RequiresElevated() bool {
	if f.SelfOnly {
		return false
	}
	if len(f.UserIDs) > 0 || f.Role != "" {
		return true
	}
	return f.FilterType != "" && f.FilterType != "me"
}

// cohortRule inspects the filter and either claims it (returning a cohort),
// passes (nil, nil), or rejects it with a validation error.
type cohortRule func(f Filter) (*Cohort, error)

// Rules are evaluated in precedence order until one claims the filter;
// keeping them as an ordered list keeps the precedence auditable.
var cohortRules = []cohortRule{
	selfRule,
	explicitIDsRule,
	roleRule,
	filterTypeRule,
	defaultScopeRule,
}

// ResolveCohort turns request filter parameters into a concrete cohort.
// All validation happens here, before any query executes. Note that an
// empty explicit id list does not match the id rule and falls through to
// the default self scope; see the resolver tests for that deliberate
// choice.
func ResolveCohort(f Filter) (*Cohort, error) {
	for _, rule := range cohortRules {
		cohort, err := rule(f)
		if err != nil {
			return nil, err
		}
		if cohort == nil {
			continue
		}
		if f.ActiveOnly != nil {
			cohort.Active = f.ActiveOnly
		}
		return cohort, nil
	}
	return nil, fmt.Errorf("%w: no cohort rule matched", models.ErrBadRequest)
}

func selfRule(f Filter) (*Cohort, error) {
	if !f.SelfOnly {
		return nil, nil
	}
	return &Cohort{Self: true}, nil
}

func explicitIDsRule(f Filter) (*Cohort, error) {
	if len(f.UserIDs) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(f.UserIDs))
	for _, raw := range f.UserIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: Invalid user ID format: '%s'. User IDs must be integers.",
				models.ErrBadRequest, raw)
		}
		ids = append(ids, id)
	}
	return &Cohort{IDs: ids}, nil
}

func roleRule(f Filter) (*Cohort, error) {
	switch f.Role {
	case "":
		return nil, nil
	case "admin":
		admin := true
		return &Cohort{Admin: &admin}, nil
	case "regular":
		admin := false
		return &Cohort{Admin: &admin}, nil
	default:
		return nil, fmt.Errorf("%w: Invalid role filter: '%s'. Use 'admin' or 'regular'.",
			models.ErrBadRequest, f.Role)
	}
}

func filterTypeRule(f Filter) (*Cohort, error) {
	switch f.FilterType {
	case "":
		return nil, nil
	case "all":
		return &Cohort{}, nil
	case "admin_only":
		admin := true
		return &Cohort{Admin: &admin}, nil
	case "regular_users":
		admin := false
		return &Cohort{Admin: &admin}, nil
	case "active_only":
		active := true
		return &Cohort{Active: &active}, nil
	case "me":
		return &Cohort{Self: true}, nil
	default:
		return nil, fmt.Errorf("%w: Invalid filter type: '%s'.", models.ErrBadRequest, f.FilterType)
	}
}

// defaultScopeRule claims whatever no other rule did: a request naming no
// cohort at all is scoped to the requester's own events. The unrestricted
// cohort must be asked for explicitly via filter=all, which only staff may
// use.
func defaultScopeRule(f Filter) (*Cohort, error) {
	return &Cohort{Self: true}, nil
}
