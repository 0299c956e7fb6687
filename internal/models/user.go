package models

import (
	"time"
)

// User is an account in the system. The aggregate login counters
// (LoginCount, LastLoginTimestamp, WeeklyLogins, MonthlyLogins) are
// denormalized from login_events and owned exclusively by the recorder path;
// nothing else may write them.
type User struct {
	ID            int64
	Username      string
	Email         string
	PasswordHash  string
	IsActive      bool
	IsStaff       bool
	IsSuperuser   bool
	EmailVerified bool
	DateJoined    time.Time

	LoginCount         int
	LastLoginTimestamp *time.Time
	WeeklyLogins       map[string]int
	MonthlyLogins      map[string]int
}

// IsAdmin reports whether the user belongs to the admin cohort.
// Staff and superusers are treated identically for dashboard access.
func (u *User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}
