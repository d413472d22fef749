package models

import "time"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

type User struct {
	ID                 string
	Username           string
	Role               string
	FailedAuthAttempts int
	LockedUntil        *time.Time
	CreatedAt          time.Time
	DeletedAt          *time.Time
}

// IsLocked reports whether the account is locked out at the given moment.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// IsAdmin reports whether the user may use the admin surface.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin
}
