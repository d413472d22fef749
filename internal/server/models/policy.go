package models

import "time"

// UserPolicy is the per-user retention choice governing the purger.
// A nil RetentionDays means the server-wide default applies.
type UserPolicy struct {
	UserID        string
	KeepAudio     bool
	RetentionDays *int
	UpdatedAt     time.Time
}
