package models

import "time"

// AuditLog rows are append-only and immutable once written.
type AuditLog struct {
	ID         string
	UserID     *string
	Action     string
	EntityType string
	EntityID   *string
	Success    bool
	Metadata   map[string]string
	IP         string
	CreatedAt  time.Time
}
