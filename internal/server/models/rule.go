package models

import "time"

const (
	RuleTypeThreshold = "threshold"
	RuleTypeRateLimit = "rate_limit"
	RuleTypeCleanup   = "cleanup"
)

// QualityRule is one mutable, admin-controlled configuration value.
// Inactive means "use the compiled-in default", not "skip the check".
type QualityRule struct {
	ID          string
	RuleName    string
	RuleType    string
	Value       float64
	Description string
	IsActive    bool
	UpdatedAt   time.Time
}
