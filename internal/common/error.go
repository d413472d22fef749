// Package common defines shared constants and sentinel errors used across
// VoiceGate components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Challenge lifecycle errors.
	ErrorChallengeUsed     = errors.New("already used")
	ErrorChallengeExpired  = errors.New("expired")
	ErrorWrongOwner        = errors.New("does not belong to user")
	ErrorNoEligiblePhrases = errors.New("no eligible phrases")

	// Issuance / account limits.
	ErrorRateLimited   = errors.New("rate limited")
	ErrorAccountLocked = errors.New("account locked")

	// Rule engine errors.
	ErrorRuleUnknown    = errors.New("unknown rule")
	ErrorRuleOutOfRange = errors.New("rule value out of range")

	// Verification session errors.
	ErrorAttemptDecided    = errors.New("attempt already decided")
	ErrorSessionNotFound   = errors.New("session not found")
	ErrorSessionTerminal   = errors.New("session already finished")
	ErrorPhraseOutOfOrder  = errors.New("unexpected phrase number")
	ErrorPhraseDuplicate   = errors.New("phrase already submitted")
	ErrorScorerUnavailable = errors.New("scorer unavailable")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
