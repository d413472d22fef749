package models

import "time"

// ChallengeState is derived from the challenge timestamps, never stored.
type ChallengeState string

const (
	ChallengePending ChallengeState = "pending"
	ChallengeExpired ChallengeState = "expired"
	ChallengeUsed    ChallengeState = "used"
)

type Challenge struct {
	ID        string
	UserID    string
	PhraseID  string
	Phrase    string // snapshot of the phrase text at issue time
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// State derives the three-way challenge state from the timestamps. This is
// the single place the derivation lives; every consumer must go through it.
// A consumed challenge stays "used" even after its expiry passes.
func (c *Challenge) State(now time.Time) ChallengeState {
	if c.UsedAt != nil {
		return ChallengeUsed
	}
	if !now.Before(c.ExpiresAt) {
		return ChallengeExpired
	}
	return ChallengePending
}
