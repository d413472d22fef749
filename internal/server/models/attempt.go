package models

import "time"

// Decision reasons, mutually exclusive, exactly one per decided attempt.
const (
	ReasonOK               = "ok"
	ReasonLowSimilarity    = "low_similarity"
	ReasonSpoof            = "spoof"
	ReasonBadPhrase        = "bad_phrase"
	ReasonExpiredChallenge = "expired_challenge"
	ReasonError            = "error"
)

// AuthAttempt is one row per verification decision.
// Invariant: Decided=true ⇔ Accept != nil.
type AuthAttempt struct {
	ID          string
	UserID      string
	ChallengeID *string
	Decided     bool
	Accept      *bool
	Reason      *string
	AudioKey    *string // object-store key of the raw audio, if retained
	CreatedAt   time.Time
	DecidedAt   *time.Time
}

// Scores is the externally-produced evidence behind an attempt, exactly one
// row per AuthAttempt.
type Scores struct {
	ID           string
	AttemptID    string
	Similarity   float64
	SpoofProb    float64
	PhraseMatch  float64
	PhraseOK     *bool
	Transcript   string
	SpeakerModel string
	SpoofModel   string
	ASRModel     string
	CreatedAt    time.Time
}

// ValidReason reports whether r belongs to the decision taxonomy.
func ValidReason(r string) bool {
	switch r {
	case ReasonOK, ReasonLowSimilarity, ReasonSpoof, ReasonBadPhrase,
		ReasonExpiredChallenge, ReasonError:
		return true
	}
	return false
}
