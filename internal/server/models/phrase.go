package models

import "time"

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

const (
	PhraseCharCountMin = 20
	PhraseCharCountMax = 500
)

const (
	UsedForEnrollment   = "enrollment"
	UsedForVerification = "verification"
	UsedForChallenge    = "challenge"
)

type Phrase struct {
	ID         string
	Text       string
	CharCount  int
	Difficulty string
	IsActive   bool
	CreatedAt  time.Time
}

// PhraseUsage is an append-only fact: phrase X was handed to user Y at time Z.
type PhraseUsage struct {
	ID       string
	PhraseID string
	UserID   string
	UsedFor  string
	UsedAt   time.Time
}

// ValidDifficulty reports whether d is one of the catalog difficulties.
func ValidDifficulty(d string) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}
