package models

import "time"

// Voiceprint holds the encrypted reference embedding for a user. Exactly one
// row exists per user; superseded copies move to VoiceprintHistory.
type Voiceprint struct {
	ID           string
	UserID       string
	Embedding    []byte // AES-GCM ciphertext
	Nonce        []byte
	Salt         []byte
	ModelVersion string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type VoiceprintHistory struct {
	ID           string
	UserID       string
	Embedding    []byte
	Nonce        []byte
	Salt         []byte
	ModelVersion string
	CreatedAt    time.Time
	SupersededAt time.Time
}
