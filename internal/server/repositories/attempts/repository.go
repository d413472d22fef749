package attempts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

// AudioRef points at a stored raw-audio object owned by an attempt.
type AudioRef struct {
	AttemptID string
	AudioKey  string
}

type Repository interface {
	// CreateProvisional inserts an undecided attempt (decided=false,
	// accept NULL), carrying the audio key when one was stored.
	CreateProvisional(ctx context.Context, a *models.AuthAttempt) (*models.AuthAttempt, error)
	GetByID(ctx context.Context, id string) (*models.AuthAttempt, error)
	// Seal flips the attempt to decided with the given outcome. Rows already
	// decided are left untouched and reported as ErrorAttemptDecided.
	Seal(ctx context.Context, id string, accept bool, reason string, decidedAt time.Time) error
	ClearAudioKey(ctx context.Context, id string) error
	CreateScores(ctx context.Context, s *models.Scores) (*models.Scores, error)
	GetScoresByAttempt(ctx context.Context, attemptID string) (*models.Scores, error)
	// SelectUndecidedBefore lists attempts still undecided that were created
	// before the cutoff, oldest first.
	SelectUndecidedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuthAttempt, error)
	// SelectExpiredAudio lists audio objects past their owner's retention
	// policy (or owned by users who opted out of keeping audio).
	SelectExpiredAudio(ctx context.Context, now time.Time, defaultRetentionDays, limit int) ([]AudioRef, error)
}
