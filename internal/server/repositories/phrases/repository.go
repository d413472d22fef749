package phrases

import (
	"context"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

// UsageStats aggregates how a phrase performed across verification attempts.
type UsageStats struct {
	TimesUsed int
	Decided   int
	Accepted  int
}

// SuccessRate is accepted/decided, or 0 when nothing was decided yet.
func (s *UsageStats) SuccessRate() float64 {
	if s.Decided == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Decided)
}

type Repository interface {
	Create(ctx context.Context, p *models.Phrase) (*models.Phrase, error)
	GetByID(ctx context.Context, id string) (*models.Phrase, error)
	Deactivate(ctx context.Context, id string) error
	// SelectEligible returns active phrases of the given difficulty,
	// excluding the listed phrase ids.
	SelectEligible(ctx context.Context, difficulty string, excludeIDs []string) ([]*models.Phrase, error)
	// RecentPhraseIDs returns up to limit phrase ids most recently used by
	// the user, newest first.
	RecentPhraseIDs(ctx context.Context, userID string, limit int) ([]string, error)
	AddUsage(ctx context.Context, u *models.PhraseUsage) error
	Stats(ctx context.Context, phraseID string) (*UsageStats, error)
}
