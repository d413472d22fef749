package voiceprints

import (
	"context"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Voiceprint, error)
	Create(ctx context.Context, vp *models.Voiceprint) (*models.Voiceprint, error)
	Update(ctx context.Context, vp *models.Voiceprint) error
	// CopyToHistory appends the user's current voiceprint row to
	// voiceprint_history. Re-enrollment must never lose the old embedding.
	CopyToHistory(ctx context.Context, userID string) error
	HistoryCount(ctx context.Context, userID string) (int, error)
}
