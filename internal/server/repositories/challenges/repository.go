package challenges

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, ch *models.Challenge) (*models.Challenge, error)
	GetByID(ctx context.Context, id string) (*models.Challenge, error)
	// CountActive counts unconsumed, unexpired challenges held by the user.
	CountActive(ctx context.Context, userID string, now time.Time) (int, error)
	// CountIssuedSince counts challenges created for the user after the cutoff.
	CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error)
	// Consume marks the challenge used if and only if it is still unused.
	// Returns false when another writer consumed it first.
	Consume(ctx context.Context, id string, now time.Time) (bool, error)
	// MarkUsedIdempotent stamps used_at without overwriting an earlier value.
	MarkUsedIdempotent(ctx context.Context, id string, now time.Time) error
	// DeleteStale removes consumed challenges older than usedBefore and
	// expired-and-unconsumed challenges whose expiry passed before expiredBefore.
	DeleteStale(ctx context.Context, usedBefore, expiredBefore time.Time) (int64, error)
}
