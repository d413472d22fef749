package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// IncrementFailedAttempts bumps the counter and returns the new value.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	SetLockedUntil(ctx context.Context, id string, until time.Time) error
}
