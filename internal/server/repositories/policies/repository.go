package policies

import (
	"context"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserPolicy, error)
	Upsert(ctx context.Context, p *models.UserPolicy) error
}
