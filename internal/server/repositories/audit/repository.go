package audit

import (
	"context"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

// Repository is append-only: audit rows are never updated or deleted here.
type Repository interface {
	Insert(ctx context.Context, entry *models.AuditLog) (*models.AuditLog, error)
	SelectByEntity(ctx context.Context, entityID string, limit int) ([]*models.AuditLog, error)
	SelectRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
}
