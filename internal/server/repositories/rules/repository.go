package rules

import (
	"context"

	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type Repository interface {
	GetByName(ctx context.Context, name string) (*models.QualityRule, error)
	List(ctx context.Context) ([]*models.QualityRule, error)
	// UpdateValue replaces the numeric value, preserving the description.
	UpdateValue(ctx context.Context, name string, value float64) error
	Toggle(ctx context.Context, name string, active bool) error
}
