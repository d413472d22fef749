package policies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.UserPolicy, error) {
	query :=
		`SELECT user_id, keep_audio, retention_days, updated_at
		 FROM user_policies
		 WHERE user_id = $1
		 `

	p := &models.UserPolicy{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.KeepAudio, &p.RetentionDays, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.UserPolicy) error {
	query :=
		`INSERT INTO user_policies (user_id, keep_audio, retention_days)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id)
		 DO UPDATE SET keep_audio = $2, retention_days = $3, updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, p.UserID, p.KeepAudio, p.RetentionDays); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
