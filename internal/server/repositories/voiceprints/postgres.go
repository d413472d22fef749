package voiceprints

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

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.Voiceprint, error) {
	query :=
		`SELECT id, user_id, embedding, nonce, salt, model_version, created_at, updated_at
		 FROM voiceprints
		 WHERE user_id = $1
		 `

	vp := &models.Voiceprint{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&vp.ID, &vp.UserID, &vp.Embedding, &vp.Nonce, &vp.Salt,
		&vp.ModelVersion, &vp.CreatedAt, &vp.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return vp, nil
}

func (r *PostgresRepository) Create(ctx context.Context, vp *models.Voiceprint) (*models.Voiceprint, error) {

	query :=
		`INSERT INTO voiceprints (user_id, embedding, nonce, salt, model_version)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		vp.UserID, vp.Embedding, vp.Nonce, vp.Salt, vp.ModelVersion).Scan(
		&vp.ID, &vp.CreatedAt, &vp.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return vp, nil
}

func (r *PostgresRepository) Update(ctx context.Context, vp *models.Voiceprint) error {
	query :=
		`UPDATE voiceprints
		 SET embedding = $2, nonce = $3, salt = $4, model_version = $5, updated_at = now()
		 WHERE user_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		vp.UserID, vp.Embedding, vp.Nonce, vp.Salt, vp.ModelVersion)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) CopyToHistory(ctx context.Context, userID string) error {
	query :=
		`INSERT INTO voiceprint_history (user_id, embedding, nonce, salt, model_version, created_at)
		 SELECT user_id, embedding, nonce, salt, model_version, created_at
		 FROM voiceprints
		 WHERE user_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) HistoryCount(ctx context.Context, userID string) (int, error) {
	query :=
		`SELECT COUNT(*) FROM voiceprint_history
		 WHERE user_id = $1
		 `

	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}
