package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, ch *models.Challenge) (*models.Challenge, error) {

	query :=
		`INSERT INTO challenges (user_id, phrase_id, phrase, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		ch.UserID, ch.PhraseID, ch.Phrase, ch.ExpiresAt).Scan(&ch.ID, &ch.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ch, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Challenge, error) {
	query :=
		`SELECT id, user_id, phrase_id, phrase, created_at, expires_at, used_at
		 FROM challenges
		 WHERE id = $1
		 `

	ch := &models.Challenge{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID, &ch.UserID, &ch.PhraseID, &ch.Phrase,
		&ch.CreatedAt, &ch.ExpiresAt, &ch.UsedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ch, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	query :=
		`SELECT COUNT(*) FROM challenges
		 WHERE user_id = $1 AND used_at IS NULL AND expires_at > $2
		 `

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, now).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query :=
		`SELECT COUNT(*) FROM challenges
		 WHERE user_id = $1 AND created_at >= $2
		 `

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

// Consume is a single conditional update, not a read-then-write, so two
// concurrent submissions for the same challenge produce exactly one winner.
func (r *PostgresRepository) Consume(ctx context.Context, id string, now time.Time) (bool, error) {
	query :=
		`UPDATE challenges SET used_at = $2
		 WHERE id = $1 AND used_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return affected == 1, nil
}

func (r *PostgresRepository) MarkUsedIdempotent(ctx context.Context, id string, now time.Time) error {
	query :=
		`UPDATE challenges SET used_at = COALESCE(used_at, $2)
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// DeleteStale only touches rows whose state predicate is already stable:
// consumed before usedBefore, or expired-and-unconsumed before expiredBefore.
// A pending challenge can never match either branch.
func (r *PostgresRepository) DeleteStale(ctx context.Context, usedBefore, expiredBefore time.Time) (int64, error) {
	query :=
		`DELETE FROM challenges
		 WHERE (used_at IS NOT NULL AND used_at < $1)
		    OR (used_at IS NULL AND expires_at < $2)
		 `

	res, err := r.db.ExecContext(ctx, query, usedBefore, expiredBefore)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return affected, nil
}
