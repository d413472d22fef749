package phrases

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

func (r *PostgresRepository) Create(ctx context.Context, p *models.Phrase) (*models.Phrase, error) {

	query :=
		`INSERT INTO phrases (text, char_count, difficulty, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		p.Text, p.CharCount, p.Difficulty, p.IsActive).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Phrase, error) {
	query :=
		`SELECT id, text, char_count, difficulty, is_active, created_at
		 FROM phrases
		 WHERE id = $1
		 `

	p := &models.Phrase{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Text, &p.CharCount, &p.Difficulty, &p.IsActive, &p.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query :=
		`UPDATE phrases SET is_active = FALSE
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostgresRepository) SelectEligible(ctx context.Context, difficulty string, excludeIDs []string) ([]*models.Phrase, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	query :=
		`SELECT id, text, char_count, difficulty, is_active, created_at
		 FROM phrases
		 WHERE difficulty = $1 AND is_active AND NOT (id::text = ANY($2))
		 `

	rows, err := r.db.QueryContext(ctx, query, difficulty, excludeIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Phrase
	for rows.Next() {
		p := &models.Phrase{}
		if err := rows.Scan(&p.ID, &p.Text, &p.CharCount, &p.Difficulty, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) RecentPhraseIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	query :=
		`SELECT DISTINCT phrase_id FROM
		   (SELECT phrase_id, used_at FROM phrase_usage
		    WHERE user_id = $1
		    ORDER BY used_at DESC
		    LIMIT $2) recent
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ids, nil
}

func (r *PostgresRepository) AddUsage(ctx context.Context, u *models.PhraseUsage) error {
	query :=
		`INSERT INTO phrase_usage (phrase_id, user_id, used_for)
		 VALUES ($1, $2, $3)
		 `

	if _, err := r.db.ExecContext(ctx, query, u.PhraseID, u.UserID, u.UsedFor); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, phraseID string) (*UsageStats, error) {
	query :=
		`SELECT
		   (SELECT COUNT(*) FROM phrase_usage WHERE phrase_id = $1) AS times_used,
		   COUNT(a.id) FILTER (WHERE a.decided) AS decided,
		   COUNT(a.id) FILTER (WHERE a.decided AND a.accept) AS accepted
		 FROM challenges c
		 LEFT JOIN auth_attempts a ON a.challenge_id = c.id
		 WHERE c.phrase_id = $1
		 `

	s := &UsageStats{}
	err := r.db.QueryRowContext(ctx, query, phraseID).Scan(&s.TimesUsed, &s.Decided, &s.Accepted)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}
