package users

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, role)
		 VALUES ($1, $2)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Role).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, username, role, failed_auth_attempts, locked_until, created_at
		 FROM users
		 WHERE id = $1 AND deleted_at IS NULL
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Role,
		&user.FailedAuthAttempts, &user.LockedUntil, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, role, failed_auth_attempts, locked_until, created_at
		 FROM users
		 WHERE username = $1 AND deleted_at IS NULL
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Role,
		&user.FailedAuthAttempts, &user.LockedUntil, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query :=
		`UPDATE users SET failed_auth_attempts = failed_auth_attempts + 1
		 WHERE id = $1
		 RETURNING failed_auth_attempts
		 `

	var count int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET failed_auth_attempts = 0, locked_until = NULL
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	query :=
		`UPDATE users SET locked_until = $2
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, id, until); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
