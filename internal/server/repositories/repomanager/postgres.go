// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/migrations"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/audit"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/phrases"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/policies"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/rules"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/voiceprints"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Voiceprints returns a voiceprints.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Voiceprints(db dbx.DBTX) voiceprints.Repository {
	return voiceprints.NewPostgresRepository(db)
}

// Phrases returns a phrases.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Phrases(db dbx.DBTX) phrases.Repository {
	return phrases.NewPostgresRepository(db)
}

// Challenges returns a challenges.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Challenges(db dbx.DBTX) challenges.Repository {
	return challenges.NewPostgresRepository(db)
}

// Attempts returns an attempts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Attempts(db dbx.DBTX) attempts.Repository {
	return attempts.NewPostgresRepository(db)
}

// Rules returns a rules.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Rules(db dbx.DBTX) rules.Repository {
	return rules.NewPostgresRepository(db)
}

// Audit returns an audit.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Audit(db dbx.DBTX) audit.Repository {
	return audit.NewPostgresRepository(db)
}

// Policies returns a policies.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Policies(db dbx.DBTX) policies.Repository {
	return policies.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
