package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/audit"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/phrases"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/policies"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/rules"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/voiceprints"
)

// RepositoryManager vends repositories bound to a DBTX, so the same factory
// works inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Voiceprints(db dbx.DBTX) voiceprints.Repository
	Phrases(db dbx.DBTX) phrases.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	Attempts(db dbx.DBTX) attempts.Repository
	Rules(db dbx.DBTX) rules.Repository
	Audit(db dbx.DBTX) audit.Repository
	Policies(db dbx.DBTX) policies.Repository
}
