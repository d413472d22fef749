// Package services contains server-side business logic. This file implements
// AuditTrail, the append-only record of security-relevant actions. Writes go
// through a buffered channel drained by a background worker so request paths
// never wait on the audit table.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/logging"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
)

const auditQueueSize = 256

type AuditTrail struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	entries     chan *models.AuditLog
}

func NewAuditTrail(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AuditTrail {
	return &AuditTrail{
		db:          db,
		repomanager: m,
		logger:      logger.With("component", "audit"),
		entries:     make(chan *models.AuditLog, auditQueueSize),
	}
}

// Record writes the entry synchronously. Used where the caller needs the
// write confirmed, e.g. rule mutations.
func (t *AuditTrail) Record(ctx context.Context, entry *models.AuditLog) error {
	repo := t.repomanager.Audit(t.db)
	if _, err := repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("error writing audit entry: %v", err)
	}
	return nil
}

// Enqueue hands the entry to the background worker without blocking.
// A full queue drops the entry with a warning rather than stalling the
// request path.
func (t *AuditTrail) Enqueue(entry *models.AuditLog) {
	select {
	case t.entries <- entry:
	default:
		t.logger.Warn(context.Background(), "audit queue full, entry dropped",
			"action", entry.Action, "entity_type", entry.EntityType)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (t *AuditTrail) Run(ctx context.Context) {
	for {
		select {
		case entry := <-t.entries:
			t.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-t.entries:
					t.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (t *AuditTrail) write(entry *models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.Record(ctx, entry); err != nil {
		t.logger.Error(ctx, "audit write failed", "action", entry.Action, "error", err)
	}
}

// ByEntity returns audit entries correlated to one entity id, newest first.
func (t *AuditTrail) ByEntity(ctx context.Context, entityID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return t.repomanager.Audit(t.db).SelectByEntity(ctx, entityID, limit)
}

// Recent returns the newest audit entries across all entities.
func (t *AuditTrail) Recent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return t.repomanager.Audit(t.db).SelectRecent(ctx, limit)
}
