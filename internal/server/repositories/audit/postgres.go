package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, entry *models.AuditLog) (*models.AuditLog, error) {

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("metadata marshal error: %w", err)
		}
	}

	query :=
		`INSERT INTO audit_log (user_id, action, entity_type, entity_id, success, metadata, ip)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		entry.UserID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Success, metadata, entry.IP).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

func (r *PostgresRepository) SelectByEntity(ctx context.Context, entityID string, limit int) ([]*models.AuditLog, error) {
	query :=
		`SELECT id, user_id, action, entity_type, entity_id, success, metadata, ip, created_at
		 FROM audit_log
		 WHERE entity_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2
		 `

	return r.selectEntries(ctx, query, entityID, limit)
}

func (r *PostgresRepository) SelectRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	query :=
		`SELECT id, user_id, action, entity_type, entity_id, success, metadata, ip, created_at
		 FROM audit_log
		 ORDER BY created_at DESC
		 LIMIT $1
		 `

	return r.selectEntries(ctx, query, limit)
}

func (r *PostgresRepository) selectEntries(ctx context.Context, query string, args ...any) ([]*models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditLog
	for rows.Next() {
		entry := &models.AuditLog{}
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.EntityType,
			&entry.EntityID, &entry.Success, &metadata, &entry.IP, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("metadata unmarshal error: %w", err)
			}
		}
		result = append(result, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
