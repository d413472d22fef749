// Package history keeps a local record of past verification runs in the
// client's sqlite database.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/google/uuid"
)

// Record is one completed verification run as seen from the client.
type Record struct {
	ID           string
	SessionID    string
	Difficulty   string
	PhraseCount  int
	Verified     bool
	AverageScore float64
	Reason       string
	CreatedAt    time.Time
}

// SQLiteRepository implements the history store over a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Add stores one run. The id is assigned here.
func (r *SQLiteRepository) Add(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `insert into history (id, session_id, difficulty, phrase_count, verified, average_score, reason)
		values (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.Difficulty, rec.PhraseCount, rec.Verified, rec.AverageScore, rec.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Record, error) {
	query := `select id, session_id, difficulty, phrase_count, verified, average_score, reason, created_at
		from history order by created_at desc, id limit ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select history: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Difficulty, &rec.PhraseCount,
			&rec.Verified, &rec.AverageScore, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
