package attempts

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

func (r *PostgresRepository) CreateProvisional(ctx context.Context, a *models.AuthAttempt) (*models.AuthAttempt, error) {

	query :=
		`INSERT INTO auth_attempts (user_id, challenge_id, audio_key)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.UserID, a.ChallengeID, a.AudioKey).Scan(&a.ID, &a.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.AuthAttempt, error) {
	query :=
		`SELECT id, user_id, challenge_id, decided, accept, reason, audio_key, created_at, decided_at
		 FROM auth_attempts
		 WHERE id = $1
		 `

	a := &models.AuthAttempt{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.ChallengeID, &a.Decided, &a.Accept,
		&a.Reason, &a.AudioKey, &a.CreatedAt, &a.DecidedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) Seal(ctx context.Context, id string, accept bool, reason string, decidedAt time.Time) error {
	query :=
		`UPDATE auth_attempts
		 SET decided = TRUE, accept = $2, reason = $3, decided_at = COALESCE(decided_at, $4)
		 WHERE id = $1 AND NOT decided
		 `

	res, err := r.db.ExecContext(ctx, query, id, accept, reason, decidedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		// Missing row and lost race to another seal are different outcomes.
		var decided bool
		err := r.db.QueryRowContext(ctx,
			`SELECT decided FROM auth_attempts WHERE id = $1`, id).Scan(&decided)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return common.ErrorAttemptDecided
	}

	return nil
}

func (r *PostgresRepository) ClearAudioKey(ctx context.Context, id string) error {
	query :=
		`UPDATE auth_attempts SET audio_key = NULL
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) CreateScores(ctx context.Context, s *models.Scores) (*models.Scores, error) {

	query :=
		`INSERT INTO scores (attempt_id, similarity, spoof_prob, phrase_match, phrase_ok, transcript, speaker_model, spoof_model, asr_model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		s.AttemptID, s.Similarity, s.SpoofProb, s.PhraseMatch, s.PhraseOK,
		s.Transcript, s.SpeakerModel, s.SpoofModel, s.ASRModel).Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) GetScoresByAttempt(ctx context.Context, attemptID string) (*models.Scores, error) {
	query :=
		`SELECT id, attempt_id, similarity, spoof_prob, phrase_match, phrase_ok, transcript, speaker_model, spoof_model, asr_model, created_at
		 FROM scores
		 WHERE attempt_id = $1
		 `

	s := &models.Scores{}
	err := r.db.QueryRowContext(ctx, query, attemptID).Scan(
		&s.ID, &s.AttemptID, &s.Similarity, &s.SpoofProb, &s.PhraseMatch,
		&s.PhraseOK, &s.Transcript, &s.SpeakerModel, &s.SpoofModel, &s.ASRModel, &s.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) SelectUndecidedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuthAttempt, error) {
	query :=
		`SELECT id, user_id, challenge_id, decided, accept, reason, audio_key, created_at, decided_at
		 FROM auth_attempts
		 WHERE NOT decided AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuthAttempt
	for rows.Next() {
		a := &models.AuthAttempt{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.ChallengeID, &a.Decided, &a.Accept,
			&a.Reason, &a.AudioKey, &a.CreatedAt, &a.DecidedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// SelectExpiredAudio returns attempts whose audio is past its retention.
// Without a policy row the user is treated as keep_audio with the server
// default window. An explicit keep_audio=false opts the user out of audio
// retention entirely, so those keys are eligible at the next purge cycle.
func (r *PostgresRepository) SelectExpiredAudio(ctx context.Context, now time.Time, defaultRetentionDays, limit int) ([]AudioRef, error) {
	query :=
		`SELECT a.id, a.audio_key
		 FROM auth_attempts a
		 LEFT JOIN user_policies p ON p.user_id = a.user_id
		 WHERE a.audio_key IS NOT NULL
		   AND (NOT COALESCE(p.keep_audio, TRUE)
		        OR a.created_at < $1::timestamptz - make_interval(days => COALESCE(p.retention_days, $2)))
		 LIMIT $3
		 `

	rows, err := r.db.QueryContext(ctx, query, now, defaultRetentionDays, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []AudioRef
	for rows.Next() {
		var ref AudioRef
		if err := rows.Scan(&ref.AttemptID, &ref.AudioKey); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
