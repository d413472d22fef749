package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
)

// AttemptLedger is the single write path for verification decisions. Every
// seal goes through one transaction that enforces the cross-entity
// invariants; callers cannot leave attempts and challenges inconsistent.
type AttemptLedger struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAttemptLedger(db *sql.DB, m repomanager.RepositoryManager) *AttemptLedger {
	return &AttemptLedger{db: db, repomanager: m}
}

// Open creates a provisional (undecided) attempt before any scoring work.
// A crash between Open and Seal leaves a row the reconciler finalizes later.
func (l *AttemptLedger) Open(ctx context.Context, userID string, challengeID *string, audioKey *string) (*models.AuthAttempt, error) {
	attempt := &models.AuthAttempt{
		UserID:      userID,
		ChallengeID: challengeID,
		AudioKey:    audioKey,
	}
	created, err := l.repomanager.Attempts(l.db).CreateProvisional(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("error creating attempt: %v", err)
	}
	return created, nil
}

// Seal flips the attempt to decided, stores its evidence, and consumes the
// bound challenge, atomically. Checks enforced here:
//
//  1. decided implies a non-null accept (by construction of the update).
//  2. decided_at is stamped once, at the first seal.
//  3. a referenced challenge must belong to the attempt's user; mismatch
//     is a hard error and rolls the write back.
//  4. sealing with a challenge marks it used without overwriting an earlier
//     consumption time.
//  5. one seal per attempt: a second seal fails with ErrorAttemptDecided,
//     backed by the row-level guard in the update itself so a concurrent
//     sealer cannot overwrite the first decision.
func (l *AttemptLedger) Seal(ctx context.Context, attemptID string, scores *models.Scores, accept bool, reason string) error {
	if !models.ValidReason(reason) {
		return fmt.Errorf("%w: unknown decision reason %q", common.ErrorValidation, reason)
	}

	return dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		attemptRepo := l.repomanager.Attempts(tx)

		attempt, err := attemptRepo.GetByID(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Decided {
			return fmt.Errorf("%w: %s", common.ErrorAttemptDecided, attemptID)
		}

		now := time.Now()

		if attempt.ChallengeID != nil {
			chRepo := l.repomanager.Challenges(tx)
			ch, err := chRepo.GetByID(ctx, *attempt.ChallengeID)
			if err != nil {
				return err
			}
			if ch.UserID != attempt.UserID {
				return common.ErrorWrongOwner
			}
			if err := chRepo.MarkUsedIdempotent(ctx, ch.ID, now); err != nil {
				return err
			}
		}

		if scores != nil {
			scores.AttemptID = attemptID
			if _, err := attemptRepo.CreateScores(ctx, scores); err != nil {
				return err
			}
		}

		return attemptRepo.Seal(ctx, attemptID, accept, reason, now)
	})
}

// Get returns the attempt with its evidence, if any was recorded.
func (l *AttemptLedger) Get(ctx context.Context, attemptID string) (*models.AuthAttempt, *models.Scores, error) {
	repo := l.repomanager.Attempts(l.db)
	attempt, err := repo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	scores, err := repo.GetScoresByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return attempt, nil, nil
		}
		return nil, nil, err
	}
	return attempt, scores, nil
}
