package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/cryptox"
	"github.com/dmitrijs2005/voicegate/internal/logging"
	"github.com/dmitrijs2005/voicegate/internal/server/config"
	"github.com/dmitrijs2005/voicegate/internal/server/metrics"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/voicegate/internal/textmatch"
	"github.com/google/uuid"
)

// PhraseOutcome is what a phrase submission returns to the caller. Aggregate
// fields are only meaningful when IsComplete is true.
type PhraseOutcome struct {
	PhraseNumber int
	FinalScore   float64
	IsComplete   bool
	AverageScore float64
	IsVerified   bool
	Reason       string
	Results      []*PhraseResult
}

// VerificationService orchestrates multi-phrase verification sessions:
// challenge issuance, per-phrase scoring, aggregation, and the final
// accept/reject decision.
type VerificationService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	rules         *RuleEngine
	challenges    *ChallengeService
	ledger        *AttemptLedger
	scorer        Scorer
	audio         *AudioStore
	audit         *AuditTrail
	sessions      *SessionStore
	logger        logging.Logger
	storageSecret []byte
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, rules *RuleEngine,
	challenges *ChallengeService, ledger *AttemptLedger, scorer Scorer, audio *AudioStore,
	audit *AuditTrail, logger logging.Logger, cfg *config.Config) *VerificationService {
	return &VerificationService{
		db:            db,
		repomanager:   m,
		rules:         rules,
		challenges:    challenges,
		ledger:        ledger,
		scorer:        scorer,
		audio:         audio,
		audit:         audit,
		sessions:      NewSessionStore(),
		logger:        logger.With("component", "verification"),
		storageSecret: []byte(cfg.StorageSecret),
	}
}

// Sessions exposes the store for the expiry sweeper.
func (s *VerificationService) Sessions() *SessionStore {
	return s.sessions
}

// Start issues phraseCount challenges and opens a session. The session TTL
// is phraseCount times the challenge expiry window, since each phrase gets
// its own independently-expiring challenge.
func (s *VerificationService) Start(ctx context.Context, userID, difficulty string, phraseCount int) (*Session, error) {
	challenges, err := s.challenges.Issue(ctx, userID, difficulty, phraseCount)
	if err != nil {
		return nil, err
	}

	expiryMinutes, err := s.rules.EffectiveInt(ctx, RuleChallengeExpiryMinutes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		Difficulty:  difficulty,
		PhraseCount: phraseCount,
		Challenges:  challenges,
		State:       SessionActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(phraseCount*expiryMinutes) * time.Minute),
	}
	s.sessions.Put(sess)

	s.audit.Enqueue(&models.AuditLog{
		UserID:     &userID,
		Action:     "verification_start",
		EntityType: "verification_session",
		EntityID:   &sess.ID,
		Success:    true,
		Metadata: map[string]string{
			"difficulty":   difficulty,
			"phrase_count": strconv.Itoa(phraseCount),
		},
	})
	return sess, nil
}

// SubmitPhrase scores one audio response against the challenge bound to the
// given phrase number. Validation failures are recoverable; spoof and a
// failed aggregate decision are terminal for the session.
func (s *VerificationService) SubmitPhrase(ctx context.Context, userID, sessionID, challengeID string, phraseNumber int, audio []byte) (*PhraseOutcome, error) {
	now := time.Now()

	ch, err := s.sessions.BeginPhrase(sessionID, userID, challengeID, phraseNumber, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.challenges.Validate(ctx, challengeID, userID); err != nil {
		if errors.Is(err, common.ErrorChallengeExpired) {
			return s.finalizeExpired(ctx, sessionID, userID, challengeID, phraseNumber)
		}
		s.sessions.EndPhrase(sessionID)
		return nil, err
	}

	embedding, err := s.loadEmbedding(ctx, userID)
	if err != nil {
		s.sessions.EndPhrase(sessionID)
		return nil, err
	}

	// Compare-and-set: exactly one submission may consume the challenge.
	if err := s.challenges.Consume(ctx, challengeID); err != nil {
		s.sessions.EndPhrase(sessionID)
		return nil, err
	}

	var audioKey *string
	key := GetRandomAudioKey(userID)
	if err := s.audio.Put(ctx, key, audio); err != nil {
		// Retention is best-effort; a storage hiccup must not fail the attempt.
		s.logger.Warn(ctx, "audio upload failed", "error", err)
	} else {
		audioKey = &key
	}

	attempt, err := s.ledger.Open(ctx, userID, &challengeID, audioKey)
	if err != nil {
		s.sessions.EndPhrase(sessionID)
		return nil, err
	}

	result, err := s.scorer.Score(ctx, audio, embedding, ch.Phrase)
	if err != nil {
		s.logger.Error(ctx, "scorer call failed", "session_id", sessionID, "error", err)
		return s.finalizeError(ctx, sessionID, userID, attempt.ID, phraseNumber, err)
	}

	return s.decidePhrase(ctx, sessionID, userID, attempt.ID, phraseNumber, ch.Phrase, result)
}

func (s *VerificationService) loadEmbedding(ctx context.Context, userID string) ([]byte, error) {
	vp, err := s.repomanager.Voiceprints(s.db).GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: user has no enrolled voiceprint", common.ErrorValidation)
		}
		return nil, err
	}
	key := cryptox.DeriveStorageKey(s.storageSecret, vp.Salt)
	defer common.WipeByteArray(key)
	return cryptox.DecryptEmbedding(vp.Embedding, vp.Nonce, key)
}

func (s *VerificationService) decidePhrase(ctx context.Context, sessionID, userID, attemptID string,
	phraseNumber int, expectedPhrase string, result *ScoreResult) (*PhraseOutcome, error) {

	tolerance, err := s.rules.EffectiveValue(ctx, RulePhraseMatchTolerance)
	if err != nil {
		return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
	}
	penalty, err := s.rules.EffectiveValue(ctx, RuleASRPenalty)
	if err != nil {
		return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
	}
	minUnrelated, err := s.rules.EffectiveValue(ctx, RuleMinASRScoreIsUnrelated)
	if err != nil {
		return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
	}
	threshold, err := s.rules.EffectiveValue(ctx, RuleMinSuccessRate)
	if err != nil {
		return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
	}

	phraseMatch := textmatch.Similarity(expectedPhrase, result.Transcript)
	phraseOK := phraseMatch >= tolerance

	scores := &models.Scores{
		Similarity:   result.Similarity,
		SpoofProb:    result.SpoofProb,
		PhraseMatch:  phraseMatch,
		PhraseOK:     &phraseOK,
		Transcript:   result.Transcript,
		SpeakerModel: result.SpeakerModel,
		SpoofModel:   result.SpoofModel,
		ASRModel:     result.ASRModel,
	}

	// Fail fast on a high-confidence forgery: a spoofed phrase rejects the
	// whole session without collecting the remaining phrases.
	if result.SpoofProb >= 1-minUnrelated {
		if err := s.ledger.Seal(ctx, attemptID, scores, false, models.ReasonSpoof); err != nil {
			return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
		}
		outcome := s.finalizeRejected(ctx, sessionID, userID, attemptID, phraseNumber, 0, models.ReasonSpoof)
		return outcome, nil
	}

	finalScore := result.Similarity
	phraseReason := models.ReasonOK
	if !phraseOK {
		finalScore = result.Similarity * penalty
		phraseReason = models.ReasonBadPhrase
	}
	metrics.PhraseScores.Observe(finalScore)

	sess, err := s.sessions.Get(sessionID, time.Now())
	if err != nil {
		// Session hit its TTL while the scorer was running.
		return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
	}
	isLast := phraseNumber == sess.PhraseCount

	if !isLast {
		if err := s.ledger.Seal(ctx, attemptID, scores, phraseOK, phraseReason); err != nil {
			return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
		}
		outcome := &PhraseOutcome{PhraseNumber: phraseNumber, FinalScore: finalScore, Reason: phraseReason}
		s.sessions.RecordResult(sessionID, &PhraseResult{
			PhraseNumber: phraseNumber,
			ChallengeID:  sess.Challenges[phraseNumber-1].ID,
			AttemptID:    attemptID,
			FinalScore:   finalScore,
			Reason:       phraseReason,
		}, nil)
		return outcome, nil
	}

	// Last phrase: aggregate and decide.
	sum := finalScore
	for _, r := range sess.Results {
		sum += r.FinalScore
	}
	average := sum / float64(sess.PhraseCount)
	isVerified := average >= threshold

	decisionReason := models.ReasonOK
	if !isVerified {
		decisionReason = models.ReasonLowSimilarity
	}

	if err := s.ledger.Seal(ctx, attemptID, scores, isVerified, decisionReason); err != nil {
		return s.finalizeError(ctx, sessionID, userID, attemptID, phraseNumber, err)
	}

	var outcome *PhraseOutcome
	s.sessions.RecordResult(sessionID, &PhraseResult{
		PhraseNumber: phraseNumber,
		ChallengeID:  sess.Challenges[phraseNumber-1].ID,
		AttemptID:    attemptID,
		FinalScore:   finalScore,
		Reason:       phraseReason,
	}, func(sess *Session) {
		sess.AverageScore = average
		sess.Reason = decisionReason
		if isVerified {
			sess.State = SessionAccepted
		} else {
			sess.State = SessionRejected
		}
		outcome = &PhraseOutcome{
			PhraseNumber: phraseNumber,
			FinalScore:   finalScore,
			IsComplete:   true,
			AverageScore: average,
			IsVerified:   isVerified,
			Reason:       decisionReason,
			Results:      append([]*PhraseResult(nil), sess.Results...),
		}
	})

	s.recordDecision(ctx, userID, sessionID, isVerified, decisionReason, average)
	return outcome, nil
}

// finalizeExpired seals an attempt for a stale submission and rejects the
// session: the missed phrase cannot be re-requested, so the session cannot
// complete.
func (s *VerificationService) finalizeExpired(ctx context.Context, sessionID, userID, challengeID string, phraseNumber int) (*PhraseOutcome, error) {
	attempt, err := s.ledger.Open(ctx, userID, &challengeID, nil)
	if err != nil {
		s.sessions.EndPhrase(sessionID)
		return nil, err
	}
	if err := s.ledger.Seal(ctx, attempt.ID, nil, false, models.ReasonExpiredChallenge); err != nil {
		s.sessions.EndPhrase(sessionID)
		return nil, err
	}
	outcome := s.finalizeRejected(ctx, sessionID, userID, attempt.ID, phraseNumber, 0, models.ReasonExpiredChallenge)
	return outcome, nil
}

func (s *VerificationService) finalizeRejected(ctx context.Context, sessionID, userID, attemptID string,
	phraseNumber int, finalScore float64, reason string) *PhraseOutcome {

	var outcome *PhraseOutcome
	s.sessions.RecordResult(sessionID, &PhraseResult{
		PhraseNumber: phraseNumber,
		AttemptID:    attemptID,
		FinalScore:   finalScore,
		Reason:       reason,
	}, func(sess *Session) {
		sess.State = SessionRejected
		sess.Reason = reason
		outcome = &PhraseOutcome{
			PhraseNumber: phraseNumber,
			FinalScore:   finalScore,
			IsComplete:   true,
			IsVerified:   false,
			Reason:       reason,
			Results:      append([]*PhraseResult(nil), sess.Results...),
		}
	})
	if outcome == nil {
		outcome = &PhraseOutcome{PhraseNumber: phraseNumber, IsComplete: true, Reason: reason}
	}

	s.recordDecision(ctx, userID, sessionID, false, reason, 0)
	return outcome
}

// finalizeError seals the attempt as reason=error and puts the session into
// its error terminal state. The failure is surfaced to the caller and
// audited with success=false for operator visibility.
func (s *VerificationService) finalizeError(ctx context.Context, sessionID, userID, attemptID string, phraseNumber int, cause error) (*PhraseOutcome, error) {
	if err := s.ledger.Seal(ctx, attemptID, nil, false, models.ReasonError); err != nil {
		s.logger.Error(ctx, "sealing failed attempt", "attempt_id", attemptID, "error", err)
	}

	var outcome *PhraseOutcome
	s.sessions.RecordResult(sessionID, &PhraseResult{
		PhraseNumber: phraseNumber,
		AttemptID:    attemptID,
		Reason:       models.ReasonError,
	}, func(sess *Session) {
		sess.State = SessionError
		sess.Reason = models.ReasonError
		outcome = &PhraseOutcome{
			PhraseNumber: phraseNumber,
			IsComplete:   true,
			IsVerified:   false,
			Reason:       models.ReasonError,
			Results:      append([]*PhraseResult(nil), sess.Results...),
		}
	})
	if outcome == nil {
		outcome = &PhraseOutcome{PhraseNumber: phraseNumber, IsComplete: true, Reason: models.ReasonError}
	}

	s.audit.Enqueue(&models.AuditLog{
		UserID:     &userID,
		Action:     "verification_error",
		EntityType: "auth_attempt",
		EntityID:   &attemptID,
		Success:    false,
		Metadata:   map[string]string{"error": cause.Error()},
	})
	return outcome, nil
}

// recordDecision audits the final decision and maintains the user's
// failed-attempt counter and lockout window.
func (s *VerificationService) recordDecision(ctx context.Context, userID, sessionID string, accepted bool, reason string, average float64) {
	metrics.RecordVerification(accepted, reason)
	s.audit.Enqueue(&models.AuditLog{
		UserID:     &userID,
		Action:     "verification_complete",
		EntityType: "verification_session",
		EntityID:   &sessionID,
		Success:    accepted,
		Metadata: map[string]string{
			"reason":        reason,
			"average_score": strconv.FormatFloat(average, 'f', 4, 64),
		},
	})

	userRepo := s.repomanager.Users(s.db)
	if accepted {
		if err := userRepo.ResetFailedAttempts(ctx, userID); err != nil {
			s.logger.Error(ctx, "resetting failed attempts", "user_id", userID, "error", err)
		}
		return
	}

	failed, err := userRepo.IncrementFailedAttempts(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "incrementing failed attempts", "user_id", userID, "error", err)
		return
	}

	maxFailed, err := s.rules.EffectiveInt(ctx, RuleMaxFailedAttempts)
	if err != nil {
		s.logger.Error(ctx, "reading lockout rule", "error", err)
		return
	}
	if failed < maxFailed {
		return
	}

	lockoutMinutes, err := s.rules.EffectiveInt(ctx, RuleLockoutMinutes)
	if err != nil {
		s.logger.Error(ctx, "reading lockout rule", "error", err)
		return
	}
	until := time.Now().Add(time.Duration(lockoutMinutes) * time.Minute)
	if err := userRepo.SetLockedUntil(ctx, userID, until); err != nil {
		s.logger.Error(ctx, "locking account", "user_id", userID, "error", err)
		return
	}

	metrics.AccountsLocked.Inc()
	s.audit.Enqueue(&models.AuditLog{
		UserID:     &userID,
		Action:     "account_locked",
		EntityType: "user",
		EntityID:   &userID,
		Success:    true,
		Metadata: map[string]string{
			"failed_attempts": strconv.Itoa(failed),
			"locked_until":    until.UTC().Format(time.RFC3339),
		},
	})
}
