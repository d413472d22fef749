package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/logging"
	"github.com/dmitrijs2005/voicegate/internal/server/metrics"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
)

const (
	purgeBatchSize            = 500
	reconcileGracePeriod      = time.Hour
	defaultAudioRetentionDays = 30
)

// PurgeService is the background retention job. It deletes stale challenges
// past their grace windows, drops raw audio past each user's retention
// policy, and finalizes attempts abandoned before a decision. Runs must be
// safe to skip or delay; nothing request-serving depends on them.
type PurgeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	rules       *RuleEngine
	audio       *AudioStore
	sessions    *SessionStore
	logger      logging.Logger
}

func NewPurgeService(db *sql.DB, m repomanager.RepositoryManager, rules *RuleEngine,
	audio *AudioStore, sessions *SessionStore, logger logging.Logger) *PurgeService {
	return &PurgeService{
		db:          db,
		repomanager: m,
		rules:       rules,
		audio:       audio,
		sessions:    sessions,
		logger:      logger.With("component", "purge"),
	}
}

// Run executes one purge pass.
func (s *PurgeService) Run(ctx context.Context) {
	if n := s.purgeChallenges(ctx); n > 0 {
		metrics.PurgedRows.WithLabelValues("challenges").Add(float64(n))
		s.logger.Info(ctx, "stale challenges removed", "count", n)
	}
	if n := s.purgeAudio(ctx); n > 0 {
		metrics.PurgedRows.WithLabelValues("audio").Add(float64(n))
		s.logger.Info(ctx, "expired audio removed", "count", n)
	}
	if n := s.sessions.PurgeExpired(time.Now()); n > 0 {
		metrics.PurgedRows.WithLabelValues("sessions").Add(float64(n))
		s.logger.Info(ctx, "expired sessions dropped", "count", n)
	}
}

// purgeChallenges deletes consumed and expired challenges, but only those
// older than the configured grace windows. Pending unexpired challenges are
// never touched, so a purge pass cannot race an in-flight consumption.
func (s *PurgeService) purgeChallenges(ctx context.Context) int64 {
	usedAfterHrs, err := s.rules.EffectiveInt(ctx, RuleCleanupUsedAfterHrs)
	if err != nil {
		s.logger.Error(ctx, "reading cleanup rule", "error", err)
		return 0
	}
	expiredAfterHrs, err := s.rules.EffectiveInt(ctx, RuleCleanupExpiredAfterHrs)
	if err != nil {
		s.logger.Error(ctx, "reading cleanup rule", "error", err)
		return 0
	}

	now := time.Now()
	usedBefore := now.Add(-time.Duration(usedAfterHrs) * time.Hour)
	expiredBefore := now.Add(-time.Duration(expiredAfterHrs) * time.Hour)

	n, err := s.repomanager.Challenges(s.db).DeleteStale(ctx, usedBefore, expiredBefore)
	if err != nil {
		s.logger.Error(ctx, "deleting stale challenges", "error", err)
		return 0
	}
	return n
}

// purgeAudio removes raw audio objects past their owner's retention policy
// and clears the attempt's reference. The ledger row itself stays.
func (s *PurgeService) purgeAudio(ctx context.Context) int {
	refs, err := s.repomanager.Attempts(s.db).SelectExpiredAudio(ctx, time.Now(), defaultAudioRetentionDays, purgeBatchSize)
	if err != nil {
		s.logger.Error(ctx, "selecting expired audio", "error", err)
		return 0
	}

	removed := 0
	for _, ref := range refs {
		if err := s.audio.Delete(ctx, ref.AudioKey); err != nil {
			s.logger.Error(ctx, "deleting audio object", "key", ref.AudioKey, "error", err)
			continue
		}
		if err := s.repomanager.Attempts(s.db).ClearAudioKey(ctx, ref.AttemptID); err != nil {
			s.logger.Error(ctx, "clearing audio key", "attempt_id", ref.AttemptID, "error", err)
			continue
		}
		removed++
	}
	return removed
}

// Reconcile finalizes attempts abandoned before a decision (client
// disconnect, server crash) as reason=error once they are past the grace
// period, so no attempt stays undecided indefinitely.
func (s *PurgeService) Reconcile(ctx context.Context, ledger *AttemptLedger) int {
	cutoff := time.Now().Add(-reconcileGracePeriod)
	stale, err := s.repomanager.Attempts(s.db).SelectUndecidedBefore(ctx, cutoff, purgeBatchSize)
	if err != nil {
		s.logger.Error(ctx, "selecting undecided attempts", "error", err)
		return 0
	}

	sealed := 0
	for _, a := range stale {
		if err := ledger.Seal(ctx, a.ID, nil, false, models.ReasonError); err != nil {
			// A live seal finishing after our select is not a failure.
			if errors.Is(err, common.ErrorAttemptDecided) {
				continue
			}
			s.logger.Error(ctx, "reconciling attempt", "attempt_id", a.ID, "error", err)
			continue
		}
		sealed++
	}
	if sealed > 0 {
		metrics.PurgedRows.WithLabelValues("attempts_reconciled").Add(float64(sealed))
		s.logger.Info(ctx, "abandoned attempts reconciled", "count", sealed)
	}
	return sealed
}
