package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/metrics"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
	gocache "github.com/patrickmn/go-cache"
)

// Rate-limit counts are derived from rows, not kept as mutable counters.
// The cache only shaves repeated reads within a few seconds and is dropped
// on every successful issuance.
const (
	rateCountCacheTTL     = 5 * time.Second
	maxChallengesPerBatch = 10
)

// ChallengeService issues one-time, time-bound phrase challenges and
// validates them before consumption.
type ChallengeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	rules       *RuleEngine
	rateCounts  *gocache.Cache
}

func NewChallengeService(db *sql.DB, m repomanager.RepositoryManager, rules *RuleEngine) *ChallengeService {
	return &ChallengeService{
		db:          db,
		repomanager: m,
		rules:       rules,
		rateCounts:  gocache.New(rateCountCacheTTL, time.Minute),
	}
}

// randIndex returns a uniform random index in [0, n).
var randIndex = func(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Issue creates count challenges for the user, all-or-nothing. Phrase choice
// is uniform random among active phrases of the requested difficulty, skipping
// the user's most recently used phrases so a replay of a recent recording
// cannot satisfy a fresh challenge.
func (s *ChallengeService) Issue(ctx context.Context, userID, difficulty string, count int) ([]*models.Challenge, error) {
	if !models.ValidDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: unknown difficulty %q", common.ErrorValidation, difficulty)
	}
	if count < 1 || count > maxChallengesPerBatch {
		return nil, fmt.Errorf("%w: challenge count must be between 1 and %d", common.ErrorValidation, maxChallengesPerBatch)
	}

	now := time.Now()

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsLocked(now) {
		metrics.ChallengeIssueRejected.WithLabelValues("account_locked").Inc()
		return nil, common.ErrorAccountLocked
	}

	if err := s.checkRateLimits(ctx, userID, count, now); err != nil {
		if errors.Is(err, common.ErrorRateLimited) {
			metrics.ChallengeIssueRejected.WithLabelValues("rate_limited").Inc()
		}
		return nil, err
	}

	picked, err := s.pickPhrases(ctx, userID, difficulty, count)
	if err != nil {
		return nil, err
	}

	expiryMinutes, err := s.rules.EffectiveInt(ctx, RuleChallengeExpiryMinutes)
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(time.Duration(expiryMinutes) * time.Minute)

	var created []*models.Challenge
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		chRepo := s.repomanager.Challenges(tx)
		phRepo := s.repomanager.Phrases(tx)
		for _, p := range picked {
			ch, err := chRepo.Create(ctx, &models.Challenge{
				UserID:    userID,
				PhraseID:  p.ID,
				Phrase:    p.Text,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				return err
			}
			if err := phRepo.AddUsage(ctx, &models.PhraseUsage{
				PhraseID: p.ID,
				UserID:   userID,
				UsedFor:  models.UsedForChallenge,
			}); err != nil {
				return err
			}
			created = append(created, ch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rateCounts.Delete(userID)
	metrics.ChallengesIssued.WithLabelValues(difficulty).Add(float64(len(created)))
	return created, nil
}

func (s *ChallengeService) checkRateLimits(ctx context.Context, userID string, count int, now time.Time) error {
	maxActive, err := s.rules.EffectiveInt(ctx, RuleMaxChallengesPerUser)
	if err != nil {
		return err
	}
	maxHourly, err := s.rules.EffectiveInt(ctx, RuleMaxChallengesPerHour)
	if err != nil {
		return err
	}

	type counts struct{ active, hourly int }
	var c counts
	if cached, ok := s.rateCounts.Get(userID); ok {
		c = cached.(counts)
	} else {
		repo := s.repomanager.Challenges(s.db)
		c.active, err = repo.CountActive(ctx, userID, now)
		if err != nil {
			return err
		}
		c.hourly, err = repo.CountIssuedSince(ctx, userID, now.Add(-time.Hour))
		if err != nil {
			return err
		}
		s.rateCounts.Set(userID, c, gocache.DefaultExpiration)
	}

	if c.active+count > maxActive {
		return fmt.Errorf("%w: too many active challenges", common.ErrorRateLimited)
	}
	if c.hourly+count > maxHourly {
		return fmt.Errorf("%w: hourly challenge limit reached", common.ErrorRateLimited)
	}
	return nil
}

func (s *ChallengeService) pickPhrases(ctx context.Context, userID, difficulty string, count int) ([]*models.Phrase, error) {
	excludeN, err := s.rules.EffectiveInt(ctx, RuleExcludeRecentPhrases)
	if err != nil {
		return nil, err
	}

	phRepo := s.repomanager.Phrases(s.db)

	var exclude []string
	if excludeN > 0 {
		exclude, err = phRepo.RecentPhraseIDs(ctx, userID, excludeN)
		if err != nil {
			return nil, err
		}
	}

	eligible, err := phRepo.SelectEligible(ctx, difficulty, exclude)
	if err != nil {
		return nil, err
	}
	// The exclusion window is a replay defense. When a small catalog leaves
	// too few phrases outside it, issuance fails rather than re-admitting
	// the phrases an eavesdropper most recently heard.
	if len(eligible) < count {
		return nil, common.ErrorNoEligiblePhrases
	}

	picked := make([]*models.Phrase, 0, count)
	for i := 0; i < count; i++ {
		j, err := randIndex(len(eligible))
		if err != nil {
			return nil, fmt.Errorf("error picking phrase: %v", err)
		}
		picked = append(picked, eligible[j])
		eligible = append(eligible[:j], eligible[j+1:]...)
	}
	return picked, nil
}

// Validate checks, in order: existence, ownership, single-use status, expiry.
// It must pass before any scoring work is attempted.
func (s *ChallengeService) Validate(ctx context.Context, challengeID, userID string) (*models.Challenge, error) {
	ch, err := s.repomanager.Challenges(s.db).GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	if ch.UserID != userID {
		return nil, common.ErrorWrongOwner
	}
	switch ch.State(time.Now()) {
	case models.ChallengeUsed:
		return nil, common.ErrorChallengeUsed
	case models.ChallengeExpired:
		return nil, common.ErrorChallengeExpired
	}
	return ch, nil
}

// Consume marks the challenge used, winning or losing the compare-and-set
// against any concurrent submission.
func (s *ChallengeService) Consume(ctx context.Context, challengeID string) error {
	won, err := s.repomanager.Challenges(s.db).Consume(ctx, challengeID, time.Now())
	if err != nil {
		return err
	}
	if !won {
		return common.ErrorChallengeUsed
	}
	return nil
}
