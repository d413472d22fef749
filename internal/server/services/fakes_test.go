package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/audit"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/phrases"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/policies"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/rules"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/voiceprints"
)

// Hand-rolled fakes with pluggable function fields.

type fakeUserRepo struct {
	CreateFn                  func(ctx context.Context, u *models.User) (*models.User, error)
	GetByIDFn                 func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFn           func(ctx context.Context, username string) (*models.User, error)
	IncrementFailedAttemptsFn func(ctx context.Context, id string) (int, error)
	ResetFailedAttemptsFn     func(ctx context.Context, id string) error
	SetLockedUntilFn          func(ctx context.Context, id string, until time.Time) error
}

func (f *fakeUserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	return f.CreateFn(ctx, u)
}
func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.GetByIDFn(ctx, id)
}
func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return f.GetByUsernameFn(ctx, username)
}
func (f *fakeUserRepo) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	return f.IncrementFailedAttemptsFn(ctx, id)
}
func (f *fakeUserRepo) ResetFailedAttempts(ctx context.Context, id string) error {
	return f.ResetFailedAttemptsFn(ctx, id)
}
func (f *fakeUserRepo) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	return f.SetLockedUntilFn(ctx, id, until)
}

type fakeChallengeRepo struct {
	CreateFn             func(ctx context.Context, ch *models.Challenge) (*models.Challenge, error)
	GetByIDFn            func(ctx context.Context, id string) (*models.Challenge, error)
	CountActiveFn        func(ctx context.Context, userID string, now time.Time) (int, error)
	CountIssuedSinceFn   func(ctx context.Context, userID string, since time.Time) (int, error)
	ConsumeFn            func(ctx context.Context, id string, now time.Time) (bool, error)
	MarkUsedIdempotentFn func(ctx context.Context, id string, now time.Time) error
	DeleteStaleFn        func(ctx context.Context, usedBefore, expiredBefore time.Time) (int64, error)
}

func (f *fakeChallengeRepo) Create(ctx context.Context, ch *models.Challenge) (*models.Challenge, error) {
	return f.CreateFn(ctx, ch)
}
func (f *fakeChallengeRepo) GetByID(ctx context.Context, id string) (*models.Challenge, error) {
	return f.GetByIDFn(ctx, id)
}
func (f *fakeChallengeRepo) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	return f.CountActiveFn(ctx, userID, now)
}
func (f *fakeChallengeRepo) CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return f.CountIssuedSinceFn(ctx, userID, since)
}
func (f *fakeChallengeRepo) Consume(ctx context.Context, id string, now time.Time) (bool, error) {
	return f.ConsumeFn(ctx, id, now)
}
func (f *fakeChallengeRepo) MarkUsedIdempotent(ctx context.Context, id string, now time.Time) error {
	return f.MarkUsedIdempotentFn(ctx, id, now)
}
func (f *fakeChallengeRepo) DeleteStale(ctx context.Context, usedBefore, expiredBefore time.Time) (int64, error) {
	return f.DeleteStaleFn(ctx, usedBefore, expiredBefore)
}

type fakePhraseRepo struct {
	CreateFn          func(ctx context.Context, p *models.Phrase) (*models.Phrase, error)
	GetByIDFn         func(ctx context.Context, id string) (*models.Phrase, error)
	DeactivateFn      func(ctx context.Context, id string) error
	SelectEligibleFn  func(ctx context.Context, difficulty string, excludeIDs []string) ([]*models.Phrase, error)
	RecentPhraseIDsFn func(ctx context.Context, userID string, limit int) ([]string, error)
	AddUsageFn        func(ctx context.Context, u *models.PhraseUsage) error
	StatsFn           func(ctx context.Context, phraseID string) (*phrases.UsageStats, error)
}

func (f *fakePhraseRepo) Create(ctx context.Context, p *models.Phrase) (*models.Phrase, error) {
	return f.CreateFn(ctx, p)
}
func (f *fakePhraseRepo) GetByID(ctx context.Context, id string) (*models.Phrase, error) {
	return f.GetByIDFn(ctx, id)
}
func (f *fakePhraseRepo) Deactivate(ctx context.Context, id string) error {
	return f.DeactivateFn(ctx, id)
}
func (f *fakePhraseRepo) SelectEligible(ctx context.Context, difficulty string, excludeIDs []string) ([]*models.Phrase, error) {
	return f.SelectEligibleFn(ctx, difficulty, excludeIDs)
}
func (f *fakePhraseRepo) RecentPhraseIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	return f.RecentPhraseIDsFn(ctx, userID, limit)
}
func (f *fakePhraseRepo) AddUsage(ctx context.Context, u *models.PhraseUsage) error {
	return f.AddUsageFn(ctx, u)
}
func (f *fakePhraseRepo) Stats(ctx context.Context, phraseID string) (*phrases.UsageStats, error) {
	return f.StatsFn(ctx, phraseID)
}

type fakeAttemptRepo struct {
	CreateProvisionalFn     func(ctx context.Context, a *models.AuthAttempt) (*models.AuthAttempt, error)
	GetByIDFn               func(ctx context.Context, id string) (*models.AuthAttempt, error)
	SealFn                  func(ctx context.Context, id string, accept bool, reason string, decidedAt time.Time) error
	ClearAudioKeyFn         func(ctx context.Context, id string) error
	CreateScoresFn          func(ctx context.Context, s *models.Scores) (*models.Scores, error)
	GetScoresByAttemptFn    func(ctx context.Context, attemptID string) (*models.Scores, error)
	SelectUndecidedBeforeFn func(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuthAttempt, error)
	SelectExpiredAudioFn    func(ctx context.Context, now time.Time, defaultRetentionDays, limit int) ([]attempts.AudioRef, error)
}

func (f *fakeAttemptRepo) CreateProvisional(ctx context.Context, a *models.AuthAttempt) (*models.AuthAttempt, error) {
	return f.CreateProvisionalFn(ctx, a)
}
func (f *fakeAttemptRepo) GetByID(ctx context.Context, id string) (*models.AuthAttempt, error) {
	return f.GetByIDFn(ctx, id)
}
func (f *fakeAttemptRepo) Seal(ctx context.Context, id string, accept bool, reason string, decidedAt time.Time) error {
	return f.SealFn(ctx, id, accept, reason, decidedAt)
}
func (f *fakeAttemptRepo) ClearAudioKey(ctx context.Context, id string) error {
	return f.ClearAudioKeyFn(ctx, id)
}
func (f *fakeAttemptRepo) CreateScores(ctx context.Context, s *models.Scores) (*models.Scores, error) {
	return f.CreateScoresFn(ctx, s)
}
func (f *fakeAttemptRepo) GetScoresByAttempt(ctx context.Context, attemptID string) (*models.Scores, error) {
	return f.GetScoresByAttemptFn(ctx, attemptID)
}
func (f *fakeAttemptRepo) SelectUndecidedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuthAttempt, error) {
	return f.SelectUndecidedBeforeFn(ctx, cutoff, limit)
}
func (f *fakeAttemptRepo) SelectExpiredAudio(ctx context.Context, now time.Time, defaultRetentionDays, limit int) ([]attempts.AudioRef, error) {
	return f.SelectExpiredAudioFn(ctx, now, defaultRetentionDays, limit)
}

type fakeRuleRepo struct {
	GetByNameFn   func(ctx context.Context, name string) (*models.QualityRule, error)
	ListFn        func(ctx context.Context) ([]*models.QualityRule, error)
	UpdateValueFn func(ctx context.Context, name string, value float64) error
	ToggleFn      func(ctx context.Context, name string, active bool) error
}

func (f *fakeRuleRepo) GetByName(ctx context.Context, name string) (*models.QualityRule, error) {
	return f.GetByNameFn(ctx, name)
}
func (f *fakeRuleRepo) List(ctx context.Context) ([]*models.QualityRule, error) {
	return f.ListFn(ctx)
}
func (f *fakeRuleRepo) UpdateValue(ctx context.Context, name string, value float64) error {
	return f.UpdateValueFn(ctx, name, value)
}
func (f *fakeRuleRepo) Toggle(ctx context.Context, name string, active bool) error {
	return f.ToggleFn(ctx, name, active)
}

type fakeAuditRepo struct {
	InsertFn         func(ctx context.Context, entry *models.AuditLog) (*models.AuditLog, error)
	SelectByEntityFn func(ctx context.Context, entityID string, limit int) ([]*models.AuditLog, error)
	SelectRecentFn   func(ctx context.Context, limit int) ([]*models.AuditLog, error)
}

func (f *fakeAuditRepo) Insert(ctx context.Context, entry *models.AuditLog) (*models.AuditLog, error) {
	if f.InsertFn == nil {
		return entry, nil
	}
	return f.InsertFn(ctx, entry)
}
func (f *fakeAuditRepo) SelectByEntity(ctx context.Context, entityID string, limit int) ([]*models.AuditLog, error) {
	return f.SelectByEntityFn(ctx, entityID, limit)
}
func (f *fakeAuditRepo) SelectRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	return f.SelectRecentFn(ctx, limit)
}

type fakeVoiceprintRepo struct {
	GetByUserIDFn   func(ctx context.Context, userID string) (*models.Voiceprint, error)
	CreateFn        func(ctx context.Context, vp *models.Voiceprint) (*models.Voiceprint, error)
	UpdateFn        func(ctx context.Context, vp *models.Voiceprint) error
	CopyToHistoryFn func(ctx context.Context, userID string) error
	HistoryCountFn  func(ctx context.Context, userID string) (int, error)
}

func (f *fakeVoiceprintRepo) GetByUserID(ctx context.Context, userID string) (*models.Voiceprint, error) {
	return f.GetByUserIDFn(ctx, userID)
}
func (f *fakeVoiceprintRepo) Create(ctx context.Context, vp *models.Voiceprint) (*models.Voiceprint, error) {
	return f.CreateFn(ctx, vp)
}
func (f *fakeVoiceprintRepo) Update(ctx context.Context, vp *models.Voiceprint) error {
	return f.UpdateFn(ctx, vp)
}
func (f *fakeVoiceprintRepo) CopyToHistory(ctx context.Context, userID string) error {
	return f.CopyToHistoryFn(ctx, userID)
}
func (f *fakeVoiceprintRepo) HistoryCount(ctx context.Context, userID string) (int, error) {
	return f.HistoryCountFn(ctx, userID)
}

type fakePolicyRepo struct {
	GetByUserIDFn func(ctx context.Context, userID string) (*models.UserPolicy, error)
	UpsertFn      func(ctx context.Context, p *models.UserPolicy) error
}

func (f *fakePolicyRepo) GetByUserID(ctx context.Context, userID string) (*models.UserPolicy, error) {
	return f.GetByUserIDFn(ctx, userID)
}
func (f *fakePolicyRepo) Upsert(ctx context.Context, p *models.UserPolicy) error {
	return f.UpsertFn(ctx, p)
}

// fakeRepoManager vends the same fakes regardless of the DBTX handle, so
// transactional code paths exercise them too.
type fakeRepoManager struct {
	users       *fakeUserRepo
	voiceprints *fakeVoiceprintRepo
	phrases     *fakePhraseRepo
	challenges  *fakeChallengeRepo
	attempts    *fakeAttemptRepo
	rules       *fakeRuleRepo
	audit       *fakeAuditRepo
	policies    *fakePolicyRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:       &fakeUserRepo{},
		voiceprints: &fakeVoiceprintRepo{},
		phrases:     &fakePhraseRepo{},
		challenges:  &fakeChallengeRepo{},
		attempts:    &fakeAttemptRepo{},
		rules:       &fakeRuleRepo{},
		audit:       &fakeAuditRepo{},
		policies:    &fakePolicyRepo{},
	}
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(db dbx.DBTX) users.Repository                  { return f.users }
func (f *fakeRepoManager) Voiceprints(db dbx.DBTX) voiceprints.Repository      { return f.voiceprints }
func (f *fakeRepoManager) Phrases(db dbx.DBTX) phrases.Repository              { return f.phrases }
func (f *fakeRepoManager) Challenges(db dbx.DBTX) challenges.Repository        { return f.challenges }
func (f *fakeRepoManager) Attempts(db dbx.DBTX) attempts.Repository            { return f.attempts }
func (f *fakeRepoManager) Rules(db dbx.DBTX) rules.Repository                  { return f.rules }
func (f *fakeRepoManager) Audit(db dbx.DBTX) audit.Repository                  { return f.audit }
func (f *fakeRepoManager) Policies(db dbx.DBTX) policies.Repository            { return f.policies }

// activeRule returns a GetByName func serving the given values as active
// rules and falling back to row-absent for everything else.
func activeRules(values map[string]float64) func(ctx context.Context, name string) (*models.QualityRule, error) {
	return func(ctx context.Context, name string) (*models.QualityRule, error) {
		if v, ok := values[name]; ok {
			return &models.QualityRule{ID: "r-" + name, RuleName: name, Value: v, IsActive: true}, nil
		}
		return nil, common.ErrorNotFound
	}
}
