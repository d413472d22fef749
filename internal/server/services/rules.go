package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
)

// Rule names known to the engine. The store is open-ended, but writes are
// only accepted for names with a registered definition.
const (
	RuleMinSuccessRate         = "min_success_rate"
	RuleMinASRScoreIsUnrelated = "min_asr_score_is_unrelated"
	RuleASRPenalty             = "asr_penalty"
	RulePhraseMatchTolerance   = "phrase_match_tolerance"
	RuleMaxChallengesPerUser   = "max_challenges_per_user"
	RuleMaxChallengesPerHour   = "max_challenges_per_hour"
	RuleExcludeRecentPhrases   = "exclude_recent_phrases"
	RuleMaxFailedAttempts      = "max_failed_attempts"
	RuleChallengeExpiryMinutes = "challenge_expiry_minutes"
	RuleCleanupExpiredAfterHrs = "cleanup_expired_after_hours"
	RuleCleanupUsedAfterHrs    = "cleanup_used_after_hours"
	RuleLockoutMinutes         = "lockout_minutes"
)

// ruleDef carries the compiled-in default and the acceptable range for one
// rule name. An inactive or missing row falls back to Default; a write
// outside [Min, Max] is rejected, never clamped.
type ruleDef struct {
	Type    string
	Default float64
	Min     float64
	Max     float64
}

var ruleDefs = map[string]ruleDef{
	RuleMinSuccessRate:         {Type: models.RuleTypeThreshold, Default: 0.75, Min: 0.5, Max: 0.99},
	RuleMinASRScoreIsUnrelated: {Type: models.RuleTypeThreshold, Default: 0.30, Min: 0.05, Max: 0.95},
	RuleASRPenalty:             {Type: models.RuleTypeThreshold, Default: 0.70, Min: 0.01, Max: 1},
	RulePhraseMatchTolerance:   {Type: models.RuleTypeThreshold, Default: 0.82, Min: 0.5, Max: 1},
	RuleMaxChallengesPerUser:   {Type: models.RuleTypeRateLimit, Default: 5, Min: 1, Max: 50},
	RuleMaxChallengesPerHour:   {Type: models.RuleTypeRateLimit, Default: 20, Min: 1, Max: 500},
	RuleExcludeRecentPhrases:   {Type: models.RuleTypeRateLimit, Default: 10, Min: 0, Max: 100},
	RuleMaxFailedAttempts:      {Type: models.RuleTypeRateLimit, Default: 5, Min: 1, Max: 100},
	RuleChallengeExpiryMinutes: {Type: models.RuleTypeCleanup, Default: 10, Min: 1, Max: 240},
	RuleCleanupExpiredAfterHrs: {Type: models.RuleTypeCleanup, Default: 24, Min: 1, Max: 720},
	RuleCleanupUsedAfterHrs:    {Type: models.RuleTypeCleanup, Default: 72, Min: 1, Max: 720},
	RuleLockoutMinutes:         {Type: models.RuleTypeCleanup, Default: 15, Min: 1, Max: 1440},
}

// RuleEngine serves the mutable, admin-controlled configuration values
// governing thresholds, rate limits, and cleanup windows. Values are read
// fresh from the store on every call so an admin change takes effect on the
// next request.
type RuleEngine struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditTrail
}

func NewRuleEngine(db *sql.DB, m repomanager.RepositoryManager, audit *AuditTrail) *RuleEngine {
	return &RuleEngine{db: db, repomanager: m, audit: audit}
}

// EffectiveValue resolves the current value for name. An inactive or absent
// row means "use the compiled-in default", never "skip the check".
func (e *RuleEngine) EffectiveValue(ctx context.Context, name string) (float64, error) {
	def, ok := ruleDefs[name]
	if !ok {
		return 0, common.ErrorRuleUnknown
	}

	rule, err := e.repomanager.Rules(e.db).GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return def.Default, nil
		}
		return 0, fmt.Errorf("error reading rule %s: %v", name, err)
	}
	if !rule.IsActive {
		return def.Default, nil
	}
	return rule.Value, nil
}

// EffectiveInt is EffectiveValue truncated for count-valued rules.
func (e *RuleEngine) EffectiveInt(ctx context.Context, name string) (int, error) {
	v, err := e.EffectiveValue(ctx, name)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (e *RuleEngine) Get(ctx context.Context, name string) (*models.QualityRule, error) {
	if _, ok := ruleDefs[name]; !ok {
		return nil, common.ErrorRuleUnknown
	}
	return e.repomanager.Rules(e.db).GetByName(ctx, name)
}

func (e *RuleEngine) List(ctx context.Context) ([]*models.QualityRule, error) {
	return e.repomanager.Rules(e.db).List(ctx)
}

// Bounds exposes the acceptable range for a rule name, for the admin surface.
func (e *RuleEngine) Bounds(name string) (min, max float64, err error) {
	def, ok := ruleDefs[name]
	if !ok {
		return 0, 0, common.ErrorRuleUnknown
	}
	return def.Min, def.Max, nil
}

// SetValue replaces a rule value. Writes outside the per-name bounds fail
// closed with ErrorRuleOutOfRange, keeping the previous value. Every
// successful mutation is audited with the old and new values.
func (e *RuleEngine) SetValue(ctx context.Context, actorID, name string, value float64) error {
	def, ok := ruleDefs[name]
	if !ok {
		return common.ErrorRuleUnknown
	}
	if value < def.Min || value > def.Max {
		return common.ErrorRuleOutOfRange
	}

	repo := e.repomanager.Rules(e.db)
	old, err := repo.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("error reading rule %s: %v", name, err)
	}

	if err := repo.UpdateValue(ctx, name, value); err != nil {
		return fmt.Errorf("error updating rule %s: %v", name, err)
	}

	e.audit.Enqueue(&models.AuditLog{
		UserID:     &actorID,
		Action:     "rule_update",
		EntityType: "phrase_quality_rule",
		EntityID:   &old.ID,
		Success:    true,
		Metadata: map[string]string{
			"rule_name": name,
			"old_value": strconv.FormatFloat(old.Value, 'f', -1, 64),
			"new_value": strconv.FormatFloat(value, 'f', -1, 64),
		},
	})
	return nil
}

// Toggle flips a rule between stored-value and compiled-in-default modes.
func (e *RuleEngine) Toggle(ctx context.Context, actorID, name string, active bool) error {
	if _, ok := ruleDefs[name]; !ok {
		return common.ErrorRuleUnknown
	}

	repo := e.repomanager.Rules(e.db)
	old, err := repo.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("error reading rule %s: %v", name, err)
	}

	if err := repo.Toggle(ctx, name, active); err != nil {
		return fmt.Errorf("error toggling rule %s: %v", name, err)
	}

	e.audit.Enqueue(&models.AuditLog{
		UserID:     &actorID,
		Action:     "rule_toggle",
		EntityType: "phrase_quality_rule",
		EntityID:   &old.ID,
		Success:    true,
		Metadata: map[string]string{
			"rule_name": name,
			"active":    strconv.FormatBool(active),
		},
	})
	return nil
}
