package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/logging"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestRuleEngine(m *fakeRepoManager) (*RuleEngine, *AuditTrail) {
	trail := NewAuditTrail(nil, m, testLogger())
	return NewRuleEngine(nil, m, trail), trail
}

func TestEffectiveValue_ActiveRule(t *testing.T) {
	m := newFakeRepoManager()
	m.rules.GetByNameFn = activeRules(map[string]float64{RuleMinSuccessRate: 0.9})

	e, _ := newTestRuleEngine(m)

	v, err := e.EffectiveValue(context.Background(), RuleMinSuccessRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.9 {
		t.Errorf("expected 0.9, got %v", v)
	}
}

func TestEffectiveValue_InactiveRuleUsesDefault(t *testing.T) {
	m := newFakeRepoManager()
	m.rules.GetByNameFn = func(ctx context.Context, name string) (*models.QualityRule, error) {
		return &models.QualityRule{RuleName: name, Value: 0.95, IsActive: false}, nil
	}

	e, _ := newTestRuleEngine(m)

	v, err := e.EffectiveValue(context.Background(), RuleMinSuccessRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.75 {
		t.Errorf("expected compiled-in default 0.75, got %v", v)
	}
}

func TestEffectiveValue_MissingRowUsesDefault(t *testing.T) {
	m := newFakeRepoManager()
	m.rules.GetByNameFn = activeRules(nil)

	e, _ := newTestRuleEngine(m)

	v, err := e.EffectiveValue(context.Background(), RuleMaxChallengesPerUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 5 {
		t.Errorf("expected default 5, got %v", v)
	}
}

func TestEffectiveValue_UnknownRule(t *testing.T) {
	m := newFakeRepoManager()
	e, _ := newTestRuleEngine(m)

	_, err := e.EffectiveValue(context.Background(), "no_such_rule")
	if !errors.Is(err, common.ErrorRuleUnknown) {
		t.Errorf("expected ErrorRuleUnknown, got %v", err)
	}
}

func TestSetValue_OutOfRangeFailsClosed(t *testing.T) {
	m := newFakeRepoManager()
	updated := false
	m.rules.UpdateValueFn = func(ctx context.Context, name string, value float64) error {
		updated = true
		return nil
	}

	e, _ := newTestRuleEngine(m)

	err := e.SetValue(context.Background(), "admin1", RuleMinSuccessRate, 1.5)
	if !errors.Is(err, common.ErrorRuleOutOfRange) {
		t.Fatalf("expected ErrorRuleOutOfRange, got %v", err)
	}
	if updated {
		t.Error("out-of-range write must not reach the store")
	}
}

func TestSetValue_UpdatesAndAudits(t *testing.T) {
	m := newFakeRepoManager()
	m.rules.GetByNameFn = activeRules(map[string]float64{RuleMinSuccessRate: 0.75})

	var gotName string
	var gotValue float64
	m.rules.UpdateValueFn = func(ctx context.Context, name string, value float64) error {
		gotName, gotValue = name, value
		return nil
	}

	e, trail := newTestRuleEngine(m)

	if err := e.SetValue(context.Background(), "admin1", RuleMinSuccessRate, 0.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != RuleMinSuccessRate || gotValue != 0.8 {
		t.Errorf("unexpected update: %s=%v", gotName, gotValue)
	}

	select {
	case entry := <-trail.entries:
		if entry.Action != "rule_update" {
			t.Errorf("expected rule_update audit action, got %s", entry.Action)
		}
		if entry.Metadata["old_value"] != "0.75" || entry.Metadata["new_value"] != "0.8" {
			t.Errorf("unexpected audit metadata: %v", entry.Metadata)
		}
	default:
		t.Error("expected an audit entry for the mutation")
	}
}

func TestToggle_Audited(t *testing.T) {
	m := newFakeRepoManager()
	m.rules.GetByNameFn = activeRules(map[string]float64{RuleASRPenalty: 0.7})

	toggled := false
	m.rules.ToggleFn = func(ctx context.Context, name string, active bool) error {
		if name != RuleASRPenalty || active {
			t.Errorf("unexpected toggle %s=%v", name, active)
		}
		toggled = true
		return nil
	}

	e, trail := newTestRuleEngine(m)

	if err := e.Toggle(context.Background(), "admin1", RuleASRPenalty, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !toggled {
		t.Error("expected toggle to reach the store")
	}

	select {
	case entry := <-trail.entries:
		if entry.Action != "rule_toggle" {
			t.Errorf("expected rule_toggle audit action, got %s", entry.Action)
		}
	default:
		t.Error("expected an audit entry for the toggle")
	}
}

func TestBounds(t *testing.T) {
	m := newFakeRepoManager()
	e, _ := newTestRuleEngine(m)

	min, max, err := e.Bounds(RuleChallengeExpiryMinutes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if min != 1 || max != 240 {
		t.Errorf("unexpected bounds [%v, %v]", min, max)
	}

	if _, _, err := e.Bounds("nope"); !errors.Is(err, common.ErrorRuleUnknown) {
		t.Errorf("expected ErrorRuleUnknown, got %v", err)
	}
}
