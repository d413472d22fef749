package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/phrases"
)

func newTestPhraseService(m *fakeRepoManager) *PhraseService {
	return NewPhraseService(nil, m, NewAuditTrail(nil, m, testLogger()))
}

func TestPhraseCreate(t *testing.T) {
	m := newFakeRepoManager()
	m.phrases.CreateFn = func(ctx context.Context, p *models.Phrase) (*models.Phrase, error) {
		p.ID = "p1"
		return p, nil
	}

	svc := newTestPhraseService(m)
	p, err := svc.Create(context.Background(), "admin1", "please read this sentence aloud clearly", models.DifficultyMedium)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.IsActive {
		t.Error("new phrase should be active")
	}
	if p.CharCount != len("please read this sentence aloud clearly") {
		t.Errorf("unexpected char count %d", p.CharCount)
	}

	select {
	case entry := <-svc.audit.entries:
		if entry.Action != "phrase_created" || *entry.EntityID != "p1" {
			t.Errorf("unexpected audit entry: %+v", entry)
		}
	default:
		t.Error("expected an audit entry")
	}
}

func TestPhraseCreate_Validation(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		difficulty string
	}{
		{"too short", "short one", models.DifficultyEasy},
		{"too long", strings.Repeat("a", models.PhraseCharCountMax+1), models.DifficultyEasy},
		{"unknown difficulty", "please read this sentence aloud clearly", "extreme"},
	}

	m := newFakeRepoManager()
	m.phrases.CreateFn = func(ctx context.Context, p *models.Phrase) (*models.Phrase, error) {
		t.Fatal("invalid phrase must not reach the store")
		return nil, nil
	}
	svc := newTestPhraseService(m)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "admin1", tt.text, tt.difficulty)
			if !errors.Is(err, common.ErrorValidation) {
				t.Errorf("expected ErrorValidation, got %v", err)
			}
		})
	}
}

func TestPhraseDeactivate(t *testing.T) {
	m := newFakeRepoManager()
	var gotID string
	m.phrases.DeactivateFn = func(ctx context.Context, id string) error {
		gotID = id
		return nil
	}

	svc := newTestPhraseService(m)
	if err := svc.Deactivate(context.Background(), "admin1", "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "p1" {
		t.Errorf("expected deactivation of p1, got %q", gotID)
	}

	select {
	case entry := <-svc.audit.entries:
		if entry.Action != "phrase_deactivated" {
			t.Errorf("unexpected audit entry: %+v", entry)
		}
	default:
		t.Error("expected an audit entry")
	}
}

func TestPhraseStats(t *testing.T) {
	m := newFakeRepoManager()
	m.phrases.GetByIDFn = func(ctx context.Context, id string) (*models.Phrase, error) {
		return &models.Phrase{ID: id, Text: "please read this sentence aloud clearly"}, nil
	}
	m.phrases.StatsFn = func(ctx context.Context, phraseID string) (*phrases.UsageStats, error) {
		return &phrases.UsageStats{TimesUsed: 10, Decided: 10, Accepted: 7}, nil
	}

	svc := newTestPhraseService(m)
	p, stats, err := svc.Stats(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "p1" {
		t.Errorf("unexpected phrase: %+v", p)
	}
	if stats.SuccessRate() != 0.7 {
		t.Errorf("expected success rate 0.7, got %v", stats.SuccessRate())
	}
}

func TestPhraseStats_NotFound(t *testing.T) {
	m := newFakeRepoManager()
	m.phrases.GetByIDFn = func(ctx context.Context, id string) (*models.Phrase, error) {
		return nil, common.ErrorNotFound
	}

	svc := newTestPhraseService(m)
	_, _, err := svc.Stats(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Errorf("expected ErrorNotFound, got %v", err)
	}
}
