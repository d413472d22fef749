package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/phrases"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
)

// PhraseService is the admin surface over the phrase catalog.
type PhraseService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditTrail
}

func NewPhraseService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditTrail) *PhraseService {
	return &PhraseService{db: db, repomanager: m, audit: audit}
}

// Create adds a catalog phrase. Text length and difficulty are validated
// here so the database constraint is never the first line of defense.
func (s *PhraseService) Create(ctx context.Context, actorID, text, difficulty string) (*models.Phrase, error) {
	n := utf8.RuneCountInString(text)
	if n < models.PhraseCharCountMin || n > models.PhraseCharCountMax {
		return nil, fmt.Errorf("%w: phrase length must be between %d and %d characters",
			common.ErrorValidation, models.PhraseCharCountMin, models.PhraseCharCountMax)
	}
	if !models.ValidDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: unknown difficulty %q", common.ErrorValidation, difficulty)
	}

	p, err := s.repomanager.Phrases(s.db).Create(ctx, &models.Phrase{
		Text:       text,
		CharCount:  n,
		Difficulty: difficulty,
		IsActive:   true,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Enqueue(&models.AuditLog{
		UserID:     &actorID,
		Action:     "phrase_created",
		EntityType: "phrase",
		EntityID:   &p.ID,
		Success:    true,
		Metadata:   map[string]string{"difficulty": difficulty, "char_count": strconv.Itoa(n)},
	})
	return p, nil
}

// Deactivate retires a phrase from selection. Existing challenges keep their
// snapshot of the text.
func (s *PhraseService) Deactivate(ctx context.Context, actorID, phraseID string) error {
	if err := s.repomanager.Phrases(s.db).Deactivate(ctx, phraseID); err != nil {
		return err
	}
	s.audit.Enqueue(&models.AuditLog{
		UserID:     &actorID,
		Action:     "phrase_deactivated",
		EntityType: "phrase",
		EntityID:   &phraseID,
		Success:    true,
	})
	return nil
}

// Stats returns how the phrase performed across decided attempts.
func (s *PhraseService) Stats(ctx context.Context, phraseID string) (*models.Phrase, *phrases.UsageStats, error) {
	repo := s.repomanager.Phrases(s.db)
	p, err := repo.GetByID(ctx, phraseID)
	if err != nil {
		return nil, nil, err
	}
	stats, err := repo.Stats(ctx, phraseID)
	if err != nil {
		return nil, nil, err
	}
	return p, stats, nil
}
