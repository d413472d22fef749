package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/cryptox"
	"github.com/dmitrijs2005/voicegate/internal/dbx"
	"github.com/dmitrijs2005/voicegate/internal/server/config"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
)

const voiceprintSaltSize = 16

// VoiceprintService stores the enrolled reference embedding, encrypted at
// rest with a per-record derived key.
type VoiceprintService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	audit         *AuditTrail
	storageSecret []byte
}

func NewVoiceprintService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditTrail, cfg *config.Config) *VoiceprintService {
	return &VoiceprintService{
		db:            db,
		repomanager:   m,
		audit:         audit,
		storageSecret: []byte(cfg.StorageSecret),
	}
}

// Enroll stores or replaces the user's voiceprint. Re-enrollment copies the
// superseded row to history inside the same transaction; an enrolled
// embedding is never lost.
func (s *VoiceprintService) Enroll(ctx context.Context, userID string, embedding []byte, modelVersion string) (*models.Voiceprint, error) {
	salt, err := cryptox.MakeSalt(voiceprintSaltSize)
	if err != nil {
		return nil, fmt.Errorf("error generating salt: %v", err)
	}

	key := cryptox.DeriveStorageKey(s.storageSecret, salt)
	defer common.WipeByteArray(key)

	ciphertext, nonce, err := cryptox.EncryptEmbedding(embedding, key)
	if err != nil {
		return nil, fmt.Errorf("error encrypting embedding: %v", err)
	}

	vp := &models.Voiceprint{
		UserID:       userID,
		Embedding:    ciphertext,
		Nonce:        nonce,
		Salt:         salt,
		ModelVersion: modelVersion,
	}

	reenrolled := false
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Voiceprints(tx)

		_, err := repo.GetByUserID(ctx, userID)
		switch {
		case err == nil:
			reenrolled = true
			if err := repo.CopyToHistory(ctx, userID); err != nil {
				return err
			}
			return repo.Update(ctx, vp)
		case errors.Is(err, common.ErrorNotFound):
			created, err := repo.Create(ctx, vp)
			if err != nil {
				return err
			}
			vp = created
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	action := "voiceprint_enrolled"
	if reenrolled {
		action = "voiceprint_reenrolled"
	}
	s.audit.Enqueue(&models.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityType: "voiceprint",
		EntityID:   &userID,
		Success:    true,
		Metadata:   map[string]string{"model_version": modelVersion},
	})
	return vp, nil
}

// HistoryCount reports how many superseded voiceprints the user has.
func (s *VoiceprintService) HistoryCount(ctx context.Context, userID string) (int, error) {
	return s.repomanager.Voiceprints(s.db).HistoryCount(ctx, userID)
}
