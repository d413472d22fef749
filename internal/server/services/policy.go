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

// Retention can be shortened to a day or stretched to a year, nothing beyond.
const (
	retentionDaysMin = 1
	retentionDaysMax = 365
)

// PolicyService manages each user's audio retention choice. The purger reads
// the stored policies directly; this service is the write path.
type PolicyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditTrail
}

func NewPolicyService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditTrail) *PolicyService {
	return &PolicyService{db: db, repomanager: m, audit: audit}
}

// Get returns the user's policy, or the server defaults when none was set.
func (s *PolicyService) Get(ctx context.Context, userID string) (*models.UserPolicy, error) {
	p, err := s.repomanager.Policies(s.db).GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &models.UserPolicy{UserID: userID, KeepAudio: true}, nil
		}
		return nil, err
	}
	return p, nil
}

// Set stores the user's retention choice. A nil retentionDays keeps the
// server-wide default window.
func (s *PolicyService) Set(ctx context.Context, userID string, keepAudio bool, retentionDays *int) (*models.UserPolicy, error) {
	if retentionDays != nil && (*retentionDays < retentionDaysMin || *retentionDays > retentionDaysMax) {
		return nil, fmt.Errorf("%w: retention days must be between %d and %d",
			common.ErrorValidation, retentionDaysMin, retentionDaysMax)
	}

	p := &models.UserPolicy{
		UserID:        userID,
		KeepAudio:     keepAudio,
		RetentionDays: retentionDays,
	}
	if err := s.repomanager.Policies(s.db).Upsert(ctx, p); err != nil {
		return nil, err
	}

	metadata := map[string]string{"keep_audio": strconv.FormatBool(keepAudio)}
	if retentionDays != nil {
		metadata["retention_days"] = strconv.Itoa(*retentionDays)
	}
	s.audit.Enqueue(&models.AuditLog{
		UserID:     &userID,
		Action:     "policy_updated",
		EntityType: "user_policy",
		EntityID:   &userID,
		Success:    true,
		Metadata:   metadata,
	})
	return p, nil
}
