package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/gin-gonic/gin"
)

type ruleResponse struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Value       float64   `json:"value"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) ruleToResponse(r *models.QualityRule) ruleResponse {
	resp := ruleResponse{
		Name:        r.RuleName,
		Type:        r.RuleType,
		Value:       r.Value,
		Description: r.Description,
		IsActive:    r.IsActive,
		UpdatedAt:   r.UpdatedAt,
	}
	if min, max, err := s.rules.Bounds(r.RuleName); err == nil {
		resp.Min, resp.Max = min, max
	}
	return resp
}

func (s *Server) handleListRules(c *gin.Context) {
	rules, err := s.rules.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := make([]ruleResponse, 0, len(rules))
	for _, r := range rules {
		resp = append(resp, s.ruleToResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"rules": resp})
}

func (s *Server) handleGetRule(c *gin.Context) {
	r, err := s.rules.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ruleToResponse(r))
}

type updateRuleRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

func (s *Server) handleUpdateRule(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	name := c.Param("name")
	if err := s.rules.SetValue(c.Request.Context(), actorID, name, *req.Value); err != nil {
		abortWithError(c, err)
		return
	}

	r, err := s.rules.Get(c.Request.Context(), name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ruleToResponse(r))
}

type toggleRuleRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (s *Server) handleToggleRule(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req toggleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	if err := s.rules.Toggle(c.Request.Context(), actorID, c.Param("name"), *req.Active); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "active": *req.Active})
}

type createPhraseRequest struct {
	Text       string `json:"text" binding:"required"`
	Difficulty string `json:"difficulty" binding:"required"`
}

func (s *Server) handleCreatePhrase(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createPhraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	p, err := s.phrases.Create(c.Request.Context(), actorID, req.Text, req.Difficulty)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         p.ID,
		"text":       p.Text,
		"difficulty": p.Difficulty,
		"char_count": p.CharCount,
		"is_active":  p.IsActive,
	})
}

func (s *Server) handleDeactivatePhrase(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := s.phrases.Deactivate(c.Request.Context(), actorID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "is_active": false})
}

func (s *Server) handlePhraseStats(c *gin.Context) {
	p, stats, err := s.phrases.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           p.ID,
		"text":         p.Text,
		"difficulty":   p.Difficulty,
		"is_active":    p.IsActive,
		"times_used":   stats.TimesUsed,
		"decided":      stats.Decided,
		"accepted":     stats.Accepted,
		"success_rate": stats.SuccessRate(),
	})
}

func (s *Server) handleGetAttempt(c *gin.Context) {
	attempt, scores, err := s.attempts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := gin.H{
		"id":         attempt.ID,
		"user_id":    attempt.UserID,
		"decided":    attempt.Decided,
		"created_at": attempt.CreatedAt,
	}
	if attempt.ChallengeID != nil {
		resp["challenge_id"] = *attempt.ChallengeID
	}
	if attempt.Accept != nil {
		resp["accept"] = *attempt.Accept
	}
	if attempt.Reason != nil {
		resp["reason"] = *attempt.Reason
	}
	if attempt.DecidedAt != nil {
		resp["decided_at"] = *attempt.DecidedAt
	}
	if scores != nil {
		resp["scores"] = gin.H{
			"similarity":   scores.Similarity,
			"spoof_prob":   scores.SpoofProb,
			"phrase_match": scores.PhraseMatch,
			"transcript":   scores.Transcript,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	var (
		entries []*models.AuditLog
		err     error
	)
	if entityID := c.Query("entity_id"); entityID != "" {
		entries, err = s.audit.ByEntity(c.Request.Context(), entityID, limit)
	} else {
		entries, err = s.audit.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		entry := gin.H{
			"id":          e.ID,
			"action":      e.Action,
			"entity_type": e.EntityType,
			"success":     e.Success,
			"metadata":    e.Metadata,
			"created_at":  e.CreatedAt,
		}
		if e.UserID != nil {
			entry["user_id"] = *e.UserID
		}
		if e.EntityID != nil {
			entry["entity_id"] = *e.EntityID
		}
		resp = append(resp, entry)
	}
	c.JSON(http.StatusOK, gin.H{"entries": resp})
}
