package httpapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/gin-gonic/gin"
)

// Raw audio submissions are bounded before decoding. The scorer rejects
// anything longer anyway.
const maxAudioBytes = 10 << 20

type startRequest struct {
	Difficulty  string `json:"difficulty" binding:"required"`
	PhraseCount int    `json:"phrase_count" binding:"required"`
}

type challengeResponse struct {
	ID           string    `json:"id"`
	PhraseNumber int       `json:"phrase_number"`
	Phrase       string    `json:"phrase"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type startResponse struct {
	VerificationID string              `json:"verification_id"`
	Difficulty     string              `json:"difficulty"`
	PhraseCount    int                 `json:"phrase_count"`
	ExpiresAt      time.Time           `json:"expires_at"`
	Challenges     []challengeResponse `json:"challenges"`
}

func (s *Server) handleStart(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	sess, err := s.verification.Start(c.Request.Context(), userID, req.Difficulty, req.PhraseCount)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := startResponse{
		VerificationID: sess.ID,
		Difficulty:     sess.Difficulty,
		PhraseCount:    sess.PhraseCount,
		ExpiresAt:      sess.ExpiresAt,
	}
	for i, ch := range sess.Challenges {
		resp.Challenges = append(resp.Challenges, challengeResponse{
			ID:           ch.ID,
			PhraseNumber: i + 1,
			Phrase:       ch.Phrase,
			ExpiresAt:    ch.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

type submitPhraseRequest struct {
	VerificationID string `json:"verification_id" binding:"required"`
	ChallengeID    string `json:"challenge_id" binding:"required"`
	PhraseNumber   int    `json:"phrase_number" binding:"required"`
	Audio          string `json:"audio" binding:"required"` // base64
}

type phraseResultResponse struct {
	PhraseNumber int     `json:"phrase_number"`
	FinalScore   float64 `json:"final_score"`
	Reason       string  `json:"reason"`
}

type submitPhraseResponse struct {
	PhraseNumber int                    `json:"phrase_number"`
	FinalScore   float64                `json:"final_score"`
	IsComplete   bool                   `json:"is_complete"`
	AverageScore float64                `json:"average_score,omitempty"`
	IsVerified   bool                   `json:"is_verified"`
	Reason       string                 `json:"reason"`
	Results      []phraseResultResponse `json:"results,omitempty"`
}

func (s *Server) handleSubmitPhrase(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req submitPhraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	if base64.StdEncoding.DecodedLen(len(req.Audio)) > maxAudioBytes {
		abortWithError(c, fmt.Errorf("%w: audio too large", common.ErrorValidation))
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: audio is not valid base64", common.ErrorValidation))
		return
	}

	outcome, err := s.verification.SubmitPhrase(c.Request.Context(), userID,
		req.VerificationID, req.ChallengeID, req.PhraseNumber, audio)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := submitPhraseResponse{
		PhraseNumber: outcome.PhraseNumber,
		FinalScore:   outcome.FinalScore,
		IsComplete:   outcome.IsComplete,
		AverageScore: outcome.AverageScore,
		IsVerified:   outcome.IsVerified,
		Reason:       outcome.Reason,
	}
	for _, r := range outcome.Results {
		resp.Results = append(resp.Results, phraseResultResponse{
			PhraseNumber: r.PhraseNumber,
			FinalScore:   r.FinalScore,
			Reason:       r.Reason,
		})
	}
	c.JSON(http.StatusOK, resp)
}

type enrollRequest struct {
	Embedding    string `json:"embedding" binding:"required"` // base64
	ModelVersion string `json:"model_version" binding:"required"`
}

func (s *Server) handleEnroll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	embedding, err := base64.StdEncoding.DecodeString(req.Embedding)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: embedding is not valid base64", common.ErrorValidation))
		return
	}
	if len(embedding) == 0 {
		abortWithError(c, fmt.Errorf("%w: embedding is empty", common.ErrorValidation))
		return
	}

	vp, err := s.voiceprints.Enroll(c.Request.Context(), userID, embedding, req.ModelVersion)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voiceprint_id": vp.ID,
		"model_version": vp.ModelVersion,
		"updated_at":    vp.UpdatedAt,
	})
}

type policyResponse struct {
	KeepAudio     bool `json:"keep_audio"`
	RetentionDays *int `json:"retention_days"`
}

func (s *Server) handleGetPolicy(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	p, err := s.policies.Get(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, policyResponse{KeepAudio: p.KeepAudio, RetentionDays: p.RetentionDays})
}

type setPolicyRequest struct {
	KeepAudio     *bool `json:"keep_audio" binding:"required"`
	RetentionDays *int  `json:"retention_days"`
}

func (s *Server) handleSetPolicy(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req setPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	p, err := s.policies.Set(c.Request.Context(), userID, *req.KeepAudio, req.RetentionDays)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, policyResponse{KeepAudio: p.KeepAudio, RetentionDays: p.RetentionDays})
}

func (s *Server) handleHealthz(c *gin.Context) {
	if err := s.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
