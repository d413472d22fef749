// Package api is the client-side HTTP binding for the verification server.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Challenge is one issued phrase challenge.
type Challenge struct {
	ID           string    `json:"id"`
	PhraseNumber int       `json:"phrase_number"`
	Phrase       string    `json:"phrase"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// StartResult is an opened verification session.
type StartResult struct {
	VerificationID string      `json:"verification_id"`
	Difficulty     string      `json:"difficulty"`
	PhraseCount    int         `json:"phrase_count"`
	ExpiresAt      time.Time   `json:"expires_at"`
	Challenges     []Challenge `json:"challenges"`
}

// PhraseOutcome is the server's response to one phrase submission.
type PhraseOutcome struct {
	PhraseNumber int     `json:"phrase_number"`
	FinalScore   float64 `json:"final_score"`
	IsComplete   bool    `json:"is_complete"`
	AverageScore float64 `json:"average_score"`
	IsVerified   bool    `json:"is_verified"`
	Reason       string  `json:"reason"`
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Enroll uploads a reference embedding for the authenticated user.
func (c *Client) Enroll(ctx context.Context, embedding []byte, modelVersion string) error {
	req := map[string]string{
		"embedding":     base64.StdEncoding.EncodeToString(embedding),
		"model_version": modelVersion,
	}
	return c.post(ctx, "/api/v1/voiceprint", req, nil)
}

// StartVerification opens a session of phraseCount challenges.
func (c *Client) StartVerification(ctx context.Context, difficulty string, phraseCount int) (*StartResult, error) {
	req := map[string]any{
		"difficulty":   difficulty,
		"phrase_count": phraseCount,
	}
	result := &StartResult{}
	if err := c.post(ctx, "/api/v1/verification/start", req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitPhrase sends one audio response for the given challenge.
func (c *Client) SubmitPhrase(ctx context.Context, verificationID, challengeID string, phraseNumber int, audio []byte) (*PhraseOutcome, error) {
	req := map[string]any{
		"verification_id": verificationID,
		"challenge_id":    challengeID,
		"phrase_number":   phraseNumber,
		"audio":           base64.StdEncoding.EncodeToString(audio),
	}
	outcome := &PhraseOutcome{}
	if err := c.post(ctx, "/api/v1/verification/phrase", req, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}
