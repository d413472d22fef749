package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/server/metrics"
	"github.com/sethvargo/go-retry"
)

// ScoreResult is the externally-computed evidence for one audio submission.
// The server never interprets audio itself.
type ScoreResult struct {
	Similarity    float64 `json:"similarity"`
	SpoofProb     float64 `json:"spoof_prob"`
	Transcript    string  `json:"transcript"`
	ASRConfidence float64 `json:"asr_confidence"`
	SpeakerModel  string  `json:"speaker_model"`
	SpoofModel    string  `json:"spoof_model"`
	ASRModel      string  `json:"asr_model"`
}

// Scorer scores raw audio against an enrolled voiceprint and an expected
// phrase.
type Scorer interface {
	Score(ctx context.Context, audio []byte, embedding []byte, expectedPhrase string) (*ScoreResult, error)
}

type scoreRequest struct {
	Audio          string `json:"audio"`
	Embedding      string `json:"embedding"`
	ExpectedPhrase string `json:"expected_phrase"`
}

// HTTPScorer talks to the external scoring service. A hung or failing
// backend surfaces as ErrorScorerUnavailable after a few backed-off retries,
// never as an indefinitely stuck call: every attempt runs under the
// configured per-call timeout.
type HTTPScorer struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPScorer(baseURL string, timeout time.Duration) *HTTPScorer {
	return &HTTPScorer{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPScorer) Score(ctx context.Context, audio []byte, embedding []byte, expectedPhrase string) (*ScoreResult, error) {
	body, err := json.Marshal(scoreRequest{
		Audio:          base64.StdEncoding.EncodeToString(audio),
		Embedding:      base64.StdEncoding.EncodeToString(embedding),
		ExpectedPhrase: expectedPhrase,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling score request: %v", err)
	}

	var result *ScoreResult
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))

	start := time.Now()
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.baseURL+"/v1/score", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("scorer returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("scorer returned %d", resp.StatusCode)
		}

		r := &ScoreResult{}
		if err := json.NewDecoder(resp.Body).Decode(r); err != nil {
			return fmt.Errorf("error decoding score response: %v", err)
		}
		result = r
		return nil
	})
	if err != nil {
		metrics.RecordScorerRequest("error", time.Since(start))
		return nil, fmt.Errorf("%w: %v", common.ErrorScorerUnavailable, err)
	}
	metrics.RecordScorerRequest("ok", time.Since(start))
	return result, nil
}
