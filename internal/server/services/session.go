package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/server/metrics"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
)

type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionAccepted SessionState = "accepted"
	SessionRejected SessionState = "rejected"
	SessionError    SessionState = "error"
)

// PhraseResult is the recorded outcome of one submitted phrase.
type PhraseResult struct {
	PhraseNumber int
	ChallengeID  string
	AttemptID    string
	FinalScore   float64
	Reason       string
}

// Session tracks one multi-phrase verification in memory. Sessions are not
// persisted: a restart aborts in-flight verifications and the reconciler
// finalizes their provisional attempts.
type Session struct {
	ID           string
	UserID       string
	Difficulty   string
	PhraseCount  int
	Challenges   []*models.Challenge
	Results      []*PhraseResult
	State        SessionState
	Reason       string
	AverageScore float64
	CreatedAt    time.Time
	ExpiresAt    time.Time

	inFlight bool
}

// Terminal reports whether the session reached a final state.
func (s *Session) Terminal() bool {
	return s.State != SessionActive
}

func (s *Session) nextPhraseNumber() int {
	return len(s.Results) + 1
}

// SessionStore is an in-memory, mutex-guarded session registry. All checks
// that enforce the single-writer-per-session rule happen under its lock.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	metrics.SessionsActive.Set(float64(len(st.sessions)))
}

// Get returns a session by id. Expired sessions are dropped and reported as
// not found.
func (st *SessionStore) Get(id string, now time.Time) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.getLocked(id, now)
}

func (st *SessionStore) getLocked(id string, now time.Time) (*Session, error) {
	s, ok := st.sessions[id]
	if !ok {
		return nil, common.ErrorSessionNotFound
	}
	if now.After(s.ExpiresAt) {
		delete(st.sessions, id)
		return nil, common.ErrorSessionNotFound
	}
	return s, nil
}

// BeginPhrase validates that the caller may submit the given phrase now and
// marks the session busy. Exactly one concurrent submission can pass; all
// others fail with ErrorPhraseDuplicate. The returned challenge is the one
// bound to this phrase number.
func (st *SessionStore) BeginPhrase(id, userID, challengeID string, phraseNumber int, now time.Time) (*models.Challenge, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.getLocked(id, now)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, common.ErrorWrongOwner
	}
	if s.Terminal() {
		return nil, common.ErrorSessionTerminal
	}
	if s.inFlight {
		return nil, common.ErrorPhraseDuplicate
	}
	if phraseNumber < 1 || phraseNumber > s.PhraseCount {
		return nil, fmt.Errorf("%w: phrase number %d of %d", common.ErrorValidation, phraseNumber, s.PhraseCount)
	}
	if phraseNumber <= len(s.Results) {
		return nil, common.ErrorPhraseDuplicate
	}
	if phraseNumber != s.nextPhraseNumber() {
		return nil, common.ErrorPhraseOutOfOrder
	}

	ch := s.Challenges[phraseNumber-1]
	if ch.ID != challengeID {
		return nil, fmt.Errorf("%w: challenge does not match phrase %d", common.ErrorValidation, phraseNumber)
	}

	s.inFlight = true
	return ch, nil
}

// EndPhrase releases the busy flag without recording a result, used when a
// submission failed recoverably.
func (st *SessionStore) EndPhrase(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		s.inFlight = false
	}
}

// RecordResult appends the phrase result and applies the state transition.
// With fn the coordinator finalizes the session (aggregate, decide) while
// still holding the lock.
func (st *SessionStore) RecordResult(id string, r *PhraseResult, fn func(s *Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return
	}
	s.inFlight = false
	if r != nil {
		s.Results = append(s.Results, r)
	}
	if fn != nil {
		fn(s)
	}
}

func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
	metrics.SessionsActive.Set(float64(len(st.sessions)))
}

// PurgeExpired drops sessions past their TTL and returns how many were
// removed. Their consumed challenges stay consumed; provisional attempts
// are finalized by the reconciler, not here.
func (st *SessionStore) PurgeExpired(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if now.After(s.ExpiresAt) {
			delete(st.sessions, id)
			n++
		}
	}
	metrics.SessionsActive.Set(float64(len(st.sessions)))
	return n
}
