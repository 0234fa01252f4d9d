package usecase

import (
	"sync"
	"time"

	"agent-console/internal/domain"
	"agent-console/internal/session"
	"agent-console/internal/transcript"
)

// Session is the per-tab conversation context: the transcript, the
// correlation token and the user's display settings. Front ends receive it
// explicitly rather than reaching for shared globals.
type Session struct {
	identity *session.Identity
	store    *transcript.Store
	now      func() time.Time

	mu               sync.RWMutex
	status           domain.TurnStatus
	lastOutcome      domain.TurnOutcome
	lastErr          error
	persona          domain.Persona
	displayRationale bool
	rationaleOpen    bool
	lastActive       time.Time
}

type SessionOptions struct {
	Persona          domain.Persona
	DisplayRationale bool
}

func NewSession(opts SessionOptions) *Session {
	persona := opts.Persona
	if _, ok := personaInstructions[persona]; !ok {
		persona = DefaultPersona
	}
	return &Session{
		identity:         session.NewIdentity(),
		store:            transcript.NewStore(),
		now:              time.Now,
		status:           domain.TurnIdle,
		persona:          persona,
		displayRationale: opts.DisplayRationale,
		lastActive:       time.Now(),
	}
}

func (s *Session) Transcript() *transcript.Store {
	return s.store
}

// Token returns the correlation token for the current conversation.
func (s *Session) Token() string {
	return s.identity.GetOrCreateToken()
}

func (s *Session) Status() domain.TurnStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Working reports whether a turn is in flight.
func (s *Session) Working() bool {
	return s.Status() == domain.TurnAwaitingResponse
}

// LastOutcome returns how the most recent turn ended and its error, if any.
func (s *Session) LastOutcome() (domain.TurnOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutcome, s.lastErr
}

func (s *Session) Persona() domain.Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona
}

// SetPersona switches the answering perspective for subsequent turns.
func (s *Session) SetPersona(p domain.Persona) error {
	if _, ok := personaInstructions[p]; !ok {
		return newError(ErrorInvalidInput, "unknown_persona", nil)
	}
	s.mu.Lock()
	s.persona = p
	s.lastActive = s.now()
	s.mu.Unlock()
	return nil
}

func (s *Session) DisplayRationale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayRationale
}

func (s *Session) SetDisplayRationale(v bool) {
	s.mu.Lock()
	s.displayRationale = v
	s.mu.Unlock()
}

// RationaleOpen reports whether the in-flight turn is still producing
// rationale ahead of any completion text.
func (s *Session) RationaleOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rationaleOpen
}

func (s *Session) setRationaleOpen(v bool) {
	s.mu.Lock()
	s.rationaleOpen = v
	s.mu.Unlock()
}

// Reset empties the transcript and rotates the correlation token so the
// agent treats the next turn as a new conversation.
func (s *Session) Reset() {
	s.store.Clear()
	s.identity.Reset()
	s.mu.Lock()
	s.lastOutcome = domain.OutcomeNone
	s.lastErr = nil
	s.lastActive = s.now()
	s.mu.Unlock()
}

// Export renders the transcript for download and names the file after t.
func (s *Session) Export(t time.Time) (name, body string) {
	return transcript.FileName(t), transcript.Export(s.store.Messages())
}

// LastActive reports when the session last started or finished a turn.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) beginTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.TurnAwaitingResponse {
		return false
	}
	s.status = domain.TurnAwaitingResponse
	s.lastActive = s.now()
	return true
}

func (s *Session) endTurn(outcome domain.TurnOutcome, err error) {
	s.mu.Lock()
	s.status = domain.TurnIdle
	s.lastOutcome = outcome
	s.lastErr = err
	s.lastActive = s.now()
	s.mu.Unlock()
}
