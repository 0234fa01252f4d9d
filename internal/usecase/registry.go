package usecase

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSessionIdleTTL = time.Hour

// Registry keeps one Session per client tab, keyed by an id the client
// echoes back. It is only suitable for a single warm process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     SessionOptions
	idleTTL  time.Duration
	now      func() time.Time
	newID    func() string
}

func NewRegistry(opts SessionOptions, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = defaultSessionIdleTTL
	}
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts,
		idleTTL:  idleTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// GetOrCreate returns the session for id, creating it when id is empty or
// unknown. The returned id is the key the client should send next time.
func (r *Registry) GetOrCreate(id string) (string, *Session) {
	id = strings.TrimSpace(id)

	if id != "" {
		r.mu.RLock()
		sess, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			return id, sess
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		id = r.newID()
	} else if sess, ok := r.sessions[id]; ok {
		return id, sess
	}
	r.pruneLocked()
	sess := NewSession(r.opts)
	sess.now = r.now
	sess.lastActive = r.now()
	r.sessions[id] = sess
	return id, sess
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// pruneLocked drops idle sessions that have no turn in flight.
func (r *Registry) pruneLocked() {
	cutoff := r.now().Add(-r.idleTTL)
	for id, sess := range r.sessions {
		if sess.Working() {
			continue
		}
		if sess.LastActive().Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}
