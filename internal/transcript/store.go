package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-console/internal/domain"
)

// Listener receives a snapshot of the transcript after every mutation.
type Listener func(msgs []domain.Message)

// Store is the in-memory, insertion-ordered transcript of one session.
// Messages are only ever appended; the exceptions are in-place content and
// feedback updates of assistant messages. User input is never mutated.
type Store struct {
	mu        sync.RWMutex
	msgs      []domain.Message
	listeners map[int]Listener
	nextSub   int

	newID func() string
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		listeners: make(map[int]Listener),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Append adds msg to the end of the transcript, filling in ID and CreatedAt
// when they are unset, and returns the stored message.
func (s *Store) Append(msg domain.Message) domain.Message {
	s.mu.Lock()
	msg = s.prepare(msg)
	s.msgs = append(s.msgs, msg)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return msg
}

// UpdateLast applies mutate to the most recent non-user message matching
// match. When nothing matches, mutate is applied to seed and the result is
// appended instead. ID, Role, Kind and CreatedAt survive mutation.
func (s *Store) UpdateLast(match func(domain.Message) bool, seed domain.Message, mutate func(*domain.Message)) domain.Message {
	s.mu.Lock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].IsUserInput() || !match(s.msgs[i]) {
			continue
		}
		s.msgs[i] = applyMutation(s.msgs[i], mutate)
		out := s.msgs[i]
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.notify(snap)
		return out
	}

	created := s.prepare(seed)
	created = applyMutation(created, mutate)
	s.msgs = append(s.msgs, created)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return created
}

// Update applies mutate to the message with the given id. It reports false
// when the id is unknown or names a user-input message.
func (s *Store) Update(id string, mutate func(*domain.Message)) (domain.Message, bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 || s.msgs[idx].IsUserInput() {
		s.mu.Unlock()
		return domain.Message{}, false
	}
	s.msgs[idx] = applyMutation(s.msgs[idx], mutate)
	out := s.msgs[idx]
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return out, true
}

// Get returns the message with the given id.
func (s *Store) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Message{}, false
	}
	return s.msgs[idx], true
}

// Clear empties the transcript. Clearing an empty transcript still notifies.
func (s *Store) Clear() {
	s.mu.Lock()
	s.msgs = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Messages returns a copy of the transcript in insertion order.
func (s *Store) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Subscribe registers fn to be called synchronously after each mutation,
// before the mutating call returns. The returned func removes it.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) prepare(msg domain.Message) domain.Message {
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	return msg
}

func (s *Store) indexLocked(id string) int {
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []domain.Message {
	out := make([]domain.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Store) notify(snap []domain.Message) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(snap)
	}
}

func applyMutation(msg domain.Message, mutate func(*domain.Message)) domain.Message {
	id, role, kind, created := msg.ID, msg.Role, msg.Kind, msg.CreatedAt
	if mutate != nil {
		mutate(&msg)
	}
	msg.ID, msg.Role, msg.Kind, msg.CreatedAt = id, role, kind, created
	return msg
}
