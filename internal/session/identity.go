// Package session holds the correlation token that scopes one logical
// conversation at the hosted agent.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Identity lazily mints a correlation token and keeps it until Reset.
type Identity struct {
	mu       sync.Mutex
	token    string
	newToken func() string
}

func NewIdentity() *Identity {
	return &Identity{newToken: uuid.NewString}
}

// GetOrCreateToken returns the current token, minting one if none exists.
func (i *Identity) GetOrCreateToken() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.token == "" {
		i.token = i.newToken()
	}
	return i.token
}

// Reset discards the token so the next GetOrCreateToken starts a new
// conversation at the agent.
func (i *Identity) Reset() {
	i.mu.Lock()
	i.token = ""
	i.mu.Unlock()
}
