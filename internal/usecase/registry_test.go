package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(now *time.Time) *Registry {
	r := NewRegistry(SessionOptions{}, time.Minute)
	r.now = func() time.Time { return *now }
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("tab-%d", n)
	}
	return r
}

func TestRegistry_GetOrCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRegistry(&now)

	id, sess := r.GetOrCreate("")
	require.Equal(t, "tab-1", id)
	require.NotNil(t, sess)

	again, same := r.GetOrCreate(" tab-1 ")
	require.Equal(t, "tab-1", again)
	require.Same(t, sess, same)

	id, other := r.GetOrCreate("client-chosen")
	require.Equal(t, "client-chosen", id)
	require.NotSame(t, sess, other)
	require.Equal(t, 2, r.Len())
}

func TestRegistry_PrunesIdleSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRegistry(&now)

	_, busy := r.GetOrCreate("busy")
	r.GetOrCreate("idle")
	require.True(t, busy.beginTurn())

	now = now.Add(2 * time.Minute)
	r.GetOrCreate("fresh")

	require.Equal(t, 2, r.Len())
	_, ok := r.sessions["idle"]
	require.False(t, ok)
	_, ok = r.sessions["busy"]
	require.True(t, ok)
}
