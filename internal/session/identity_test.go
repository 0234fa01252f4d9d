package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreateToken_Stable(t *testing.T) {
	id := NewIdentity()
	first := id.GetOrCreateToken()
	require.NotEmpty(t, first)
	require.Equal(t, first, id.GetOrCreateToken())
}

func TestReset_RotatesToken(t *testing.T) {
	id := NewIdentity()
	before := id.GetOrCreateToken()
	id.Reset()
	after := id.GetOrCreateToken()
	require.NotEmpty(t, after)
	require.NotEqual(t, before, after)
}

func TestReset_BeforeFirstUse(t *testing.T) {
	id := NewIdentity()
	id.Reset()
	require.NotEmpty(t, id.GetOrCreateToken())
}
