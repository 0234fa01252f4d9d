package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agent-console/internal/domain"
)

func TestExport_ExactFormat(t *testing.T) {
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}
	require.Equal(t, "user: hi\nai: hello", Export(msgs))
}

func TestExport_Empty(t *testing.T) {
	require.Equal(t, "", Export(nil))
}

func TestExport_KeepsMultilineContent(t *testing.T) {
	msgs := []domain.Message{{Role: domain.RoleAssistant, Kind: domain.KindRationale, Content: "a\n\nb"}}
	require.Equal(t, "ai: a\n\nb", Export(msgs))
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 2, 25, 10, 4, 5, 123_000_000, time.FixedZone("X", 3600))
	require.Equal(t, "chat-transcript-2026-02-25T09:04:05.123Z.txt", FileName(ts))
}
