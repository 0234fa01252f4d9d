package transcript

import (
	"strings"
	"time"

	"agent-console/internal/domain"
)

const (
	fileNamePrefix = "chat-transcript-"
	// isoMillis matches the timestamp shape of JavaScript's toISOString.
	isoMillis = "2006-01-02T15:04:05.000Z"
)

// Export renders msgs as "{role}: {content}" lines joined by newlines.
func Export(msgs []domain.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// FileName returns the download name for a transcript saved at t.
func FileName(t time.Time) string {
	return fileNamePrefix + t.UTC().Format(isoMillis) + ".txt"
}
