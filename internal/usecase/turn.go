package usecase

import (
	"agent-console/internal/domain"
	"agent-console/internal/transcript"
)

// ErrorMessageText is the assistant message appended when a turn fails.
const ErrorMessageText = "Sorry, I encountered an error processing your request."

const rationaleSeparator = "\n\n"

// CompletionMode selects how completion chunks are laid out in the
// transcript. Both keep the full, ordered completion text.
type CompletionMode string

const (
	// CompletionProgressive grows a single completion message per turn.
	CompletionProgressive CompletionMode = "progressive"
	// CompletionPerChunk appends one completion message per decoded chunk.
	CompletionPerChunk CompletionMode = "per-chunk"
)

func ParseCompletionMode(s string) (CompletionMode, bool) {
	switch CompletionMode(s) {
	case CompletionProgressive, CompletionPerChunk:
		return CompletionMode(s), true
	}
	return "", false
}

// turn folds one agent response into the transcript. It is driven by a
// single goroutine, in event order.
type turn struct {
	sess  *Session
	store *transcript.Store
	mode  CompletionMode
	dec   utf8Decoder

	rationaleID  string
	completionID string
	created      []string

	chunks     int
	fragments  int
	chunkBytes int
}

func newTurn(sess *Session, mode CompletionMode) *turn {
	sess.setRationaleOpen(false)
	return &turn{sess: sess, store: sess.store, mode: mode}
}

func (t *turn) rationale(text string) {
	if text == "" {
		return
	}
	t.fragments++
	openID := t.rationaleID
	seed := domain.Message{Role: domain.RoleAssistant, Kind: domain.KindRationale}
	msg := t.store.UpdateLast(
		func(m domain.Message) bool { return openID != "" && m.ID == openID },
		seed,
		func(m *domain.Message) {
			if m.Content == "" {
				m.Content = text
				return
			}
			m.Content += rationaleSeparator + text
		},
	)
	if openID == "" {
		t.rationaleID = msg.ID
		t.created = append(t.created, msg.ID)
		if t.chunks == 0 {
			t.sess.setRationaleOpen(true)
		}
	}
}

func (t *turn) chunk(b []byte) {
	t.chunks++
	t.chunkBytes += len(b)
	t.sess.setRationaleOpen(false)
	t.appendCompletion(t.dec.Decode(b))
}

func (t *turn) finish() {
	t.appendCompletion(t.dec.Flush())
	t.sess.setRationaleOpen(false)
}

// fail drops any half-received rune and records the single error message.
// Content already in the transcript stays.
func (t *turn) fail() {
	t.dec.Discard()
	t.sess.setRationaleOpen(false)
	msg := t.store.Append(domain.Message{
		Role:    domain.RoleAssistant,
		Kind:    domain.KindCompletion,
		Content: ErrorMessageText,
		Error:   true,
	})
	t.created = append(t.created, msg.ID)
}

func (t *turn) appendCompletion(text string) {
	if text == "" {
		return
	}
	if t.mode == CompletionProgressive && t.completionID != "" {
		t.store.Update(t.completionID, func(m *domain.Message) { m.Content += text })
		return
	}
	msg := t.store.Append(domain.Message{
		Role:    domain.RoleAssistant,
		Kind:    domain.KindCompletion,
		Content: text,
	})
	t.completionID = msg.ID
	t.created = append(t.created, msg.ID)
}

// messages returns the final state of everything this turn created.
func (t *turn) messages() []domain.Message {
	out := make([]domain.Message, 0, len(t.created))
	for _, id := range t.created {
		if m, ok := t.store.Get(id); ok {
			out = append(out, m)
		}
	}
	return out
}
