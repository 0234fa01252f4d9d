package domain

import "time"

// Role identifies who authored a message. The assistant label is "ai" so that
// exported transcripts read "user: ..." / "ai: ...".
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "ai"
)

// Kind distinguishes user input from the assistant's rationale trace and its
// final-answer text.
type Kind string

const (
	KindUser       Kind = "user"
	KindRationale  Kind = "rationale"
	KindCompletion Kind = "completion"
)

type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// Valid reports whether f is one of the accepted feedback values.
func (f Feedback) Valid() bool {
	return f == FeedbackPositive || f == FeedbackNegative
}

// Message is a single transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Feedback  Feedback  `json:"feedback,omitempty"`
	// Error marks the assistant message appended when a turn fails.
	Error bool `json:"error,omitempty"`
}

func (m Message) IsUserInput() bool {
	return m.Kind == KindUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// FeedbackRecord is what gets submitted when a user rates an assistant message.
type FeedbackRecord struct {
	SessionToken string
	MessageID    string
	Feedback     Feedback
	Kind         Kind
	Content      string
	SubmittedAt  time.Time
}
