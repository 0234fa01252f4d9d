package domain

// AgentEventKind tells a completion chunk apart from a rationale fragment.
type AgentEventKind int

const (
	AgentEventChunk AgentEventKind = iota + 1
	AgentEventRationale
)

// AgentEvent is one element of an agent response, in the order the agent
// produced it. Chunk events carry raw UTF-8 bytes that may split a rune.
type AgentEvent struct {
	Kind  AgentEventKind
	Bytes []byte
	Text  string
}

// AgentRequest is a single invocation of the hosted agent.
type AgentRequest struct {
	InputText string
	// SessionID is the correlation token scoping the agent-side conversation.
	SessionID string
	// Persona is the instruction passed to the agent as a session attribute.
	Persona string
}

// AgentStream is the lazily produced response of one invocation. Events is
// closed when the agent finishes or fails; Err must be checked afterwards.
type AgentStream interface {
	Events() <-chan AgentEvent
	Err() error
	Close() error
}
