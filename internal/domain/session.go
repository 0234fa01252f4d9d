package domain

// TurnStatus is the per-session turn state.
type TurnStatus string

const (
	TurnIdle             TurnStatus = "idle"
	TurnAwaitingResponse TurnStatus = "awaiting-response"
)

// TurnOutcome is how the last turn ended.
type TurnOutcome string

const (
	OutcomeNone     TurnOutcome = ""
	OutcomeComplete TurnOutcome = "complete"
	OutcomeError    TurnOutcome = "error"
)

// Persona selects the perspective the agent answers from.
type Persona string

const (
	PersonaCISO    Persona = "CISO"
	PersonaAuditor Persona = "Auditor"
	PersonaAnalyst Persona = "Cybersecurity analyst"
)
