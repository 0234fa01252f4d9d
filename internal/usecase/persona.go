package usecase

import (
	"strings"

	"agent-console/internal/domain"
)

const DefaultPersona = domain.PersonaCISO

var personaInstructions = map[domain.Persona]string{
	domain.PersonaCISO:    "You are speaking with the CISO. Focus on high-level security strategy, risk management, and executive-level insights.",
	domain.PersonaAuditor: "You are speaking with the Auditor. Emphasize compliance, regulatory requirements, and evidence-based reporting.",
	domain.PersonaAnalyst: "You are speaking with the Cybersecurity Analyst. Provide technical details, threat intelligence, and actionable security recommendations.",
}

var suggestedPrompts = map[domain.Persona][]string{
	domain.PersonaCISO: {
		"What are our current security risks?",
		"Show me our compliance status",
		"Generate a security briefing",
		"Review our incident response plan",
	},
	domain.PersonaAuditor: {
		"Show compliance documentation",
		"Review security controls",
		"Check audit logs",
		"Generate audit report",
	},
	domain.PersonaAnalyst: {
		"Analyze recent security alerts",
		"Check threat intelligence",
		"Review system logs",
		"Investigate potential breach",
	},
}

// Personas lists the selectable personas in display order.
func Personas() []domain.Persona {
	return []domain.Persona{domain.PersonaCISO, domain.PersonaAuditor, domain.PersonaAnalyst}
}

// ParsePersona matches a persona by name, ignoring case and surrounding space.
func ParsePersona(s string) (domain.Persona, bool) {
	s = strings.TrimSpace(s)
	for _, p := range Personas() {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

// PersonaInstruction returns the instruction sent to the agent for p.
func PersonaInstruction(p domain.Persona) string {
	return personaInstructions[p]
}

// SuggestedPrompts returns starter questions for p.
func SuggestedPrompts(p domain.Persona) []string {
	out := make([]string, len(suggestedPrompts[p]))
	copy(out, suggestedPrompts[p])
	return out
}
