package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"agent-console/internal/domain"
	"agent-console/internal/usecase"
)

const helpText = `Commands
  /persona <name>  switch persona (CISO, Auditor, Cybersecurity analyst)
  /rationale       show or hide the agent's reasoning
  /up, /down       rate the latest answer
  /save            write the transcript to a file
  /reset           start a new conversation
  /help            toggle this help
  /quit            exit
Keys: enter send · tab suggested prompt · pgup/pgdown scroll · ctrl+c quit`

type uiTheme struct {
	root      lipgloss.Style
	header    lipgloss.Style
	title     lipgloss.Style
	ready     lipgloss.Style
	working   lipgloss.Style
	muted     lipgloss.Style
	panel     lipgloss.Style
	user      lipgloss.Style
	agent     lipgloss.Style
	rationale lipgloss.Style
	errorText lipgloss.Style
	notice    lipgloss.Style
	input     lipgloss.Style
}

func newTheme() uiTheme {
	accent := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	amber := lipgloss.Color("#ffd166")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		root: lipgloss.NewStyle().Padding(0, 1),
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		title:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		ready:     lipgloss.NewStyle().Foreground(mint).Bold(true),
		working:   lipgloss.NewStyle().Foreground(amber).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(muted),
		panel:     lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(muted),
		user:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		agent:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		rationale: lipgloss.NewStyle().Foreground(muted).Italic(true),
		errorText: lipgloss.NewStyle().Foreground(pink).Bold(true),
		notice:    lipgloss.NewStyle().Foreground(muted),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "starting..."
	}
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.theme.panel.Render(m.transcript.View()),
		m.renderInput(),
		m.renderFooter(),
	))
}

func (m Model) renderHeader() string {
	status := m.theme.ready.Render("ready")
	if m.working() {
		status = m.theme.working.Render(m.spinner.View() + " working")
	}
	token := m.sess.Token()
	if len(token) > 8 {
		token = token[:8]
	}
	rationale := "hidden"
	if m.sess.DisplayRationale() {
		rationale = "shown"
	}
	line := fmt.Sprintf("%s  %s  %s",
		m.theme.title.Render("Security Agent"),
		status,
		m.theme.muted.Render(fmt.Sprintf("persona %s · rationale %s · session %s", m.sess.Persona(), rationale, token)),
	)
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(line)
}

func (m Model) renderInput() string {
	body := m.input.View()
	if m.working() {
		body = m.theme.muted.Render("waiting for the agent...")
	}
	return m.theme.input.Width(maxInt(20, m.width-4)).Render(body)
}

func (m Model) renderFooter() string {
	if m.notice == "" {
		return m.theme.muted.Render("/help for commands")
	}
	if m.noticeErr {
		return m.theme.errorText.Render(m.notice)
	}
	return m.theme.notice.Render(m.notice)
}

func (m *Model) resize() {
	contentWidth := maxInt(20, m.width-4)
	// header (3) + input (3) + footer (1) + panel border (2)
	m.transcript.Width = contentWidth
	m.transcript.Height = maxInt(3, m.height-9)

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(maxInt(20, contentWidth-4))}
	if m.style != "" {
		opts = append(opts, glamour.WithStandardStyle(m.style))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		m.log.Warn("markdown renderer unavailable", "err", err)
		renderer = nil
	}
	m.renderer = renderer
	m.rendered = map[string]renderedEntry{}
}

func (m *Model) renderTranscript() {
	if m.width == 0 {
		return
	}
	atBottom := m.transcript.AtBottom()
	m.transcript.SetContent(m.transcriptContent())
	if atBottom || m.working() {
		m.transcript.GotoBottom()
	}
}

func (m *Model) transcriptContent() string {
	var b strings.Builder
	if m.showHelp {
		b.WriteString(m.theme.muted.Render(helpText))
		b.WriteString("\n\n")
	}

	msgs := m.sess.Transcript().Messages()
	if len(msgs) == 0 {
		b.WriteString(m.emptyState())
		return b.String()
	}

	showRationale := m.sess.DisplayRationale()
	for _, msg := range msgs {
		if msg.Kind == domain.KindRationale && !showRationale {
			continue
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) emptyState() string {
	var b strings.Builder
	b.WriteString(m.theme.title.Render("Ask me about your security posture."))
	b.WriteString("\n")
	b.WriteString(m.theme.muted.Render("Suggested for " + string(m.sess.Persona()) + " (press tab):"))
	for _, p := range usecase.SuggestedPrompts(m.sess.Persona()) {
		b.WriteString("\n  • " + p)
	}
	return b.String()
}

func (m *Model) renderMessage(msg domain.Message) string {
	switch {
	case msg.IsUserInput():
		return m.theme.user.Render("you") + "\n" + msg.Content
	case msg.Kind == domain.KindRationale:
		return m.theme.rationale.Render("reasoning\n" + msg.Content)
	case msg.Error:
		return m.theme.agent.Render("agent") + "\n" + m.theme.errorText.Render(msg.Content)
	default:
		return m.theme.agent.Render("agent") + feedbackMarker(msg.Feedback) + "\n" + m.markdown(msg)
	}
}

// markdown renders assistant content, reusing the previous rendering while
// the content is unchanged.
func (m *Model) markdown(msg domain.Message) string {
	if m.renderer == nil {
		return msg.Content
	}
	if e, ok := m.rendered[msg.ID]; ok && e.content == msg.Content && e.width == m.transcript.Width {
		return e.out
	}
	out, err := m.renderer.Render(msg.Content)
	if err != nil {
		return msg.Content
	}
	out = strings.Trim(out, "\n")
	m.rendered[msg.ID] = renderedEntry{content: msg.Content, width: m.transcript.Width, out: out}
	return out
}

func feedbackMarker(fb domain.Feedback) string {
	switch fb {
	case domain.FeedbackPositive:
		return "  ▲ helpful"
	case domain.FeedbackNegative:
		return "  ▼ not helpful"
	default:
		return ""
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
