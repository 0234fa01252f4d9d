// Package tui is the terminal front end: a bubbletea program that renders one
// session's transcript while turns stream in.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"agent-console/internal/domain"
	"agent-console/internal/usecase"
)

// Chatter runs turns and records feedback. *usecase.ChatService satisfies it.
type Chatter interface {
	Send(ctx context.Context, sess *usecase.Session, creds aws.CredentialsProvider, text string) (usecase.TurnResult, error)
	SubmitFeedback(ctx context.Context, sess *usecase.Session, messageID string, fb domain.Feedback) (domain.Message, error)
}

type Config struct {
	Context     context.Context
	Session     *usecase.Session
	Chat        Chatter
	Credentials aws.CredentialsProvider
	Logger      *slog.Logger
	// SaveDir is where /save writes transcripts. Empty means the working directory.
	SaveDir string
	// GlamourStyle selects a standard glamour style; empty picks one from the terminal.
	GlamourStyle string
	Now          func() time.Time
}

type (
	storeChangedMsg struct{}
	turnDoneMsg     struct {
		res usecase.TurnResult
		err error
	}
	feedbackDoneMsg struct {
		msg domain.Message
		err error
	}
	savedMsg struct {
		path string
		err  error
	}
)

type renderedEntry struct {
	content string
	width   int
	out     string
}

type Model struct {
	ctx     context.Context
	sess    *usecase.Session
	chat    Chatter
	creds   aws.CredentialsProvider
	log     *slog.Logger
	saveDir string
	style   string
	now     func() time.Time

	changes     chan tea.Msg
	unsubscribe func()

	input      textinput.Model
	transcript viewport.Model
	spinner    spinner.Model
	theme      uiTheme
	renderer   *glamour.TermRenderer
	rendered   map[string]renderedEntry

	width      int
	height     int
	pending    bool
	notice     string
	noticeErr  bool
	showHelp   bool
	promptNext int
}

func New(cfg Config) (Model, error) {
	if cfg.Session == nil {
		return Model{}, errors.New("tui: session must not be nil")
	}
	if cfg.Chat == nil {
		return Model{}, errors.New("tui: chat must not be nil")
	}
	if cfg.Credentials == nil {
		return Model{}, errors.New("tui: credentials must not be nil")
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Ask the agent, or /help for commands"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true

	// Listener runs on whichever goroutine mutates the store, so it must not
	// block: one pending notification is enough to trigger a re-render.
	changes := make(chan tea.Msg, 1)
	unsubscribe := cfg.Session.Transcript().Subscribe(func([]domain.Message) {
		select {
		case changes <- storeChangedMsg{}:
		default:
		}
	})

	return Model{
		ctx:         ctx,
		sess:        cfg.Session,
		chat:        cfg.Chat,
		creds:       cfg.Credentials,
		log:         log,
		saveDir:     cfg.SaveDir,
		style:       cfg.GlamourStyle,
		now:         now,
		changes:     changes,
		unsubscribe: unsubscribe,
		input:       input,
		transcript:  transcript,
		spinner:     sp,
		theme:       newTheme(),
		rendered:    map[string]renderedEntry{},
	}, nil
}

// Close detaches the model from the session's transcript.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitStoreMsg(m.changes))
}

func waitStoreMsg(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) working() bool {
	return m.pending || m.sess.Working()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTranscript()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case storeChangedMsg:
		m.renderTranscript()
		cmds = append(cmds, waitStoreMsg(m.changes))
	case turnDoneMsg:
		m.pending = false
		m.input.Focus()
		m.turnNotice(msg)
		m.renderTranscript()
	case feedbackDoneMsg:
		if msg.err != nil {
			m.setError("feedback not saved: " + errorLabel(msg.err))
		} else {
			m.setNotice("feedback recorded")
		}
		m.renderTranscript()
	case savedMsg:
		if msg.err != nil {
			m.setError("save failed: " + msg.err.Error())
		} else {
			m.setNotice("transcript saved to " + msg.path)
		}
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		case "tab":
			m.fillSuggestedPrompt()
			return m, nil
		case "enter":
			if m.working() {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			return m.submit(text)
		}
		if m.working() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}
	m.pending = true
	m.showHelp = false
	m.input.Blur()
	m.setNotice("")
	return m, m.sendCmd(text)
}

func (m Model) sendCmd(text string) tea.Cmd {
	ctx, chat, sess, creds := m.ctx, m.chat, m.sess, m.creds
	return func() tea.Msg {
		res, err := chat.Send(ctx, sess, creds, text)
		return turnDoneMsg{res: res, err: err}
	}
}

func (m Model) command(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	name, arg := fields[0], strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch name {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/help":
		m.showHelp = !m.showHelp
		m.renderTranscript()
	case "/reset":
		m.sess.Reset()
		m.rendered = map[string]renderedEntry{}
		m.promptNext = 0
		m.setNotice("conversation reset")
		m.renderTranscript()
	case "/save":
		return m, m.saveCmd()
	case "/persona":
		if arg == "" {
			m.setNotice("personas: " + personaList())
			break
		}
		p, ok := usecase.ParsePersona(arg)
		if !ok {
			m.setError(fmt.Sprintf("unknown persona %q (choose %s)", arg, personaList()))
			break
		}
		if err := m.sess.SetPersona(p); err != nil {
			m.setError(err.Error())
			break
		}
		m.promptNext = 0
		m.setNotice("persona set to " + string(p))
		m.renderTranscript()
	case "/rationale":
		m.sess.SetDisplayRationale(!m.sess.DisplayRationale())
		if m.sess.DisplayRationale() {
			m.setNotice("showing agent rationale")
		} else {
			m.setNotice("hiding agent rationale")
		}
		m.renderTranscript()
	case "/up", "/down":
		fb := domain.FeedbackPositive
		if name == "/down" {
			fb = domain.FeedbackNegative
		}
		target, ok := lastRateable(m.sess.Transcript().Messages())
		if !ok {
			m.setError("no answer to rate yet")
			break
		}
		return m, m.feedbackCmd(target.ID, fb)
	default:
		m.setError("unknown command " + name + " (try /help)")
	}
	return m, nil
}

func (m Model) saveCmd() tea.Cmd {
	sess, dir, now := m.sess, m.saveDir, m.now
	return func() tea.Msg {
		name, body := sess.Export(now())
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{path: path}
	}
}

func (m Model) feedbackCmd(id string, fb domain.Feedback) tea.Cmd {
	ctx, chat, sess := m.ctx, m.chat, m.sess
	return func() tea.Msg {
		msg, err := chat.SubmitFeedback(ctx, sess, id, fb)
		return feedbackDoneMsg{msg: msg, err: err}
	}
}

func (m *Model) fillSuggestedPrompt() {
	if m.working() || m.sess.Transcript().Len() > 0 {
		return
	}
	prompts := usecase.SuggestedPrompts(m.sess.Persona())
	if len(prompts) == 0 {
		return
	}
	m.input.SetValue(prompts[m.promptNext%len(prompts)])
	m.input.CursorEnd()
	m.promptNext++
}

func (m *Model) turnNotice(msg turnDoneMsg) {
	switch {
	case msg.err != nil:
		m.setError(errorLabel(msg.err))
		m.log.Warn("turn rejected", "code", usecase.CodeOf(msg.err), "err", msg.err)
	case msg.res.Outcome == domain.OutcomeError:
		m.setError("the agent response failed")
	default:
		m.setNotice("")
	}
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeErr = false
}

func (m *Model) setError(s string) {
	m.notice = s
	m.noticeErr = true
}

// lastRateable returns the newest assistant answer that can take feedback.
func lastRateable(msgs []domain.Message) (domain.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() && msgs[i].Kind == domain.KindCompletion && !msgs[i].Error {
			return msgs[i], true
		}
	}
	return domain.Message{}, false
}

func errorLabel(err error) string {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return err.Error()
	}
	switch ue.Code {
	case usecase.ErrorAuthentication:
		return "could not obtain AWS credentials; check your sign-in"
	case usecase.ErrorSessionBusy:
		return "the agent is still responding"
	case usecase.ErrorFeedback:
		return "feedback service unavailable"
	case usecase.ErrorInvalidInput:
		return strings.ReplaceAll(ue.Reason, "_", " ")
	default:
		return string(ue.Code)
	}
}

func personaList() string {
	names := make([]string, 0, 3)
	for _, p := range usecase.Personas() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
