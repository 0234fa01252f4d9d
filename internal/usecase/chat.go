package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"

	"agent-console/internal/domain"
)

const defaultMaxQuestion = 2000

// Options tunes a ChatService. Zero values select the defaults.
type Options struct {
	Mode           CompletionMode
	MaxQuestionLen int
	Recorder       Recorder
	Logger         *slog.Logger
}

// ChatService runs conversation turns against the hosted agent and folds the
// streamed response into a session's transcript.
type ChatService struct {
	invoker        AgentInvoker
	feedback       FeedbackSubmitter
	mode           CompletionMode
	maxQuestionLen int
	rec            Recorder
	log            *slog.Logger
	now            func() time.Time
}

// TurnResult describes a finished turn. An invocation failure is reported
// here with Outcome set to OutcomeError rather than as an error return.
type TurnResult struct {
	Outcome     domain.TurnOutcome
	Err         error
	UserMessage domain.Message
	// Messages are the assistant messages created during the turn.
	Messages   []domain.Message
	Chunks     int
	Rationales int
}

func NewChatService(inv AgentInvoker, fb FeedbackSubmitter, opts Options) (*ChatService, error) {
	if inv == nil {
		return nil, errors.New("usecase: agent invoker must not be nil")
	}
	if fb == nil {
		return nil, errors.New("usecase: feedback submitter must not be nil")
	}
	mode := opts.Mode
	if mode == "" {
		mode = CompletionProgressive
	}
	if _, ok := ParseCompletionMode(string(mode)); !ok {
		return nil, errors.New("usecase: unknown completion mode " + string(mode))
	}
	maxQuestionLen := opts.MaxQuestionLen
	if maxQuestionLen <= 0 {
		maxQuestionLen = defaultMaxQuestion
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		invoker:        inv,
		feedback:       fb,
		mode:           mode,
		maxQuestionLen: maxQuestionLen,
		rec:            rec,
		log:            log,
		now:            time.Now,
	}, nil
}

// Send runs one turn: it resolves credentials, records the user message,
// invokes the agent and consumes its response in arrival order. Only one turn
// may be in flight per session.
func (c *ChatService) Send(ctx context.Context, sess *Session, creds aws.CredentialsProvider, text string) (TurnResult, error) {
	if sess == nil {
		return TurnResult{}, newError(ErrorInvalidInput, "missing_session", nil)
	}
	question := strings.TrimSpace(text)
	if question == "" {
		return TurnResult{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if utf8.RuneCountInString(question) > c.maxQuestionLen {
		return TurnResult{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}
	if !sess.beginTurn() {
		return TurnResult{}, newError(ErrorSessionBusy, "turn_in_flight", nil)
	}

	token := sess.Token()
	persona := sess.Persona()
	log := c.log.With("session", token, "persona", persona, "mode", c.mode)

	if err := authenticate(ctx, creds); err != nil {
		uerr := newError(ErrorAuthentication, "credentials_unavailable", err)
		sess.endTurn(domain.OutcomeError, uerr)
		log.Warn("turn rejected: authentication failed", "err", err)
		return TurnResult{}, uerr
	}

	started := c.now()
	c.rec.TurnStarted()
	userMsg := sess.store.Append(domain.Message{
		Role:    domain.RoleUser,
		Kind:    domain.KindUser,
		Content: question,
	})
	log.Info("turn started", "message_id", userMsg.ID)

	t := newTurn(sess, c.mode)
	runErr := c.consume(ctx, creds, t, domain.AgentRequest{
		InputText: question,
		SessionID: token,
		Persona:   PersonaInstruction(persona),
	})

	res := TurnResult{
		Outcome:     domain.OutcomeComplete,
		UserMessage: userMsg,
		Chunks:      t.chunks,
		Rationales:  t.fragments,
	}
	if runErr != nil {
		t.fail()
		res.Outcome = domain.OutcomeError
		res.Err = runErr
		log.Error("turn failed", "err", runErr, "chunks", t.chunks, "rationales", t.fragments)
	} else {
		t.finish()
		log.Info("turn completed", "chunks", t.chunks, "bytes", t.chunkBytes, "rationales", t.fragments)
	}
	res.Messages = t.messages()

	sess.endTurn(res.Outcome, res.Err)
	c.rec.TurnFinished(res.Outcome, c.now().Sub(started))
	return res, nil
}

func (c *ChatService) consume(ctx context.Context, creds aws.CredentialsProvider, t *turn, req domain.AgentRequest) error {
	stream, err := c.invoker.Invoke(ctx, creds, req)
	if err != nil {
		return newError(ErrorInvocation, "agent_invoke_error", err)
	}
	defer func() { _ = stream.Close() }()

	for ev := range stream.Events() {
		switch ev.Kind {
		case domain.AgentEventChunk:
			c.rec.ChunkReceived(len(ev.Bytes))
			t.chunk(ev.Bytes)
		case domain.AgentEventRationale:
			c.rec.RationaleReceived()
			t.rationale(ev.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return newError(ErrorInvocation, "agent_stream_error", err)
	}
	return nil
}

// SubmitFeedback rates an assistant message. The rating is stored on the
// message only after the submission succeeds.
func (c *ChatService) SubmitFeedback(ctx context.Context, sess *Session, messageID string, fb domain.Feedback) (domain.Message, error) {
	if sess == nil {
		return domain.Message{}, newError(ErrorInvalidInput, "missing_session", nil)
	}
	if !fb.Valid() {
		return domain.Message{}, newError(ErrorInvalidInput, "invalid_feedback", nil)
	}
	msg, ok := sess.store.Get(strings.TrimSpace(messageID))
	if !ok || !msg.IsAssistant() {
		return domain.Message{}, newError(ErrorInvalidInput, "unknown_message", nil)
	}

	err := c.feedback.SubmitFeedback(ctx, domain.FeedbackRecord{
		SessionToken: sess.Token(),
		MessageID:    msg.ID,
		Feedback:     fb,
		Kind:         msg.Kind,
		Content:      msg.Content,
		SubmittedAt:  c.now().UTC(),
	})
	c.rec.FeedbackSubmitted(fb, err == nil)
	if err != nil {
		c.log.Error("feedback submission failed", "message_id", msg.ID, "err", err)
		return domain.Message{}, newError(ErrorFeedback, "feedback_submit_error", err)
	}

	updated, ok := sess.store.Update(msg.ID, func(m *domain.Message) { m.Feedback = fb })
	if !ok {
		return domain.Message{}, newError(ErrorInvalidInput, "unknown_message", nil)
	}
	return updated, nil
}

func authenticate(ctx context.Context, creds aws.CredentialsProvider) error {
	if creds == nil {
		return errors.New("no credentials provider")
	}
	_, err := creds.Retrieve(ctx)
	return err
}
