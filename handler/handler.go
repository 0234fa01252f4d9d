// Package handler exposes conversation sessions over API Gateway.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"

	"agent-console/internal/domain"
	"agent-console/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSessionID     = "X-Session-Id"
	headerAuthorization = "Authorization"
)

var newUUID = uuid.NewString

// ChatUseCase runs turns and records feedback for a session.
type ChatUseCase interface {
	Send(ctx context.Context, sess *usecase.Session, creds aws.CredentialsProvider, text string) (usecase.TurnResult, error)
	SubmitFeedback(ctx context.Context, sess *usecase.Session, messageID string, fb domain.Feedback) (domain.Message, error)
}

// Sessions resolves the session a request belongs to.
type Sessions interface {
	GetOrCreate(id string) (string, *usecase.Session)
}

// CredentialResolver turns a user pool ID token into AWS credentials.
type CredentialResolver interface {
	Provider(idToken string) aws.CredentialsProvider
}

type Handler struct {
	chat     ChatUseCase
	sessions Sessions
	creds    CredentialResolver
	log      *slog.Logger
	now      func() time.Time
}

func NewHandler(chat ChatUseCase, sessions Sessions, creds CredentialResolver, log *slog.Logger) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: sessions must not be nil")
	}
	if creds == nil {
		return nil, errors.New("handler: credential resolver must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{chat: chat, sessions: sessions, creds: creds, log: log, now: time.Now}, nil
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Status    string           `json:"status"`
	SessionID string           `json:"sessionId"`
	Error     string           `json:"error,omitempty"`
	Messages  []domain.Message `json:"messages"`
}

type sessionResponse struct {
	SessionID        string           `json:"sessionId"`
	Token            string           `json:"token"`
	Status           string           `json:"status"`
	Persona          domain.Persona   `json:"persona"`
	DisplayRationale bool             `json:"displayRationale"`
	LastOutcome      string           `json:"lastOutcome,omitempty"`
	Messages         []domain.Message `json:"messages"`
}

type personaRequest struct {
	Persona string `json:"persona"`
}

type rationaleRequest struct {
	Display *bool `json:"display"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

type promptsResponse struct {
	Persona  domain.Persona   `json:"persona"`
	Personas []domain.Persona `json:"personas"`
	Prompts  []string         `json:"prompts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handle routes one API Gateway request. Errors are always rendered as a
// response; the returned error is reserved for Lambda-level failures.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := header(req.Headers, headerCorrelationID)
	if corrID == "" {
		corrID = newUUID()
	}
	sessionID, sess := h.sessions.GetOrCreate(header(req.Headers, headerSessionID))
	log := h.log.With("correlation_id", corrID, "session_id", sessionID, "method", req.HTTPMethod, "path", req.Path)

	resp := h.route(ctx, req, sessionID, sess, log)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[headerCorrelationID] = corrID
	resp.Headers[headerSessionID] = sessionID
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, sessionID string, sess *usecase.Session, log *slog.Logger) events.APIGatewayProxyResponse {
	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodPost && path == "/chat":
		return h.handleChat(ctx, req, sessionID, sess, log)
	case req.HTTPMethod == http.MethodGet && path == "/session":
		return jsonResponse(http.StatusOK, snapshot(sessionID, sess))
	case req.HTTPMethod == http.MethodPost && path == "/session/reset":
		sess.Reset()
		log.Info("session reset")
		return jsonResponse(http.StatusOK, snapshot(sessionID, sess))
	case req.HTTPMethod == http.MethodPut && path == "/session/persona":
		return h.handlePersona(req, sessionID, sess)
	case req.HTTPMethod == http.MethodPut && path == "/session/rationale":
		return h.handleRationale(req, sessionID, sess)
	case req.HTTPMethod == http.MethodGet && path == "/transcript":
		return h.handleTranscript(sess)
	case req.HTTPMethod == http.MethodGet && path == "/prompts":
		return jsonResponse(http.StatusOK, promptsResponse{
			Persona:  sess.Persona(),
			Personas: usecase.Personas(),
			Prompts:  usecase.SuggestedPrompts(sess.Persona()),
		})
	case req.HTTPMethod == http.MethodPost && strings.HasPrefix(path, "/messages/") && strings.HasSuffix(path, "/feedback"):
		return h.handleFeedback(ctx, req, path, sess, log)
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"})
	}
}

func (h *Handler) handleChat(ctx context.Context, req events.APIGatewayProxyRequest, sessionID string, sess *usecase.Session, log *slog.Logger) events.APIGatewayProxyResponse {
	var in chatRequest
	if err := decodeBody(req.Body, &in); err != nil {
		return errorResponseFor(err)
	}
	idToken := bearerToken(header(req.Headers, headerAuthorization))
	if idToken == "" {
		return errorResponseFor(&usecase.Error{Code: usecase.ErrorAuthentication, Reason: "missing_bearer_token"})
	}

	res, err := h.chat.Send(ctx, sess, h.creds.Provider(idToken), in.Message)
	if err != nil {
		log.Warn("chat request rejected", "code", usecase.CodeOf(err), "err", err)
		return errorResponseFor(err)
	}

	out := chatResponse{
		Status:    string(res.Outcome),
		SessionID: sessionID,
		Messages:  append([]domain.Message{res.UserMessage}, res.Messages...),
	}
	if res.Err != nil {
		out.Error = string(usecase.CodeOf(res.Err))
	}
	return jsonResponse(http.StatusOK, out)
}

func (h *Handler) handlePersona(req events.APIGatewayProxyRequest, sessionID string, sess *usecase.Session) events.APIGatewayProxyResponse {
	var in personaRequest
	if err := decodeBody(req.Body, &in); err != nil {
		return errorResponseFor(err)
	}
	p, ok := usecase.ParsePersona(in.Persona)
	if !ok {
		return errorResponseFor(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unknown_persona"})
	}
	if err := sess.SetPersona(p); err != nil {
		return errorResponseFor(err)
	}
	return jsonResponse(http.StatusOK, snapshot(sessionID, sess))
}

func (h *Handler) handleRationale(req events.APIGatewayProxyRequest, sessionID string, sess *usecase.Session) events.APIGatewayProxyResponse {
	var in rationaleRequest
	if err := decodeBody(req.Body, &in); err != nil {
		return errorResponseFor(err)
	}
	if in.Display == nil {
		return errorResponseFor(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_display"})
	}
	sess.SetDisplayRationale(*in.Display)
	return jsonResponse(http.StatusOK, snapshot(sessionID, sess))
}

func (h *Handler) handleTranscript(sess *usecase.Session) events.APIGatewayProxyResponse {
	name, body := sess.Export(h.now())
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":        "text/plain; charset=utf-8",
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
		},
		Body: body,
	}
}

func (h *Handler) handleFeedback(ctx context.Context, req events.APIGatewayProxyRequest, path string, sess *usecase.Session, log *slog.Logger) events.APIGatewayProxyResponse {
	messageID := req.PathParameters["id"]
	if messageID == "" {
		messageID = strings.TrimSuffix(strings.TrimPrefix(path, "/messages/"), "/feedback")
	}
	var in feedbackRequest
	if err := decodeBody(req.Body, &in); err != nil {
		return errorResponseFor(err)
	}

	msg, err := h.chat.SubmitFeedback(ctx, sess, messageID, domain.Feedback(in.Feedback))
	if err != nil {
		log.Warn("feedback rejected", "message_id", messageID, "code", usecase.CodeOf(err), "err", err)
		return errorResponseFor(err)
	}
	return jsonResponse(http.StatusOK, msg)
}

func snapshot(sessionID string, sess *usecase.Session) sessionResponse {
	outcome, _ := sess.LastOutcome()
	return sessionResponse{
		SessionID:        sessionID,
		Token:            sess.Token(),
		Status:           string(sess.Status()),
		Persona:          sess.Persona(),
		DisplayRationale: sess.DisplayRationale(),
		LastOutcome:      string(outcome),
		Messages:         sess.Transcript().Messages(),
	}
}

func decodeBody(body string, v any) error {
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
	}
	return nil
}

func errorResponseFor(err error) events.APIGatewayProxyResponse {
	code := usecase.CodeOf(err)
	return jsonResponse(statusFor(code), errorResponse{Error: string(code)})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorAuthentication:
		return http.StatusUnauthorized
	case usecase.ErrorSessionBusy:
		return http.StatusConflict
	case usecase.ErrorFeedback, usecase.ErrorInvocation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// header looks a header up case-insensitively.
func header(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func bearerToken(v string) string {
	const prefix = "bearer "
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}
