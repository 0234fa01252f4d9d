package usecase

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"agent-console/internal/domain"
)

// AgentInvoker starts one streamed agent invocation using the caller's
// short-lived credentials.
type AgentInvoker interface {
	Invoke(ctx context.Context, creds aws.CredentialsProvider, req domain.AgentRequest) (domain.AgentStream, error)
}

// FeedbackSubmitter records a rating of an assistant message.
type FeedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, rec domain.FeedbackRecord) error
}

// Recorder observes turn activity. The metrics package provides the
// Prometheus-backed implementation.
type Recorder interface {
	TurnStarted()
	TurnFinished(outcome domain.TurnOutcome, elapsed time.Duration)
	ChunkReceived(bytes int)
	RationaleReceived()
	FeedbackSubmitted(fb domain.Feedback, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) TurnStarted()                                   {}
func (nopRecorder) TurnFinished(domain.TurnOutcome, time.Duration) {}
func (nopRecorder) ChunkReceived(int)                              {}
func (nopRecorder) RationaleReceived()                             {}
func (nopRecorder) FeedbackSubmitted(domain.Feedback, bool)        {}
