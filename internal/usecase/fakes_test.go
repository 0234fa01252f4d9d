package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"agent-console/internal/domain"
)

type fakeStream struct {
	events chan domain.AgentEvent
	err    error
	closed bool
}

func (f *fakeStream) Events() <-chan domain.AgentEvent { return f.events }
func (f *fakeStream) Err() error                       { return f.err }
func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

func newFakeStream(err error, events ...domain.AgentEvent) *fakeStream {
	ch := make(chan domain.AgentEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeStream{events: ch, err: err}
}

func chunk(s string) domain.AgentEvent {
	return domain.AgentEvent{Kind: domain.AgentEventChunk, Bytes: []byte(s)}
}

func rawChunk(b []byte) domain.AgentEvent {
	return domain.AgentEvent{Kind: domain.AgentEventChunk, Bytes: b}
}

func rationale(s string) domain.AgentEvent {
	return domain.AgentEvent{Kind: domain.AgentEventRationale, Text: s}
}

type fakeInvoker struct {
	mu        sync.Mutex
	streams   []*fakeStream
	invokeErr error
	requests  []domain.AgentRequest
	onInvoke  func()
}

func (f *fakeInvoker) Invoke(_ context.Context, _ aws.CredentialsProvider, req domain.AgentRequest) (domain.AgentStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.onInvoke != nil {
		f.onInvoke()
	}
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	if len(f.streams) == 0 {
		return newFakeStream(nil), nil
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

type fakeFeedback struct {
	err     error
	records []domain.FeedbackRecord
}

func (f *fakeFeedback) SubmitFeedback(_ context.Context, rec domain.FeedbackRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeRecorder struct {
	started   int
	finished  []domain.TurnOutcome
	chunks    int
	rationale int
	feedback  []bool
}

func (r *fakeRecorder) TurnStarted() { r.started++ }
func (r *fakeRecorder) TurnFinished(o domain.TurnOutcome, _ time.Duration) {
	r.finished = append(r.finished, o)
}
func (r *fakeRecorder) ChunkReceived(int)  { r.chunks++ }
func (r *fakeRecorder) RationaleReceived() { r.rationale++ }
func (r *fakeRecorder) FeedbackSubmitted(_ domain.Feedback, ok bool) {
	r.feedback = append(r.feedback, ok)
}

func staticCreds() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret", SessionToken: "token"}, nil
	})
}

func failingCreds() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{}, errors.New("NotAuthorizedException")
	})
}
