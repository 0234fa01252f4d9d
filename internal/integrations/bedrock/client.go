// Package bedrock invokes the hosted Bedrock agent and translates its event
// stream into ordered domain events.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"agent-console/internal/domain"
)

const personaAttribute = "persona"

// agentAPI is the minimal Bedrock agent runtime interface required by Client.
// *bedrockagentruntime.Client satisfies this interface.
type agentAPI interface {
	InvokeAgent(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// eventReader is the read side of an InvokeAgent event stream.
// *bedrockagentruntime.InvokeAgentEventStream satisfies this interface.
type eventReader interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// Client invokes one agent alias.
type Client struct {
	api     agentAPI
	agentID string
	aliasID string

	openStream func(*bedrockagentruntime.InvokeAgentOutput) eventReader
}

// New creates a Client for the given agent and alias.
func New(api agentAPI, agentID, aliasID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, errors.New("bedrock: agent id must not be empty")
	}
	if strings.TrimSpace(aliasID) == "" {
		return nil, errors.New("bedrock: agent alias id must not be empty")
	}
	return &Client{
		api:     api,
		agentID: agentID,
		aliasID: aliasID,
		openStream: func(out *bedrockagentruntime.InvokeAgentOutput) eventReader {
			if s := out.GetStream(); s != nil {
				return s
			}
			return nil
		},
	}, nil
}

// Invoke starts an agent invocation signed with creds. The returned stream
// must be closed by the caller.
func (c *Client) Invoke(ctx context.Context, creds aws.CredentialsProvider, req domain.AgentRequest) (domain.AgentStream, error) {
	if creds == nil {
		return nil, errors.New("bedrock: credentials must not be nil")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, errors.New("bedrock: session id is required")
	}

	out, err := c.api.InvokeAgent(ctx, c.input(req), func(o *bedrockagentruntime.Options) {
		o.Credentials = creds
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke agent: %w", err)
	}
	if out == nil {
		return nil, errors.New("bedrock: invoke agent returned no output")
	}
	reader := c.openStream(out)
	if reader == nil {
		return nil, errors.New("bedrock: invoke agent returned no stream")
	}
	return newStream(reader), nil
}

func (c *Client) input(req domain.AgentRequest) *bedrockagentruntime.InvokeAgentInput {
	in := &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(c.agentID),
		AgentAliasId: aws.String(c.aliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.InputText),
		EnableTrace:  aws.Bool(true),
	}
	if req.Persona != "" {
		in.SessionState = &types.SessionState{
			SessionAttributes: map[string]string{personaAttribute: req.Persona},
		}
	}
	return in
}

// stream adapts an SDK event stream to domain.AgentStream. Events that carry
// neither completion bytes nor rationale text are dropped.
type stream struct {
	reader eventReader
	events chan domain.AgentEvent
	done   chan struct{}
	once   sync.Once
}

func newStream(reader eventReader) *stream {
	s := &stream{
		reader: reader,
		events: make(chan domain.AgentEvent),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *stream) pump() {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.reader.Events():
			if !ok {
				return
			}
			out, ok := translateEvent(ev)
			if !ok {
				continue
			}
			select {
			case s.events <- out:
			case <-s.done:
				return
			}
		}
	}
}

func (s *stream) Events() <-chan domain.AgentEvent {
	return s.events
}

func (s *stream) Err() error {
	if err := s.reader.Err(); err != nil {
		return fmt.Errorf("bedrock: response stream: %w", err)
	}
	return nil
}

func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.reader.Close()
	})
	if err != nil {
		return fmt.Errorf("bedrock: close stream: %w", err)
	}
	return nil
}

func translateEvent(ev types.ResponseStream) (domain.AgentEvent, bool) {
	switch v := ev.(type) {
	case *types.ResponseStreamMemberChunk:
		if len(v.Value.Bytes) == 0 {
			return domain.AgentEvent{}, false
		}
		return domain.AgentEvent{Kind: domain.AgentEventChunk, Bytes: v.Value.Bytes}, true
	case *types.ResponseStreamMemberTrace:
		text, ok := rationaleText(v.Value.Trace)
		if !ok {
			return domain.AgentEvent{}, false
		}
		return domain.AgentEvent{Kind: domain.AgentEventRationale, Text: text}, true
	default:
		return domain.AgentEvent{}, false
	}
}

func rationaleText(trace types.Trace) (string, bool) {
	orch, ok := trace.(*types.TraceMemberOrchestrationTrace)
	if !ok {
		return "", false
	}
	r, ok := orch.Value.(*types.OrchestrationTraceMemberRationale)
	if !ok || r.Value.Text == nil || *r.Value.Text == "" {
		return "", false
	}
	return *r.Value.Text, true
}
