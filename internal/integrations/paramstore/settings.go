package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AgentSettings identify the hosted agent and the Cognito pools used to
// obtain credentials for it.
type AgentSettings struct {
	AgentID          string
	AgentAliasID     string
	UserPoolID       string
	UserPoolClientID string
	IdentityPoolID   string
}

// LoadAgentSettings reads all agent settings stored under prefix, e.g.
// "/agent-console/prod/agent_id".
func (c *Client) LoadAgentSettings(ctx context.Context, prefix string) (AgentSettings, error) {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return AgentSettings{}, errors.New("paramstore: prefix is required")
	}

	var s AgentSettings
	fields := []struct {
		name string
		dst  *string
	}{
		{prefix + "/agent_id", &s.AgentID},
		{prefix + "/agent_alias_id", &s.AgentAliasID},
		{prefix + "/cognito/user_pool_id", &s.UserPoolID},
		{prefix + "/cognito/user_pool_client_id", &s.UserPoolClientID},
		{prefix + "/cognito/identity_pool_id", &s.IdentityPoolID},
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.name)
	}

	values, err := c.GetParameters(ctx, names...)
	if err != nil {
		return AgentSettings{}, fmt.Errorf("paramstore: load agent settings: %w", err)
	}
	for _, f := range fields {
		v := strings.TrimSpace(values[f.name])
		if v == "" {
			return AgentSettings{}, fmt.Errorf("paramstore: parameter %q is empty", f.name)
		}
		*f.dst = v
	}
	return s, nil
}
