package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut      *ssm.GetParameterOutput
	getErr      error
	batchOut    *ssm.GetParametersOutput
	batchErr    error
	lastBatchIn *ssm.GetParametersInput
}

func (f *fakeAPI) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return f.getOut, f.getErr
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.lastBatchIn = in
	return f.batchOut, f.batchErr
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr("AGENT123"),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "AGENT123", v)
}

func TestGetParameter_HappyPath_SecureString(t *testing.T) {
	typeStr := "SecureString"
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr("AGENT123"), Type: types.ParameterType(typeStr),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "AGENT123", v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func params(kv ...string) []types.Parameter {
	out := make([]types.Parameter, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, types.Parameter{Name: strPtr(kv[i]), Value: strPtr(kv[i+1])})
	}
	return out
}

func TestGetParameters_HappyPath(t *testing.T) {
	api := &fakeAPI{batchOut: &ssm.GetParametersOutput{Parameters: params("/a", "1", "/b", "2")}}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), "/a", "/b")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"/a": "1", "/b": "2"}, got)
	require.Equal(t, []string{"/a", "/b"}, api.lastBatchIn.Names)
	require.True(t, *api.lastBatchIn.WithDecryption)
}

func TestGetParameters_InvalidParameters(t *testing.T) {
	api := &fakeAPI{batchOut: &ssm.GetParametersOutput{
		Parameters:        params("/a", "1"),
		InvalidParameters: []string{"/c", "/b"},
	}}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameters(context.Background(), "/a", "/b", "/c")
	require.ErrorContains(t, err, "parameters not found: /b, /c")
}

func TestGetParameters_MissingFromOutput(t *testing.T) {
	api := &fakeAPI{batchOut: &ssm.GetParametersOutput{Parameters: params("/a", "1")}}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameters(context.Background(), "/a", "/b")
	require.ErrorContains(t, err, `"/b" missing value`)
}

func TestGetParameters_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{batchErr: errors.New("throttled")})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "/a")
	require.ErrorContains(t, err, "throttled")

	_, err = client.GetParameters(context.Background())
	require.ErrorContains(t, err, "at least one name")
}

func TestLoadAgentSettings_HappyPath(t *testing.T) {
	api := &fakeAPI{batchOut: &ssm.GetParametersOutput{Parameters: params(
		"/agent-console/agent_id", "AGENT123",
		"/agent-console/agent_alias_id", "ALIAS1",
		"/agent-console/cognito/user_pool_id", "eu-west-1_pool",
		"/agent-console/cognito/user_pool_client_id", "client-1",
		"/agent-console/cognito/identity_pool_id", "eu-west-1:pool",
	)}}
	client, err := New(api)
	require.NoError(t, err)

	s, err := client.LoadAgentSettings(context.Background(), "/agent-console/")
	require.NoError(t, err)
	require.Equal(t, AgentSettings{
		AgentID:          "AGENT123",
		AgentAliasID:     "ALIAS1",
		UserPoolID:       "eu-west-1_pool",
		UserPoolClientID: "client-1",
		IdentityPoolID:   "eu-west-1:pool",
	}, s)
	require.Len(t, api.lastBatchIn.Names, 5)
}

func TestLoadAgentSettings_EmptyValue(t *testing.T) {
	api := &fakeAPI{batchOut: &ssm.GetParametersOutput{Parameters: params(
		"/p/agent_id", "AGENT123",
		"/p/agent_alias_id", " ",
		"/p/cognito/user_pool_id", "pool",
		"/p/cognito/user_pool_client_id", "client",
		"/p/cognito/identity_pool_id", "ids",
	)}}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.LoadAgentSettings(context.Background(), "/p")
	require.ErrorContains(t, err, `"/p/agent_alias_id" is empty`)
}

func TestLoadAgentSettings_RequiresPrefix(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.LoadAgentSettings(context.Background(), " / ")
	require.Error(t, err)
}
