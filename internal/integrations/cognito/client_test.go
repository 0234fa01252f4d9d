package cognito

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	idtypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentity/types"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	idptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/require"
)

type fakeUserPool struct {
	outs  []*cognitoidentityprovider.InitiateAuthOutput
	err   error
	calls []*cognitoidentityprovider.InitiateAuthInput
}

func (f *fakeUserPool) InitiateAuth(_ context.Context, in *cognitoidentityprovider.InitiateAuthInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := f.outs[0]
	if len(f.outs) > 1 {
		f.outs = f.outs[1:]
	}
	return out, nil
}

type fakeIdentityPool struct {
	idErr     error
	credsErr  error
	creds     *idtypes.Credentials
	idCalls   []*cognitoidentity.GetIdInput
	credCalls []*cognitoidentity.GetCredentialsForIdentityInput
}

func (f *fakeIdentityPool) GetId(_ context.Context, in *cognitoidentity.GetIdInput, _ ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error) {
	f.idCalls = append(f.idCalls, in)
	if f.idErr != nil {
		return nil, f.idErr
	}
	return &cognitoidentity.GetIdOutput{IdentityId: aws.String("eu-west-1:identity")}, nil
}

func (f *fakeIdentityPool) GetCredentialsForIdentity(_ context.Context, in *cognitoidentity.GetCredentialsForIdentityInput, _ ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error) {
	f.credCalls = append(f.credCalls, in)
	if f.credsErr != nil {
		return nil, f.credsErr
	}
	return &cognitoidentity.GetCredentialsForIdentityOutput{Credentials: f.creds}, nil
}

var testConfig = Config{
	Region:           "eu-west-1",
	UserPoolID:       "eu-west-1_pool",
	UserPoolClientID: "client-1",
	IdentityPoolID:   "eu-west-1:pool",
}

func authOut(idToken, refresh string, expiresIn int32) *cognitoidentityprovider.InitiateAuthOutput {
	res := &idptypes.AuthenticationResultType{IdToken: aws.String(idToken), ExpiresIn: expiresIn}
	if refresh != "" {
		res.RefreshToken = aws.String(refresh)
	}
	return &cognitoidentityprovider.InitiateAuthOutput{AuthenticationResult: res}
}

func validCreds(exp time.Time) *idtypes.Credentials {
	return &idtypes.Credentials{
		AccessKeyId:  aws.String("AKID"),
		SecretKey:    aws.String("SECRET"),
		SessionToken: aws.String("SESSION"),
		Expiration:   aws.Time(exp),
	}
}

func newTestClient(t *testing.T, users *fakeUserPool, ids *fakeIdentityPool, now time.Time) *Client {
	t.Helper()
	c, err := New(users, ids, testConfig)
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &fakeIdentityPool{}, testConfig)
	require.ErrorContains(t, err, "user pool api must not be nil")
	_, err = New(&fakeUserPool{}, nil, testConfig)
	require.ErrorContains(t, err, "identity pool api must not be nil")

	cfg := testConfig
	cfg.IdentityPoolID = ""
	_, err = New(&fakeUserPool{}, &fakeIdentityPool{}, cfg)
	require.ErrorContains(t, err, "identity pool id")
}

func TestSignIn_HappyPath(t *testing.T) {
	now := time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC)
	users := &fakeUserPool{outs: []*cognitoidentityprovider.InitiateAuthOutput{authOut("id-1", "refresh-1", 3600)}}
	c := newTestClient(t, users, &fakeIdentityPool{}, now)

	tokens, err := c.SignIn(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, Tokens{IDToken: "id-1", RefreshToken: "refresh-1", Expiry: now.Add(time.Hour)}, tokens)

	in := users.calls[0]
	require.Equal(t, idptypes.AuthFlowTypeUserPasswordAuth, in.AuthFlow)
	require.Equal(t, "client-1", aws.ToString(in.ClientId))
	require.Equal(t, map[string]string{"USERNAME": "alice", "PASSWORD": "pw"}, in.AuthParameters)
}

func TestSignIn_Errors(t *testing.T) {
	c := newTestClient(t, &fakeUserPool{err: errors.New("NotAuthorizedException")}, &fakeIdentityPool{}, time.Now())
	_, err := c.SignIn(context.Background(), "alice", "bad")
	require.ErrorContains(t, err, "NotAuthorizedException")

	_, err = c.SignIn(context.Background(), "", "pw")
	require.ErrorContains(t, err, "required")
}

func TestSignIn_ChallengeRejected(t *testing.T) {
	users := &fakeUserPool{outs: []*cognitoidentityprovider.InitiateAuthOutput{{ChallengeName: idptypes.ChallengeNameTypeNewPasswordRequired}}}
	c := newTestClient(t, users, &fakeIdentityPool{}, time.Now())
	_, err := c.SignIn(context.Background(), "alice", "pw")
	require.ErrorContains(t, err, "unsupported auth challenge")
}

func TestRefresh_KeepsRefreshToken(t *testing.T) {
	users := &fakeUserPool{outs: []*cognitoidentityprovider.InitiateAuthOutput{authOut("id-2", "", 3600)}}
	c := newTestClient(t, users, &fakeIdentityPool{}, time.Now())

	tokens, err := c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "id-2", tokens.IDToken)
	require.Equal(t, "refresh-1", tokens.RefreshToken)
	require.Equal(t, idptypes.AuthFlowTypeRefreshTokenAuth, users.calls[0].AuthFlow)
}

func TestCredentials_HappyPath(t *testing.T) {
	exp := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	ids := &fakeIdentityPool{creds: validCreds(exp)}
	c := newTestClient(t, &fakeUserPool{}, ids, time.Now())

	creds, err := c.Credentials(context.Background(), "id-1")
	require.NoError(t, err)
	require.Equal(t, "AKID", creds.AccessKeyID)
	require.Equal(t, "SECRET", creds.SecretAccessKey)
	require.Equal(t, "SESSION", creds.SessionToken)
	require.True(t, creds.CanExpire)
	require.Equal(t, exp, creds.Expires)

	wantLogins := map[string]string{"cognito-idp.eu-west-1.amazonaws.com/eu-west-1_pool": "id-1"}
	require.Equal(t, wantLogins, ids.idCalls[0].Logins)
	require.Equal(t, "eu-west-1:pool", aws.ToString(ids.idCalls[0].IdentityPoolId))
	require.Equal(t, "eu-west-1:identity", aws.ToString(ids.credCalls[0].IdentityId))
	require.Equal(t, wantLogins, ids.credCalls[0].Logins)
}

func TestCredentials_Errors(t *testing.T) {
	c := newTestClient(t, &fakeUserPool{}, &fakeIdentityPool{idErr: errors.New("boom")}, time.Now())
	_, err := c.Credentials(context.Background(), "id-1")
	require.ErrorContains(t, err, "get identity id")

	c = newTestClient(t, &fakeUserPool{}, &fakeIdentityPool{credsErr: errors.New("throttled")}, time.Now())
	_, err = c.Credentials(context.Background(), "id-1")
	require.ErrorContains(t, err, "throttled")

	c = newTestClient(t, &fakeUserPool{}, &fakeIdentityPool{creds: &idtypes.Credentials{AccessKeyId: aws.String("AKID")}}, time.Now())
	_, err = c.Credentials(context.Background(), "id-1")
	require.ErrorContains(t, err, "incomplete")

	_, err = c.Credentials(context.Background(), " ")
	require.ErrorContains(t, err, "id token is required")
}

func TestProvider_CachesUntilExpiry(t *testing.T) {
	ids := &fakeIdentityPool{creds: validCreds(time.Now().Add(time.Hour))}
	c := newTestClient(t, &fakeUserPool{}, ids, time.Now())
	p := c.Provider("id-1")

	_, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	_, err = p.Retrieve(context.Background())
	require.NoError(t, err)
	require.Len(t, ids.credCalls, 1)
}

func TestSessionProvider_RefreshesExpiredIDToken(t *testing.T) {
	now := time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC)
	users := &fakeUserPool{outs: []*cognitoidentityprovider.InitiateAuthOutput{authOut("id-2", "", 3600)}}
	ids := &fakeIdentityPool{creds: validCreds(time.Now().Add(time.Hour))}
	c := newTestClient(t, users, ids, now)

	p := c.SessionProvider(Tokens{IDToken: "id-1", RefreshToken: "refresh-1", Expiry: now.Add(-time.Second)})
	_, err := p.Retrieve(context.Background())
	require.NoError(t, err)

	require.Len(t, users.calls, 1)
	require.Equal(t, "refresh-1", users.calls[0].AuthParameters["REFRESH_TOKEN"])
	require.Equal(t, "id-2", ids.idCalls[0].Logins[testConfig.loginKey()])
}

func TestSessionProvider_ValidTokenNotRefreshed(t *testing.T) {
	now := time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC)
	users := &fakeUserPool{}
	ids := &fakeIdentityPool{creds: validCreds(time.Now().Add(time.Hour))}
	c := newTestClient(t, users, ids, now)

	p := c.SessionProvider(Tokens{IDToken: "id-1", RefreshToken: "refresh-1", Expiry: now.Add(time.Hour)})
	_, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	require.Empty(t, users.calls)
	require.Equal(t, "id-1", ids.idCalls[0].Logins[testConfig.loginKey()])
}
