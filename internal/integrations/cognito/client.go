// Package cognito resolves short-lived AWS credentials for a signed-in user
// through a Cognito user pool and identity pool.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	idptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

const (
	credentialSource = "CognitoIdentity"
	// tokens are refreshed this long before they actually expire
	tokenSkew = time.Minute
)

// userPoolAPI is the minimal Cognito user pool interface required by Client.
// *cognitoidentityprovider.Client satisfies this interface.
type userPoolAPI interface {
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// identityPoolAPI is the minimal Cognito identity pool interface required by
// Client. *cognitoidentity.Client satisfies this interface.
type identityPoolAPI interface {
	GetId(ctx context.Context, in *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, in *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// Config names the pools used to resolve credentials.
type Config struct {
	Region           string
	UserPoolID       string
	UserPoolClientID string
	IdentityPoolID   string
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.Region) == "":
		return errors.New("cognito: region must not be empty")
	case strings.TrimSpace(c.UserPoolID) == "":
		return errors.New("cognito: user pool id must not be empty")
	case strings.TrimSpace(c.UserPoolClientID) == "":
		return errors.New("cognito: user pool client id must not be empty")
	case strings.TrimSpace(c.IdentityPoolID) == "":
		return errors.New("cognito: identity pool id must not be empty")
	}
	return nil
}

// loginKey is the identity provider name the identity pool expects in Logins.
func (c Config) loginKey() string {
	return fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// Tokens are the user pool tokens of a signed-in user.
type Tokens struct {
	IDToken      string
	RefreshToken string
	Expiry       time.Time
}

// Client signs users in and exchanges their ID tokens for AWS credentials.
type Client struct {
	users      userPoolAPI
	identities identityPoolAPI
	cfg        Config
	now        func() time.Time
}

// New creates a Client. Both APIs are required.
func New(users userPoolAPI, identities identityPoolAPI, cfg Config) (*Client, error) {
	if users == nil {
		return nil, errors.New("cognito: user pool api must not be nil")
	}
	if identities == nil {
		return nil, errors.New("cognito: identity pool api must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{users: users, identities: identities, cfg: cfg, now: time.Now}, nil
}

// SignIn authenticates a user pool user with a username and password.
func (c *Client) SignIn(ctx context.Context, username, password string) (Tokens, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Tokens{}, errors.New("cognito: username and password are required")
	}
	return c.initiate(ctx, idptypes.AuthFlowTypeUserPasswordAuth, map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}, "")
}

// Refresh exchanges a refresh token for a new ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, errors.New("cognito: refresh token is required")
	}
	return c.initiate(ctx, idptypes.AuthFlowTypeRefreshTokenAuth, map[string]string{
		"REFRESH_TOKEN": refreshToken,
	}, refreshToken)
}

func (c *Client) initiate(ctx context.Context, flow idptypes.AuthFlowType, params map[string]string, refreshToken string) (Tokens, error) {
	out, err := c.users.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow:       flow,
		ClientId:       aws.String(c.cfg.UserPoolClientID),
		AuthParameters: params,
	})
	if err != nil {
		return Tokens{}, fmt.Errorf("cognito: initiate auth: %w", err)
	}
	if out == nil {
		return Tokens{}, errors.New("cognito: initiate auth returned no output")
	}
	if out.ChallengeName != "" {
		return Tokens{}, fmt.Errorf("cognito: unsupported auth challenge %q", out.ChallengeName)
	}
	res := out.AuthenticationResult
	if res == nil || aws.ToString(res.IdToken) == "" {
		return Tokens{}, errors.New("cognito: initiate auth returned no id token")
	}
	// Refresh flows do not return a new refresh token.
	if rt := aws.ToString(res.RefreshToken); rt != "" {
		refreshToken = rt
	}
	return Tokens{
		IDToken:      aws.ToString(res.IdToken),
		RefreshToken: refreshToken,
		Expiry:       c.now().Add(time.Duration(res.ExpiresIn) * time.Second),
	}, nil
}

// Credentials exchanges an ID token for temporary AWS credentials from the
// identity pool.
func (c *Client) Credentials(ctx context.Context, idToken string) (aws.Credentials, error) {
	if strings.TrimSpace(idToken) == "" {
		return aws.Credentials{}, errors.New("cognito: id token is required")
	}
	logins := map[string]string{c.cfg.loginKey(): idToken}

	id, err := c.identities.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(c.cfg.IdentityPoolID),
		Logins:         logins,
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("cognito: get identity id: %w", err)
	}
	if id == nil || aws.ToString(id.IdentityId) == "" {
		return aws.Credentials{}, errors.New("cognito: identity pool returned no identity id")
	}

	out, err := c.identities.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: id.IdentityId,
		Logins:     logins,
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("cognito: get credentials for identity: %w", err)
	}
	if out == nil || out.Credentials == nil {
		return aws.Credentials{}, errors.New("cognito: identity pool returned no credentials")
	}
	cr := out.Credentials
	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(cr.AccessKeyId),
		SecretAccessKey: aws.ToString(cr.SecretKey),
		SessionToken:    aws.ToString(cr.SessionToken),
		Source:          credentialSource,
	}
	if cr.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *cr.Expiration
	}
	if !creds.HasKeys() {
		return aws.Credentials{}, errors.New("cognito: identity pool returned incomplete credentials")
	}
	return creds, nil
}

// Provider returns a cached credentials provider bound to a fixed ID token.
func (c *Client) Provider(idToken string) aws.CredentialsProvider {
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return c.Credentials(ctx, idToken)
	}))
}

// SessionProvider returns a cached credentials provider for a long-lived
// sign-in. The ID token is refreshed with the refresh token once it expires.
func (c *Client) SessionProvider(tokens Tokens) aws.CredentialsProvider {
	src := &tokenSource{client: c, tokens: tokens}
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		idToken, err := src.idToken(ctx)
		if err != nil {
			return aws.Credentials{}, err
		}
		return c.Credentials(ctx, idToken)
	}))
}

type tokenSource struct {
	client *Client

	mu     sync.Mutex
	tokens Tokens
}

func (s *tokenSource) idToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens.Expiry.IsZero() || s.client.now().Before(s.tokens.Expiry.Add(-tokenSkew)) {
		return s.tokens.IDToken, nil
	}
	fresh, err := s.client.Refresh(ctx, s.tokens.RefreshToken)
	if err != nil {
		return "", err
	}
	s.tokens = fresh
	return fresh.IDToken, nil
}
