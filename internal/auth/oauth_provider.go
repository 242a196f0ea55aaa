package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Grant is the token set issued by a provider.
type Grant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time // zero when the token does not expire
	Scopes       []string  // granted scopes as reported, nil when the response omits them

	// AccountID is a provider user id returned alongside the token, when the
	// provider sends one (Slack authed_user.id).
	AccountID string
}

// Account identifies the provider account behind a grant.
type Account struct {
	ID    string
	Email string
}

// OAuthProvider performs the OAuth calls for one provider. Every call runs
// under its own timeout, detached from the caller's cancellation: once a
// request is sent to the provider it completes or fails on its own.
type OAuthProvider struct {
	cfg        ProviderConfig
	config     *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

// NewOAuthProvider creates a provider. A nil httpClient uses
// http.DefaultClient.
func NewOAuthProvider(
	cfg ProviderConfig,
	httpClient *http.Client,
	timeout time.Duration,
) *OAuthProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthProvider{
		cfg:        cfg,
		config:     cfg.oauth2Config(),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// ID returns the provider id.
func (p *OAuthProvider) ID() string {
	return p.cfg.ID
}

// Config returns a copy of the provider configuration.
func (p *OAuthProvider) Config() ProviderConfig {
	return p.cfg
}

// AuthURL returns the consent screen URL for state.
func (p *OAuthProvider) AuthURL(state string) string {
	return BuildAuthURL(p.cfg, state)
}

// BuildAuthURL builds the authorization URL. Scopes are space-joined in the
// configured order and state is passed through unmodified.
func BuildAuthURL(cfg ProviderConfig, state string) string {
	var opts []oauth2.AuthCodeOption
	if cfg.OfflineAccess {
		opts = append(opts, oauth2.AccessTypeOffline)
	}
	if cfg.ForceConsent {
		opts = append(opts, oauth2.ApprovalForce)
	}
	return cfg.oauth2Config().AuthCodeURL(state, opts...)
}

func (p *OAuthProvider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), cancel
}

// Exchange trades an authorization code for a grant.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Grant, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	grant := p.grantFromToken(token)
	if p.cfg.RequireRefreshToken && grant.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}
	return grant, nil
}

// Refresh obtains a new access token with refreshToken. A provider that
// does not rotate refresh tokens gets the old one carried over.
func (p *OAuthProvider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	// Expiry in the past forces the token source to hit the token endpoint.
	src := p.config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	token, err := src.Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	grant := p.grantFromToken(token)
	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}
	return grant, nil
}

func (p *OAuthProvider) grantFromToken(token *oauth2.Token) *Grant {
	grant := &Grant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		grant.Scopes = parseScopes(scope)
	}
	if user, ok := token.Extra("authed_user").(map[string]any); ok {
		if id, ok := user["id"].(string); ok {
			grant.AccountID = id
		}
	}
	return grant
}

// parseScopes splits a scope string. Slack separates scopes with commas,
// everyone else with spaces.
func parseScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// FetchAccount looks up the account behind the grant.
func (p *OAuthProvider) FetchAccount(ctx context.Context, grant *Grant) (*Account, error) {
	if p.cfg.AccountEndpoint == "" {
		return &Account{ID: grant.AccountID}, nil
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	var (
		account *Account
		err     error
	)
	switch p.cfg.ID {
	case ProviderSlack:
		account, err = p.fetchSlackAccount(ctx, grant)
	case ProviderDiscord:
		account, err = p.fetchDiscordAccount(ctx, grant)
	default:
		account, err = p.fetchGoogleAccount(ctx, grant)
	}
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrAccountLookupFailed, err)
	}
	return account, nil
}

func (p *OAuthProvider) getJSON(ctx context.Context, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s API error: %s - %s", p.cfg.DisplayName, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode account: %w", err)
	}
	return nil
}

type googleUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (p *OAuthProvider) fetchGoogleAccount(ctx context.Context, grant *Grant) (*Account, error) {
	var user googleUser
	if err := p.getJSON(ctx, p.cfg.AccountEndpoint, grant.AccessToken, &user); err != nil {
		return nil, err
	}
	return &Account{ID: user.ID, Email: user.Email}, nil
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (p *OAuthProvider) fetchDiscordAccount(ctx context.Context, grant *Grant) (*Account, error) {
	var user discordUser
	if err := p.getJSON(ctx, p.cfg.AccountEndpoint, grant.AccessToken, &user); err != nil {
		return nil, err
	}
	return &Account{ID: user.ID, Email: user.Email}, nil
}

// Slack Web API methods answer 200 with ok=false on failure.
type slackUsersInfo struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	User  struct {
		ID      string `json:"id"`
		Profile struct {
			Email string `json:"email"`
		} `json:"profile"`
	} `json:"user"`
}

func (p *OAuthProvider) fetchSlackAccount(ctx context.Context, grant *Grant) (*Account, error) {
	if grant.AccountID == "" {
		return &Account{}, nil
	}

	endpoint := p.cfg.AccountEndpoint + "?" + url.Values{"user": {grant.AccountID}}.Encode()
	var info slackUsersInfo
	if err := p.getJSON(ctx, endpoint, grant.AccessToken, &info); err != nil {
		return nil, err
	}
	if !info.OK {
		return nil, fmt.Errorf("slack users.info: %s", info.Error)
	}
	return &Account{ID: info.User.ID, Email: info.User.Profile.Email}, nil
}
