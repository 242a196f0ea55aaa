package auth

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/google"
)

// Provider identifiers
const (
	ProviderGmail   = "gmail"
	ProviderDiscord = "discord"
	ProviderSlack   = "slack"
)

// Account lookup endpoints
const (
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	DiscordUserURL    = "https://discord.com/api/users/@me"
	SlackUsersInfoURL = "https://slack.com/api/users.info"
)

const (
	slackAuthorizeURL = "https://slack.com/oauth/v2/authorize"
	slackTokenURL     = "https://slack.com/api/oauth.v2.access"
)

// ProviderConfig is the full OAuth configuration of one provider.
type ProviderConfig struct {
	ID          string
	DisplayName string

	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthorizeEndpoint string
	TokenEndpoint     string
	AccountEndpoint   string
	AuthStyle         oauth2.AuthStyle

	// OfflineAccess adds access_type=offline to the authorization URL.
	OfflineAccess bool
	// ForceConsent adds prompt=consent so a refresh token is issued on every
	// connect, including for users who granted access before.
	ForceConsent bool
	// RequireRefreshToken rejects an exchange that yields no refresh token.
	RequireRefreshToken bool
}

// Credentials holds the deployment values a provider needs.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Validate reports the missing required fields as ErrMisconfiguredProvider.
func (c ProviderConfig) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "redirect uri")
	}
	if len(c.Scopes) == 0 {
		missing = append(missing, "scopes")
	}
	if c.AuthorizeEndpoint == "" || c.TokenEndpoint == "" {
		missing = append(missing, "endpoints")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s is missing %s",
			ErrMisconfiguredProvider, c.ID, strings.Join(missing, ", "))
	}
	return nil
}

func (c ProviderConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthorizeEndpoint,
			TokenURL:  c.TokenEndpoint,
			AuthStyle: c.AuthStyle,
		},
	}
}

// GmailConfig returns the Google configuration. Google only returns a
// refresh token for offline access with forced consent.
func GmailConfig(creds Credentials) ProviderConfig {
	return ProviderConfig{
		ID:                  ProviderGmail,
		DisplayName:         "Gmail",
		ClientID:            creds.ClientID,
		ClientSecret:        creds.ClientSecret,
		RedirectURI:         creds.RedirectURI,
		Scopes:              creds.Scopes,
		AuthorizeEndpoint:   google.Endpoint.AuthURL,
		TokenEndpoint:       google.Endpoint.TokenURL,
		AccountEndpoint:     GoogleUserInfoURL,
		OfflineAccess:       true,
		ForceConsent:        true,
		RequireRefreshToken: true,
	}
}

// DiscordConfig returns the Discord configuration.
func DiscordConfig(creds Credentials) ProviderConfig {
	return ProviderConfig{
		ID:                  ProviderDiscord,
		DisplayName:         "Discord",
		ClientID:            creds.ClientID,
		ClientSecret:        creds.ClientSecret,
		RedirectURI:         creds.RedirectURI,
		Scopes:              creds.Scopes,
		AuthorizeEndpoint:   endpoints.Discord.AuthURL,
		TokenEndpoint:       endpoints.Discord.TokenURL,
		AccountEndpoint:     DiscordUserURL,
		ForceConsent:        true,
		RequireRefreshToken: true,
	}
}

// SlackConfig returns the Slack v2 configuration. Slack bot tokens do not
// expire unless token rotation is enabled for the app, so no refresh token
// is required.
func SlackConfig(creds Credentials) ProviderConfig {
	return ProviderConfig{
		ID:                ProviderSlack,
		DisplayName:       "Slack",
		ClientID:          creds.ClientID,
		ClientSecret:      creds.ClientSecret,
		RedirectURI:       creds.RedirectURI,
		Scopes:            creds.Scopes,
		AuthorizeEndpoint: slackAuthorizeURL,
		TokenEndpoint:     slackTokenURL,
		AccountEndpoint:   SlackUsersInfoURL,
		AuthStyle:         oauth2.AuthStyleInParams,
	}
}
