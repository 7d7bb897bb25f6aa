// Package token obtains per-user Slack tokens via OAuth v2 so they can be
// stored in identity records.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	slackapi "github.com/slack-go/slack"
	"golang.org/x/oauth2"
)

// UserScope is the only scope the status updater needs.
const UserScope = "users.profile:write"

var slackEndpoint = oauth2.Endpoint{
	AuthURL:  "https://slack.com/oauth/v2/authorize",
	TokenURL: "https://slack.com/api/oauth.v2.access",
}

// ExchangeFunc trades an authorization code for a Slack OAuth v2 response.
type ExchangeFunc func(ctx context.Context, client *http.Client, clientID, clientSecret, code, redirectURL string) (*slackapi.OAuthV2Response, error)

// Collector builds authorize URLs and exchanges codes for user tokens.
type Collector struct {
	oauth    *oauth2.Config
	client   *http.Client
	exchange ExchangeFunc
}

// NewCollector creates a Collector for the given Slack app credentials.
func NewCollector(clientID, clientSecret, redirectURL string) (*Collector, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("slack client_id and client_secret are required")
	}
	return &Collector{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     slackEndpoint,
		},
		client:   http.DefaultClient,
		exchange: slackExchange,
	}, nil
}

// AuthURL returns the URL a user opens to grant the status scope. Slack
// expects user scopes in user_scope rather than scope.
func (c *Collector) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("user_scope", UserScope))
}

// Exchange trades code for the authorizing user's access token.
func (c *Collector) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", errors.New("authorization code is empty")
	}
	resp, err := c.exchange(ctx, c.client, c.oauth.ClientID, c.oauth.ClientSecret, code, c.oauth.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("oauth.v2.access: %w", err)
	}
	if resp == nil || resp.AuthedUser.AccessToken == "" {
		return "", errors.New("oauth.v2.access: response has no user token")
	}
	return resp.AuthedUser.AccessToken, nil
}

func slackExchange(ctx context.Context, client *http.Client, clientID, clientSecret, code, redirectURL string) (*slackapi.OAuthV2Response, error) {
	return slackapi.GetOAuthV2ResponseContext(ctx, client, clientID, clientSecret, code, redirectURL)
}
