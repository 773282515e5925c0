// Package twitchapi is the Twitch identity client: authorization-code exchange
// through golang.org/x/oauth2 and profile lookup against the Helix users API.
// Both calls are bounded by a fixed timeout so callers can distinguish a slow
// provider from a provider that rejected the request.
package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	// ErrTimeout marks calls that exceeded the client timeout.
	ErrTimeout = errors.New("twitchapi: request timed out")
	// ErrProviderRejected marks responses where Twitch refused the request
	// (bad code, error payload, or a token response without a token).
	ErrProviderRejected = errors.New("twitchapi: provider rejected request")
)

// DefaultTimeout bounds token and Helix calls when Client.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Client talks to the Twitch OAuth and Helix endpoints. The URL fields exist
// so tests can point the client at a local server; zero values hit Twitch.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string
	Timeout      time.Duration
	HTTPClient   *http.Client

	AuthURL  string
	TokenURL string
	HelixURL string
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) endpoint() oauth2.Endpoint {
	ep := endpoints.Twitch
	if c.AuthURL != "" {
		ep.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		ep.TokenURL = c.TokenURL
	}
	return ep
}

func (c *Client) oauthConfig() *oauth2.Config {
	var scopes []string
	if c.Scopes != "" {
		scopes = strings.Fields(strings.ReplaceAll(c.Scopes, ",", " "))
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       scopes,
		Endpoint:     c.endpoint(),
	}
}

// AuthCodeURL constructs the user authorization URL for the OAuth code grant.
func (c *Client) AuthCodeURL(state string) (string, error) {
	if c.ClientID == "" || c.RedirectURI == "" {
		return "", errors.New("missing client id or redirect URI")
	}
	return c.oauthConfig().AuthCodeURL(state), nil
}

// ExchangeCode exchanges an authorization code for a user access token.
// A 200 response without an access token is a provider rejection, not a success.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: empty authorization code", ErrProviderRejected)
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return "", errors.New("missing client id/secret for code exchange")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http())

	tok, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return "", classify("code exchange", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: code exchange returned no access_token", ErrProviderRejected)
	}
	return tok.AccessToken, nil
}

// classify maps transport-level errors into the package error taxonomy.
func classify(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %s: %s: %s", ErrProviderRejected, op, re.Response.Status, strings.TrimSpace(string(re.Body)))
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	// x/oauth2 reports a token-free 2xx body as a plain error
	if strings.Contains(err.Error(), "missing access_token") {
		return fmt.Errorf("%w: %s: %v", ErrProviderRejected, op, err)
	}
	return fmt.Errorf("twitch %s failed: %w", op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
