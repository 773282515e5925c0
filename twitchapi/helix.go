package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Profile is the authenticated user's identity as reported by Helix.
type Profile struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (c *Client) helixURL() string {
	if c.HelixURL != "" {
		return c.HelixURL
	}
	return "https://api.twitch.tv/helix"
}

// FetchProfile resolves the identity behind a user access token via GET /users.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrProviderRejected)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.helixURL()+"/users", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, classify("profile fetch", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: profile fetch: %s: %s", ErrProviderRejected, resp.Status, string(b))
	}
	var body struct {
		Data []Profile `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("%w: profile response contained no user", ErrProviderRejected)
	}
	return &body.Data[0], nil
}
