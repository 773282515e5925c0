// Package auth implements the session and identity control plane: the user
// cache shared across requests, cookie-based session resolution, and the
// login flow that records a successful OAuth callback.
//
// The cache and the manager never talk to Twitch; the HTTP layer performs the
// code exchange and profile fetch and hands the resulting identity to
// Manager.Login.
package auth

import "context"

// User is a viewer known to the service. OAuthToken is the user's Twitch
// access token, stored server-side only; it never appears in API responses.
type User struct {
	ID           int64
	TwitchID     string
	Username     string
	ProfileImage string
	OAuthToken   string
}

// Identity is the profile established by a completed OAuth callback.
type Identity struct {
	TwitchID     string
	Username     string
	ProfileImage string
	AccessToken  string
}

// Store is the narrow interface to the user persistence layer. Find methods
// return (nil, nil) when no user exists. Upsert assigns the internal id on
// first insert and returns the stored row.
type Store interface {
	FindByTwitchID(ctx context.Context, twitchID string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Upsert(ctx context.Context, u *User) (*User, error)
}
