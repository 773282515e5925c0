package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/B00147423/GuessIO/telemetry"
)

// CookieName is the session cookie; its value is the decimal internal user id.
const CookieName = "session_user"

var (
	// ErrUnauthenticated means the request carried no session cookie.
	ErrUnauthenticated = errors.New("auth: not logged in")
	// ErrInvalidSession means the cookie value is not a user id.
	ErrInvalidSession = errors.New("auth: invalid session token")
	// ErrUserNotFound means the session points at a user that no longer exists.
	ErrUserNotFound = errors.New("auth: user not found")
)

// Manager resolves sessions against the cache with store fallback and owns
// cookie issuance. One Manager is created at process start and shared by all
// request handlers.
type Manager struct {
	store        Store
	cache        *Cache
	secureCookie bool
}

func NewManager(store Store, cache *Cache, secureCookie bool) *Manager {
	return &Manager{store: store, cache: cache, secureCookie: secureCookie}
}

// Login records a completed OAuth callback. The existing user is resolved by
// Twitch id cache first with store fallback; the upsert then hits the store
// and only afterwards refreshes the cache, so a failed write leaves the
// cache untouched.
// Returns the stored user with its internal id assigned.
func (m *Manager) Login(ctx context.Context, id Identity) (*User, error) {
	existing, ok := m.cache.GetByTwitchID(id.TwitchID)
	if !ok {
		var err error
		existing, err = m.store.FindByTwitchID(ctx, id.TwitchID)
		if err != nil {
			return nil, fmt.Errorf("store lookup: %w", err)
		}
	}
	u := &User{
		TwitchID:     id.TwitchID,
		Username:     id.Username,
		ProfileImage: id.ProfileImage,
		OAuthToken:   id.AccessToken,
	}
	if existing != nil {
		u.ID = existing.ID
	}
	saved, err := m.store.Upsert(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("store upsert: %w", err)
	}
	if existing != nil {
		m.cache.Evict(existing)
	}
	m.cache.Put(saved)
	telemetry.SetCachedUsers(m.cache.Len())
	return saved, nil
}

// CurrentUser resolves the session cookie to a user, consulting the cache
// first and falling back to the store on a miss. A store hit repopulates the
// cache so the next resolution is served locally.
func (m *Manager) CurrentUser(ctx context.Context, r *http.Request) (*User, error) {
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return nil, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(ck.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, ck.Value)
	}
	if u, ok := m.cache.GetByID(id); ok {
		telemetry.IncCounter(telemetry.SessionCacheHits)
		return u, nil
	}
	telemetry.IncCounter(telemetry.SessionCacheMisses)
	u, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store lookup: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	m.cache.Put(u)
	telemetry.SetCachedUsers(m.cache.Len())
	return u, nil
}

// IssueCookie sets the session cookie for u on the response.
func (m *Manager) IssueCookie(w http.ResponseWriter, u *User) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    strconv.FormatInt(u.ID, 10),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout expires the session cookie and drops every cached entry, not just
// this session's; dropped entries repopulate from the store on the next
// resolution.
func (m *Manager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	m.cache.Clear()
	telemetry.SetCachedUsers(0)
}
