// Package server exposes the HTTP API: the Twitch login flow, session
// introspection, bot lifecycle endpoints, and health/metrics. CORS is
// permissive for development and every request carries a correlation ID.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/B00147423/GuessIO/auth"
	"github.com/B00147423/GuessIO/botrelay"
	"github.com/B00147423/GuessIO/config"
	"github.com/B00147423/GuessIO/twitchapi"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000

	oauthStateTTL = 10 * time.Minute
)

// BotRelay is what the bot endpoints need from the relay client.
type BotRelay interface {
	SpawnBot(ctx context.Context, u *auth.User) (*botrelay.Response, error)
	StopBot(ctx context.Context, u *auth.User) (*botrelay.Response, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg      *config.Config
	db       *sql.DB
	sessions *auth.Manager
	twitch   *twitchapi.Client
	relay    BotRelay

	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(cfg *config.Config, db *sql.DB, sessions *auth.Manager, twitch *twitchapi.Client, relay BotRelay) *Handlers {
	return &Handlers{
		cfg:        cfg,
		db:         db,
		sessions:   sessions,
		twitch:     twitch,
		relay:      relay,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// If we're still over the limit after cleanup, refuse to add more
	if len(h.stateStore) >= maxOAuthStates {
		// Don't add the state - this will cause the OAuth flow to fail
		// which is better than a memory exhaustion attack
		return
	}

	h.stateStore[state] = expiry
}

// consumeOAuthState validates and removes a state in one step; a state is
// single use.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return !time.Now().After(exp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}

// sessionError maps session resolution failures onto HTTP status codes.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
	case errors.Is(err, auth.ErrInvalidSession):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session"})
	case errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	default:
		slog.Error("session resolution failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
