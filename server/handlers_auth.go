package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/B00147423/GuessIO/auth"
	"github.com/B00147423/GuessIO/telemetry"
	"github.com/B00147423/GuessIO/twitchapi"
)

// HandleLoginURL returns the Twitch authorization URL for the frontend to
// navigate to. A fresh anti-forgery state is minted per call.
func (h *Handlers) HandleLoginURL(w http.ResponseWriter, r *http.Request) {
	if err := h.cfg.ValidateOAuthReady(); err != nil {
		http.Error(w, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_CLIENT_SECRET + TWITCH_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	// generate state
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", 500)
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(oauthStateTTL))
	authURL, err := h.twitch.AuthCodeURL(st)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

// HandleCallback completes the OAuth flow: code exchange, profile fetch,
// user upsert, session cookie. On success the browser is sent back to the
// frontend.
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		telemetry.IncCounter(telemetry.LoginsFailed)
		http.Error(w, "missing code/state", 400)
		return
	}
	if !h.consumeOAuthState(st) {
		telemetry.IncCounter(telemetry.LoginsFailed)
		http.Error(w, "invalid state", 400)
		return
	}

	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)
	start := time.Now()

	token, err := h.twitch.ExchangeCode(ctx, code)
	if err != nil {
		telemetry.IncCounter(telemetry.LoginsFailed)
		log.Warn("code exchange failed", slog.Any("err", err))
		http.Error(w, "twitch login failed", providerStatus(err))
		return
	}
	profile, err := h.twitch.FetchProfile(ctx, token)
	if err != nil {
		telemetry.IncCounter(telemetry.LoginsFailed)
		log.Warn("profile fetch failed", slog.Any("err", err))
		http.Error(w, "twitch login failed", providerStatus(err))
		return
	}

	// The username is the Helix login, not the display name: the bot nick
	// and IRC channel derive from it, and display names can be localized.
	user, err := h.sessions.Login(ctx, auth.Identity{
		TwitchID:     profile.ID,
		Username:     profile.Login,
		ProfileImage: profile.ProfileImageURL,
		AccessToken:  token,
	})
	if err != nil {
		telemetry.IncCounter(telemetry.LoginsFailed)
		log.Error("login persist failed", slog.Any("err", err))
		http.Error(w, "internal error", 500)
		return
	}

	h.sessions.IssueCookie(w, user)
	telemetry.IncCounter(telemetry.LoginsSucceeded)
	if telemetry.LoginDuration != nil {
		telemetry.LoginDuration.Observe(time.Since(start).Seconds())
	}
	log.Info("login completed",
		slog.String("twitch_id", user.TwitchID),
		slog.String("username", user.Username),
		slog.Int64("user_id", user.ID))
	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusFound)
}

// providerStatus distinguishes a slow identity provider from one that
// rejected the request.
func providerStatus(err error) int {
	switch {
	case errors.Is(err, twitchapi.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, twitchapi.ErrProviderRejected):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// HandleMe returns the logged-in user's public profile.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.CurrentUser(r.Context(), r)
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            user.ID,
		"twitch_id":     user.TwitchID,
		"username":      user.Username,
		"profile_image": user.ProfileImage,
	})
}

// HandleLogout expires the session cookie. Logging out always succeeds, even
// without a session.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
