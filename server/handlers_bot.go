package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/B00147423/GuessIO/botrelay"
	"github.com/B00147423/GuessIO/telemetry"
)

// HandleBotSpawn asks the runner to start a chat bot in the caller's channel.
// The channel and credentials come from the session, never from the request
// body. A bot that is already running is reported as success.
func (h *Handlers) HandleBotSpawn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, err := h.sessions.CurrentUser(r.Context(), r)
	if err != nil {
		sessionError(w, err)
		return
	}
	resp, err := h.relay.SpawnBot(r.Context(), user)
	if err != nil {
		relayError(w, r, "spawn", err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("bot spawn relayed",
		slog.String("username", user.Username), slog.String("status", resp.Status))
	writeJSON(w, http.StatusOK, resp)
}

// HandleBotStop asks the runner to stop the caller's chat bot. The runner's
// reply is passed through, including "not found" for a bot that isn't running.
func (h *Handlers) HandleBotStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, err := h.sessions.CurrentUser(r.Context(), r)
	if err != nil {
		sessionError(w, err)
		return
	}
	resp, err := h.relay.StopBot(r.Context(), user)
	if err != nil {
		relayError(w, r, "stop", err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("bot stop relayed",
		slog.String("username", user.Username), slog.String("status", resp.Status))
	writeJSON(w, http.StatusOK, resp)
}

// relayError maps relay failures onto HTTP status codes: missing credentials
// are the caller's problem, timeouts and transport failures are the runner's.
func relayError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := telemetry.LoggerWithCorr(r.Context())
	if errors.Is(err, botrelay.ErrMissingCredential) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no oauth token stored; log in again"})
		return
	}
	var re *botrelay.RelayError
	if errors.As(err, &re) && re.Timeout() {
		log.Warn("bot runner timed out", slog.String("op", op), slog.Any("err", err))
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "bot runner timed out"})
		return
	}
	log.Error("bot runner unreachable", slog.String("op", op), slog.Any("err", err))
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "bot runner unavailable"})
}
