// Package botrunner implements the bot-runner process: a frame server that
// accepts spawn_bot/stop_bot commands and a manager of per-channel Twitch IRC
// bots. It runs as its own binary (cmd/botrunner) and is reachable only
// through the command/response socket protocol, the same boundary the
// backend's relay client speaks.
package botrunner

import (
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// ircClient is the subset of the IRC client the manager drives. Tests swap in
// fakes so nothing dials irc.chat.twitch.tv.
type ircClient interface {
	Connect() error
	Disconnect() error
}

// Manager tracks at most one IRC bot per channel.
type Manager struct {
	mu        sync.Mutex
	bots      map[string]ircClient
	newClient func(oauth, nick, channel string) ircClient
}

func NewManager() *Manager {
	return &Manager{
		bots:      make(map[string]ircClient),
		newClient: newTwitchBot,
	}
}

func newTwitchBot(oauth, nick, channel string) ircClient {
	client := twitch.NewClient(nick, oauth)
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		if guess, ok := strings.CutPrefix(msg.Message, "!guess "); ok {
			slog.Info("guess received",
				slog.String("channel", channel),
				slog.String("user", msg.User.Name),
				slog.String("guess", guess))
		}
	})
	client.Join(strings.TrimPrefix(channel, "#"))
	return client
}

// Spawn starts a bot for channel. It reports false when a bot for that
// channel already exists; the existing bot is left untouched.
func (m *Manager) Spawn(oauth, nick, channel string) bool {
	m.mu.Lock()
	if _, ok := m.bots[channel]; ok {
		m.mu.Unlock()
		return false
	}
	bot := m.newClient(oauth, nick, channel)
	m.bots[channel] = bot
	m.mu.Unlock()

	go func() {
		// Connect blocks until the bot disconnects.
		if err := bot.Connect(); err != nil {
			slog.Error("twitch chat connect error", slog.String("channel", channel), slog.Any("err", err))
		}
		m.mu.Lock()
		if m.bots[channel] == bot {
			delete(m.bots, channel)
		}
		m.mu.Unlock()
	}()
	return true
}

// Stop disconnects the bot for channel. It reports false when none is running.
func (m *Manager) Stop(channel string) bool {
	m.mu.Lock()
	bot, ok := m.bots[channel]
	delete(m.bots, channel)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := bot.Disconnect(); err != nil {
		slog.Warn("twitch chat disconnect error", slog.String("channel", channel), slog.Any("err", err))
	}
	return true
}

// StopAll disconnects every running bot; used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	bots := m.bots
	m.bots = make(map[string]ircClient)
	m.mu.Unlock()
	for channel, bot := range bots {
		if err := bot.Disconnect(); err != nil {
			slog.Warn("twitch chat disconnect error", slog.String("channel", channel), slog.Any("err", err))
		}
	}
}

// Running reports the number of active bots.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bots)
}
