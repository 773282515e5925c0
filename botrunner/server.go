package botrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/B00147423/GuessIO/botrelay"
)

// connDeadline bounds one command/response exchange with a backend client.
const connDeadline = 30 * time.Second

// Serve listens on addr and answers one command frame per connection until
// ctx is cancelled. All bots are stopped on shutdown.
func Serve(ctx context.Context, addr string, m *Manager) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("bot runner listening", slog.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		if err := ln.Close(); err != nil {
			slog.Warn("failed to close listener", slog.Any("err", err))
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				m.StopAll()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go handleConn(conn, m)
	}
}

func handleConn(conn net.Conn, m *Manager) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close command connection", slog.Any("err", err))
		}
	}()
	if err := conn.SetDeadline(time.Now().Add(connDeadline)); err != nil {
		slog.Warn("failed to set connection deadline", slog.Any("err", err))
		return
	}

	var cmd botrelay.Command
	if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
		slog.Warn("bad command frame", slog.Any("err", err))
		return
	}
	resp := Handle(m, cmd)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		slog.Warn("failed to write response frame", slog.Any("err", err))
	}
}

// Handle executes one command against the manager and builds the reply frame.
func Handle(m *Manager, cmd botrelay.Command) botrelay.Response {
	switch cmd.Type {
	case botrelay.TypeSpawn:
		if cmd.OAuth == "" || cmd.Nick == "" || cmd.Channel == "" {
			return botrelay.Response{Status: botrelay.StatusError, Message: "spawn_bot requires oauth, nick and channel"}
		}
		if !m.Spawn(cmd.OAuth, cmd.Nick, cmd.Channel) {
			return botrelay.Response{Status: botrelay.StatusError, Message: fmt.Sprintf("Bot for channel %s already exists", cmd.Channel)}
		}
		slog.Info("bot spawned", slog.String("channel", cmd.Channel))
		return botrelay.Response{Status: botrelay.StatusOK, Message: "Bot connected to Twitch IRC"}
	case botrelay.TypeStop:
		if cmd.Channel == "" {
			return botrelay.Response{Status: botrelay.StatusError, Message: "stop_bot requires channel"}
		}
		if !m.Stop(cmd.Channel) {
			return botrelay.Response{Status: botrelay.StatusError, Message: fmt.Sprintf("Bot for channel %s not found", cmd.Channel)}
		}
		slog.Info("bot stopped", slog.String("channel", cmd.Channel))
		return botrelay.Response{Status: botrelay.StatusOK, Message: fmt.Sprintf("Bot for channel %s stopped", cmd.Channel)}
	default:
		return botrelay.Response{Status: botrelay.StatusError, Message: "unknown command type: " + cmd.Type}
	}
}
