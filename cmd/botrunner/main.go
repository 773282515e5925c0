// Command botrunner hosts the Twitch chat bots. It listens for spawn_bot and
// stop_bot frames from the API server and keeps one IRC bot per channel.
//
// Shutdown is graceful on SIGINT/SIGTERM; all bots disconnect.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/B00147423/GuessIO/botrunner"
)

func main() {
	_ = godotenv.Load(".env")

	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	addr := os.Getenv("BOT_RUNNER_LISTEN_ADDR")
	if addr == "" {
		addr = ":9001"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := botrunner.Serve(ctx, addr, botrunner.NewManager()); err != nil {
		slog.Error("bot runner exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("bot runner stopped")
}
