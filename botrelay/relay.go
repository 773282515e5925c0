// Package botrelay sends bot lifecycle commands to the bot-runner process.
// Each command opens a fresh connection to the runner, writes one JSON frame,
// waits for exactly one JSON response frame, and closes the connection; there
// is no multiplexing and no connection reuse. Failures are never retried
// here; the HTTP layer surfaces them directly.
package botrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/B00147423/GuessIO/auth"
	"github.com/B00147423/GuessIO/telemetry"
)

// Command is one frame sent to the bot runner.
type Command struct {
	Type    string `json:"type"`
	OAuth   string `json:"oauth,omitempty"`
	Nick    string `json:"nick,omitempty"`
	Channel string `json:"channel"`
}

// Response is the runner's single reply frame, passed through to API callers.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const (
	TypeSpawn = "spawn_bot"
	TypeStop  = "stop_bot"

	StatusOK    = "ok"
	StatusError = "error"
)

// ErrMissingCredential means the user has no stored OAuth token; spawning is
// refused before any connection attempt.
var ErrMissingCredential = errors.New("botrelay: no oauth token stored for user")

// RelayError wraps transport failures (dial, encode, response await) with the
// underlying cause preserved for logging.
type RelayError struct {
	Op  string
	Err error
}

func (e *RelayError) Error() string { return fmt.Sprintf("botrelay: %s: %v", e.Op, e.Err) }
func (e *RelayError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry rather than a
// refused or broken connection.
func (e *RelayError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(e.Err, os.ErrDeadlineExceeded) || errors.Is(e.Err, context.DeadlineExceeded)
}

// DefaultTimeout bounds a full command round trip when Client.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Client relays commands to the bot runner at Addr.
type Client struct {
	Addr    string
	Timeout time.Duration
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// ChannelFor derives the IRC channel name for a username.
func ChannelFor(username string) string {
	return "#" + strings.ToLower(username)
}

// SpawnBot asks the runner to join the user's channel. The user must have a
// stored OAuth token. A runner reply that the bot is already running is
// reported as success rather than an error.
func (c *Client) SpawnBot(ctx context.Context, u *auth.User) (*Response, error) {
	if u.OAuthToken == "" {
		return nil, ErrMissingCredential
	}
	resp, err := c.send(ctx, Command{
		Type:    TypeSpawn,
		OAuth:   "oauth:" + u.OAuthToken,
		Nick:    u.Username,
		Channel: ChannelFor(u.Username),
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == StatusError && strings.Contains(strings.ToLower(resp.Message), "already") {
		return &Response{Status: StatusOK, Message: "bot already running"}, nil
	}
	return resp, nil
}

// StopBot asks the runner to leave the user's channel. The runner's reply is
// returned verbatim, including "not found" errors.
func (c *Client) StopBot(ctx context.Context, u *auth.User) (*Response, error) {
	return c.send(ctx, Command{Type: TypeStop, Channel: ChannelFor(u.Username)})
}

func (c *Client) send(ctx context.Context, cmd Command) (*Response, error) {
	timeout := c.timeout()
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		telemetry.IncCounter(telemetry.BotCommandsFailed)
		return nil, &RelayError{Op: "dial " + c.Addr, Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close relay connection", slog.Any("err", err))
		}
	}()

	// One deadline covers the whole exchange.
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		telemetry.IncCounter(telemetry.BotCommandsFailed)
		return nil, &RelayError{Op: "set deadline", Err: err}
	}
	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		telemetry.IncCounter(telemetry.BotCommandsFailed)
		return nil, &RelayError{Op: "send command", Err: err}
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		telemetry.IncCounter(telemetry.BotCommandsFailed)
		return nil, &RelayError{Op: "await response", Err: err}
	}
	telemetry.IncCounter(telemetry.BotCommandsSent)
	return &resp, nil
}
