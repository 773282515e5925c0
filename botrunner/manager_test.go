package botrunner

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/B00147423/GuessIO/auth"
	"github.com/B00147423/GuessIO/botrelay"
)

// fakeIRC blocks in Connect until Disconnect, like the real client.
type fakeIRC struct {
	connected    atomic.Bool
	disconnected chan struct{}
}

func newFakeIRC() *fakeIRC {
	return &fakeIRC{disconnected: make(chan struct{})}
}

func (f *fakeIRC) Connect() error {
	f.connected.Store(true)
	<-f.disconnected
	return nil
}

func (f *fakeIRC) Disconnect() error {
	close(f.disconnected)
	return nil
}

func newFakeManager() (*Manager, *atomic.Int64) {
	var created atomic.Int64
	m := NewManager()
	m.newClient = func(oauth, nick, channel string) ircClient {
		created.Add(1)
		return newFakeIRC()
	}
	return m, &created
}

func TestManagerSpawnAndStop(t *testing.T) {
	m, created := newFakeManager()

	if !m.Spawn("oauth:tok", "viewer1", "#viewer1") {
		t.Fatal("first Spawn() = false, want true")
	}
	if m.Running() != 1 {
		t.Errorf("Running() = %d, want 1", m.Running())
	}
	if created.Load() != 1 {
		t.Errorf("clients created = %d, want 1", created.Load())
	}

	if !m.Stop("#viewer1") {
		t.Fatal("Stop() = false, want true")
	}
	// The Connect goroutine removes its entry after disconnect.
	deadline := time.After(time.Second)
	for m.Running() != 0 {
		select {
		case <-deadline:
			t.Fatalf("Running() = %d after stop, want 0", m.Running())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManagerDuplicateSpawn(t *testing.T) {
	m, created := newFakeManager()

	if !m.Spawn("oauth:tok", "viewer1", "#viewer1") {
		t.Fatal("first Spawn() = false")
	}
	if m.Spawn("oauth:tok", "viewer1", "#viewer1") {
		t.Error("duplicate Spawn() = true, want false")
	}
	if created.Load() != 1 {
		t.Errorf("duplicate spawn created a second client")
	}
}

func TestManagerStopUnknownChannel(t *testing.T) {
	m, _ := newFakeManager()
	if m.Stop("#nobody") {
		t.Error("Stop() on unknown channel = true, want false")
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name        string
		cmd         botrelay.Command
		wantStatus  string
		wantMessage string
	}{
		{
			name:       "spawn ok",
			cmd:        botrelay.Command{Type: "spawn_bot", OAuth: "oauth:tok", Nick: "viewer1", Channel: "#viewer1"},
			wantStatus: "ok",
		},
		{
			name:        "spawn duplicate",
			cmd:         botrelay.Command{Type: "spawn_bot", OAuth: "oauth:tok", Nick: "viewer1", Channel: "#viewer1"},
			wantStatus:  "error",
			wantMessage: "already exists",
		},
		{
			name:        "spawn missing credential",
			cmd:         botrelay.Command{Type: "spawn_bot", Nick: "viewer1", Channel: "#other"},
			wantStatus:  "error",
			wantMessage: "requires",
		},
		{
			name:       "stop ok",
			cmd:        botrelay.Command{Type: "stop_bot", Channel: "#viewer1"},
			wantStatus: "ok",
		},
		{
			name:        "stop not found",
			cmd:         botrelay.Command{Type: "stop_bot", Channel: "#viewer1"},
			wantStatus:  "error",
			wantMessage: "not found",
		},
		{
			name:        "unknown type",
			cmd:         botrelay.Command{Type: "dance"},
			wantStatus:  "error",
			wantMessage: "unknown command",
		},
	}

	m, _ := newFakeManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Handle(m, tt.cmd)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q (message: %s)", resp.Status, tt.wantStatus, resp.Message)
			}
			if tt.wantMessage != "" && !strings.Contains(resp.Message, tt.wantMessage) {
				t.Errorf("message = %q, want it to contain %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

// TestServeWithRelayClient exercises the full frame protocol: the backend's
// relay client against a live runner listener.
func TestServeWithRelayClient(t *testing.T) {
	m, _ := newFakeManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reserve an ephemeral port so the client knows where to dial.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	runnerAddr := probe.Addr().String()
	probe.Close()

	serveErr := make(chan error, 1)
	go func() { serveErr <- Serve(ctx, runnerAddr, m) }()

	client := &botrelay.Client{Addr: runnerAddr, Timeout: 2 * time.Second}
	user := &auth.User{Username: "Viewer1", OAuthToken: "tok"}

	// The listener comes up asynchronously; retry the first command briefly.
	var resp *botrelay.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = client.SpawnBot(context.Background(), user)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("SpawnBot() error: %v", err)
	}
	if resp.Status != botrelay.StatusOK {
		t.Fatalf("SpawnBot() = %+v, want ok", resp)
	}
	if m.Running() != 1 {
		t.Errorf("Running() = %d, want 1", m.Running())
	}

	// Spawning again is normalized to success by the relay client.
	resp, err = client.SpawnBot(context.Background(), user)
	if err != nil {
		t.Fatalf("second SpawnBot() error: %v", err)
	}
	if resp.Status != botrelay.StatusOK {
		t.Errorf("second SpawnBot() = %+v, want ok", resp)
	}

	resp, err = client.StopBot(context.Background(), user)
	if err != nil {
		t.Fatalf("StopBot() error: %v", err)
	}
	if resp.Status != botrelay.StatusOK {
		t.Errorf("StopBot() = %+v, want ok", resp)
	}

	resp, err = client.StopBot(context.Background(), &auth.User{Username: "nobody"})
	if err != nil {
		t.Fatalf("StopBot() error: %v", err)
	}
	if resp.Status != botrelay.StatusError || !strings.Contains(resp.Message, "not found") {
		t.Errorf("stop of unknown channel = %+v", resp)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("Serve() returned error on shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Serve() did not return after cancellation")
	}
}
