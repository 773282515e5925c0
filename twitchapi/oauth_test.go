package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAuthCodeURL(t *testing.T) {
	tests := []struct {
		name      string
		clientID  string
		redirect  string
		scopes    string
		state     string
		wantErr   bool
		wantParts []string
	}{
		{
			name:      "valid request",
			clientID:  "test-client-id",
			redirect:  "http://localhost/callback",
			scopes:    "chat:read chat:edit",
			state:     "random-state",
			wantParts: []string{"client_id=test-client-id", "state=random-state", "scope="},
		},
		{
			name:     "empty client id",
			redirect: "http://localhost/callback",
			wantErr:  true,
		},
		{
			name:     "empty redirect URI",
			clientID: "client",
			wantErr:  true,
		},
		{
			name:      "comma separated scopes",
			clientID:  "client-id",
			redirect:  "http://localhost/callback",
			scopes:    "user:read:email,chat:read",
			state:     "state-123",
			wantParts: []string{"client_id=client-id", "scope=user%3Aread%3Aemail+chat%3Aread"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{ClientID: tt.clientID, ClientSecret: "secret", RedirectURI: tt.redirect, Scopes: tt.scopes}
			u, err := c.AuthCodeURL(tt.state)
			if tt.wantErr {
				if err == nil {
					t.Error("AuthCodeURL() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("AuthCodeURL() unexpected error = %v", err)
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(u, part) {
					t.Errorf("URL missing expected part %q: %s", part, u)
				}
			}
			if !strings.HasPrefix(u, "https://id.twitch.tv/oauth2/authorize") {
				t.Errorf("URL doesn't start with Twitch auth endpoint: %s", u)
			}
		})
	}
}

func TestExchangeCode(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		code      string
		wantToken string
		wantErr   error
	}{
		{
			name: "successful exchange",
			code: "abc",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if err := r.ParseForm(); err == nil {
					if got := r.Form.Get("code"); got != "abc" {
						t.Errorf("code = %q, want abc", got)
					}
					if got := r.Form.Get("grant_type"); got != "authorization_code" {
						t.Errorf("grant_type = %q", got)
					}
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok1", "token_type": "bearer", "expires_in": 3600})
			},
			wantToken: "tok1",
		},
		{
			name: "provider rejects code",
			code: "bad",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{"status": 400, "message": "Invalid authorization code"})
			},
			wantErr: ErrProviderRejected,
		},
		{
			name: "200 response without token",
			code: "abc",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"scope": []string{}})
			},
			wantErr: ErrProviderRejected,
		},
		{
			name:    "empty code",
			code:    "",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			wantErr: ErrProviderRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := &Client{
				ClientID:     "cid",
				ClientSecret: "secret",
				RedirectURI:  "http://localhost/callback",
				TokenURL:     server.URL + "/oauth2/token",
			}
			tok, err := c.ExchangeCode(context.Background(), tt.code)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ExchangeCode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExchangeCode() unexpected error = %v", err)
			}
			if tok != tt.wantToken {
				t.Errorf("ExchangeCode() = %q, want %q", tok, tt.wantToken)
			}
		})
	}
}

func TestExchangeCodeTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	c := &Client{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		TokenURL:     server.URL + "/oauth2/token",
		Timeout:      50 * time.Millisecond,
	}
	_, err := c.ExchangeCode(context.Background(), "abc")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("ExchangeCode() error = %v, want ErrTimeout", err)
	}
}

func TestExchangeCodeConnectionRefused(t *testing.T) {
	c := &Client{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		TokenURL:     "http://127.0.0.1:1/oauth2/token",
	}
	_, err := c.ExchangeCode(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected error for unreachable token endpoint")
	}
	if errors.Is(err, ErrProviderRejected) {
		t.Errorf("transport failure misclassified as provider rejection: %v", err)
	}
}
