package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func TestSealOpenRoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	const token = "oauth-access-token-xyz"
	sealed, err := c.Seal(token)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == token {
		t.Fatal("sealed token equals plaintext")
	}
	if strings.Contains(sealed, token) {
		t.Fatal("sealed token contains plaintext")
	}

	got, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != token {
		t.Errorf("Open = %q, want %q", got, token)
	}
}

func TestSealProducesFreshNonce(t *testing.T) {
	c, _ := NewTokenCipher(testKey(t))
	a, _ := c.Seal("token")
	b, _ := c.Seal("token")
	if a == b {
		t.Error("two seals of the same token produced identical ciphertext")
	}
}

func TestEmptyTokenPassesThrough(t *testing.T) {
	c, _ := NewTokenCipher(testKey(t))
	if s, err := c.Seal(""); err != nil || s != "" {
		t.Errorf("Seal(\"\") = %q, %v", s, err)
	}
	if s, err := c.Open(""); err != nil || s != "" {
		t.Errorf("Open(\"\") = %q, %v", s, err)
	}
}

func TestOpenDetectsTampering(t *testing.T) {
	c, _ := NewTokenCipher(testKey(t))
	sealed, _ := c.Seal("token")

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := c.Open(tampered); err == nil {
		t.Error("Open accepted tampered ciphertext")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	c1, _ := NewTokenCipher(testKey(t))
	c2, _ := NewTokenCipher(testKey(t))
	sealed, _ := c1.Seal("token")
	if _, err := c2.Open(sealed); err == nil {
		t.Error("Open accepted ciphertext sealed under a different key")
	}
}

func TestNewTokenCipherKeyValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"short key", base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTokenCipher(tt.key); err == nil {
				t.Error("NewTokenCipher accepted a bad key")
			}
		})
	}
}
