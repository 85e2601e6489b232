package auth

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "admin123" {
		t.Fatal("password stored in the clear")
	}
	if !VerifyPassword("admin123", hash) {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestLongPasswordTruncatedConsistently(t *testing.T) {
	long := strings.Repeat("x", 100)
	hash, err := HashPassword(long)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(long, hash) {
		t.Fatal("long password rejected against its own hash")
	}
	// Only the first 72 bytes participate.
	if !VerifyPassword(strings.Repeat("x", 72)+"different tail", hash) {
		t.Fatal("passwords sharing the first 72 bytes should verify identically")
	}
	if VerifyPassword(strings.Repeat("y", 100), hash) {
		t.Fatal("unrelated long password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", 30)
	token, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	username, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if username != "alice" {
		t.Fatalf("username = %q", username)
	}
}

func TestTokenRejections(t *testing.T) {
	svc := NewTokenService("test-secret", 30)
	token, _ := svc.Issue("alice")

	if _, err := svc.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: err = %v", err)
	}

	other := NewTokenService("different-secret", 30)
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: err = %v", err)
	}

	expired := &TokenService{secret: []byte("test-secret"), expiry: -time.Minute}
	tok, err := expired.Issue("alice")
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: err = %v", err)
	}
}

func TestUsernameFromRequest(t *testing.T) {
	svc := NewTokenService("test-secret", 30)
	token, _ := svc.Issue("alice")

	r := httptest.NewRequest("GET", "/api/messages", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	username, err := svc.UsernameFromRequest(r)
	if err != nil || username != "alice" {
		t.Fatalf("got %q, %v", username, err)
	}

	r = httptest.NewRequest("GET", "/api/messages", nil)
	if _, err := svc.UsernameFromRequest(r); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing header: err = %v", err)
	}

	r = httptest.NewRequest("GET", "/api/messages", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, err := svc.UsernameFromRequest(r); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("non-bearer scheme: err = %v", err)
	}
}

func TestDefaultExpiry(t *testing.T) {
	svc := NewTokenService("s", 0)
	if svc.expiry != 24*time.Hour {
		t.Fatalf("default expiry = %v, want 24h", svc.expiry)
	}
}
