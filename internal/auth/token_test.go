package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_SecretLength(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Error("NewTokenService() should reject secrets shorter than 16 chars")
	}
	if _, err := NewTokenService("this-is-16-chars"); err != nil {
		t.Errorf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

func TestSignParse_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Sign("sess-123", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not header.payload.signature", token)
	}

	got, err := ts.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got != "sess-123" {
		t.Errorf("Parse() = %q, want %q", got, "sess-123")
	}
}

func TestParse_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("a-completely-different-secret")

	valid, _ := ts.Sign("sess-123", time.Hour)
	fromOther, _ := other.Sign("sess-123", time.Hour)

	// Same secret, foreign issuer.
	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "sess-123",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret-at-least-16-chars!!"))

	// Same secret, no expiry at all.
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "sess-123",
		Issuer:  tokenIssuer,
	}).SignedString([]byte("test-secret-at-least-16-chars!!"))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered signature", valid[:len(valid)-3] + "xxx"},
		{"wrong secret", fromOther},
		{"wrong issuer", foreign},
		{"missing expiry", noExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Parse(tt.token); err == nil {
				t.Error("Parse() should have failed")
			}
		})
	}
}

func TestParse_Expired(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Sign("sess-123", -time.Second)

	_, err := ts.Parse(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Parse() error = %v, want ErrTokenExpired", err)
	}
}
