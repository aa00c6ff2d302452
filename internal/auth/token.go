// Package auth handles passwords, the signed session cookie, server-side
// sessions and the middleware that guards routes.
//
// SESSION FLOW OVERVIEW:
//  1. Login (password or GitHub) creates a Session in the SessionStore.
//  2. The session ID is wrapped in a signed JWT and set as the "bd_session"
//     HttpOnly cookie.
//  3. On every request LoadSession verifies the cookie, loads the Session and
//     puts it in the request context.
//  4. RequireUser / RequireUserJSON turn anonymous requests away.
//  5. Logout deletes the Session and expires the cookie.
//
// The JWT only proves that we issued the cookie. The state it points at lives
// on the server, so logout is immediate and the user snapshot can be
// refreshed without reissuing anything.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "bird-dropper"

// ErrTokenExpired is returned by Parse for a correctly signed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies session cookie values (HS256).
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; generate one with `openssl rand -hex 32`.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Sign returns a token whose subject is sessionID, valid for ttl.
func (s *TokenService) Sign(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    tokenIssuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the session ID in its subject.
//
// Besides the signature, the parser insists on HS256 (so a token claiming
// "alg":"none" is refused), our issuer, and an expiry being present.
func (s *TokenService) Parse(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid || c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
