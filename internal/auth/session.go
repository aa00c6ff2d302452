package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// CookieName is the session cookie.
const CookieName = "bd_session"

// DefaultSessionTTL is how long a session lives after login.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionManager creates, loads and destroys server-side sessions and keeps
// the signed cookie in step with them.
type SessionManager struct {
	store  repository.SessionStore
	tokens *TokenService
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// SessionOptions configures a SessionManager.
type SessionOptions struct {
	TTL          time.Duration // defaults to DefaultSessionTTL
	SecureCookie bool          // set the Secure attribute (HTTPS deployments)
}

// NewSessionManager wires a store and a token service together.
func NewSessionManager(store repository.SessionStore, tokens *TokenService, opts SessionOptions, logger *slog.Logger) *SessionManager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		store:  store,
		tokens: tokens,
		ttl:    ttl,
		secure: opts.SecureCookie,
		logger: logger,
	}
}

// Start establishes a fresh session for student and sets the cookie.
//
// The session is persisted BEFORE the cookie is written, so a redirect sent
// right after Start always lands on a request that can load it.
func (m *SessionManager) Start(ctx context.Context, w http.ResponseWriter, student *model.Student) (*model.Session, error) {
	sess := &model.Session{
		ID:        xid.New().String(),
		User:      model.NewSessionUser(student),
		ExpiresAt: time.Now().Add(m.ttl).UTC(),
	}
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: saving session: %w", err)
	}

	token, err := m.tokens.Sign(sess.ID, m.ttl)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.Info("session started",
		slog.String("session_id", sess.ID),
		slog.String("user_id", student.ID),
	)
	return sess, nil
}

// Load returns the session referenced by the request's cookie.
// A missing, forged, expired or unknown cookie yields (nil, nil): the request
// is simply anonymous. Only store failures are returned as errors.
func (m *SessionManager) Load(r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil
	}
	sessionID, err := m.tokens.Parse(cookie.Value)
	if err != nil {
		return nil, nil
	}

	sess, err := m.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}
	return sess, nil
}

// Refresh rewrites the session's user snapshot from student, keeping its
// ID and expiry. Used after profile changes.
func (m *SessionManager) Refresh(ctx context.Context, sess *model.Session, student *model.Student) error {
	sess.User = model.NewSessionUser(student)
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("auth: refreshing session: %w", err)
	}
	return nil
}

// Destroy deletes the request's session (if any) and expires the cookie.
func (m *SessionManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	if sess, _ := m.Load(r); sess != nil {
		if err := m.store.DeleteSession(r.Context(), sess.ID); err != nil {
			return fmt.Errorf("auth: deleting session: %w", err)
		}
		m.logger.Info("session destroyed", slog.String("session_id", sess.ID))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
