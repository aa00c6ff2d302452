package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/bird-dropper/internal/model"
)

// contextKey is package-private so no other package can read or shadow
// the values stored under it.
type contextKey string

const sessionKey contextKey = "session"

// LoadSession attaches the caller's session (if any) to the request context.
// It never rejects a request; pair it with RequireUser or RequireUserJSON.
func LoadSession(m *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Load(r)
			if err != nil {
				// Treat the request as anonymous rather than failing it.
				m.logger.Error("loading session", slog.String("error", err.Error()))
			}
			if sess != nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser guards page routes: anonymous requests are redirected to /login.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUserJSON guards AJAX routes: anonymous requests get a 401 JSON body.
func RequireUserJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "You must be logged in",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the session attached by LoadSession.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*model.Session)
	return sess, ok && sess != nil
}

// UserFromContext returns the session's user snapshot.
//
// Usage in handlers behind RequireUser:
//
//	user, _ := auth.UserFromContext(r.Context())
func UserFromContext(ctx context.Context) (model.SessionUser, bool) {
	sess, ok := SessionFromContext(ctx)
	if !ok {
		return model.SessionUser{}, false
	}
	return sess.User, true
}
