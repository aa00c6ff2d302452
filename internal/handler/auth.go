package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/service"
)

// AuthHandler serves sign-up, login (password and GitHub) and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin → validate via AuthService, then start a session
//   - HandleGitHubLogin            → redirect to GitHub with a CSRF state cookie
//   - HandleGitHubCallback         → verify state, exchange the code, start a session
//   - HandleLogout                 → destroy the session and the cookie
type AuthHandler struct {
	auth     *service.AuthService
	sessions *auth.SessionManager
	github   *auth.GitHubProvider // nil when GitHub sign-in is not configured
	render   *Renderer
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(
	authService *service.AuthService,
	sessions *auth.SessionManager,
	github *auth.GitHubProvider,
	render *Renderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		sessions: sessions,
		github:   github,
		render:   render,
		logger:   logger,
	}
}

// loginForm is the data behind login.html.
type loginForm struct {
	Email  string
	GitHub bool
}

// HandleHome shows the landing page, or sends a logged-in user to their profile.
//
// HTTP: GET /
func (h *AuthHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	h.render.Render(w, r, http.StatusOK, "home", Page{Title: "Welcome"})
}

// HandleRegisterPage renders the empty sign-up form.
//
// HTTP: GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "register", Page{Title: "Sign up", Data: service.Registration{}})
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /register (form or JSON)
//
// On failure the form is rendered again with the error and the values the
// user typed (passwords excluded). JSON callers get a JSON error instead.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.registerFailed(w, r, service.Registration{}, err)
		return
	}
	reg := service.Registration{
		FirstName:       values.Get("first_name"),
		LastName:        values.Get("last_name"),
		Email:           values.Get("email"),
		Username:        values.Get("username"),
		Password:        values.Get("password"),
		ConfirmPassword: values.Get("confirm_password"),
	}

	student, err := h.auth.Register(r.Context(), reg)
	if err != nil {
		h.registerFailed(w, r, reg, err)
		return
	}

	// The session is saved before the redirect goes out.
	if _, err := h.sessions.Start(r.Context(), w, student); err != nil {
		h.render.RenderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (h *AuthHandler) registerFailed(w http.ResponseWriter, r *http.Request, reg service.Registration, err error) {
	if isJSON(r) {
		writeError(w, r, h.logger, err)
		return
	}
	status, msg := statusFor(err)
	logFailure(r, h.logger, status, err)
	reg.Password, reg.ConfirmPassword = "", ""
	h.render.Render(w, r, status, "register", Page{Title: "Sign up", Error: msg, Data: reg})
}

// HandleLoginPage renders the login form.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	page := Page{Title: "Log in", Data: loginForm{GitHub: h.github != nil}}
	if r.URL.Query().Get("auth") == "denied" {
		page.Error = "GitHub sign-in was cancelled"
	}
	h.render.Render(w, r, http.StatusOK, "login", page)
}

// HandleLogin checks the credentials and starts a session.
//
// HTTP: POST /login (form or JSON)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.loginFailed(w, r, "", err)
		return
	}
	email := values.Get("email")

	student, err := h.auth.Authenticate(r.Context(), email, values.Get("password"))
	if err != nil {
		h.loginFailed(w, r, email, err)
		return
	}

	if _, err := h.sessions.Start(r.Context(), w, student); err != nil {
		h.render.RenderError(w, r, err)
		return
	}
	h.logger.Info("user logged in", slog.String("user_id", student.ID))
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, email string, err error) {
	if isJSON(r) {
		writeError(w, r, h.logger, err)
		return
	}
	status, msg := statusFor(err)
	logFailure(r, h.logger, status, err)
	h.render.Render(w, r, status, "login", Page{
		Title: "Log in",
		Error: msg,
		Data:  loginForm{Email: email, GitHub: h.github != nil},
	})
}

// HandleLogout ends the session.
//
// HTTP: GET or POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		// The cookie is already expired; the server-side row will age out.
		h.logger.Error("logout: destroying session", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived HttpOnly cookie and into
// the authorization URL. HandleGitHubCallback only proceeds when GitHub hands
// back the same value.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.OAuthStateCookie,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find, link or create the student
//  4. Start a session and redirect to the profile
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(auth.OAuthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   auth.OAuthStateCookie,
		Value:  "",
		Path:   "/auth/github",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	// --- Step 2: Exchange code for GitHub profile ---
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		h.render.RenderError(w, r, apperror.Unauthorized("GitHub authentication failed"))
		return
	}

	// --- Step 3: Find, link or create the student ---
	student, err := h.auth.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			h.logger.Error("github callback: login failed",
				slog.Int64("github_id", ghUser.ID),
				slog.String("error", err.Error()),
			)
		}
		h.render.RenderError(w, r, err)
		return
	}

	// --- Step 4: Start the session ---
	if _, err := h.sessions.Start(r.Context(), w, student); err != nil {
		h.render.RenderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}
