package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/service"
)

// AccountHandler serves the profile page and the account/settings forms.
//
// SESSION SNAPSHOT:
// The session keeps a copy of the user (see model.SessionUser). Every
// successful edit writes the fresh row back into the session so the navbar
// and later requests see the change.
type AccountHandler struct {
	accounts *service.AccountService
	auth     *service.AuthService
	feed     *service.FeedService
	sessions *auth.SessionManager
	render   *Renderer
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(
	accounts *service.AccountService,
	authService *service.AuthService,
	feed *service.FeedService,
	sessions *auth.SessionManager,
	render *Renderer,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		auth:     authService,
		feed:     feed,
		sessions: sessions,
		render:   render,
		logger:   logger,
	}
}

// profilePage is the data behind profile.html.
type profilePage struct {
	Student   *model.Student
	Posts     []model.FeedPost
	Themes    []string
	Languages []string
}

// HandleProfile shows the logged-in user's profile and their own posts.
//
// HTTP: GET /profile
//
// The student is read from the database, not from the session snapshot,
// and the snapshot is refreshed on the way.
func (h *AccountHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	student, err := h.auth.GetStudent(r.Context(), sess.User.ID)
	if err != nil {
		h.render.RenderError(w, r, err)
		return
	}
	h.refresh(r, student)

	posts, err := h.feed.UserPosts(r.Context(), student.ID, student.ID)
	if err != nil {
		h.render.RenderError(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "profile", Page{
		Title: student.Username,
		Data: profilePage{
			Student:   student,
			Posts:     posts,
			Themes:    service.Themes,
			Languages: service.Languages,
		},
	})
}

// HandleUpdateBio replaces the bio.
//
// HTTP: POST /profile/bio
// Response: {"success": true, "bio": "..."}
func (h *AccountHandler) HandleUpdateBio(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	student, err := h.accounts.UpdateBio(r.Context(), user.ID, values.Get("bio"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.refresh(r, student)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"bio":     student.Bio,
	})
}

// HandleUpdateProfileImage replaces the profile picture.
//
// HTTP: POST /profile/image (multipart, field "profile_image")
// Response: {"success": true, "profile_image_url": "..."}
// A plain browser form submit is redirected back to /profile instead.
func (h *AccountHandler) HandleUpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, 1); err != nil {
		h.failUpload(w, r, err)
		return
	}
	img, closeAll, err := singleUpload(r, "profile_image")
	defer closeAll()
	if err != nil {
		h.failUpload(w, r, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	student, err := h.accounts.UpdateProfileImage(r.Context(), user.ID, img)
	if err != nil {
		h.failUpload(w, r, err)
		return
	}
	h.refresh(r, student)

	if wantsHTML(r) {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"profile_image_url": student.ProfileImageURL,
	})
}

func (h *AccountHandler) failUpload(w http.ResponseWriter, r *http.Request, err error) {
	if wantsHTML(r) {
		h.render.RenderError(w, r, err)
		return
	}
	writeError(w, r, h.logger, err)
}

// HandleUpdateUserSettings saves the timezone and notification preference.
//
// HTTP: POST /settings/user
// Response: {"message": "..."} or {"error": "..."}
func (h *AccountHandler) HandleUpdateUserSettings(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		writeSettingsError(w, r, h.logger, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	student, err := h.accounts.UpdateUserSettings(r.Context(), user.ID,
		values.Get("timezone"), checked(values.Get("notifications")))
	if err != nil {
		writeSettingsError(w, r, h.logger, err)
		return
	}
	h.refresh(r, student)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Settings updated successfully"})
}

// HandleUpdateWebsiteSettings changes the global theme and language.
// Only administrators may do this; everyone else gets a 403.
//
// HTTP: POST /settings/website
// Response: {"message": "..."} or {"error": "..."}
func (h *AccountHandler) HandleUpdateWebsiteSettings(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		writeSettingsError(w, r, h.logger, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	err = h.accounts.UpdateWebsiteSettings(r.Context(), user.ID, values.Get("theme"), values.Get("language"))
	if err != nil {
		writeSettingsError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Website settings updated successfully"})
}

// refresh rewrites the session snapshot. A failure is logged but does not
// fail the request: the database already holds the change.
func (h *AccountHandler) refresh(r *http.Request, student *model.Student) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return
	}
	if err := h.sessions.Refresh(r.Context(), sess, student); err != nil {
		h.logger.Warn("failed to refresh session",
			slog.String("user_id", student.ID),
			slog.String("error", err.Error()),
		)
	}
}
