package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/service"
)

// FollowHandler serves user search and the follow graph.
type FollowHandler struct {
	follows *service.FollowService
	render  *Renderer
	logger  *slog.Logger
}

// NewFollowHandler creates a FollowHandler.
func NewFollowHandler(follows *service.FollowService, render *Renderer, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{follows: follows, render: render, logger: logger}
}

// HandleSearch finds users by username.
//
// HTTP: GET /api/users/search?q=rob
// Response: a bare JSON array, e.g. [{"id": "...", "username": "robin", "is_following": false}]
func (h *FollowHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	results, err := h.follows.Search(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleFollow follows the user in the path.
//
// HTTP: POST /follow/{id}
func (h *FollowHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.follows.Follow(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleUnfollow stops following the user in the path.
//
// HTTP: DELETE /follow/{id}
func (h *FollowHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.follows.Unfollow(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleFollowingPage renders who the user follows and who follows them.
//
// HTTP: GET /following
func (h *FollowHandler) HandleFollowingPage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	conns, err := h.follows.Connections(r.Context(), user.ID)
	if err != nil {
		h.render.RenderError(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "following", Page{Title: "Following", Data: conns})
}

// HandleConnections returns the same lists as JSON.
//
// HTTP: GET /api/connections
// Response: {"success": true, "following": [...], "followers": [...]}
func (h *FollowHandler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	conns, err := h.follows.Connections(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"following": conns.Following,
		"followers": conns.Followers,
	})
}
