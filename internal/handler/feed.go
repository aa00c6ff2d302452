package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/service"
)

// FeedHandler serves the feed and the post, like and comment endpoints.
type FeedHandler struct {
	feed   *service.FeedService
	render *Renderer
	logger *slog.Logger
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(feed *service.FeedService, render *Renderer, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, render: render, logger: logger}
}

// feedPage is the data behind feed.html.
type feedPage struct {
	FollowingOnly bool
	Posts         []model.FeedPost
}

// followingOnly reads the ?following flag. Its presence is enough:
// "/feed?following" selects the filtered feed.
func followingOnly(r *http.Request) bool {
	_, ok := r.URL.Query()["following"]
	return ok
}

// HandleFeedPage renders the feed.
//
// HTTP: GET /feed[?following]
func (h *FeedHandler) HandleFeedPage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	only := followingOnly(r)

	posts, err := h.feed.Feed(r.Context(), user.ID, only)
	if err != nil {
		h.render.RenderError(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "feed", Page{
		Title: "Feed",
		Data:  feedPage{FollowingOnly: only, Posts: posts},
	})
}

// HandleFeed returns the feed as JSON.
//
// HTTP: GET /api/feed[?following]
// Response: {"success": true, "posts": [...]}
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	posts, err := h.feed.Feed(r.Context(), user.ID, followingOnly(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"posts":   posts,
	})
}

// HandleCreatePost publishes a photo.
//
// HTTP: POST /posts (multipart: image, caption, location)
// Response: 201 {"success": true, "post": {...}}
// A plain browser form submit is redirected to /feed instead.
func (h *FeedHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, 1); err != nil {
		h.failCreate(w, r, err)
		return
	}
	img, closeAll, err := singleUpload(r, "image")
	defer closeAll()
	if err != nil {
		h.failCreate(w, r, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	post, err := h.feed.CreatePost(r.Context(), user.ID,
		r.FormValue("caption"), r.FormValue("location"), img)
	if err != nil {
		h.failCreate(w, r, err)
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/feed", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"post":    post,
	})
}

func (h *FeedHandler) failCreate(w http.ResponseWriter, r *http.Request, err error) {
	if wantsHTML(r) {
		h.render.RenderError(w, r, err)
		return
	}
	writeError(w, r, h.logger, err)
}

// HandleDeletePost deletes one of the caller's posts.
//
// HTTP: DELETE /posts/{id}
func (h *FeedHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.feed.DeletePost(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleToggleLike likes or unlikes a post.
//
// HTTP: POST /posts/{id}/like
// Response: {"success": true, "liked": true, "likes": 3}
func (h *FeedHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	res, err := h.feed.ToggleLike(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"liked":   res.Liked,
		"likes":   res.Likes,
	})
}

// HandleAddComment comments on a post.
//
// HTTP: POST /posts/{id}/comments (field "comment")
// Response: 201 {"success": true, "comment": {...}}
func (h *FeedHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	comment, err := h.feed.AddComment(r.Context(), user.ID, chi.URLParam(r, "id"), values.Get("comment"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"comment": comment,
	})
}

// HandleDeleteComment deletes one of the caller's comments.
//
// HTTP: DELETE /comments/{id}
func (h *FeedHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.feed.DeleteComment(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
