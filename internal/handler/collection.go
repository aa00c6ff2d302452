package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/service"
)

// CollectionHandler serves the personal photo gallery.
type CollectionHandler struct {
	collections *service.CollectionService
	render      *Renderer
	logger      *slog.Logger
}

// NewCollectionHandler creates a CollectionHandler.
func NewCollectionHandler(collections *service.CollectionService, render *Renderer, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{collections: collections, render: render, logger: logger}
}

// HandleUpload adds up to service.MaxCollectionFiles photos at once.
//
// HTTP: POST /collections (multipart, field "images", repeated)
// Response: 201 {"success": true, "items": [...]}
// A plain browser form submit is redirected to /collections instead.
func (h *CollectionHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// One extra file is allowed through the size cap so that an 11-file
	// upload gets the "at most 10" message rather than a 413.
	if err := parseMultipart(w, r, service.MaxCollectionFiles+1); err != nil {
		h.fail(w, r, err)
		return
	}
	files, closeAll, err := openUploads(r, "images")
	defer closeAll()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	items, err := h.collections.Upload(r.Context(), user.ID, files)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/collections", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"items":   items,
	})
}

func (h *CollectionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if wantsHTML(r) {
		h.render.RenderError(w, r, err)
		return
	}
	writeError(w, r, h.logger, err)
}

// HandlePage renders the caller's gallery.
//
// HTTP: GET /collections
func (h *CollectionHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	items, err := h.collections.List(r.Context(), user.ID)
	if err != nil {
		h.render.RenderError(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "collections", Page{Title: "My collection", Data: items})
}

// HandleList returns the caller's gallery as JSON.
//
// HTTP: GET /api/collections
// Response: {"success": true, "items": [...]}
func (h *CollectionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	items, err := h.collections.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
	})
}

// HandleDelete removes one of the caller's items and its image.
//
// HTTP: DELETE /collections/{id}
func (h *CollectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.collections.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleUpdateDescription edits an item's description.
//
// HTTP: PUT /collections/{id}/description (field "description")
func (h *CollectionHandler) HandleUpdateDescription(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	err = h.collections.UpdateDescription(r.Context(), user.ID, chi.URLParam(r, "id"), values.Get("description"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleToggleLike likes or unlikes a gallery item.
//
// HTTP: POST /collections/{id}/like
// Response: {"success": true, "liked": true, "likes": 1}
func (h *CollectionHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	res, err := h.collections.ToggleLike(r.Context(), user.ID, chi.URLParam(r, "id"))
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
