package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/bird-dropper/internal/species"
)

// SpeciesLookup is the part of species.Client the handler uses.
type SpeciesLookup interface {
	Lookup(ctx context.Context, name string) (*species.Summary, error)
	Popular(ctx context.Context) []species.Summary
}

// SpeciesHandler serves the species information page.
type SpeciesHandler struct {
	species SpeciesLookup
	render  *Renderer
	logger  *slog.Logger
}

// NewSpeciesHandler creates a SpeciesHandler.
func NewSpeciesHandler(lookup SpeciesLookup, render *Renderer, logger *slog.Logger) *SpeciesHandler {
	return &SpeciesHandler{species: lookup, render: render, logger: logger}
}

// speciesPage is the data behind species.html.
type speciesPage struct {
	Query   string
	Result  *species.Summary
	Popular []species.Summary
}

// HandlePage shows the popular species.
//
// HTTP: GET /species
func (h *SpeciesHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "species", Page{
		Title: "Bird species",
		Data:  speciesPage{Popular: h.species.Popular(r.Context())},
	})
}

// HandleSearch looks up one species by name.
//
// HTTP: GET /species/search?q=barn+owl
//
// An unknown name renders the page with a 404; an upstream failure renders
// it with a 502. An empty query falls back to the popular list.
func (h *SpeciesHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Redirect(w, r, "/species", http.StatusSeeOther)
		return
	}

	page := Page{Title: "Bird species"}
	result, err := h.species.Lookup(r.Context(), query)
	switch {
	case err == nil:
		page.Data = speciesPage{Query: query, Result: result}
		h.render.Render(w, r, http.StatusOK, "species", page)
	case errors.Is(err, species.ErrNotFound):
		page.Data = speciesPage{Query: query}
		h.render.Render(w, r, http.StatusNotFound, "species", page)
	default:
		h.logger.Warn("species lookup failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		page.Error = "Species information is unavailable right now"
		page.Data = speciesPage{Query: query}
		h.render.Render(w, r, http.StatusBadGateway, "species", page)
	}
}
