// Package handler contains the HTTP handlers of Bird Dropper.
//
// WHAT IS A HANDLER?
// Anything with the signature func(http.ResponseWriter, *http.Request).
// Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, forms, JSON, multipart uploads)
//  2. Call the service layer
//  3. Write the response: an HTML page, a redirect or JSON
//
// Handlers hold no business rules. Validation, ownership and permission
// checks live in internal/service; handlers only translate the outcome.
package handler

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/model"
)

// pageNames lists every page template; each is parsed together with
// base.html and partials.html.
var pageNames = []string{
	"home",
	"login",
	"register",
	"profile",
	"feed",
	"following",
	"collections",
	"species",
	"error",
}

// SettingsReader supplies the global theme and language for every page.
type SettingsReader interface {
	GetWebsiteSettings(ctx context.Context) (*model.WebsiteSettings, error)
}

// Renderer executes page templates.
//
// WHY PARSE ONCE?
// Parsing is expensive, executing is cheap. Every page is parsed at start-up
// into its own *template.Template (each page defines its own "content"
// block, so they cannot share one set).
type Renderer struct {
	pages    map[string]*template.Template
	settings SettingsReader
	logger   *slog.Logger
}

// Page is what a handler passes to Render.
type Page struct {
	Title string
	Error string
	Data  any
}

// pageData is what the templates see.
type pageData struct {
	Page
	User     *model.SessionUser
	Theme    string
	Language string
}

// NewRenderer parses every page from fsys.
func NewRenderer(fsys fs.FS, settings SettingsReader, logger *slog.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"date": formatDate,
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, "base.html", "partials.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages, settings: settings, logger: logger}, nil
}

// Render writes page name with the given status.
//
// The template is executed into a buffer first: a failure halfway through
// then still produces a clean 500 instead of half a page.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, p Page) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := pageData{Page: p, Theme: "light", Language: "en"}
	if user, ok := auth.UserFromContext(r.Context()); ok {
		data.User = &user
	}
	if ws, err := rd.settings.GetWebsiteSettings(r.Context()); err == nil {
		data.Theme, data.Language = ws.Theme, ws.Language
	} else {
		rd.logger.Warn("website settings unavailable", slog.String("error", err.Error()))
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// RenderError shows the generic error page for err.
func (rd *Renderer) RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	logFailure(r, rd.logger, status, err)
	rd.Render(w, r, status, "error", Page{Title: msg})
}

// formatDate prints t as a calendar date in the given IANA timezone,
// falling back to UTC for unknown zones.
func formatDate(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("January 2, 2006")
}
