// Package species looks up bird species summaries on Wikipedia.
//
// Results are fetched on every request; nothing is cached.
package species

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the English Wikipedia REST API.
const DefaultBaseURL = "https://en.wikipedia.org/api/rest_v1"

const (
	requestTimeout = 5 * time.Second
	userAgent      = "BirdDropper/1.0 (bird photo sharing; species lookup)"
	maxConcurrent  = 4
)

// ErrNotFound is returned when Wikipedia has no page for the name.
var ErrNotFound = errors.New("species: not found")

// PopularSpecies is the fixed list shown on the species page.
var PopularSpecies = []string{
	"American robin",
	"Blue jay",
	"Northern cardinal",
	"Bald eagle",
	"Mourning dove",
	"Black-capped chickadee",
	"Red-tailed hawk",
	"Great blue heron",
}

// Summary is what the UI shows for one species.
type Summary struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Extract      string `json:"extract"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PageURL      string `json:"page_url,omitempty"`
}

// Client calls the Wikipedia page summary endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. An empty baseURL means DefaultBaseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// summaryResponse mirrors the fields we read from /page/summary/{title}.
type summaryResponse struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
	Thumbnail   *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Lookup fetches the summary for name. A missing page is ErrNotFound.
func (c *Client) Lookup(ctx context.Context, name string) (*Summary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	title := url.PathEscape(strings.ReplaceAll(name, " ", "_"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/page/summary/"+title, nil)
	if err != nil {
		return nil, fmt.Errorf("species: building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("species: fetching %q: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("species: fetching %q: status %d", name, resp.StatusCode)
	}

	var body summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("species: decoding %q: %w", name, err)
	}
	// Disambiguation pages are not a species.
	if body.Type == "disambiguation" || body.Extract == "" {
		return nil, ErrNotFound
	}

	s := &Summary{
		Title:       body.Title,
		Description: body.Description,
		Extract:     body.Extract,
		PageURL:     body.ContentURLs.Desktop.Page,
	}
	if body.Thumbnail != nil {
		s.ThumbnailURL = body.Thumbnail.Source
	}
	return s, nil
}

// Popular fetches every entry of PopularSpecies concurrently. Failed lookups
// are logged and skipped; the order of the list is preserved.
func (c *Client) Popular(ctx context.Context) []Summary {
	results := make([]*Summary, len(PopularSpecies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, name := range PopularSpecies {
		i, name := i, name
		g.Go(func() error {
			s, err := c.Lookup(ctx, name)
			if err != nil {
				// One missing bird should not blank the page, so never fail the group.
				c.logger.Warn("species lookup failed",
					slog.String("species", name),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = s
			return nil
		})
	}
	g.Wait()

	out := make([]Summary, 0, len(results))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}
