package species

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeWikipedia answers /page/summary/{title}. Titles listed in missing get 404.
func fakeWikipedia(t *testing.T, missing ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("User-Agent") != userAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		title := strings.TrimPrefix(r.URL.Path, "/page/summary/")
		for _, m := range missing {
			if title == m {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		if title == "Mercury" {
			fmt.Fprint(w, `{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to"}`)
			return
		}
		fmt.Fprintf(w, `{
			"type": "standard",
			"title": %q,
			"description": "Species of bird",
			"extract": "The %s is a bird.",
			"thumbnail": {"source": "https://img.example/%s.jpg"},
			"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/%s"}}
		}`, title, title, title, title)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLookup(t *testing.T) {
	srv, _ := fakeWikipedia(t)
	c := NewClient(srv.URL, discardLogger())

	s, err := c.Lookup(context.Background(), "Blue jay")
	require.NoError(t, err)
	assert.Equal(t, "Blue_jay", s.Title)
	assert.Equal(t, "The Blue_jay is a bird.", s.Extract)
	assert.Equal(t, "https://img.example/Blue_jay.jpg", s.ThumbnailURL)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Blue_jay", s.PageURL)
}

func TestLookup_NotFound(t *testing.T) {
	srv, _ := fakeWikipedia(t, "Dodo_bird")
	c := NewClient(srv.URL, discardLogger())

	tests := []string{"Dodo bird", "Mercury", "   "}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Lookup(context.Background(), name)
			assert.True(t, errors.Is(err, ErrNotFound), "Lookup(%q) error = %v", name, err)
		})
	}
}

func TestLookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, discardLogger())

	_, err := c.Lookup(context.Background(), "Blue jay")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPopular_SkipsFailuresAndKeepsOrder(t *testing.T) {
	srv, calls := fakeWikipedia(t, "Bald_eagle")
	c := NewClient(srv.URL, discardLogger())

	got := c.Popular(context.Background())

	assert.EqualValues(t, len(PopularSpecies), calls.Load(), "every species is fetched, no caching")
	require.Len(t, got, len(PopularSpecies)-1)
	assert.Equal(t, "American_robin", got[0].Title)
	for _, s := range got {
		assert.NotEqual(t, "Bald_eagle", s.Title)
	}

	// A second call fetches everything again.
	c.Popular(context.Background())
	assert.EqualValues(t, 2*len(PopularSpecies), calls.Load())
}
