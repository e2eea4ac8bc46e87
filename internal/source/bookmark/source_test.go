package bookmark_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source/bookmark"
	"github.com/artscout-agent/pkg/logger"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<ul>
  <li><a href="/calls/stone-2026">Stone Carving Residency 2026</a> Open call, deadline: March 15, 2026</li>
  <li><a href="https://other.example/grant">Emerging Artist Grant</a> Apply by Jun 1, 2026</li>
  <li><a href="/news/retrospective">Museum retrospective opens</a> A look back at fifty years</li>
  <li><a href="mailto:info@example.org">Contact us to apply</a></li>
</ul>
</body></html>`

func bookmarkSettings() models.SourceSettings {
	return models.SourceSettings{
		Name: "bookmark", Type: "bookmark", Enabled: true,
		Priority: models.PriorityMedium, TimeoutMs: 5000,
	}
}

func TestDiscover_ExtractsListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingPage))
	}))
	defer server.Close()

	s := bookmark.New(config.BookmarkConfig{
		Pages: []config.Bookmark{{Name: "Arts Board", URL: server.URL + "/listings"}},
	}, nil, logger.Nop())

	require.NoError(t, s.Initialize(context.Background(), bookmarkSettings()))

	result, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Opportunities, 2, "nav links, mailto and non-opportunity items are skipped")

	first := result.Opportunities[0]
	assert.Equal(t, "Stone Carving Residency 2026", first.Title)
	assert.Equal(t, server.URL+"/calls/stone-2026", first.URL, "relative links resolve against the page")
	assert.Equal(t, "Arts Board", first.Organization)
	require.NotNil(t, first.Deadline)
	assert.Equal(t, "2026-03-15", first.Deadline.Format(time.DateOnly))

	second := result.Opportunities[1]
	assert.Equal(t, "https://other.example/grant", second.URL, "absolute links pass through")
	require.NotNil(t, second.Deadline)
	assert.Equal(t, "2026-06-01", second.Deadline.Format(time.DateOnly))
}

func TestDiscover_ReportsPageErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	s := bookmark.New(config.BookmarkConfig{
		Pages: []config.Bookmark{
			{Name: "Dead Board", URL: server.URL + "/missing"},
		},
	}, nil, logger.Nop())

	require.NoError(t, s.Initialize(context.Background(), bookmarkSettings()))

	result, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Opportunities)
	require.Len(t, result.Errors, 1)
}

func TestIsHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := bookmark.New(config.BookmarkConfig{
		Pages: []config.Bookmark{{Name: "Board", URL: server.URL}},
	}, nil, logger.Nop())

	assert.False(t, s.IsHealthy(context.Background()), "unhealthy before initialize")
	require.NoError(t, s.Initialize(context.Background(), bookmarkSettings()))
	assert.True(t, s.IsHealthy(context.Background()))
}
