package social_test

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
	"github.com/artscout-agent/internal/source/social"
	"github.com/artscout-agent/pkg/logger"
)

// fakeAPI serves a client-credentials token endpoint and a posts endpoint.
func fakeAPI(t *testing.T, postsJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(postsJSON))
	})
	return httptest.NewServer(mux)
}

func socialSettings() models.SourceSettings {
	return models.SourceSettings{
		Name: "social", Type: "social", Enabled: true,
		Priority: models.PriorityMedium, TimeoutMs: 5000,
	}
}

func TestDiscover_FiltersAndMaps(t *testing.T) {
	recent := time.Now().Add(-48 * time.Hour).Format(time.RFC3339)
	stale := time.Now().Add(-90 * 24 * time.Hour).Format(time.RFC3339)
	postsJSON := `{"posts":[
		{"id":"1","text":"Open call for sculptors! Deadline: March 15, 2026. Apply now.","url":"https://social.example/p/1","created_at":"` + recent + `","author":{"name":"Kunsthalle Nord"}},
		{"id":"2","text":"Lovely studio visit today","url":"https://social.example/p/2","created_at":"` + recent + `","author":{"name":"Someone"}},
		{"id":"3","text":"Residency open call","url":"https://social.example/p/3","created_at":"` + stale + `","author":{"name":"Old News"}},
		{"id":"4","text":"Grant announcement, apply by Jun 1, 2026","url":"","created_at":"` + recent + `","author":{"name":"No Link"}}
	]}`

	server := fakeAPI(t, postsJSON)
	defer server.Close()

	s := social.New(config.SocialConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/oauth/token",
		APIBase:      server.URL,
		Hashtags:     []string{"opencall"},
	}, nil, logger.Nop())

	require.NoError(t, s.Initialize(context.Background(), socialSettings()))

	result, err := s.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 1, "only the fresh opportunity post with a link survives")

	opp := result.Opportunities[0]
	assert.Equal(t, "Open call for sculptors", opp.Title)
	assert.Equal(t, "https://social.example/p/1", opp.URL)
	assert.Equal(t, "Kunsthalle Nord", opp.Organization)
	require.NotNil(t, opp.Deadline)
	assert.Equal(t, "2026-03-15", opp.Deadline.Format(time.DateOnly))
	assert.Empty(t, result.Errors)
}

func TestDiscover_ReportsPerHashtagErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := social.New(config.SocialConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/oauth/token",
		APIBase:      server.URL,
		Hashtags:     []string{"opencall", "artistopportunity"},
	}, nil, logger.Nop())

	require.NoError(t, s.Initialize(context.Background(), socialSettings()))

	result, err := s.Discover(context.Background())
	require.NoError(t, err, "per-hashtag failures do not fail the run")
	assert.Empty(t, result.Opportunities)
	assert.Len(t, result.Errors, 2)
}

func TestInitialize_RequiresCredentials(t *testing.T) {
	s := social.New(config.SocialConfig{}, nil, logger.Nop())
	err := s.Initialize(context.Background(), socialSettings())
	require.Error(t, err)

	_, err = s.Discover(context.Background())
	assert.Error(t, err, "uninitialized source refuses to discover")
	assert.False(t, s.IsHealthy(context.Background()))
}

func TestIsHealthy(t *testing.T) {
	server := fakeAPI(t, `{"posts":[]}`)
	defer server.Close()

	s := social.New(config.SocialConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/oauth/token",
		APIBase:      server.URL,
		Hashtags:     []string{"opencall"},
	}, nil, logger.Nop())

	require.NoError(t, s.Initialize(context.Background(), socialSettings()))
	assert.True(t, s.IsHealthy(context.Background()))

	require.NoError(t, s.Cleanup())
	assert.False(t, s.IsHealthy(context.Background()))
}
