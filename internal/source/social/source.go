package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source"
	"github.com/artscout-agent/pkg/logger"
	"github.com/artscout-agent/pkg/ratelimit"
)

// maxPostAge filters out stale posts. Open calls circulating longer than
// this are either expired or already discovered.
const maxPostAge = 30 * 24 * time.Hour

// Source implements Discoverer for a social listing API using OAuth2
// client credentials.
type Source struct {
	cfg     config.SocialConfig
	limiter *ratelimit.DomainLimiter
	log     *logger.Logger

	mu         sync.Mutex
	httpClient *http.Client
	hashtags   []string
	settings   models.SourceSettings
}

// New creates a new social source
func New(cfg config.SocialConfig, limiter *ratelimit.DomainLimiter, log *logger.Logger) *Source {
	return &Source{
		cfg:      cfg,
		limiter:  limiter,
		hashtags: cfg.Hashtags,
		log:      log.WithSource("social", "social"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "social"
}

// Type returns "social"
func (s *Source) Type() string {
	return "social"
}

// Initialize sets up the OAuth2 client. The token source refreshes itself,
// so the client lives for the life of the process.
func (s *Source) Initialize(_ context.Context, settings models.SourceSettings) error {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "initialize",
			Err:        fmt.Errorf("client credentials are not configured"),
		}
	}
	if s.cfg.TokenURL == "" || s.cfg.APIBase == "" {
		return &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "initialize",
			Err:        fmt.Errorf("token_url and api_base are required"),
		}
	}

	conf := &clientcredentials.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		TokenURL:     s.cfg.TokenURL,
	}
	client := conf.Client(context.Background())
	client.Timeout = settings.Timeout()

	s.mu.Lock()
	s.httpClient = client
	s.settings = settings
	s.mu.Unlock()

	if s.limiter != nil && settings.RateLimitPerMinute > 0 {
		s.limiter.SetDomainLimit(ratelimit.Domain(s.cfg.APIBase), settings.RateLimitPerMinute)
	}
	return nil
}

type postsResponse struct {
	Posts []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		URL       string    `json:"url"`
		CreatedAt time.Time `json:"created_at"`
		Author    struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"posts"`
}

// Discover searches recent posts for each configured hashtag and keeps the
// ones that read like opportunity listings.
func (s *Source) Discover(ctx context.Context) (*source.Result, error) {
	start := time.Now()

	s.mu.Lock()
	client := s.httpClient
	hashtags := make([]string, len(s.hashtags))
	copy(hashtags, s.hashtags)
	s.mu.Unlock()

	if client == nil {
		return nil, &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "discover",
			Err:        fmt.Errorf("source is not initialized"),
		}
	}

	result := &source.Result{}
	seen := make(map[string]bool)
	apiDomain := ratelimit.Domain(s.cfg.APIBase)

	for _, hashtag := range hashtags {
		if s.limiter != nil {
			if err := s.limiter.WaitForAvailability(ctx, apiDomain); err != nil {
				result.Errors = append(result.Errors, err)
				break
			}
		}

		resp, err := s.fetchPosts(ctx, client, hashtag, 50)
		if err != nil {
			result.Errors = append(result.Errors, &source.DiscoveryError{
				SourceName: s.Name(),
				SourceType: s.Type(),
				Op:         "fetch_posts",
				Metadata:   map[string]interface{}{"hashtag": hashtag},
				Err:        err,
			})
			continue
		}

		for _, post := range resp.Posts {
			if post.URL == "" || seen[post.URL] {
				continue
			}
			if !post.CreatedAt.IsZero() && time.Since(post.CreatedAt) > maxPostAge {
				continue
			}
			text := source.CleanText(post.Text)
			if !source.LooksLikeOpportunity(text) {
				continue
			}
			seen[post.URL] = true

			result.Opportunities = append(result.Opportunities, &models.OpportunityData{
				Title:        postTitle(text),
				Description:  text,
				URL:          post.URL,
				Organization: post.Author.Name,
				Deadline:     source.ExtractDeadline(text),
				SourceType:   models.SourceSocial,
				SourceName:   s.Name(),
				SourceURL:    post.URL,
				Raw: map[string]interface{}{
					"hashtag":    hashtag,
					"post_id":    post.ID,
					"created_at": post.CreatedAt,
				},
			})
		}
	}

	result.ProcessingMs = time.Since(start).Milliseconds()

	s.log.Info().
		Int("count", len(result.Opportunities)).
		Int("errors", len(result.Errors)).
		Int("hashtags", len(hashtags)).
		Msg("Social discovery completed")

	return result, nil
}

func (s *Source) fetchPosts(ctx context.Context, client *http.Client, hashtag string, limit int) (*postsResponse, error) {
	endpoint := strings.TrimRight(s.cfg.APIBase, "/") + "/v1/posts"
	params := url.Values{}
	params.Set("hashtag", hashtag)
	params.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result postsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// IsHealthy verifies the listing API answers a minimal probe.
func (s *Source) IsHealthy(ctx context.Context) bool {
	s.mu.Lock()
	client := s.httpClient
	s.mu.Unlock()
	if client == nil {
		return false
	}

	hashtag := "opencall"
	if len(s.hashtags) > 0 {
		hashtag = s.hashtags[0]
	}
	_, err := s.fetchPosts(ctx, client, hashtag, 1)
	return err == nil
}

// UpdateConfig applies new settings to the running source.
func (s *Source) UpdateConfig(settings models.SourceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	if s.httpClient != nil {
		s.httpClient.Timeout = settings.Timeout()
	}
	s.mu.Unlock()

	if s.limiter != nil && settings.RateLimitPerMinute > 0 {
		s.limiter.SetDomainLimit(ratelimit.Domain(s.cfg.APIBase), settings.RateLimitPerMinute)
	}
	return nil
}

// Cleanup releases resources held by the source.
func (s *Source) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpClient != nil {
		s.httpClient.CloseIdleConnections()
		s.httpClient = nil
	}
	return nil
}

// postTitle derives a listing title from the post text, first line first.
func postTitle(text string) string {
	title := text
	if idx := strings.IndexAny(text, "\n.!?"); idx > 0 {
		title = text[:idx]
	}
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) > 140 {
		title = string(runes[:140])
	}
	return title
}

// Ensure Source implements source.Discoverer
var _ source.Discoverer = (*Source)(nil)
