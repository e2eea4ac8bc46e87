package bookmark

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source"
	"github.com/artscout-agent/pkg/logger"
	"github.com/artscout-agent/pkg/ratelimit"
)

// maxPerPage caps candidates extracted from a single listing page so one
// link-heavy page cannot flood a discovery run.
const maxPerPage = 50

// Source implements Discoverer for curated listing pages. Each configured
// page is fetched and scanned for links that read like opportunities.
type Source struct {
	pages   []config.Bookmark
	limiter *ratelimit.DomainLimiter
	log     *logger.Logger

	mu         sync.Mutex
	httpClient *http.Client
	settings   models.SourceSettings
}

// New creates a new bookmark source
func New(cfg config.BookmarkConfig, limiter *ratelimit.DomainLimiter, log *logger.Logger) *Source {
	return &Source{
		pages:   cfg.Pages,
		limiter: limiter,
		log:     log.WithSource("bookmark", "bookmark"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "bookmark"
}

// Type returns "bookmark"
func (s *Source) Type() string {
	return "bookmark"
}

// Initialize prepares the HTTP client used to fetch the pages.
func (s *Source) Initialize(_ context.Context, settings models.SourceSettings) error {
	s.mu.Lock()
	s.httpClient = &http.Client{Timeout: settings.Timeout()}
	s.settings = settings
	s.mu.Unlock()

	if s.limiter != nil && settings.RateLimitPerMinute > 0 {
		for _, page := range s.pages {
			s.limiter.SetDomainLimit(ratelimit.Domain(page.URL), settings.RateLimitPerMinute)
		}
	}
	return nil
}

// Discover fetches each listing page and extracts opportunity links.
func (s *Source) Discover(ctx context.Context) (*source.Result, error) {
	start := time.Now()

	s.mu.Lock()
	client := s.httpClient
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

	for _, page := range s.pages {
		if s.limiter != nil {
			if err := s.limiter.WaitForAvailability(ctx, ratelimit.Domain(page.URL)); err != nil {
				result.Errors = append(result.Errors, err)
				break
			}
		}

		candidates, err := s.scrapePage(ctx, client, page)
		if err != nil {
			result.Errors = append(result.Errors, &source.DiscoveryError{
				SourceName: s.Name(),
				SourceType: s.Type(),
				Op:         "scrape",
				Metadata:   map[string]interface{}{"page": page.Name, "url": page.URL},
				Err:        err,
			})
			continue
		}

		for _, c := range candidates {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			result.Opportunities = append(result.Opportunities, c)
		}
	}

	result.ProcessingMs = time.Since(start).Milliseconds()

	s.log.Info().
		Int("count", len(result.Opportunities)).
		Int("errors", len(result.Errors)).
		Int("pages", len(s.pages)).
		Msg("Bookmark discovery completed")

	return result, nil
}

func (s *Source) scrapePage(ctx context.Context, client *http.Client, page config.Bookmark) ([]*models.OpportunityData, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", page.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}

	var candidates []*models.OpportunityData
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		title := source.CleanText(sel.Text())
		if href == "" || title == "" {
			return true
		}

		// The surrounding block usually carries deadline and organizer text.
		block := title
		if parent := sel.Closest("li, article, td, div"); parent.Length() > 0 {
			block = source.CleanText(parent.First().Text())
		}
		if !source.LooksLikeOpportunity(block) {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if resolved.Host == base.Host && strings.Trim(resolved.Path, "/") == strings.Trim(base.Path, "/") {
			// Self links and fragment anchors are navigation, not listings
			return true
		}

		description := block
		if runes := []rune(description); len(runes) > 500 {
			description = string(runes[:500])
		}

		candidates = append(candidates, &models.OpportunityData{
			Title:        title,
			Description:  description,
			URL:          resolved.String(),
			Organization: page.Name,
			Deadline:     source.ExtractDeadline(block),
			SourceType:   models.SourceBookmark,
			SourceName:   s.Name(),
			SourceURL:    page.URL,
			Raw: map[string]interface{}{
				"page": page.Name,
			},
		})
		return len(candidates) < maxPerPage
	})

	return candidates, nil
}

// IsHealthy verifies the first configured page is reachable.
func (s *Source) IsHealthy(ctx context.Context) bool {
	s.mu.Lock()
	client := s.httpClient
	s.mu.Unlock()
	if client == nil || len(s.pages) == 0 {
		return client != nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.pages[0].URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
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
		for _, page := range s.pages {
			s.limiter.SetDomainLimit(ratelimit.Domain(page.URL), settings.RateLimitPerMinute)
		}
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

// Ensure Source implements source.Discoverer
var _ source.Discoverer = (*Source)(nil)
