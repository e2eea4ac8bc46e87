package newsletter

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source"
	"github.com/artscout-agent/pkg/logger"
	"github.com/artscout-agent/pkg/ratelimit"
)

// maxItemAge skips newsletter items old enough that their calls have
// usually closed.
const maxItemAge = 30 * 24 * time.Hour

// Source implements Discoverer for newsletter RSS/Atom feeds.
type Source struct {
	feeds   []config.NewsletterFeed
	limiter *ratelimit.DomainLimiter
	log     *logger.Logger

	mu       sync.Mutex
	parser   *gofeed.Parser
	settings models.SourceSettings
}

// New creates a new newsletter source covering all configured feeds
func New(cfg config.NewsletterConfig, limiter *ratelimit.DomainLimiter, log *logger.Logger) *Source {
	return &Source{
		feeds:   cfg.Feeds,
		limiter: limiter,
		log:     log.WithSource("newsletter", "newsletter"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "newsletter"
}

// Type returns "newsletter"
func (s *Source) Type() string {
	return "newsletter"
}

// Initialize prepares the feed parser.
func (s *Source) Initialize(_ context.Context, settings models.SourceSettings) error {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: settings.Timeout()}

	s.mu.Lock()
	s.parser = parser
	s.settings = settings
	s.mu.Unlock()

	if s.limiter != nil && settings.RateLimitPerMinute > 0 {
		for _, feed := range s.feeds {
			s.limiter.SetDomainLimit(ratelimit.Domain(feed.URL), settings.RateLimitPerMinute)
		}
	}
	return nil
}

// Discover parses each feed and keeps items that read like opportunities.
func (s *Source) Discover(ctx context.Context) (*source.Result, error) {
	start := time.Now()

	s.mu.Lock()
	parser := s.parser
	s.mu.Unlock()

	if parser == nil {
		return nil, &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "discover",
			Err:        fmt.Errorf("source is not initialized"),
		}
	}

	result := &source.Result{}
	seen := make(map[string]bool)

	for _, feedCfg := range s.feeds {
		if s.limiter != nil {
			if err := s.limiter.WaitForAvailability(ctx, ratelimit.Domain(feedCfg.URL)); err != nil {
				result.Errors = append(result.Errors, err)
				break
			}
		}

		s.log.Debug().Str("url", feedCfg.URL).Msg("Fetching newsletter feed")

		feed, err := parser.ParseURLWithContext(feedCfg.URL, ctx)
		if err != nil {
			result.Errors = append(result.Errors, &source.DiscoveryError{
				SourceName: s.Name(),
				SourceType: s.Type(),
				Op:         "parse_feed",
				Metadata:   map[string]interface{}{"feed": feedCfg.Name, "url": feedCfg.URL},
				Err:        err,
			})
			continue
		}

		organization := feed.Title
		if organization == "" {
			organization = feedCfg.Name
		}

		for _, item := range feed.Items {
			if item.Link == "" || seen[item.Link] {
				continue
			}
			if item.PublishedParsed != nil && time.Since(*item.PublishedParsed) > maxItemAge {
				continue
			}

			title := source.CleanText(item.Title)
			description := source.CleanText(item.Description)
			if !source.LooksLikeOpportunity(title + " " + description) {
				continue
			}
			seen[item.Link] = true

			result.Opportunities = append(result.Opportunities, &models.OpportunityData{
				Title:        title,
				Description:  description,
				URL:          item.Link,
				Organization: organization,
				Deadline:     source.ExtractDeadline(title + " " + description),
				SourceType:   models.SourceNewsletter,
				SourceName:   s.Name(),
				SourceURL:    feedCfg.URL,
				Raw: map[string]interface{}{
					"feed":       feedCfg.Name,
					"guid":       item.GUID,
					"categories": item.Categories,
					"published":  item.Published,
				},
			})
		}
	}

	result.ProcessingMs = time.Since(start).Milliseconds()

	s.log.Info().
		Int("count", len(result.Opportunities)).
		Int("errors", len(result.Errors)).
		Int("feeds", len(s.feeds)).
		Msg("Newsletter discovery completed")

	return result, nil
}

// IsHealthy verifies the first configured feed parses.
func (s *Source) IsHealthy(ctx context.Context) bool {
	s.mu.Lock()
	parser := s.parser
	s.mu.Unlock()
	if parser == nil || len(s.feeds) == 0 {
		return parser != nil
	}
	_, err := parser.ParseURLWithContext(s.feeds[0].URL, ctx)
	return err == nil
}

// UpdateConfig applies new settings to the running source.
func (s *Source) UpdateConfig(settings models.SourceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	if s.parser != nil && s.parser.Client != nil {
		s.parser.Client.Timeout = settings.Timeout()
	}
	s.mu.Unlock()

	if s.limiter != nil && settings.RateLimitPerMinute > 0 {
		for _, feed := range s.feeds {
			s.limiter.SetDomainLimit(ratelimit.Domain(feed.URL), settings.RateLimitPerMinute)
		}
	}
	return nil
}

// Cleanup releases resources. The parser holds none.
func (s *Source) Cleanup() error {
	return nil
}

// Ensure Source implements source.Discoverer
var _ source.Discoverer = (*Source)(nil)
