package websearch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source"
	"github.com/artscout-agent/pkg/logger"
	"github.com/artscout-agent/pkg/ratelimit"
)

const apiDomain = "www.googleapis.com"

// Source implements Discoverer on top of Google Programmable Search. Each
// configured query becomes one search request; results are mapped to
// opportunity candidates.
type Source struct {
	cfg     config.WebSearchConfig
	limiter *ratelimit.DomainLimiter
	log     *logger.Logger

	mu       sync.Mutex
	svc      *customsearch.Service
	queries  []string
	settings models.SourceSettings
}

// New creates a new web search source
func New(cfg config.WebSearchConfig, limiter *ratelimit.DomainLimiter, log *logger.Logger) *Source {
	return &Source{
		cfg:     cfg,
		limiter: limiter,
		queries: cfg.Queries,
		log:     log.WithSource("websearch", "websearch"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "websearch"
}

// Type returns "websearch"
func (s *Source) Type() string {
	return "websearch"
}

// Initialize builds the search service and applies the settings.
func (s *Source) Initialize(ctx context.Context, settings models.SourceSettings) error {
	if s.cfg.APIKey == "" {
		return &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "initialize",
			Err:        fmt.Errorf("api key is not configured"),
		}
	}
	if s.cfg.SearchEngineID == "" {
		return &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "initialize",
			Err:        fmt.Errorf("search engine id is not configured"),
		}
	}

	svc, err := customsearch.NewService(ctx, option.WithAPIKey(s.cfg.APIKey))
	if err != nil {
		return &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "initialize",
			Err:        err,
		}
	}

	s.mu.Lock()
	s.svc = svc
	s.settings = settings
	s.mu.Unlock()

	if s.limiter != nil && settings.RateLimitPerMinute > 0 {
		s.limiter.SetDomainLimit(apiDomain, settings.RateLimitPerMinute)
	}
	return nil
}

// SetQueries replaces the active search queries.
func (s *Source) SetQueries(queries []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(queries) > 0 {
		s.queries = queries
	}
}

// Discover runs each query against the search API and maps results to
// opportunity candidates.
func (s *Source) Discover(ctx context.Context) (*source.Result, error) {
	start := time.Now()

	s.mu.Lock()
	svc := s.svc
	queries := make([]string, len(s.queries))
	copy(queries, s.queries)
	s.mu.Unlock()

	if svc == nil {
		return nil, &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "discover",
			Err:        fmt.Errorf("source is not initialized"),
		}
	}

	result := &source.Result{}
	seen := make(map[string]bool)

	for _, query := range queries {
		if s.limiter != nil {
			if err := s.limiter.WaitForAvailability(ctx, apiDomain); err != nil {
				result.Errors = append(result.Errors, err)
				break
			}
		}

		s.log.Debug().Str("query", query).Msg("Running web search")

		num := int64(s.cfg.MaxResults)
		if num <= 0 || num > 10 {
			num = 10
		}
		resp, err := svc.Cse.List().
			Cx(s.cfg.SearchEngineID).
			Q(query).
			Num(num).
			Context(ctx).
			Do()
		if err != nil {
			result.Errors = append(result.Errors, &source.DiscoveryError{
				SourceName: s.Name(),
				SourceType: s.Type(),
				Op:         "search",
				Metadata:   map[string]interface{}{"query": query},
				Err:        err,
			})
			continue
		}

		for _, item := range resp.Items {
			if item.Link == "" || seen[item.Link] {
				continue
			}
			seen[item.Link] = true

			snippet := source.CleanText(item.Snippet)
			result.Opportunities = append(result.Opportunities, &models.OpportunityData{
				Title:        source.CleanText(item.Title),
				Description:  snippet,
				URL:          item.Link,
				Organization: item.DisplayLink,
				Deadline:     source.ExtractDeadline(snippet),
				SourceType:   models.SourceWebSearch,
				SourceName:   s.Name(),
				SourceURL:    item.Link,
				Raw: map[string]interface{}{
					"query":        query,
					"display_link": item.DisplayLink,
				},
			})
		}
	}

	result.ProcessingMs = time.Since(start).Milliseconds()

	s.log.Info().
		Int("count", len(result.Opportunities)).
		Int("errors", len(result.Errors)).
		Int("queries", len(queries)).
		Msg("Web search discovery completed")

	return result, nil
}

// IsHealthy verifies the search service is reachable with a minimal probe.
func (s *Source) IsHealthy(ctx context.Context) bool {
	s.mu.Lock()
	svc := s.svc
	s.mu.Unlock()
	if svc == nil {
		return false
	}

	_, err := svc.Cse.List().
		Cx(s.cfg.SearchEngineID).
		Q("artist grant").
		Num(1).
		Context(ctx).
		Do()
	return err == nil
}

// UpdateConfig applies new settings to the running source.
func (s *Source) UpdateConfig(settings models.SourceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	if s.limiter != nil && settings.RateLimitPerMinute > 0 {
		s.limiter.SetDomainLimit(apiDomain, settings.RateLimitPerMinute)
	}
	return nil
}

// Cleanup releases resources. The search client holds none.
func (s *Source) Cleanup() error {
	return nil
}

// Ensure Source implements source.Discoverer
var _ source.Discoverer = (*Source)(nil)
var _ source.QueryConfigurable = (*Source)(nil)
