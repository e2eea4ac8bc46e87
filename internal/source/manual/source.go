package manual

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source"
	"github.com/artscout-agent/pkg/logger"
)

// Source implements Discoverer for operator-submitted listings. Submissions
// queue in memory and drain on the next discovery run, which pushes them
// through the same dedup and scoring pipeline as scraped candidates.
type Source struct {
	log *logger.Logger

	mu          sync.Mutex
	initialized bool
	queue       []*models.OpportunityData
}

// New creates a new manual source
func New(log *logger.Logger) *Source {
	return &Source{
		log: log.WithSource("manual", "manual"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "manual"
}

// Type returns "manual"
func (s *Source) Type() string {
	return "manual"
}

// Initialize marks the source ready.
func (s *Source) Initialize(_ context.Context, _ models.SourceSettings) error {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// Submit queues a listing for the next discovery run.
func (s *Source) Submit(data *models.OpportunityData) error {
	if strings.TrimSpace(data.Title) == "" {
		return fmt.Errorf("manual submission requires a title")
	}
	if strings.TrimSpace(data.URL) == "" {
		return fmt.Errorf("manual submission requires a url")
	}

	data.SourceType = models.SourceManual
	data.SourceName = s.Name()
	if data.SourceURL == "" {
		data.SourceURL = data.URL
	}

	s.mu.Lock()
	s.queue = append(s.queue, data)
	pending := len(s.queue)
	s.mu.Unlock()

	s.log.Info().
		Str("title", data.Title).
		Int("pending", pending).
		Msg("Queued manual submission")
	return nil
}

// Pending returns the number of queued submissions.
func (s *Source) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Discover drains the submission queue.
func (s *Source) Discover(_ context.Context) (*source.Result, error) {
	start := time.Now()

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, &source.DiscoveryError{
			SourceName: s.Name(),
			SourceType: s.Type(),
			Op:         "discover",
			Err:        fmt.Errorf("source is not initialized"),
		}
	}
	drained := s.queue
	s.queue = nil
	s.mu.Unlock()

	result := &source.Result{
		Opportunities: drained,
		ProcessingMs:  time.Since(start).Milliseconds(),
	}

	s.log.Info().
		Int("count", len(drained)).
		Msg("Drained manual submissions")

	return result, nil
}

// IsHealthy reports whether the source accepted initialization.
func (s *Source) IsHealthy(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// UpdateConfig validates the settings. The manual source has nothing to apply.
func (s *Source) UpdateConfig(settings models.SourceSettings) error {
	return settings.Validate()
}

// Cleanup drops any queued submissions.
func (s *Source) Cleanup() error {
	s.mu.Lock()
	s.queue = nil
	s.initialized = false
	s.mu.Unlock()
	return nil
}

// Ensure Source implements source.Discoverer
var _ source.Discoverer = (*Source)(nil)
