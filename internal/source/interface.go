package source

import (
	"context"
	"fmt"

	"github.com/artscout-agent/internal/models"
)

// Result is the outcome of one discovery run against a single source.
// Opportunities and Errors can both be non-empty: a source reports what it
// found even when some of its requests failed.
type Result struct {
	Opportunities []*models.OpportunityData
	Errors        []error
	ProcessingMs  int64
}

// Discoverer is the plugin interface for opportunity sources. A discoverer
// is initialized once, reconfigured any number of times, and cleaned up when
// the application shuts down.
type Discoverer interface {
	// Name returns the unique name of this source
	Name() string

	// Type returns the source type (websearch, social, bookmark, newsletter, manual)
	Type() string

	// Initialize prepares the source with its settings. A source that fails
	// to initialize is excluded from discovery runs until it succeeds.
	Initialize(ctx context.Context, settings models.SourceSettings) error

	// Discover retrieves opportunity candidates from the source
	Discover(ctx context.Context) (*Result, error)

	// IsHealthy verifies the source is accessible
	IsHealthy(ctx context.Context) bool

	// UpdateConfig applies new settings to a running source
	UpdateConfig(settings models.SourceSettings) error

	// Cleanup releases any resources held by the source
	Cleanup() error
}

// QueryConfigurable is implemented by sources that accept generated search
// queries. The analyst pushes fresh queries here before a discovery run.
type QueryConfigurable interface {
	SetQueries(queries []string)
}

// DiscoveryError attributes a failure to the source that produced it.
type DiscoveryError struct {
	SourceName string
	SourceType string
	Op         string
	Metadata   map[string]interface{}
	Err        error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("source %s (%s): %s: %v", e.SourceName, e.SourceType, e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
