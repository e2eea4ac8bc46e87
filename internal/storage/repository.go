package storage

import (
	"context"
	"errors"
	"time"

	"github.com/artscout-agent/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: record not found")

// ErrInvalidTransition is returned when a status update violates the
// opportunity workflow.
var ErrInvalidTransition = errors.New("storage: status transition not allowed")

// Repository defines the interface for data persistence
type Repository interface {
	// Opportunity operations
	CreateOpportunity(ctx context.Context, opp *models.Opportunity) error
	GetOpportunityByID(ctx context.Context, id uint) (*models.Opportunity, error)
	GetOpportunityByURL(ctx context.Context, url string) (*models.Opportunity, error)
	FindByCanonicalHash(ctx context.Context, hash string) ([]*models.Opportunity, error)
	ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]*models.Opportunity, error)
	CountOpportunities(ctx context.Context, filter OpportunityFilter) (int64, error)
	ListRecentOpportunities(ctx context.Context, since time.Time, limit int) ([]*models.Opportunity, error)
	UpdateOpportunity(ctx context.Context, opp *models.Opportunity) error
	UpdateOpportunityStatus(ctx context.Context, id uint, to models.OpportunityStatus) error
	DeleteOpportunity(ctx context.Context, id uint) error

	// Source link operations (exact duplicates fold into these)
	AddOpportunitySource(ctx context.Context, link *models.OpportunitySource) error
	GetOpportunitySources(ctx context.Context, opportunityID uint) ([]*models.OpportunitySource, error)

	// Duplicate group operations
	RecordDuplicate(ctx context.Context, group *models.DuplicateGroup) error
	ListDuplicatesOf(ctx context.Context, masterID uint) ([]*models.DuplicateGroup, error)
	IsKnownDuplicate(ctx context.Context, masterID, duplicateID uint) (bool, error)

	// Artist profile operations
	GetProfile(ctx context.Context, id string) (*models.ArtistProfile, error)
	SaveProfile(ctx context.Context, profile *models.ArtistProfile) error

	// Source settings operations
	GetSourceSettings(ctx context.Context) ([]*models.SourceSettings, error)
	GetSourceSettingsByName(ctx context.Context, name string) (*models.SourceSettings, error)
	SaveSourceSettings(ctx context.Context, settings *models.SourceSettings) error
	DeleteSourceSettings(ctx context.Context, name string) error
	ReplaceSourceSettings(ctx context.Context, settings []*models.SourceSettings) error

	// Scheduled job operations
	GetScheduledJobs(ctx context.Context) ([]*models.ScheduledJob, error)
	SaveScheduledJob(ctx context.Context, job *models.ScheduledJob) error
	DeleteScheduledJob(ctx context.Context, id string) error

	// Maintenance
	Close() error
	Migrate() error
}

// OpportunityFilter defines filtering options for opportunities
type OpportunityFilter struct {
	Status         *models.OpportunityStatus
	SourceType     *string
	MinScore       *float64
	MaxScore       *float64
	Processed      *bool
	DeadlineAfter  *time.Time
	DeadlineBefore *time.Time
	Limit          int
	Offset         int
	OrderBy        string // "relevance_score", "deadline", "discovered_at"
	OrderDesc      bool
}

// DefaultOpportunityFilter returns a filter with sensible defaults
func DefaultOpportunityFilter() OpportunityFilter {
	return OpportunityFilter{
		Limit:     50,
		OrderBy:   "relevance_score",
		OrderDesc: true,
	}
}
