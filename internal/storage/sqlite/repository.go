package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Opportunity{},
		&models.OpportunitySource{},
		&models.DuplicateGroup{},
		&models.ArtistProfile{},
		&models.SourceSettings{},
		&models.ScheduledJob{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// Opportunity operations

func (r *Repository) CreateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	return r.db.WithContext(ctx).Create(opp).Error
}

func (r *Repository) GetOpportunityByID(ctx context.Context, id uint) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := r.db.WithContext(ctx).First(&opp, id).Error; err != nil {
		return nil, translate(err)
	}
	return &opp, nil
}

func (r *Repository) GetOpportunityByURL(ctx context.Context, url string) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&opp).Error; err != nil {
		return nil, translate(err)
	}
	return &opp, nil
}

func (r *Repository) FindByCanonicalHash(ctx context.Context, hash string) ([]*models.Opportunity, error) {
	var opps []*models.Opportunity
	if err := r.db.WithContext(ctx).Where("canonical_hash = ?", hash).Find(&opps).Error; err != nil {
		return nil, err
	}
	return opps, nil
}

func (r *Repository) ListOpportunities(ctx context.Context, filter storage.OpportunityFilter) ([]*models.Opportunity, error) {
	var opps []*models.Opportunity
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Opportunity{}), filter)

	// Ordering
	orderCol := "relevance_score"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&opps).Error; err != nil {
		return nil, err
	}
	return opps, nil
}

func (r *Repository) CountOpportunities(ctx context.Context, filter storage.OpportunityFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Opportunity{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) applyFilter(query *gorm.DB, filter storage.OpportunityFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SourceType != nil {
		query = query.Where("source_type = ?", *filter.SourceType)
	}
	if filter.MinScore != nil {
		query = query.Where("relevance_score >= ?", *filter.MinScore)
	}
	if filter.MaxScore != nil {
		query = query.Where("relevance_score <= ?", *filter.MaxScore)
	}
	if filter.Processed != nil {
		query = query.Where("processed = ?", *filter.Processed)
	}
	if filter.DeadlineAfter != nil {
		query = query.Where("deadline >= ?", *filter.DeadlineAfter)
	}
	if filter.DeadlineBefore != nil {
		query = query.Where("deadline <= ?", *filter.DeadlineBefore)
	}
	return query
}

func (r *Repository) ListRecentOpportunities(ctx context.Context, since time.Time, limit int) ([]*models.Opportunity, error) {
	var opps []*models.Opportunity
	query := r.db.WithContext(ctx).
		Where("discovered_at >= ?", since).
		Order("discovered_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&opps).Error; err != nil {
		return nil, err
	}
	return opps, nil
}

func (r *Repository) UpdateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	return r.db.WithContext(ctx).Save(opp).Error
}

// UpdateOpportunityStatus moves an opportunity through the workflow. The
// transition is checked inside a transaction so concurrent updates cannot
// skip states.
func (r *Repository) UpdateOpportunityStatus(ctx context.Context, id uint, to models.OpportunityStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var opp models.Opportunity
		if err := tx.First(&opp, id).Error; err != nil {
			return translate(err)
		}
		if !models.IsTransitionAllowed(opp.Status, to) {
			return fmt.Errorf("%w: %s -> %s", storage.ErrInvalidTransition, opp.Status, to)
		}
		return tx.Model(&opp).Update("status", to).Error
	})
}

func (r *Repository) DeleteOpportunity(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Opportunity{}, id).Error
}

// Source link operations

func (r *Repository) AddOpportunitySource(ctx context.Context, link *models.OpportunitySource) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *Repository) GetOpportunitySources(ctx context.Context, opportunityID uint) ([]*models.OpportunitySource, error) {
	var links []*models.OpportunitySource
	if err := r.db.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Order("seen_at ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// Duplicate group operations

func (r *Repository) RecordDuplicate(ctx context.Context, group *models.DuplicateGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *Repository) ListDuplicatesOf(ctx context.Context, masterID uint) ([]*models.DuplicateGroup, error) {
	var groups []*models.DuplicateGroup
	if err := r.db.WithContext(ctx).
		Where("master_id = ?", masterID).
		Order("detected_at ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *Repository) IsKnownDuplicate(ctx context.Context, masterID, duplicateID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DuplicateGroup{}).
		Where("master_id = ? AND duplicate_id = ?", masterID, duplicateID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Artist profile operations

func (r *Repository) GetProfile(ctx context.Context, id string) (*models.ArtistProfile, error) {
	var profile models.ArtistProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (r *Repository) SaveProfile(ctx context.Context, profile *models.ArtistProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// Source settings operations

func (r *Repository) GetSourceSettings(ctx context.Context) ([]*models.SourceSettings, error) {
	var settings []*models.SourceSettings
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *Repository) GetSourceSettingsByName(ctx context.Context, name string) (*models.SourceSettings, error) {
	var settings models.SourceSettings
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&settings).Error; err != nil {
		return nil, translate(err)
	}
	return &settings, nil
}

func (r *Repository) SaveSourceSettings(ctx context.Context, settings *models.SourceSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

func (r *Repository) DeleteSourceSettings(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.SourceSettings{}).Error
}

// ReplaceSourceSettings swaps the whole settings table in one transaction so
// a failed import never leaves a half-applied mix of old and new rows.
func (r *Repository) ReplaceSourceSettings(ctx context.Context, settings []*models.SourceSettings) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SourceSettings{}).Error; err != nil {
			return err
		}
		for _, s := range settings {
			if err := tx.Create(s).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Scheduled job operations

func (r *Repository) GetScheduledJobs(ctx context.Context) ([]*models.ScheduledJob, error) {
	var jobs []*models.ScheduledJob
	if err := r.db.WithContext(ctx).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Repository) SaveScheduledJob(ctx context.Context, job *models.ScheduledJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *Repository) DeleteScheduledJob(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ScheduledJob{}).Error
}
