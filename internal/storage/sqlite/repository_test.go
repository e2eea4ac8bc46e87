package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/storage"
	"github.com/artscout-agent/internal/storage/sqlite"
)

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleOpportunity(url string) *models.Opportunity {
	deadline := time.Now().AddDate(0, 1, 0)
	return &models.Opportunity{
		CanonicalHash: "hash-" + url,
		Title:         "Emerging Sculptor Grant",
		Description:   "Annual grant for early career sculptors.",
		URL:           url,
		Organization:  "Stonebridge Foundation",
		Deadline:      &deadline,
		Tags:          models.StringSlice{"grant", "sculpture"},
		SourceType:    "websearch",
		SourceName:    "websearch",
	}
}

func TestOpportunityRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	opp := sampleOpportunity("https://example.org/grant")
	require.NoError(t, repo.CreateOpportunity(ctx, opp))
	require.NotZero(t, opp.ID)

	byURL, err := repo.GetOpportunityByURL(ctx, "https://example.org/grant")
	require.NoError(t, err)
	assert.Equal(t, opp.ID, byURL.ID)
	assert.Equal(t, models.StatusNew, byURL.Status, "new rows default to status new")
	assert.Equal(t, models.StringSlice{"grant", "sculpture"}, byURL.Tags)

	byHash, err := repo.FindByCanonicalHash(ctx, opp.CanonicalHash)
	require.NoError(t, err)
	require.Len(t, byHash, 1)
}

func TestGetOpportunity_NotFound(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetOpportunityByURL(ctx, "https://nowhere.example")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetOpportunityByID(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateOpportunityStatus_EnforcesWorkflow(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	opp := sampleOpportunity("https://example.org/status")
	require.NoError(t, repo.CreateOpportunity(ctx, opp))

	require.NoError(t, repo.UpdateOpportunityStatus(ctx, opp.ID, models.StatusReviewing))
	require.NoError(t, repo.UpdateOpportunityStatus(ctx, opp.ID, models.StatusApplying))

	// submitted cannot fall back to reviewing
	require.NoError(t, repo.UpdateOpportunityStatus(ctx, opp.ID, models.StatusSubmitted))
	err := repo.UpdateOpportunityStatus(ctx, opp.ID, models.StatusReviewing)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	got, err := repo.GetOpportunityByID(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status, "failed transition must not change the row")
}

func TestUpdateOpportunityStatus_TerminalIsFinal(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	opp := sampleOpportunity("https://example.org/terminal")
	require.NoError(t, repo.CreateOpportunity(ctx, opp))
	require.NoError(t, repo.UpdateOpportunityStatus(ctx, opp.ID, models.StatusArchived))

	for _, to := range []models.OpportunityStatus{
		models.StatusNew, models.StatusReviewing, models.StatusRejected,
	} {
		assert.ErrorIs(t, repo.UpdateOpportunityStatus(ctx, opp.ID, to), storage.ErrInvalidTransition)
	}
}

func TestListOpportunities_FilterAndOrder(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	scores := []float64{0.3, 0.9, 0.6}
	for i, s := range scores {
		opp := sampleOpportunity("https://example.org/list/" + string(rune('a'+i)))
		opp.RelevanceScore = s
		opp.Processed = s > 0.5
		require.NoError(t, repo.CreateOpportunity(ctx, opp))
	}

	filter := storage.DefaultOpportunityFilter()
	got, err := repo.ListOpportunities(ctx, filter)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0.9, got[0].RelevanceScore, "default order is relevance descending")

	minScore := 0.5
	filter.MinScore = &minScore
	got, err = repo.ListOpportunities(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	processed := false
	count, err := repo.CountOpportunities(ctx, storage.OpportunityFilter{Processed: &processed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListRecentOpportunities_Window(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	old := sampleOpportunity("https://example.org/old")
	require.NoError(t, repo.CreateOpportunity(ctx, old))
	old.DiscoveredAt = time.Now().AddDate(0, 0, -45)
	require.NoError(t, repo.UpdateOpportunity(ctx, old))

	fresh := sampleOpportunity("https://example.org/fresh")
	require.NoError(t, repo.CreateOpportunity(ctx, fresh))

	got, err := repo.ListRecentOpportunities(ctx, time.Now().AddDate(0, 0, -30), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID)
}

func TestDuplicateGroups(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	master := sampleOpportunity("https://example.org/master")
	dup := sampleOpportunity("https://example.org/dup")
	require.NoError(t, repo.CreateOpportunity(ctx, master))
	require.NoError(t, repo.CreateOpportunity(ctx, dup))

	known, err := repo.IsKnownDuplicate(ctx, master.ID, dup.ID)
	require.NoError(t, err)
	assert.False(t, known)

	group := &models.DuplicateGroup{
		MasterID:    master.ID,
		DuplicateID: dup.ID,
		Similarity:  0.91,
		Breakdown:   models.SimilarityBreakdown{Title: 0.95, Organization: 1.0},
	}
	require.NoError(t, repo.RecordDuplicate(ctx, group))

	known, err = repo.IsKnownDuplicate(ctx, master.ID, dup.ID)
	require.NoError(t, err)
	assert.True(t, known)

	groups, err := repo.ListDuplicatesOf(ctx, master.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 0.91, groups[0].Similarity)
	assert.Equal(t, 0.95, groups[0].Breakdown.Title)
}

func TestOpportunitySources(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	opp := sampleOpportunity("https://example.org/linked")
	require.NoError(t, repo.CreateOpportunity(ctx, opp))

	require.NoError(t, repo.AddOpportunitySource(ctx, &models.OpportunitySource{
		OpportunityID: opp.ID,
		SourceType:    "newsletter",
		SourceName:    "arts-weekly",
		SourceURL:     "https://newsletter.example/issue/12",
	}))

	links, err := repo.GetOpportunitySources(ctx, opp.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "arts-weekly", links[0].SourceName)
}

func TestSourceSettingsRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	settings := &models.SourceSettings{
		Name:               "newsletter",
		Type:               "newsletter",
		Enabled:            true,
		Priority:           models.PriorityLow,
		RateLimitPerMinute: 10,
		TimeoutMs:          30000,
		RetryAttempts:      1,
	}
	require.NoError(t, repo.SaveSourceSettings(ctx, settings))

	got, err := repo.GetSourceSettingsByName(ctx, "newsletter")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, got.Priority)

	got.RateLimitPerMinute = 20
	require.NoError(t, repo.SaveSourceSettings(ctx, got))

	all, err := repo.GetSourceSettings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 20, all[0].RateLimitPerMinute)

	_, err = repo.GetSourceSettingsByName(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProfileRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	profile := &models.ArtistProfile{
		ID:       "default",
		Name:     "R. Calder",
		Mediums:  models.StringSlice{"sculpture", "installation"},
		Location: "Berlin, Germany",
	}
	require.NoError(t, repo.SaveProfile(ctx, profile))

	got, err := repo.GetProfile(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "R. Calder", got.Name)
	assert.Contains(t, got.Mediums, "installation")
}

func TestScheduledJobsRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	job := &models.ScheduledJob{
		ID:             "discovery-default",
		DiscovererName: "websearch",
		CronExpr:       "0 */6 * * *",
		Enabled:        true,
	}
	require.NoError(t, repo.SaveScheduledJob(ctx, job))

	jobs, err := repo.GetScheduledJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "0 */6 * * *", jobs[0].CronExpr)

	require.NoError(t, repo.DeleteScheduledJob(ctx, "discovery-default"))
	jobs, err = repo.GetScheduledJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
