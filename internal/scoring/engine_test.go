package scoring_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artscout-agent/internal/ai"
	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/scoring"
	"github.com/artscout-agent/pkg/logger"
)

func newTestEngine() *scoring.Engine {
	return scoring.NewEngine(ai.NewOfflineEmbedder(256), config.ScoringConfig{
		Weights:   models.DefaultScoreWeights(),
		BatchSize: 2,
	}, logger.Nop())
}

func testProfile() *models.ArtistProfile {
	return &models.ArtistProfile{
		ID:              "artist-1",
		Name:            "R. Calder",
		Mediums:         models.StringSlice{"sculpture"},
		Skills:          models.StringSlice{"bronze casting", "welding"},
		Interests:       models.StringSlice{"residencies", "public art"},
		Experience:      "Emerging sculptor, five years of bronze casting practice",
		Location:        "Berlin, Germany",
		ArtistStatement: "Large scale bronze work in public space",
	}
}

func matchingOpportunity() *models.Opportunity {
	deadline := time.Now().Add(20 * 24 * time.Hour)
	return &models.Opportunity{
		ID:           101,
		Title:        "Emerging Sculptor Residency",
		Organization: "Foundry Berlin",
		Description:  "Six month residency for emerging sculptors working in bronze. Studio space in Berlin.",
		Location:     "Berlin",
		Deadline:     &deadline,
		Tags:         models.StringSlice{"sculpture", "residency"},
	}
}

func TestScoreOpportunity_BoundsAndComponents(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.ScoreOpportunity(context.Background(), testProfile(), matchingOpportunity())
	require.NoError(t, err)

	components := map[string]float64{
		"semantic":   result.Components.Semantic,
		"keyword":    result.Components.Keyword,
		"category":   result.Components.Category,
		"location":   result.Components.Location,
		"experience": result.Components.Experience,
		"deadline":   result.Components.Deadline,
	}
	for name, score := range components {
		assert.GreaterOrEqual(t, score, 0.0, name)
		assert.LessOrEqual(t, score, 1.0, name)
	}
	assert.GreaterOrEqual(t, result.Overall, 0.0)
	assert.LessOrEqual(t, result.Overall, 1.0)

	assert.Greater(t, result.Overall, 0.7, "a listing matching medium, place, stage and deadline scores high")
	assert.InDelta(t, 1.0, result.Components.Location, 0.0001)
	assert.InDelta(t, 0.9, result.Components.Experience, 0.0001)
	assert.InDelta(t, 0.8, result.Components.Deadline, 0.0001, "twenty days out")
	assert.Contains(t, result.Reasoning, "match")
	assert.Equal(t, "artist-1", result.ProfileID)
	assert.EqualValues(t, 101, result.OpportunityID)
	assert.False(t, result.ScoredAt.IsZero())
}

func TestScoreOpportunity_NilInputs(t *testing.T) {
	engine := newTestEngine()
	_, err := engine.ScoreOpportunity(context.Background(), nil, matchingOpportunity())
	assert.Error(t, err)
	_, err = engine.ScoreOpportunity(context.Background(), testProfile(), nil)
	assert.Error(t, err)
}

func TestScoreOpportunity_CachedUntilCleared(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	profile := testProfile()
	opp := matchingOpportunity()

	first, err := engine.ScoreOpportunity(ctx, profile, opp)
	require.NoError(t, err)
	second, err := engine.ScoreOpportunity(ctx, profile, opp)
	require.NoError(t, err)
	assert.Same(t, first, second, "unchanged weights return the cached result")

	engine.ClearCache()
	third, err := engine.ScoreOpportunity(ctx, profile, opp)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.InDelta(t, first.Overall, third.Overall, 0.0001, "same inputs rescore to the same value")
}

func TestSetWeights_RejectsInvalid(t *testing.T) {
	engine := newTestEngine()
	err := engine.SetWeights(models.ScoreWeights{Semantic: 0.9, Keyword: 0.9})
	assert.Error(t, err, "weights must sum to one")
	assert.Equal(t, models.DefaultScoreWeights(), engine.Weights())
}

func TestSetWeights_ChangesScoresAndClearsCache(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	profile := testProfile()
	opp := matchingOpportunity()
	opp.Deadline = nil

	before, err := engine.ScoreOpportunity(ctx, profile, opp)
	require.NoError(t, err)
	assert.Greater(t, before.Overall, 0.6)

	require.NoError(t, engine.SetWeights(models.ScoreWeights{Deadline: 1.0}))

	after, err := engine.ScoreOpportunity(ctx, profile, opp)
	require.NoError(t, err)
	assert.NotSame(t, before, after, "weight change invalidates the cache")
	assert.InDelta(t, 0.5, after.Overall, 0.0001, "all weight on a missing deadline")
	assert.NotEqual(t, before.Overall, after.Overall)
	assert.Contains(t, after.Reasoning, "moderate match")
}

func TestScoreBatch(t *testing.T) {
	engine := newTestEngine()

	opps := make([]*models.Opportunity, 0, 5)
	for i := uint(1); i <= 5; i++ {
		opp := matchingOpportunity()
		opp.ID = i
		opps = append(opps, opp)
	}

	results := engine.ScoreBatch(context.Background(), testProfile(), opps)
	require.Len(t, results, 5, "chunking covers every opportunity")
	for i, result := range results {
		assert.EqualValues(t, i+1, result.OpportunityID, "input order preserved")
	}
}

func TestEngineHealth(t *testing.T) {
	healthy := newTestEngine().Health(context.Background())
	assert.True(t, healthy.Healthy)
	assert.Len(t, healthy.Components, 5)

	degraded := scoring.NewEngine(failingEmbedder{}, config.ScoringConfig{}, logger.Nop()).Health(context.Background())
	assert.False(t, degraded.Healthy)
	assert.False(t, degraded.Components["semantic"])
	assert.True(t, degraded.Components["keyword"])
}

func TestDeadlineUrgency(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	at := func(d time.Duration) *time.Time {
		deadline := now.Add(d)
		return &deadline
	}

	cases := []struct {
		name     string
		deadline *time.Time
		want     float64
	}{
		{"missing deadline", nil, 0.5},
		{"already passed", at(-time.Hour), 0.0},
		{"due today", at(12 * time.Hour), 1.0},
		{"exactly seven days", at(7 * day), 1.0},
		{"just over seven days", at(7*day + time.Hour), 0.8},
		{"exactly thirty days", at(30 * day), 0.8},
		{"just over thirty days", at(30*day + time.Hour), 0.6},
		{"exactly ninety days", at(90 * day), 0.6},
		{"just over ninety days", at(90*day + time.Hour), 0.4},
		{"exactly 180 days", at(180 * day), 0.4},
		{"half a year out", at(200 * day), 0.2},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, scoring.DeadlineUrgency(c.deadline, now), 0.0001, c.name)
	}
}
