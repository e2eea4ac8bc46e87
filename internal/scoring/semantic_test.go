package scoring_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artscout-agent/internal/ai"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/scoring"
	"github.com/artscout-agent/pkg/logger"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) Dimensions() int { return 0 }

type countingEmbedder struct {
	inner ai.EmbeddingProvider
	calls int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestSemanticScorer_IdenticalTexts(t *testing.T) {
	scorer := scoring.NewSemanticScorer(ai.NewOfflineEmbedder(64), logger.Nop())

	profile := &models.ArtistProfile{ID: "a", Bio: "bronze sculpture casting workshop"}
	opp := &models.Opportunity{Description: "bronze sculpture casting workshop"}

	score, err := scorer.Score(context.Background(), profile, opp)
	require.NoError(t, err)
	// cosine 1.0 rescaled to 1.0 through the sigmoid
	assert.InDelta(t, 0.993, score, 0.001)
}

func TestSemanticScorer_OrdersRelatedAboveUnrelated(t *testing.T) {
	scorer := scoring.NewSemanticScorer(ai.NewOfflineEmbedder(256), logger.Nop())
	ctx := context.Background()

	profile := &models.ArtistProfile{ID: "a", Bio: "sculpture bronze casting workshop berlin"}
	related := &models.Opportunity{ID: 1, Description: "sculpture bronze casting workshop residency"}
	unrelated := &models.Opportunity{ID: 2, Description: "watercolor landscape painting weekend retreat"}

	relatedScore, err := scorer.Score(ctx, profile, related)
	require.NoError(t, err)
	unrelatedScore, err := scorer.Score(ctx, profile, unrelated)
	require.NoError(t, err)

	assert.Greater(t, relatedScore, unrelatedScore)
	assert.GreaterOrEqual(t, relatedScore, 0.0)
	assert.LessOrEqual(t, relatedScore, 1.0)
}

func TestSemanticScorer_FallsBackWhenEmbeddingFails(t *testing.T) {
	scorer := scoring.NewSemanticScorer(failingEmbedder{}, logger.Nop())

	profile := &models.ArtistProfile{ID: "a", Bio: "bronze sculpture casting"}
	opp := &models.Opportunity{Description: "bronze sculpture casting"}

	score, err := scorer.Score(context.Background(), profile, opp)
	require.NoError(t, err, "embedding failure must never surface as an error")
	assert.Equal(t, 1.0, score, "identical token sets overlap fully")
}

func TestSemanticScorer_EmptyTextNeutral(t *testing.T) {
	scorer := scoring.NewSemanticScorer(ai.NewOfflineEmbedder(64), logger.Nop())

	score, err := scorer.Score(context.Background(), &models.ArtistProfile{ID: "blank"}, &models.Opportunity{Description: "anything"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)
}

func TestSemanticScorer_CachesEmbeddings(t *testing.T) {
	counting := &countingEmbedder{inner: ai.NewOfflineEmbedder(64)}
	scorer := scoring.NewSemanticScorer(counting, logger.Nop())
	ctx := context.Background()

	profile := &models.ArtistProfile{ID: "a", Bio: "bronze sculpture"}
	opp := &models.Opportunity{ID: 1, Description: "sculpture residency"}

	_, err := scorer.Score(ctx, profile, opp)
	require.NoError(t, err)
	_, err = scorer.Score(ctx, profile, opp)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&counting.calls), "one provider call per distinct text")
}

func TestSemanticScorer_Healthy(t *testing.T) {
	assert.True(t, scoring.NewSemanticScorer(ai.NewOfflineEmbedder(64), logger.Nop()).Healthy(context.Background()))
	assert.False(t, scoring.NewSemanticScorer(failingEmbedder{}, logger.Nop()).Healthy(context.Background()))
}
