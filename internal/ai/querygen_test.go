package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artscout-agent/internal/ai"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/pkg/logger"
)

type fakeGen struct {
	response string
	err      error
	calls    int
}

func (f *fakeGen) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeGen) CompleteWithJSON(ctx context.Context, system, user string) (string, error) {
	return f.Complete(ctx, system, user)
}

func testProfile() *models.ArtistProfile {
	return &models.ArtistProfile{
		ID:         "default",
		Name:       "R. Calder",
		Mediums:    models.StringSlice{"sculpture"},
		Interests:  models.StringSlice{"public art"},
		Experience: "mid-career",
		Location:   "Berlin, Germany",
	}
}

func TestGenerateQueries_ParsesResponse(t *testing.T) {
	gen := &fakeGen{response: "```json\n{\"queries\":[{\"query\":\"sculpture open call 2026\",\"rationale\":\"medium match\"},{\"query\":\"  \"},{\"query\":\"public art commission apply\"}]}\n```"}
	qg := ai.NewQueryGenerator(gen, 8, logger.Nop())

	queries, err := qg.GenerateQueries(context.Background(), testProfile())
	require.NoError(t, err)
	require.Len(t, queries, 2, "blank queries are dropped")
	assert.Equal(t, "sculpture open call 2026", queries[0].Query)
	assert.Equal(t, "medium match", queries[0].Rationale)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerateQueries_CapsAtMax(t *testing.T) {
	gen := &fakeGen{response: `{"queries":[{"query":"a"},{"query":"b"},{"query":"c"},{"query":"d"}]}`}
	qg := ai.NewQueryGenerator(gen, 2, logger.Nop())

	queries, err := qg.GenerateQueries(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Len(t, queries, 2)
}

func TestGenerateQueries_FallsBackOnError(t *testing.T) {
	gen := &fakeGen{err: errors.New("model unavailable")}
	qg := ai.NewQueryGenerator(gen, 8, logger.Nop())

	queries, err := qg.GenerateQueries(context.Background(), testProfile())
	require.NoError(t, err, "fallback absorbs provider failures")
	assert.NotEmpty(t, queries)
}

func TestGenerateQueries_FallsBackOnGarbage(t *testing.T) {
	gen := &fakeGen{response: "sorry, I cannot help with that"}
	qg := ai.NewQueryGenerator(gen, 8, logger.Nop())

	queries, err := qg.GenerateQueries(context.Background(), testProfile())
	require.NoError(t, err)
	assert.NotEmpty(t, queries)
}

func TestGenerateQueries_NilGenerator(t *testing.T) {
	qg := ai.NewQueryGenerator(nil, 8, logger.Nop())

	queries, err := qg.GenerateQueries(context.Background(), testProfile())
	require.NoError(t, err)
	assert.NotEmpty(t, queries)
}

func TestFallbackQueries_Deterministic(t *testing.T) {
	qg := ai.NewQueryGenerator(nil, 8, logger.Nop())
	profile := testProfile()

	first := qg.FallbackQueries(profile)
	second := qg.FallbackQueries(profile)
	require.Equal(t, first, second, "same profile yields same queries")

	require.NotEmpty(t, first)
	assert.Contains(t, first[0].Query, "sculpture")

	var locationQuery bool
	for _, q := range first {
		if q.Query == "artist opportunities Berlin, Germany" {
			locationQuery = true
		}
	}
	assert.True(t, locationQuery, "location feeds a regional query")
}

func TestFallbackQueries_RespectsCap(t *testing.T) {
	qg := ai.NewQueryGenerator(nil, 3, logger.Nop())
	profile := testProfile()
	profile.Mediums = models.StringSlice{"sculpture", "painting", "printmaking"}

	queries := qg.FallbackQueries(profile)
	assert.Len(t, queries, 3)
}
