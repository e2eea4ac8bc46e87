package manual_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source/manual"
	"github.com/artscout-agent/pkg/logger"
)

func initializedSource(t *testing.T) *manual.Source {
	t.Helper()
	s := manual.New(logger.Nop())
	require.NoError(t, s.Initialize(context.Background(), models.SourceSettings{
		Name: "manual", Type: "manual", Priority: models.PriorityHigh,
	}))
	return s
}

func TestSubmitAndDiscover(t *testing.T) {
	s := initializedSource(t)

	require.NoError(t, s.Submit(&models.OpportunityData{
		Title: "Mural commission, city hall",
		URL:   "https://city.example/mural",
	}))
	require.NoError(t, s.Submit(&models.OpportunityData{
		Title: "Print fellowship",
		URL:   "https://press.example/fellowship",
	}))
	assert.Equal(t, 2, s.Pending())

	result, err := s.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 2)
	assert.Equal(t, models.SourceManual, result.Opportunities[0].SourceType)
	assert.Equal(t, "https://city.example/mural", result.Opportunities[0].SourceURL)

	// queue drains exactly once
	assert.Equal(t, 0, s.Pending())
	result, err = s.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Opportunities)
}

func TestSubmit_RequiresTitleAndURL(t *testing.T) {
	s := initializedSource(t)

	assert.Error(t, s.Submit(&models.OpportunityData{URL: "https://x.example"}))
	assert.Error(t, s.Submit(&models.OpportunityData{Title: "No link"}))
	assert.Equal(t, 0, s.Pending())
}

func TestDiscover_BeforeInitialize(t *testing.T) {
	s := manual.New(logger.Nop())
	_, err := s.Discover(context.Background())
	assert.Error(t, err)
	assert.False(t, s.IsHealthy(context.Background()))
}

func TestCleanup_DropsQueue(t *testing.T) {
	s := initializedSource(t)
	require.NoError(t, s.Submit(&models.OpportunityData{
		Title: "Open call",
		URL:   "https://x.example/call",
	}))
	require.NoError(t, s.Cleanup())
	assert.Equal(t, 0, s.Pending())
	assert.False(t, s.IsHealthy(context.Background()))
}
