package sentinel_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/sentinel"
	"github.com/artscout-agent/internal/storage"
	"github.com/artscout-agent/internal/storage/sqlite"
	"github.com/artscout-agent/pkg/logger"
)

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newConfigManager(t *testing.T) (*sentinel.SourceConfigManager, *sqlite.Repository) {
	t.Helper()
	repo := newRepo(t)
	mgr := sentinel.NewSourceConfigManager(repo, logger.Nop())
	require.NoError(t, mgr.Load(context.Background()))
	return mgr, repo
}

func TestLoad_InstallsDefaults(t *testing.T) {
	mgr, repo := newConfigManager(t)

	all := mgr.All()
	require.Len(t, all, 5)
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"websearch", "social", "bookmark", "newsletter", "manual"}, names)

	ws, ok := mgr.Get("websearch")
	require.True(t, ok)
	assert.Equal(t, models.PriorityHigh, ws.Priority)
	assert.True(t, ws.Enabled)

	// Defaults were persisted, so a fresh manager sees the same rows.
	rows, err := repo.GetSourceSettings(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestLoad_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	mgr, repo := newConfigManager(t)

	ws, ok := mgr.Get("websearch")
	require.True(t, ok)
	ws.RateLimitPerMinute = 12
	require.NoError(t, mgr.Upsert(ctx, ws))

	restarted := sentinel.NewSourceConfigManager(repo, logger.Nop())
	require.NoError(t, restarted.Load(ctx))
	assert.Len(t, restarted.All(), 5)
	got, ok := restarted.Get("websearch")
	require.True(t, ok)
	assert.Equal(t, 12, got.RateLimitPerMinute)
}

func TestUpsert_RejectsInvalidSettings(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newConfigManager(t)

	err := mgr.Upsert(ctx, models.SourceSettings{
		Name:               "websearch",
		Type:               "websearch",
		Priority:           models.PriorityHigh,
		RateLimitPerMinute: -1,
	})
	require.Error(t, err)

	err = mgr.Upsert(ctx, models.SourceSettings{
		Name:     "mystery",
		Type:     "carrier-pigeon",
		Priority: models.PriorityLow,
	})
	require.Error(t, err)

	// The bad rows never reached the mirror.
	_, ok := mgr.Get("mystery")
	assert.False(t, ok)
	ws, ok := mgr.Get("websearch")
	require.True(t, ok)
	assert.Equal(t, 60, ws.RateLimitPerMinute)
}

func TestSetEnabled(t *testing.T) {
	ctx := context.Background()
	mgr, repo := newConfigManager(t)

	require.NoError(t, mgr.SetEnabled(ctx, "social", false))
	s, ok := mgr.Get("social")
	require.True(t, ok)
	assert.False(t, s.Enabled)

	row, err := repo.GetSourceSettingsByName(ctx, "social")
	require.NoError(t, err)
	assert.False(t, row.Enabled)

	require.Error(t, mgr.SetEnabled(ctx, "no-such-source", true))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	mgr, repo := newConfigManager(t)

	require.NoError(t, mgr.Remove(ctx, "manual"))
	_, ok := mgr.Get("manual")
	assert.False(t, ok)
	_, err := repo.GetSourceSettingsByName(ctx, "manual")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.Error(t, mgr.Remove(ctx, "manual"))
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newConfigManager(t)

	ws, ok := mgr.Get("websearch")
	require.True(t, ok)
	ws.RateLimitPerMinute = 45
	ws.Enabled = false
	require.NoError(t, mgr.Upsert(ctx, ws))

	doc, err := mgr.Export(ctx)
	require.NoError(t, err)

	other, _ := newConfigManager(t)
	require.NoError(t, other.Import(ctx, doc))

	require.Len(t, other.All(), 5)
	got, ok := other.Get("websearch")
	require.True(t, ok)
	assert.Equal(t, 45, got.RateLimitPerMinute)
	assert.False(t, got.Enabled)
	assert.Equal(t, models.PriorityHigh, got.Priority)
}

func TestImport_FailsClosed(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newConfigManager(t)

	doc, err := mgr.Export(ctx)
	require.NoError(t, err)
	// One bad priority poisons the whole document.
	poisoned := strings.Replace(string(doc), `"high"`, `"urgent"`, 1)
	require.NotEqual(t, string(doc), poisoned)

	err = mgr.Import(ctx, []byte(poisoned))
	require.Error(t, err)

	// Nothing was applied: the old settings are intact.
	ws, ok := mgr.Get("websearch")
	require.True(t, ok)
	assert.Equal(t, models.PriorityHigh, ws.Priority)
	assert.Len(t, mgr.All(), 5)
}

func TestImport_RejectsGarbage(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newConfigManager(t)

	require.Error(t, mgr.Import(ctx, []byte("not json")))
	require.Error(t, mgr.Import(ctx, []byte("{}")))
	require.Error(t, mgr.Import(ctx, []byte(`{"websearch": null}`)))
	require.Error(t, mgr.Import(ctx, []byte(`{"websearch": {"name": "social", "type": "websearch", "priority": "high"}}`)))
}

func TestOnChange_Notifies(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newConfigManager(t)

	var changed []string
	mgr.OnChange(func(s models.SourceSettings) {
		changed = append(changed, s.Name)
	})

	require.NoError(t, mgr.SetEnabled(ctx, "bookmark", false))
	require.Equal(t, []string{"bookmark"}, changed)

	doc, err := mgr.Export(ctx)
	require.NoError(t, err)
	changed = nil
	require.NoError(t, mgr.Import(ctx, doc))
	assert.Len(t, changed, 5)
}
