package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/storage"
	"github.com/artscout-agent/pkg/logger"
)

// SourceConfigManager owns the per-source runtime settings. The repository
// is the durable copy; the manager keeps an in-memory mirror and validates
// every mutation before it reaches either. Validation fails closed: a
// payload with one bad entry is rejected as a whole.
type SourceConfigManager struct {
	mu       sync.RWMutex
	repo     storage.Repository
	settings map[string]*models.SourceSettings
	onChange []func(models.SourceSettings)
	log      *logger.Logger
}

// NewSourceConfigManager creates a manager backed by the repository. Call
// Load before first use.
func NewSourceConfigManager(repo storage.Repository, log *logger.Logger) *SourceConfigManager {
	return &SourceConfigManager{
		repo:     repo,
		settings: make(map[string]*models.SourceSettings),
		log:      log.WithComponent("sourceconfig"),
	}
}

// DefaultSettings returns the built-in configuration for the five source
// types. Installed and persisted on first load so later loads are
// deterministic.
func DefaultSettings() []*models.SourceSettings {
	return []*models.SourceSettings{
		{
			Name:               string(models.SourceWebSearch),
			Type:               string(models.SourceWebSearch),
			Enabled:            true,
			Priority:           models.PriorityHigh,
			RateLimitPerMinute: 60,
			TimeoutMs:          30000,
			RetryAttempts:      2,
		},
		{
			Name:               string(models.SourceNewsletter),
			Type:               string(models.SourceNewsletter),
			Enabled:            true,
			Priority:           models.PriorityMedium,
			RateLimitPerMinute: 30,
			TimeoutMs:          20000,
			RetryAttempts:      2,
		},
		{
			Name:               string(models.SourceSocial),
			Type:               string(models.SourceSocial),
			Enabled:            true,
			Priority:           models.PriorityMedium,
			RateLimitPerMinute: 30,
			TimeoutMs:          20000,
			RetryAttempts:      2,
		},
		{
			Name:               string(models.SourceBookmark),
			Type:               string(models.SourceBookmark),
			Enabled:            true,
			Priority:           models.PriorityMedium,
			RateLimitPerMinute: 20,
			TimeoutMs:          15000,
			RetryAttempts:      1,
		},
		{
			Name:               string(models.SourceManual),
			Type:               string(models.SourceManual),
			Enabled:            true,
			Priority:           models.PriorityLow,
			RateLimitPerMinute: 0,
			TimeoutMs:          5000,
			RetryAttempts:      0,
		},
	}
}

// Load pulls all settings from the repository. When none exist the built-in
// defaults are installed and persisted immediately.
func (c *SourceConfigManager) Load(ctx context.Context) error {
	rows, err := c.repo.GetSourceSettings(ctx)
	if err != nil {
		return fmt.Errorf("load source settings: %w", err)
	}

	if len(rows) == 0 {
		rows = DefaultSettings()
		for _, s := range rows {
			if err := c.repo.SaveSourceSettings(ctx, s); err != nil {
				return fmt.Errorf("persist default settings for %s: %w", s.Name, err)
			}
		}
		c.log.Info().Int("sources", len(rows)).Msg("Installed default source settings")
	}

	if err := validateAll(rows); err != nil {
		return err
	}

	loaded := make(map[string]*models.SourceSettings, len(rows))
	for _, s := range rows {
		loaded[s.Name] = s
	}

	c.mu.Lock()
	c.settings = loaded
	c.mu.Unlock()
	return nil
}

// Get returns a copy of one source's settings.
func (c *SourceConfigManager) Get(name string) (models.SourceSettings, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.settings[name]
	if !ok {
		return models.SourceSettings{}, false
	}
	return *s, true
}

// All returns copies of every source's settings, sorted by name.
func (c *SourceConfigManager) All() []models.SourceSettings {
	c.mu.RLock()
	out := make([]models.SourceSettings, 0, len(c.settings))
	for _, s := range c.settings {
		out = append(out, *s)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Upsert validates, persists and applies the settings for one source.
func (c *SourceConfigManager) Upsert(ctx context.Context, s models.SourceSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := c.repo.SaveSourceSettings(ctx, &s); err != nil {
		return fmt.Errorf("save settings for %s: %w", s.Name, err)
	}

	c.mu.Lock()
	stored := s
	c.settings[s.Name] = &stored
	c.mu.Unlock()

	c.notify(s)
	return nil
}

// Remove drops a source's settings from the store and the mirror.
func (c *SourceConfigManager) Remove(ctx context.Context, name string) error {
	c.mu.RLock()
	_, ok := c.settings[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown source %q", name)
	}

	if err := c.repo.DeleteSourceSettings(ctx, name); err != nil {
		return fmt.Errorf("delete settings for %s: %w", name, err)
	}

	c.mu.Lock()
	delete(c.settings, name)
	c.mu.Unlock()
	return nil
}

// SetEnabled flips one source on or off.
func (c *SourceConfigManager) SetEnabled(ctx context.Context, name string, enabled bool) error {
	c.mu.RLock()
	s, ok := c.settings[name]
	var updated models.SourceSettings
	if ok {
		updated = *s
	}
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown source %q", name)
	}

	updated.Enabled = enabled
	return c.Upsert(ctx, updated)
}

// Export serializes the persisted settings as a JSON document keyed by
// source name. The output round-trips losslessly through Import.
func (c *SourceConfigManager) Export(ctx context.Context) ([]byte, error) {
	rows, err := c.repo.GetSourceSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("export source settings: %w", err)
	}

	doc := make(map[string]*models.SourceSettings, len(rows))
	for _, s := range rows {
		doc[s.Name] = s
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import replaces the full settings set from a JSON document. The payload is
// parsed and validated in its entirety before anything is swapped in; the
// repository replacement runs in one transaction.
func (c *SourceConfigManager) Import(ctx context.Context, data []byte) error {
	var doc map[string]*models.SourceSettings
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse settings document: %w", err)
	}
	if len(doc) == 0 {
		return fmt.Errorf("settings document is empty")
	}

	rows := make([]*models.SourceSettings, 0, len(doc))
	for key, s := range doc {
		if s == nil {
			return fmt.Errorf("source %q: null entry", key)
		}
		if s.Name == "" {
			s.Name = key
		}
		if s.Name != key {
			return fmt.Errorf("source %q: name field says %q", key, s.Name)
		}
		rows = append(rows, s)
	}
	if err := validateAll(rows); err != nil {
		return err
	}

	if err := c.repo.ReplaceSourceSettings(ctx, rows); err != nil {
		return fmt.Errorf("replace source settings: %w", err)
	}

	imported := make(map[string]*models.SourceSettings, len(rows))
	for _, s := range rows {
		imported[s.Name] = s
	}
	c.mu.Lock()
	c.settings = imported
	c.mu.Unlock()

	c.log.Info().Int("sources", len(rows)).Msg("Imported source settings")
	for _, s := range rows {
		c.notify(*s)
	}
	return nil
}

// OnChange registers a hook invoked with a copy of the settings after every
// successful Upsert, SetEnabled or Import entry. The orchestrator uses this
// to push new settings into running plugins.
func (c *SourceConfigManager) OnChange(fn func(models.SourceSettings)) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *SourceConfigManager) notify(s models.SourceSettings) {
	c.mu.RLock()
	hooks := make([]func(models.SourceSettings), len(c.onChange))
	copy(hooks, c.onChange)
	c.mu.RUnlock()

	for _, fn := range hooks {
		fn(s)
	}
}

func validateAll(rows []*models.SourceSettings) error {
	for _, s := range rows {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
