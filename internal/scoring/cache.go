package scoring

import (
	"sync"

	"github.com/artscout-agent/internal/models"
)

// ScoreCache stores scoring results per (profile, opportunity) pair.
type ScoreCache interface {
	Get(profileID string, opportunityID uint) (*models.ScoringResult, bool)
	Put(result *models.ScoringResult)
	Clear()
}

type cacheKey struct {
	profileID     string
	opportunityID uint
}

// MemoryScoreCache is a process-local score cache. No eviction: the cache
// lives only as long as the process and is cleared on weight changes.
type MemoryScoreCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*models.ScoringResult
}

func NewMemoryScoreCache() *MemoryScoreCache {
	return &MemoryScoreCache{entries: make(map[cacheKey]*models.ScoringResult)}
}

func (c *MemoryScoreCache) Get(profileID string, opportunityID uint) (*models.ScoringResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[cacheKey{profileID, opportunityID}]
	return result, ok
}

func (c *MemoryScoreCache) Put(result *models.ScoringResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{result.ProfileID, result.OpportunityID}] = result
}

func (c *MemoryScoreCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*models.ScoringResult)
}

// Len reports the number of cached results.
func (c *MemoryScoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
