package dedup

import (
	"github.com/artscout-agent/internal/models"
)

// MergeStrategy decides which of two duplicate rows survives as the master.
type MergeStrategy interface {
	Name() string
	Choose(a, b *models.Opportunity) (master, duplicate *models.Opportunity)
}

// KeepFirstSeen keeps the row that was discovered first.
type KeepFirstSeen struct{}

func (KeepFirstSeen) Name() string { return "keep_first_seen" }

func (KeepFirstSeen) Choose(a, b *models.Opportunity) (*models.Opportunity, *models.Opportunity) {
	if b.DiscoveredAt.Before(a.DiscoveredAt) {
		return b, a
	}
	if a.DiscoveredAt.Equal(b.DiscoveredAt) && b.ID < a.ID {
		return b, a
	}
	return a, b
}

// KeepRichest keeps the row carrying more information, falling back to
// first seen on a tie.
type KeepRichest struct{}

func (KeepRichest) Name() string { return "keep_richest" }

func (KeepRichest) Choose(a, b *models.Opportunity) (*models.Opportunity, *models.Opportunity) {
	ra, rb := richness(a), richness(b)
	if rb > ra {
		return b, a
	}
	if ra > rb {
		return a, b
	}
	return KeepFirstSeen{}.Choose(a, b)
}

// richness counts the fields a listing actually carries. Description length
// breaks near-ties between otherwise equally filled rows.
func richness(o *models.Opportunity) int {
	score := 0
	if o.Organization != "" {
		score += 2
	}
	if o.Deadline != nil {
		score += 2
	}
	if o.Amount != "" {
		score++
	}
	if o.Location != "" {
		score++
	}
	if len(o.Tags) > 0 {
		score++
	}
	score += len(o.Description) / 200
	return score
}

// StrategyFromName resolves a configured strategy name, defaulting to
// keep_first_seen.
func StrategyFromName(name string) MergeStrategy {
	if name == "keep_richest" {
		return KeepRichest{}
	}
	return KeepFirstSeen{}
}
