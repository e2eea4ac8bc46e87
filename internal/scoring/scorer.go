package scoring

import (
	"context"

	"github.com/artscout-agent/internal/models"
)

// Component names as they appear in health maps and reasoning text.
const (
	ComponentSemantic   = "semantic"
	ComponentKeyword    = "keyword"
	ComponentCategory   = "category"
	ComponentLocation   = "location"
	ComponentExperience = "experience"
	ComponentDeadline   = "deadline"
)

// ComponentScorer rates one relevance factor in [0,1]. Scorers are stateless
// apart from internal caches and must be safe for concurrent use.
type ComponentScorer interface {
	Name() string
	Score(ctx context.Context, profile *models.ArtistProfile, opp *models.Opportunity) (float64, error)
	Healthy(ctx context.Context) bool
}
