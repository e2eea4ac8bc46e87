package scoring

import (
	"context"

	"github.com/artscout-agent/internal/models"
)

// careerStages holds the distinctive vocabulary of each stage. Shared words
// like "career" stay out: they appear on every side of the boundary.
var careerStages = map[string][]string{
	"emerging":    {"emerging", "early", "student", "graduate", "debut", "beginning"},
	"mid":         {"mid", "midcareer"},
	"established": {"established", "senior", "veteran", "distinguished", "master"},
}

// ExperienceScorer matches the career stage a listing targets against the
// stage the profile describes.
type ExperienceScorer struct{}

func (ExperienceScorer) Name() string { return ComponentExperience }

func (ExperienceScorer) Healthy(context.Context) bool { return true }

func (ExperienceScorer) Score(_ context.Context, profile *models.ArtistProfile, opp *models.Opportunity) (float64, error) {
	oppStages := stagesIn(opportunityTokens(opp))
	if len(oppStages) == 0 {
		return 0.5, nil
	}
	profileStages := stagesIn(TokenSet(profile.Experience, profile.Bio, profile.ArtistStatement))
	if len(profileStages) == 0 {
		return 0.5, nil
	}
	for stage := range oppStages {
		if profileStages[stage] {
			return 0.9, nil
		}
	}
	return 0.2, nil
}

func stagesIn(tokens map[string]bool) map[string]bool {
	found := make(map[string]bool)
	for stage, vocabulary := range careerStages {
		if hitsAnyOf(vocabulary, tokens) {
			found[stage] = true
		}
	}
	return found
}
