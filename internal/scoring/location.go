package scoring

import (
	"context"

	"github.com/artscout-agent/internal/models"
)

var remoteMarkers = map[string]bool{
	"remote":        true,
	"online":        true,
	"virtual":       true,
	"international": true,
	"worldwide":     true,
	"global":        true,
	"anywhere":      true,
}

// LocationScorer rates geographic compatibility. Remote and international
// listings fit everyone; otherwise shared place tokens decide.
type LocationScorer struct{}

func (LocationScorer) Name() string { return ComponentLocation }

func (LocationScorer) Healthy(context.Context) bool { return true }

func (LocationScorer) Score(_ context.Context, profile *models.ArtistProfile, opp *models.Opportunity) (float64, error) {
	oppTokens := RawTokens(opp.Location)
	if len(oppTokens) == 0 {
		// remoteness is often stated in the body, not the location field
		for _, tok := range RawTokens(opp.Title + " " + opp.Description) {
			if remoteMarkers[tok] {
				return 0.95, nil
			}
		}
		return 0.5, nil
	}

	for _, tok := range oppTokens {
		if remoteMarkers[tok] {
			return 0.95, nil
		}
	}

	profileTokens := RawTokens(profile.Location)
	if len(profileTokens) == 0 {
		return 0.5, nil
	}
	home := make(map[string]bool, len(profileTokens))
	for _, tok := range profileTokens {
		home[tok] = true
	}
	for _, tok := range oppTokens {
		if home[tok] {
			return 1.0, nil
		}
	}
	return 0.2, nil
}
