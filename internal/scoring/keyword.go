package scoring

import (
	"context"
	"math"

	"github.com/artscout-agent/internal/models"
)

type weightedTerm struct {
	token  string
	weight float64
}

// KeywordScorer counts weighted profile-term occurrences across the
// opportunity's fields, squashed through tanh so a wall of repeats cannot
// dominate.
type KeywordScorer struct{}

func (KeywordScorer) Name() string { return ComponentKeyword }

func (KeywordScorer) Healthy(context.Context) bool { return true }

func (KeywordScorer) Score(_ context.Context, profile *models.ArtistProfile, opp *models.Opportunity) (float64, error) {
	terms := profileTerms(profile)
	if len(terms) == 0 {
		return 0.5, nil
	}

	fields := []struct {
		weight float64
		tokens map[string]bool
	}{
		{1.0, TokenSet(opp.Title)},
		{0.9, TokenSet(opp.Tags...)},
		{0.5, TokenSet(opp.Organization)},
		{0.4, TokenSet(opp.Description)},
		{0.3, TokenSet(opp.Location)},
		{0.2, TokenSet(opp.Amount)},
	}

	weighted := 0.0
	matched := 0
	for _, term := range terms {
		hit := false
		for _, field := range fields {
			if field.tokens[term.token] {
				weighted += term.weight * field.weight
				hit = true
			}
		}
		if hit {
			matched++
		}
	}

	score := math.Tanh(weighted / 4.0)
	if matched > 1 {
		bonus := 0.05 * float64(matched-1)
		if bonus > 0.15 {
			bonus = 0.15
		}
		score += bonus
	}
	return clamp01(score), nil
}

// profileTerms flattens the profile into weighted stemmed tokens. A token
// appearing in several buckets keeps its highest weight.
func profileTerms(p *models.ArtistProfile) []weightedTerm {
	seen := make(map[string]bool)
	var terms []weightedTerm
	add := func(weight float64, texts ...string) {
		for _, text := range texts {
			for _, tok := range Tokenize(text) {
				if seen[tok] {
					continue
				}
				seen[tok] = true
				terms = append(terms, weightedTerm{token: tok, weight: weight})
			}
		}
	}
	add(1.0, p.Mediums...)
	add(0.8, p.Skills...)
	add(0.6, p.Interests...)
	add(0.4, p.Experience)
	add(0.3, p.Location)
	add(0.2, p.ArtistStatement, p.Bio)
	return terms
}
