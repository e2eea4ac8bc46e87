package scoring

import (
	"context"

	"github.com/artscout-agent/internal/models"
)

// disciplineVocabulary groups the terms listings use for each medium, so a
// sculptor's profile still matches a call that only says "installation".
var disciplineVocabulary = map[string][]string{
	"sculpture":   {"sculpture", "sculptor", "sculptural", "installation", "carving", "ceramics", "bronze"},
	"painting":    {"painting", "painter", "watercolor", "watercolour", "oil", "acrylic", "mural", "canvas"},
	"photography": {"photography", "photographer", "photographic", "photo", "darkroom", "lens"},
	"drawing":     {"drawing", "illustration", "illustrator", "sketch", "charcoal"},
	"printmaking": {"printmaking", "printmaker", "lithography", "etching", "screenprint", "woodcut"},
	"digital":     {"digital", "video", "animation", "generative", "newmedia", "interactive"},
	"textile":     {"textile", "fiber", "fibre", "weaving", "quilting", "embroidery", "tapestry"},
	"performance": {"performance", "performative", "dance", "theater", "theatre", "movement"},
	"glass":       {"glass", "glassblowing", "stained", "kiln"},
	"sound":       {"sound", "audio", "sonic", "music", "composition"},
}

// opportunityKinds maps an interest like "residencies" to the vocabulary a
// listing of that kind uses.
var opportunityKinds = map[string][]string{
	"grant":      {"grant", "funding", "stipend", "prize", "award", "fellowship", "bursary"},
	"residency":  {"residency", "residencies", "studio", "retreat"},
	"exhibition": {"exhibition", "exhibit", "gallery", "biennale", "biennial", "salon"},
}

// CategoryScorer rates how well the listing's discipline matches the
// profile's mediums.
type CategoryScorer struct{}

func (CategoryScorer) Name() string { return ComponentCategory }

func (CategoryScorer) Healthy(context.Context) bool { return true }

func (CategoryScorer) Score(_ context.Context, profile *models.ArtistProfile, opp *models.Opportunity) (float64, error) {
	if len(profile.Mediums) == 0 {
		return 0.5, nil
	}
	oppTokens := opportunityTokens(opp)

	matched := 0
	for _, medium := range profile.Mediums {
		if hitsAny(expandDiscipline(medium), oppTokens) {
			matched++
		}
	}

	var score float64
	switch {
	case matched > 0:
		score = 0.3 + 0.6*float64(matched)/float64(len(profile.Mediums))
	case mentionsAnyDiscipline(oppTokens):
		// the listing names disciplines and none of them are ours
		score = 0.2
	default:
		// discipline-agnostic listing, no evidence either way
		score = 0.5
	}

	// an interest in grants/residencies/exhibitions nudges matching kinds up
	interests := TokenSet(profile.Interests...)
	for kind, vocabulary := range opportunityKinds {
		if !interests[Stem(kind)] {
			continue
		}
		if hitsAnyOf(vocabulary, oppTokens) {
			score += 0.1
			break
		}
	}
	return clamp01(score), nil
}

func opportunityTokens(o *models.Opportunity) map[string]bool {
	texts := append([]string{o.Title, o.Description}, o.Tags...)
	return TokenSet(texts...)
}

// expandDiscipline widens a medium's tokens with its vocabulary group.
func expandDiscipline(medium string) map[string]bool {
	tokens := TokenSet(medium)
	for _, vocabulary := range disciplineVocabulary {
		if !hitsAnyOf(vocabulary, tokens) {
			continue
		}
		for _, syn := range vocabulary {
			tokens[Stem(syn)] = true
		}
	}
	return tokens
}

func mentionsAnyDiscipline(tokens map[string]bool) bool {
	for _, vocabulary := range disciplineVocabulary {
		if hitsAnyOf(vocabulary, tokens) {
			return true
		}
	}
	return false
}

func hitsAny(a, b map[string]bool) bool {
	for tok := range a {
		if b[tok] {
			return true
		}
	}
	return false
}

func hitsAnyOf(vocabulary []string, tokens map[string]bool) bool {
	for _, syn := range vocabulary {
		if tokens[Stem(syn)] {
			return true
		}
	}
	return false
}
