package dedup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/artscout-agent/internal/dedup"
)

func date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestSimilarity_IdenticalFields(t *testing.T) {
	f := dedup.Fields{
		Title:        "Emerging Sculptor Grant",
		Organization: "Stonebridge Foundation",
		Description:  "Annual grant for early career sculptors working in stone.",
		URL:          "https://stonebridge.example/grant",
		Deadline:     date(2026, 3, 15),
	}

	score, breakdown := dedup.Similarity(f, f)
	assert.InDelta(t, 1.0, score, 0.0001)
	assert.InDelta(t, 1.0, breakdown.Title, 0.0001)
	assert.InDelta(t, 1.0, breakdown.Organization, 0.0001)
	assert.InDelta(t, 1.0, breakdown.Description, 0.0001)
	assert.InDelta(t, 1.0, breakdown.Deadline, 0.0001)
	assert.InDelta(t, 1.0, breakdown.URL, 0.0001)
}

func TestSimilarity_NearDuplicatePair(t *testing.T) {
	desc := "Annual grant for early career sculptors working in stone."
	a := dedup.Fields{
		Title:        "Emerging Sculptor Grant 2026",
		Organization: "Stonebridge Foundation",
		Description:  desc,
		URL:          "https://stonebridge.example/grant",
		Deadline:     date(2026, 3, 15),
	}
	b := dedup.Fields{
		Title:        "Emerging Sculptor Grant",
		Organization: "Stonebridge Foundation",
		Description:  desc,
		URL:          "https://listings.example/sg26",
		Deadline:     date(2026, 3, 15),
	}

	score, breakdown := dedup.Similarity(a, b)
	// title 0.4*(1-5/28) + org 0.3 + desc 0.2 + deadline 0.05, URL hosts differ
	assert.InDelta(t, 0.8786, score, 0.001)
	assert.Greater(t, score, 0.85)
	assert.InDelta(t, 0.8214, breakdown.Title, 0.001)
	assert.InDelta(t, 0.0, breakdown.URL, 0.0001)
}

func TestSimilarity_TrivialWordingVariant(t *testing.T) {
	desc := "Open to artists within five years of their first solo show."
	a := dedup.Fields{
		Title:        "Emerging Artist Grant 2025",
		Organization: "Riverbend Arts Council",
		Description:  desc,
		URL:          "https://riverbend.example/grants/emerging",
		Deadline:     date(2025, 11, 1),
	}
	b := dedup.Fields{
		Title:        "Emerging Artist Grant — 2025 Cycle",
		Organization: "Riverbend Arts Council",
		Description:  desc,
		URL:          "https://artlistings.example/riverbend-emerging",
		Deadline:     date(2025, 11, 1),
	}

	score, _ := dedup.Similarity(a, b)
	assert.Greater(t, score, 0.85, "same organization and deadline with trivially reworded title is a duplicate")
}

func TestSimilarity_UnrelatedListingsStayApart(t *testing.T) {
	a := dedup.Fields{
		Title:        "Emerging Sculptor Grant 2026",
		Organization: "Stonebridge Foundation",
		Description:  "Annual grant for early career sculptors working in stone.",
		URL:          "https://stonebridge.example/grant",
		Deadline:     date(2026, 3, 15),
	}
	c := dedup.Fields{
		Title:        "Watercolor Workshop Stipend",
		Organization: "Lakeside Arts",
		Description:  "Weekend workshop covering travel and materials for painters.",
		URL:          "https://lakeside.example/stipend",
		Deadline:     date(2026, 6, 1),
	}

	score, _ := dedup.Similarity(a, c)
	assert.Less(t, score, 0.6)
}

func TestSimilarity_ReorderedTitleWords(t *testing.T) {
	a := dedup.Fields{Title: "Grant for Emerging Sculptors"}
	b := dedup.Fields{Title: "Emerging Sculptors Grant"}

	_, breakdown := dedup.Similarity(a, b)
	// token overlap carries reordered wording that edit distance punishes
	assert.GreaterOrEqual(t, breakdown.Title, 0.75)
}

func TestSimilarity_MissingFieldsAreNeutral(t *testing.T) {
	a := dedup.Fields{Title: "Glass Biennale Open Call", Organization: "Glass Society"}
	b := dedup.Fields{Title: "Glass Biennale Open Call"}

	_, breakdown := dedup.Similarity(a, b)
	assert.InDelta(t, 0.5, breakdown.Organization, 0.0001, "organization missing on one side")
	assert.InDelta(t, 0.5, breakdown.Description, 0.0001, "description missing on both sides")
	assert.InDelta(t, 0.5, breakdown.Deadline, 0.0001, "deadline missing on both sides")
	assert.InDelta(t, 0.0, breakdown.URL, 0.0001, "missing URLs are no evidence of a match")
}

func TestSimilarity_DeadlineProximity(t *testing.T) {
	base := dedup.Fields{Title: "Open Call", Deadline: date(2026, 3, 15)}

	cases := []struct {
		name     string
		deadline *time.Time
		want     float64
	}{
		{"same day", date(2026, 3, 15), 1.0},
		{"fifteen days apart", date(2026, 3, 30), 0.5},
		{"thirty days apart", date(2026, 4, 14), 0.0},
		{"months apart", date(2026, 9, 1), 0.0},
	}
	for _, c := range cases {
		_, breakdown := dedup.Similarity(base, dedup.Fields{Title: "Open Call", Deadline: c.deadline})
		assert.InDelta(t, c.want, breakdown.Deadline, 0.0001, c.name)
	}
}

func TestSimilarity_URLNormalization(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"scheme and www and trailing slash ignored", "https://www.stonebridge.example/grant/", "http://stonebridge.example/grant", 1.0},
		{"same host different page", "https://stonebridge.example/grant", "https://stonebridge.example/residency", 0.3},
		{"different hosts", "https://stonebridge.example/grant", "https://lakeside.example/grant", 0.0},
		{"missing url", "https://stonebridge.example/grant", "", 0.0},
	}
	for _, c := range cases {
		_, breakdown := dedup.Similarity(dedup.Fields{URL: c.a}, dedup.Fields{URL: c.b})
		assert.InDelta(t, c.want, breakdown.URL, 0.0001, c.name)
	}
}
