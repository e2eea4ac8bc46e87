package dedup

import (
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/artscout-agent/internal/models"
)

// Factor weights for the blended similarity score. Title and organization
// dominate; deadline and URL only nudge borderline pairs.
const (
	weightTitle        = 0.40
	weightOrganization = 0.30
	weightDescription  = 0.20
	weightDeadline     = 0.05
	weightURL          = 0.05
)

// descPrefixRunes bounds the description comparison. Listings copy each
// other's openings even when trailing boilerplate differs.
const descPrefixRunes = 200

// deadlineSpreadDays is the gap at which two deadlines stop counting as
// related.
const deadlineSpreadDays = 30.0

// Fields is the comparable projection of a listing.
type Fields struct {
	Title        string
	Organization string
	Description  string
	URL          string
	Deadline     *time.Time
}

// FieldsFromOpportunity projects a stored row for comparison.
func FieldsFromOpportunity(o *models.Opportunity) Fields {
	return Fields{
		Title:        o.Title,
		Organization: o.Organization,
		Description:  o.Description,
		URL:          o.URL,
		Deadline:     o.Deadline,
	}
}

// FieldsFromCandidate projects an incoming candidate for comparison.
func FieldsFromCandidate(d *models.OpportunityData) Fields {
	return Fields{
		Title:        d.Title,
		Organization: d.Organization,
		Description:  d.Description,
		URL:          d.URL,
		Deadline:     d.Deadline,
	}
}

// Similarity blends per-field similarities into one score in [0,1].
func Similarity(a, b Fields) (float64, models.SimilarityBreakdown) {
	breakdown := models.SimilarityBreakdown{
		Title:        textSimilarity(a.Title, b.Title),
		Organization: textSimilarity(a.Organization, b.Organization),
		Description:  prefixSimilarity(a.Description, b.Description),
		Deadline:     deadlineProximity(a.Deadline, b.Deadline),
		URL:          urlSimilarity(a.URL, b.URL),
	}

	score := weightTitle*breakdown.Title +
		weightOrganization*breakdown.Organization +
		weightDescription*breakdown.Description +
		weightDeadline*breakdown.Deadline +
		weightURL*breakdown.URL

	return score, breakdown
}

// textSimilarity is the better of normalized Levenshtein and token-set
// Jaccard. Edit distance punishes reordered words that token overlap
// forgives. A missing value on either side is neutral rather than a
// mismatch: scraped listings often lack fields the original carries.
func textSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0.5
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(na, nb)
	edit := 1.0 - float64(dist)/float64(longest)
	if jac := tokenJaccard(na, nb); jac > edit {
		return jac
	}
	return edit
}

func tokenJaccard(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0.0
	}
	shared := 0
	for tok := range sa {
		if sb[tok] {
			shared++
		}
	}
	return float64(shared) / float64(len(sa)+len(sb)-shared)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func prefixSimilarity(a, b string) float64 {
	return textSimilarity(truncate(Normalize(a), descPrefixRunes), truncate(Normalize(b), descPrefixRunes))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// deadlineProximity scales from 1.0 for the same day to 0 at a month
// apart. Missing deadlines are neutral.
func deadlineProximity(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0.5
	}
	days := math.Abs(a.Sub(*b).Hours()) / 24.0
	if days >= deadlineSpreadDays {
		return 0.0
	}
	return 1.0 - days/deadlineSpreadDays
}

func urlSimilarity(a, b string) float64 {
	na, nb := normalizeURL(a), normalizeURL(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}
	if hostOf(na) == hostOf(nb) {
		return 0.3
	}
	return 0.0
}

// normalizeURL strips scheme, www and trailing slashes so mirrors of the
// same page compare equal.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	path := strings.TrimRight(u.Path, "/")
	return host + path
}

func hostOf(normalized string) string {
	if idx := strings.IndexByte(normalized, '/'); idx >= 0 {
		return normalized[:idx]
	}
	return normalized
}
