package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"

	"github.com/artscout-agent/internal/ai"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/pkg/logger"
)

// embedInputRunes caps embedding input before hashing and sending. Matches
// what providers accept without truncating server-side.
const embedInputRunes = 8000

// sigmoidSteepness sharpens the separation around a rescaled cosine of 0.5,
// where unrelated texts cluster.
const sigmoidSteepness = 10.0

// SemanticScorer embeds profile and opportunity summaries and compares them
// by cosine similarity. Any embedding failure degrades to token overlap
// rather than an error.
type SemanticScorer struct {
	provider ai.EmbeddingProvider
	log      *logger.Logger

	mu      sync.Mutex
	vectors map[string][]float64
}

func NewSemanticScorer(provider ai.EmbeddingProvider, log *logger.Logger) *SemanticScorer {
	return &SemanticScorer{
		provider: provider,
		log:      log.WithComponent("scoring.semantic"),
		vectors:  make(map[string][]float64),
	}
}

func (s *SemanticScorer) Name() string { return ComponentSemantic }

func (s *SemanticScorer) Score(ctx context.Context, profile *models.ArtistProfile, opp *models.Opportunity) (float64, error) {
	profileSummary := profileText(profile)
	oppSummary := opportunityText(opp)
	if profileSummary == "" || oppSummary == "" {
		return 0.5, nil
	}

	pv, err := s.embed(ctx, profileSummary)
	if err == nil {
		var ov []float64
		if ov, err = s.embed(ctx, oppSummary); err == nil {
			rescaled := (cosine(pv, ov) + 1.0) / 2.0
			return sigmoid(rescaled), nil
		}
	}

	s.log.Debug().Err(err).Msg("Embedding unavailable, falling back to token overlap")
	return tokenOverlap(TokenSet(profileSummary), TokenSet(oppSummary)), nil
}

func (s *SemanticScorer) Healthy(ctx context.Context) bool {
	_, err := s.provider.Embed(ctx, "artist grant residency")
	return err == nil
}

// embed caches vectors by the hash of the truncated input, so repeated
// scoring of the same profile costs one provider call.
func (s *SemanticScorer) embed(ctx context.Context, text string) ([]float64, error) {
	truncated := truncateRunes(text, embedInputRunes)
	sum := sha256.Sum256([]byte(truncated))
	key := hex.EncodeToString(sum[:])

	s.mu.Lock()
	vec, ok := s.vectors[key]
	s.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := s.provider.Embed(ctx, truncated)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.vectors[key] = vec
	s.mu.Unlock()
	return vec, nil
}

func profileText(p *models.ArtistProfile) string {
	parts := make([]string, 0, 6)
	for _, part := range []string{
		strings.Join(p.Mediums, ", "),
		strings.Join(p.Skills, ", "),
		strings.Join(p.Interests, ", "),
		p.Experience,
		p.ArtistStatement,
		p.Bio,
	} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

func opportunityText(o *models.Opportunity) string {
	parts := make([]string, 0, 6)
	for _, part := range []string{
		o.Title,
		o.Organization,
		o.Description,
		o.Location,
		o.Amount,
		strings.Join(o.Tags, ", "),
	} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sigmoidSteepness*(x-0.5)))
}

// tokenOverlap is intersection over the smaller set. Empty sets are neutral.
func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.5
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	shared := 0
	for tok := range a {
		if b[tok] {
			shared++
		}
	}
	return float64(shared) / float64(smaller)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
