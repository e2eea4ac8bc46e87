package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/pkg/logger"
)

// stripMarkdownCodeBlock removes markdown code block delimiters from AI responses
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	// Find the first { which starts valid JSON
	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}

	// Find the last } which ends valid JSON
	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}

	// Extract just the JSON object
	return response[startIdx : endIdx+1]
}

// SearchQuery is one generated web search query
type SearchQuery struct {
	Query     string `json:"query"`
	Rationale string `json:"rationale"`
}

// QueryGenerator turns an artist profile into web search queries. When the
// model is unavailable it falls back to deterministic templates so discovery
// keeps running offline.
type QueryGenerator struct {
	gen        TextGenerator
	maxQueries int
	log        *logger.Logger
}

// NewQueryGenerator creates a query generator. gen may be nil, in which case
// only the deterministic fallback is used.
func NewQueryGenerator(gen TextGenerator, maxQueries int, log *logger.Logger) *QueryGenerator {
	if maxQueries <= 0 {
		maxQueries = 8
	}
	return &QueryGenerator{
		gen:        gen,
		maxQueries: maxQueries,
		log:        log.WithComponent("querygen"),
	}
}

// GenerateQueries produces up to maxQueries search queries for the profile.
func (q *QueryGenerator) GenerateQueries(ctx context.Context, profile *models.ArtistProfile) ([]SearchQuery, error) {
	if q.gen == nil {
		return q.FallbackQueries(profile), nil
	}

	userPrompt := fmt.Sprintf(QueryGenerationUserPrompt,
		q.maxQueries,
		profile.Name,
		strings.Join(profile.Mediums, ", "),
		strings.Join(profile.Interests, ", "),
		profile.Experience,
		profile.Location,
		profile.ArtistStatement,
	)

	response, err := q.gen.CompleteWithJSON(ctx, QueryGenerationSystemPrompt, userPrompt)
	if err != nil {
		q.log.Warn().
			Err(err).
			Str("profile_id", profile.ID).
			Msg("Query generation failed, using fallback queries")
		return q.FallbackQueries(profile), nil
	}

	var result struct {
		Queries []SearchQuery `json:"queries"`
	}
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &result); err != nil {
		q.log.Warn().
			Err(err).
			Str("response", response).
			Msg("Failed to parse query response, using fallback queries")
		return q.FallbackQueries(profile), nil
	}

	queries := make([]SearchQuery, 0, q.maxQueries)
	for _, sq := range result.Queries {
		sq.Query = strings.TrimSpace(sq.Query)
		if sq.Query == "" {
			continue
		}
		queries = append(queries, sq)
		if len(queries) == q.maxQueries {
			break
		}
	}
	if len(queries) == 0 {
		return q.FallbackQueries(profile), nil
	}
	return queries, nil
}

// Generative reports whether a text model is wired in. Without one every
// request is served by the deterministic fallback.
func (q *QueryGenerator) Generative() bool {
	return q.gen != nil
}

// FallbackQueries builds deterministic queries from profile fields. The same
// profile always yields the same queries in the same order.
func (q *QueryGenerator) FallbackQueries(profile *models.ArtistProfile) []SearchQuery {
	var queries []SearchQuery
	add := func(query, rationale string) {
		if len(queries) < q.maxQueries {
			queries = append(queries, SearchQuery{Query: query, Rationale: rationale})
		}
	}

	for _, medium := range profile.Mediums {
		add(medium+" artist open call application deadline", "open calls for the artist's medium")
		add(medium+" grant for artists", "funding for the artist's medium")
	}
	for _, interest := range profile.Interests {
		add(interest+" artist residency apply", "residencies matching a stated interest")
	}
	if profile.Location != "" {
		add("artist opportunities "+profile.Location, "opportunities near the artist")
	}
	add("emerging artist grants open call", "general funding net")

	return queries
}
