package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artscout-agent/internal/ai"
	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/pkg/logger"
)

// Reasoning thresholds: components above strongThreshold or below
// weakThreshold are called out by name.
const (
	strongThreshold = 0.7
	weakThreshold   = 0.3
)

const defaultBatchSize = 10

// Engine aggregates the component scorers into one relevance score per
// (profile, opportunity) pair. Results are cached until weights change.
type Engine struct {
	scorers   []ComponentScorer
	cache     ScoreCache
	batchSize int
	log       *logger.Logger

	mu      sync.RWMutex
	weights models.ScoreWeights
}

// NewEngine builds the standard scorer set on top of the given embedding
// provider. Invalid configured weights fall back to the defaults.
func NewEngine(provider ai.EmbeddingProvider, cfg config.ScoringConfig, log *logger.Logger) *Engine {
	weights := cfg.Weights
	if err := weights.Validate(); err != nil {
		weights = models.DefaultScoreWeights()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	engineLog := log.WithComponent("scoring")
	return &Engine{
		scorers: []ComponentScorer{
			NewSemanticScorer(provider, log),
			KeywordScorer{},
			CategoryScorer{},
			LocationScorer{},
			ExperienceScorer{},
		},
		cache:     NewMemoryScoreCache(),
		batchSize: batchSize,
		weights:   weights,
		log:       engineLog,
	}
}

// DeadlineUrgency buckets how soon a deadline lands. Days are counted as
// the ceiling of remaining hours over 24, so "exactly seven days out" is
// still the most urgent bucket.
func DeadlineUrgency(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0.5
	}
	hours := deadline.Sub(now).Hours()
	if hours < 0 {
		return 0.0
	}
	days := int(math.Ceil(hours / 24.0))
	switch {
	case days <= 7:
		return 1.0
	case days <= 30:
		return 0.8
	case days <= 90:
		return 0.6
	case days <= 180:
		return 0.4
	}
	return 0.2
}

type componentOutcome struct {
	name  string
	score float64
	err   error
}

// ScoreOpportunity runs every component scorer concurrently and blends the
// results. A failing component scores neutral and is noted in the
// reasoning; only nil inputs are an error.
func (e *Engine) ScoreOpportunity(ctx context.Context, profile *models.ArtistProfile, opp *models.Opportunity) (*models.ScoringResult, error) {
	if profile == nil || opp == nil {
		return nil, fmt.Errorf("scoring requires both a profile and an opportunity")
	}
	if cached, ok := e.cache.Get(profile.ID, opp.ID); ok {
		return cached, nil
	}

	start := time.Now()
	outcomes := make(chan componentOutcome, len(e.scorers))
	for _, scorer := range e.scorers {
		go func(s ComponentScorer) {
			score, err := s.Score(ctx, profile, opp)
			if err != nil {
				outcomes <- componentOutcome{name: s.Name(), score: 0.5, err: err}
				return
			}
			outcomes <- componentOutcome{name: s.Name(), score: clamp01(score)}
		}(scorer)
	}

	components := models.ComponentScores{
		Deadline: DeadlineUrgency(opp.Deadline, time.Now()),
	}
	failures := make(map[string]error)
	for range e.scorers {
		outcome := <-outcomes
		if outcome.err != nil {
			failures[outcome.name] = outcome.err
			e.log.Warn().
				Err(outcome.err).
				Str("component", outcome.name).
				Uint("opportunity_id", opp.ID).
				Msg("Component scorer failed, using neutral score")
		}
		switch outcome.name {
		case ComponentSemantic:
			components.Semantic = outcome.score
		case ComponentKeyword:
			components.Keyword = outcome.score
		case ComponentCategory:
			components.Category = outcome.score
		case ComponentLocation:
			components.Location = outcome.score
		case ComponentExperience:
			components.Experience = outcome.score
		}
	}

	weights := e.Weights()
	overall := clamp01(weights.Semantic*components.Semantic +
		weights.Keyword*components.Keyword +
		weights.Category*components.Category +
		weights.Location*components.Location +
		weights.Experience*components.Experience +
		weights.Deadline*components.Deadline)

	result := &models.ScoringResult{
		OpportunityID: opp.ID,
		ProfileID:     profile.ID,
		Overall:       overall,
		Components:    components,
		Reasoning:     buildReasoning(components, overall, failures),
		ProcessingMs:  time.Since(start).Milliseconds(),
		ScoredAt:      time.Now(),
	}
	e.cache.Put(result)
	return result, nil
}

// ScoreBatch scores opportunities in fixed-size chunks, chunk members
// concurrently. Individual failures are logged and skipped.
func (e *Engine) ScoreBatch(ctx context.Context, profile *models.ArtistProfile, opps []*models.Opportunity) []*models.ScoringResult {
	scored := make([]*models.ScoringResult, len(opps))
	for start := 0; start < len(opps); start += e.batchSize {
		end := start + e.batchSize
		if end > len(opps) {
			end = len(opps)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := e.ScoreOpportunity(ctx, profile, opps[i])
				if err != nil {
					e.log.Warn().Err(err).Msg("Skipping unscorable opportunity")
					return
				}
				scored[i] = result
			}(i)
		}
		wg.Wait()
	}

	results := scored[:0]
	for _, result := range scored {
		if result != nil {
			results = append(results, result)
		}
	}
	return results
}

// Weights returns the current blend.
func (e *Engine) Weights() models.ScoreWeights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// SetWeights swaps the blend and drops every cached result, since all of
// them were computed under the old weights.
func (e *Engine) SetWeights(weights models.ScoreWeights) error {
	if err := weights.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.weights = weights
	e.mu.Unlock()
	e.cache.Clear()
	e.log.Info().Msg("Score weights updated, cache cleared")
	return nil
}

// ClearCache drops all cached results.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// HealthReport maps each component to its health; one unhealthy component
// degrades the engine.
type HealthReport struct {
	Healthy    bool            `json:"healthy"`
	Components map[string]bool `json:"components"`
}

func (e *Engine) Health(ctx context.Context) HealthReport {
	report := HealthReport{Healthy: true, Components: make(map[string]bool, len(e.scorers))}
	for _, scorer := range e.scorers {
		healthy := scorer.Healthy(ctx)
		report.Components[scorer.Name()] = healthy
		if !healthy {
			report.Healthy = false
		}
	}
	return report
}

var componentDisplay = []struct {
	name  string
	label string
	pick  func(models.ComponentScores) float64
}{
	{ComponentSemantic, "semantic alignment", func(c models.ComponentScores) float64 { return c.Semantic }},
	{ComponentKeyword, "keyword overlap", func(c models.ComponentScores) float64 { return c.Keyword }},
	{ComponentCategory, "category fit", func(c models.ComponentScores) float64 { return c.Category }},
	{ComponentLocation, "location fit", func(c models.ComponentScores) float64 { return c.Location }},
	{ComponentExperience, "experience fit", func(c models.ComponentScores) float64 { return c.Experience }},
	{ComponentDeadline, "deadline urgency", func(c models.ComponentScores) float64 { return c.Deadline }},
}

func buildReasoning(components models.ComponentScores, overall float64, failures map[string]error) string {
	label := "weak"
	switch {
	case overall >= 0.8:
		label = "excellent"
	case overall >= 0.6:
		label = "good"
	case overall >= 0.4:
		label = "moderate"
	}

	parts := []string{label + " match"}
	for _, component := range componentDisplay {
		score := component.pick(components)
		switch {
		case score > strongThreshold:
			parts = append(parts, "strong "+component.label)
		case score < weakThreshold:
			parts = append(parts, "weak "+component.label)
		}
	}

	if len(failures) > 0 {
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)
		parts = append(parts, strings.Join(names, ", ")+" unavailable")
	}
	return strings.Join(parts, "; ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
