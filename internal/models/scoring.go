package models

import (
	"fmt"
	"math"
	"time"
)

// ComponentScores holds the individual relevance factors, each in [0,1].
type ComponentScores struct {
	Semantic   float64 `json:"semantic"`
	Keyword    float64 `json:"keyword"`
	Category   float64 `json:"category"`
	Location   float64 `json:"location"`
	Experience float64 `json:"experience"`
	Deadline   float64 `json:"deadline"`
}

// ScoringResult is the outcome of scoring one opportunity against one profile.
type ScoringResult struct {
	OpportunityID uint            `json:"opportunity_id"`
	ProfileID     string          `json:"profile_id"`
	Overall       float64         `json:"overall"`
	Components    ComponentScores `json:"components"`
	Reasoning     string          `json:"reasoning"`
	ProcessingMs  int64           `json:"processing_ms"`
	ScoredAt      time.Time       `json:"scored_at"`
}

// ScoreWeights controls how component scores blend into the overall score.
// Weights must be non-negative and sum to 1.0 within a small tolerance.
type ScoreWeights struct {
	Semantic   float64 `json:"semantic" mapstructure:"semantic"`
	Keyword    float64 `json:"keyword" mapstructure:"keyword"`
	Category   float64 `json:"category" mapstructure:"category"`
	Location   float64 `json:"location" mapstructure:"location"`
	Experience float64 `json:"experience" mapstructure:"experience"`
	Deadline   float64 `json:"deadline" mapstructure:"deadline"`
}

// DefaultScoreWeights returns the standard blend.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Semantic:   0.35,
		Keyword:    0.25,
		Category:   0.20,
		Location:   0.10,
		Experience: 0.05,
		Deadline:   0.05,
	}
}

const weightSumTolerance = 0.001

// Validate rejects negative weights and blends that do not sum to 1.
func (w ScoreWeights) Validate() error {
	for name, v := range map[string]float64{
		"semantic":   w.Semantic,
		"keyword":    w.Keyword,
		"category":   w.Category,
		"location":   w.Location,
		"experience": w.Experience,
		"deadline":   w.Deadline,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s is negative: %f", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights sum to %f, want 1.0", sum)
	}
	return nil
}

func (w ScoreWeights) Sum() float64 {
	return w.Semantic + w.Keyword + w.Category + w.Location + w.Experience + w.Deadline
}
