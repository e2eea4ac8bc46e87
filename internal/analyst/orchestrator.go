package analyst

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/artscout-agent/internal/ai"
	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/scoring"
	"github.com/artscout-agent/internal/sentinel"
	"github.com/artscout-agent/internal/storage"
	"github.com/artscout-agent/pkg/logger"
)

// ErrTooManyAnalyses is returned when the concurrent-analysis ceiling is
// reached. Requests over the ceiling fail immediately, they are never queued.
var ErrTooManyAnalyses = fmt.Errorf("analyst: too many concurrent analyses")

// Request describes one analysis run for a profile. Sources optionally
// restricts discovery to the named discoverers, MaxQueries caps the search
// queries handed to them.
type Request struct {
	ProfileID  string
	Sources    []string
	MaxQueries int
	Priority   models.Priority
}

// Result is the accounting for one analysis run. Errors collects partial
// failures from every stage; a populated Errors slice does not make the run
// itself a failure.
type Result struct {
	RequestID               string   `json:"request_id"`
	ProfileID               string   `json:"profile_id"`
	QueriesGenerated        int      `json:"queries_generated"`
	OpportunitiesDiscovered int      `json:"opportunities_discovered"`
	OpportunitiesScored     int      `json:"opportunities_scored"`
	NewOpportunities        int      `json:"new_opportunities"`
	ProcessingMs            int64    `json:"processing_ms"`
	Errors                  []string `json:"errors,omitempty"`
}

// HealthReport aggregates the health of every pipeline collaborator.
// QueryGeneration is false when no text model is configured and query
// generation runs on the deterministic fallback.
type HealthReport struct {
	Status          string                `json:"status"`
	Discovery       sentinel.HealthReport `json:"discovery"`
	Scoring         scoring.HealthReport  `json:"scoring"`
	QueryGeneration bool                  `json:"query_generation"`
}

// Orchestrator runs the full pipeline for one profile: query generation,
// discovery across the registered sources, deduplication and relevance
// scoring, with the scored rows written back to storage.
type Orchestrator struct {
	repo    storage.Repository
	scout   *sentinel.Orchestrator
	queries *ai.QueryGenerator
	scorer  *scoring.Engine

	limit  int32
	active int32

	mu        sync.RWMutex
	observers []func(Event)

	log *logger.Logger
}

// NewOrchestrator wires the pipeline collaborators together.
func NewOrchestrator(repo storage.Repository, scout *sentinel.Orchestrator, queries *ai.QueryGenerator, scorer *scoring.Engine, cfg config.AnalystConfig, log *logger.Logger) *Orchestrator {
	limit := int32(cfg.MaxConcurrentAnalyses)
	if limit < 1 {
		limit = 2
	}
	return &Orchestrator{
		repo:    repo,
		scout:   scout,
		queries: queries,
		scorer:  scorer,
		limit:   limit,
		log:     log.WithComponent("analyst"),
	}
}

// OnEvent registers an observer for lifecycle events. Observers are called
// synchronously in registration order and must not block.
func (o *Orchestrator) OnEvent(fn func(Event)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// Active returns the number of analyses currently running.
func (o *Orchestrator) Active() int {
	return int(atomic.LoadInt32(&o.active))
}

// Analyze runs the pipeline end to end and returns the structured result.
// Stage failures that leave the run able to continue are accumulated in
// Result.Errors; only an unloadable profile or a dead discovery pass abort.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Result, error) {
	if !o.admit() {
		return nil, ErrTooManyAnalyses
	}
	defer atomic.AddInt32(&o.active, -1)

	start := time.Now()
	result := &Result{RequestID: uuid.NewString(), ProfileID: req.ProfileID}
	log := o.log.WithJobID(result.RequestID).WithProfileID(req.ProfileID)

	o.emit(Event{Name: EventStarted, RequestID: result.RequestID, ProfileID: req.ProfileID, At: start})
	log.Info().
		Str("priority", string(req.Priority)).
		Int("requested_sources", len(req.Sources)).
		Msg("Starting analysis")

	profile, err := o.repo.GetProfile(ctx, req.ProfileID)
	if err != nil {
		return nil, o.fail(result, log, fmt.Errorf("load profile %s: %w", req.ProfileID, err))
	}

	queries, err := o.queries.GenerateQueries(ctx, profile)
	if err != nil {
		// GenerateQueries falls back internally, so an error here means even
		// the fallback produced nothing usable. Discovery still runs with
		// whatever queries the sources already hold.
		result.Errors = append(result.Errors, fmt.Sprintf("query generation: %v", err))
	}
	if req.MaxQueries > 0 && len(queries) > req.MaxQueries {
		queries = queries[:req.MaxQueries]
	}
	result.QueriesGenerated = len(queries)
	if len(queries) > 0 {
		texts := make([]string, len(queries))
		for i, q := range queries {
			texts[i] = q.Query
		}
		accepted := o.scout.PushQueries(texts)
		log.Debug().
			Int("queries", len(texts)).
			Int("accepting_sources", accepted).
			Msg("Handed queries to discovery sources")
	}

	var pass *sentinel.PassResult
	if len(req.Sources) > 0 {
		pass, err = o.scout.RunSpecific(ctx, req.Sources)
	} else {
		pass, err = o.scout.RunDiscovery(ctx)
	}
	if err != nil {
		return nil, o.fail(result, log, fmt.Errorf("discovery pass: %w", err))
	}
	result.OpportunitiesDiscovered = pass.TotalFound
	result.NewOpportunities = pass.NewStored
	for _, perr := range pass.Errors {
		result.Errors = append(result.Errors, perr.Error())
	}

	if len(pass.Stored) > 0 {
		result.OpportunitiesScored = o.scoreAndSave(ctx, log, profile, pass.Stored, result)
	}

	result.ProcessingMs = time.Since(start).Milliseconds()
	o.emit(Event{
		Name:      EventCompleted,
		RequestID: result.RequestID,
		ProfileID: result.ProfileID,
		At:        time.Now(),
		Result:    result,
	})
	log.Info().
		Int("discovered", result.OpportunitiesDiscovered).
		Int("new", result.NewOpportunities).
		Int("scored", result.OpportunitiesScored).
		Int("partial_errors", len(result.Errors)).
		Int64("elapsed_ms", result.ProcessingMs).
		Msg("Analysis complete")
	return result, nil
}

// Health aggregates discovery, scoring and query-generation health. A failing
// collaborator degrades the report, it never raises an error.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Discovery:       o.scout.Health(ctx),
		Scoring:         o.scorer.Health(ctx),
		QueryGeneration: o.queries.Generative(),
	}
	report.Status = sentinel.StatusHealthy
	if report.Discovery.Status != sentinel.StatusHealthy || !report.Scoring.Healthy || !report.QueryGeneration {
		report.Status = sentinel.StatusDegraded
	}
	return report
}

func (o *Orchestrator) admit() bool {
	for {
		cur := atomic.LoadInt32(&o.active)
		if cur >= o.limit {
			return false
		}
		if atomic.CompareAndSwapInt32(&o.active, cur, cur+1) {
			return true
		}
	}
}

// scoreAndSave scores the freshly stored rows and persists the scores.
// Returns the number of rows whose scores were written back.
func (o *Orchestrator) scoreAndSave(ctx context.Context, log *logger.Logger, profile *models.ArtistProfile, stored []*models.Opportunity, result *Result) int {
	byID := make(map[uint]*models.Opportunity, len(stored))
	for _, opp := range stored {
		byID[opp.ID] = opp
	}

	saved := 0
	for _, score := range o.scorer.ScoreBatch(ctx, profile, stored) {
		opp, ok := byID[score.OpportunityID]
		if !ok {
			continue
		}
		opp.RelevanceScore = score.Overall
		opp.SemanticScore = score.Components.Semantic
		opp.KeywordScore = score.Components.Keyword
		opp.CategoryScore = score.Components.Category
		opp.ScoreReasoning = score.Reasoning
		opp.Processed = true
		if err := o.repo.UpdateOpportunity(ctx, opp); err != nil {
			log.Warn().Err(err).Str("title", opp.Title).Msg("Failed to persist score")
			result.Errors = append(result.Errors, fmt.Sprintf("save score for %q: %v", opp.Title, err))
			continue
		}
		saved++
	}
	return saved
}

func (o *Orchestrator) fail(result *Result, log *logger.Logger, err error) error {
	o.emit(Event{
		Name:      EventFailed,
		RequestID: result.RequestID,
		ProfileID: result.ProfileID,
		At:        time.Now(),
		Error:     err.Error(),
	})
	log.Error().Err(err).Msg("Analysis failed")
	return err
}

func (o *Orchestrator) emit(e Event) {
	o.mu.RLock()
	observers := make([]func(Event), len(o.observers))
	copy(observers, o.observers)
	o.mu.RUnlock()
	for _, fn := range observers {
		fn(e)
	}
}
