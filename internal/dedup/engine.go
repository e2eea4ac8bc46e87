package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/storage"
	"github.com/artscout-agent/pkg/logger"
)

// Match kinds reported by ProcessCandidate.
const (
	MatchURL       = "url"
	MatchCanonical = "canonical"
	MatchFuzzy     = "fuzzy"
)

// Engine folds duplicate listings into their masters. Exact matches are
// detected by URL and canonical hash; near-misses by blended similarity
// within a sliding discovery window.
type Engine struct {
	repo           storage.Repository
	threshold      float64
	window         time.Duration
	candidateLimit int
	strategy       MergeStrategy
	log            *logger.Logger
}

// NewEngine creates a deduplication engine from configuration.
func NewEngine(repo storage.Repository, cfg config.DedupConfig, log *logger.Logger) *Engine {
	threshold := cfg.FuzzyThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = 30
	}
	limit := cfg.CandidateLimit
	if limit <= 0 {
		limit = 500
	}
	return &Engine{
		repo:           repo,
		threshold:      threshold,
		window:         time.Duration(windowDays) * 24 * time.Hour,
		candidateLimit: limit,
		strategy:       StrategyFromName(cfg.MergeStrategy),
		log:            log.WithComponent("dedup"),
	}
}

// ProcessOutcome describes what happened to one candidate.
type ProcessOutcome struct {
	Opportunity *models.Opportunity
	Duplicate   bool
	MatchKind   string
	Similarity  float64
}

// ProcessCandidate stores a candidate or folds it into an existing master.
// The returned opportunity is the surviving row either way.
func (e *Engine) ProcessCandidate(ctx context.Context, data *models.OpportunityData) (*ProcessOutcome, error) {
	// Exact duplicate by URL
	if master, err := e.repo.GetOpportunityByURL(ctx, data.URL); err == nil {
		if err := e.fold(ctx, master, data); err != nil {
			return nil, err
		}
		return &ProcessOutcome{Opportunity: master, Duplicate: true, MatchKind: MatchURL, Similarity: 1.0}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// Exact duplicate by canonical identity
	hash := CanonicalHash(data.Title, data.Organization, data.Deadline)
	matches, err := e.repo.FindByCanonicalHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		master := matches[0]
		if err := e.fold(ctx, master, data); err != nil {
			return nil, err
		}
		return &ProcessOutcome{Opportunity: master, Duplicate: true, MatchKind: MatchCanonical, Similarity: 1.0}, nil
	}

	// Fuzzy duplicate within the discovery window
	master, score, err := e.bestFuzzyMatch(ctx, FieldsFromCandidate(data))
	if err != nil {
		return nil, err
	}
	if master != nil {
		if err := e.fold(ctx, master, data); err != nil {
			return nil, err
		}
		e.log.Debug().
			Uint("master_id", master.ID).
			Float64("similarity", score).
			Str("title", data.Title).
			Msg("Folded fuzzy duplicate candidate")
		return &ProcessOutcome{Opportunity: master, Duplicate: true, MatchKind: MatchFuzzy, Similarity: score}, nil
	}

	// Genuinely new
	opp := &models.Opportunity{
		CanonicalHash: hash,
		Title:         data.Title,
		Description:   data.Description,
		URL:           data.URL,
		Organization:  data.Organization,
		Deadline:      data.Deadline,
		Amount:        data.Amount,
		Location:      data.Location,
		Tags:          data.Tags,
		SourceType:    data.SourceType,
		SourceName:    data.SourceName,
		SourceURL:     data.SourceURL,
		Status:        models.StatusNew,
	}
	if err := e.repo.CreateOpportunity(ctx, opp); err != nil {
		return nil, err
	}
	if err := e.addSighting(ctx, opp, data); err != nil {
		return nil, err
	}
	return &ProcessOutcome{Opportunity: opp}, nil
}

func (e *Engine) bestFuzzyMatch(ctx context.Context, candidate Fields) (*models.Opportunity, float64, error) {
	since := time.Now().Add(-e.window)
	recent, err := e.repo.ListRecentOpportunities(ctx, since, e.candidateLimit)
	if err != nil {
		return nil, 0, err
	}

	var best *models.Opportunity
	var bestScore float64
	for _, row := range recent {
		if row.Status == models.StatusArchived {
			continue
		}
		score, _ := Similarity(candidate, FieldsFromOpportunity(row))
		if score > e.threshold && score > bestScore {
			best = row
			bestScore = score
		}
	}
	return best, bestScore, nil
}

// fold records the sighting on the master and fills in fields the master
// is missing. No data from the duplicate is discarded silently.
func (e *Engine) fold(ctx context.Context, master *models.Opportunity, data *models.OpportunityData) error {
	if err := e.addSighting(ctx, master, data); err != nil {
		return err
	}

	changed := false
	if master.Organization == "" && data.Organization != "" {
		master.Organization = data.Organization
		changed = true
	}
	if master.Deadline == nil && data.Deadline != nil {
		master.Deadline = data.Deadline
		changed = true
	}
	if master.Amount == "" && data.Amount != "" {
		master.Amount = data.Amount
		changed = true
	}
	if master.Location == "" && data.Location != "" {
		master.Location = data.Location
		changed = true
	}
	if len(data.Description) > len(master.Description) {
		master.Description = data.Description
		changed = true
	}
	if changed {
		return e.repo.UpdateOpportunity(ctx, master)
	}
	return nil
}

// addSighting links a source observation to the master, once per source.
func (e *Engine) addSighting(ctx context.Context, master *models.Opportunity, data *models.OpportunityData) error {
	existing, err := e.repo.GetOpportunitySources(ctx, master.ID)
	if err != nil {
		return err
	}
	for _, link := range existing {
		if link.SourceName == data.SourceName && link.SourceURL == data.SourceURL {
			return nil
		}
	}
	return e.repo.AddOpportunitySource(ctx, &models.OpportunitySource{
		OpportunityID: master.ID,
		SourceType:    data.SourceType,
		SourceName:    data.SourceName,
		SourceURL:     data.SourceURL,
	})
}

// BatchOutcome summarizes a ProcessBatch run.
type BatchOutcome struct {
	New        int
	Duplicates int
	Failed     int
	Created    []*models.Opportunity
}

// ProcessBatch runs every candidate through ProcessCandidate. A failing
// candidate is counted and skipped, never aborts the batch.
func (e *Engine) ProcessBatch(ctx context.Context, candidates []*models.OpportunityData) *BatchOutcome {
	outcome := &BatchOutcome{}
	for _, data := range candidates {
		result, err := e.ProcessCandidate(ctx, data)
		if err != nil {
			e.log.Warn().
				Err(err).
				Str("title", data.Title).
				Str("url", data.URL).
				Msg("Failed to process candidate")
			outcome.Failed++
			continue
		}
		if result.Duplicate {
			outcome.Duplicates++
		} else {
			outcome.New++
			outcome.Created = append(outcome.Created, result.Opportunity)
		}
	}
	return outcome
}

// SweepReport summarizes a batch duplicate sweep.
type SweepReport struct {
	Scanned  int
	Groups   int
	Archived int
}

// Sweep pairs every active row in the window against every other and folds
// near-duplicates that slipped past inline checks. Known pairs are skipped,
// so running the sweep twice changes nothing.
func (e *Engine) Sweep(ctx context.Context) (*SweepReport, error) {
	since := time.Now().Add(-e.window)
	rows, err := e.repo.ListRecentOpportunities(ctx, since, e.candidateLimit)
	if err != nil {
		return nil, err
	}

	active := rows[:0]
	for _, row := range rows {
		if row.Status != models.StatusArchived {
			active = append(active, row)
		}
	}

	report := &SweepReport{Scanned: len(active)}
	archived := make(map[uint]bool)

	for i := 0; i < len(active); i++ {
		if archived[active[i].ID] {
			continue
		}
		for j := i + 1; j < len(active); j++ {
			if archived[active[j].ID] {
				continue
			}

			score, breakdown := Similarity(FieldsFromOpportunity(active[i]), FieldsFromOpportunity(active[j]))
			if score <= e.threshold {
				continue
			}

			master, dup := e.strategy.Choose(active[i], active[j])
			// A row the operator already moved through the workflow must
			// survive over an untouched one.
			if dup.Status != models.StatusNew && master.Status == models.StatusNew {
				master, dup = dup, master
			}
			known, err := e.repo.IsKnownDuplicate(ctx, master.ID, dup.ID)
			if err != nil {
				return nil, err
			}
			if known {
				continue
			}

			if err := e.repo.RecordDuplicate(ctx, &models.DuplicateGroup{
				MasterID:    master.ID,
				DuplicateID: dup.ID,
				Similarity:  score,
				Breakdown:   breakdown,
			}); err != nil {
				return nil, err
			}
			report.Groups++

			if err := e.fold(ctx, master, &models.OpportunityData{
				Description:  dup.Description,
				Organization: dup.Organization,
				Deadline:     dup.Deadline,
				Amount:       dup.Amount,
				Location:     dup.Location,
				SourceType:   dup.SourceType,
				SourceName:   dup.SourceName,
				SourceURL:    dup.SourceURL,
			}); err != nil {
				return nil, err
			}

			if err := e.repo.UpdateOpportunityStatus(ctx, dup.ID, models.StatusArchived); err != nil {
				return nil, err
			}
			archived[dup.ID] = true
			report.Archived++

			e.log.Info().
				Uint("master_id", master.ID).
				Uint("duplicate_id", dup.ID).
				Float64("similarity", score).
				Msg("Folded duplicate during sweep")

			if archived[active[i].ID] {
				break
			}
		}
	}

	return report, nil
}
