package sentinel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/dedup"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/source"
	"github.com/artscout-agent/pkg/logger"
	"github.com/artscout-agent/pkg/ratelimit"
)

// Aggregate health states reported by Health.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ScopeAll is the result-cache key for a full discovery pass.
const ScopeAll = "all"

// SourceStats tracks run accounting for one registered discoverer.
type SourceStats struct {
	TotalRuns       int       `json:"total_runs"`
	SuccessfulRuns  int       `json:"successful_runs"`
	AvgProcessingMs int64     `json:"avg_processing_ms"`
	LastRun         time.Time `json:"last_run"`
}

// SourceCount is the per-source slice of a pass result.
type SourceCount struct {
	Found        int
	Errors       int
	ProcessingMs int64
}

// PassResult summarizes one discovery pass after deduplication. Stored
// carries the rows created during the pass so callers can score them
// without re-querying.
type PassResult struct {
	TotalFound        int
	NewStored         int
	DuplicatesRemoved int
	Stored            []*models.Opportunity
	PerSource         map[string]SourceCount
	Elapsed           time.Duration
	Errors            []error
}

// HealthReport aggregates per-source health probes. Status is degraded as
// soon as any single probe fails; a degraded sentinel still runs passes.
type HealthReport struct {
	Status  string          `json:"status"`
	Sources map[string]bool `json:"sources"`
}

// ResultCache retains the most recent pass result per scope: ScopeAll for
// full passes, the comma-joined source names for specific runs. Process
// local, cleared explicitly.
type ResultCache struct {
	mu     sync.RWMutex
	passes map[string]*PassResult
}

// NewResultCache creates an empty result cache.
func NewResultCache() *ResultCache {
	return &ResultCache{passes: make(map[string]*PassResult)}
}

// Store replaces the cached result for a scope.
func (c *ResultCache) Store(scope string, result *PassResult) {
	c.mu.Lock()
	c.passes[scope] = result
	c.mu.Unlock()
}

// Get returns the cached result for a scope.
func (c *ResultCache) Get(scope string) (*PassResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.passes[scope]
	return result, ok
}

// Clear drops every cached result.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	c.passes = make(map[string]*PassResult)
	c.mu.Unlock()
}

type registeredDiscoverer struct {
	plugin   source.Discoverer
	settings models.SourceSettings
	stats    SourceStats
	order    int
}

// runTarget is an immutable snapshot of a registry entry taken at pass
// start, so a concurrent settings change never races a running plugin.
type runTarget struct {
	plugin   source.Discoverer
	settings models.SourceSettings
}

// Orchestrator runs discovery across every registered plugin: enabled
// sources sorted by priority, partitioned into batches of maxConcurrent,
// batches sequential and members concurrent. One plugin's failure never
// cancels its siblings; the pass collects errors and keeps going. The
// consolidated candidates run through the deduplication engine, which
// stores survivors and folds the rest.
type Orchestrator struct {
	mu        sync.RWMutex
	registry  map[string]*registeredDiscoverer
	nextOrder int

	configs       *SourceConfigManager
	jobs          *DiscoveryJobManager
	dedupe        *dedup.Engine
	limiter       *ratelimit.DomainLimiter
	cache         *ResultCache
	maxConcurrent int
	jobTimeout    time.Duration
	log           *logger.Logger
}

// NewOrchestrator wires the orchestrator to its collaborators and hooks
// settings changes so they propagate into running plugins. A nil cache gets
// a fresh one.
func NewOrchestrator(
	configs *SourceConfigManager,
	jobs *DiscoveryJobManager,
	engine *dedup.Engine,
	limiter *ratelimit.DomainLimiter,
	cache *ResultCache,
	cfg config.DiscoveryConfig,
	log *logger.Logger,
) *Orchestrator {
	maxConcurrent := cfg.MaxConcurrentJobs
	if maxConcurrent < 1 {
		maxConcurrent = 3
	}
	jobTimeout := time.Duration(cfg.JobTimeoutMs) * time.Millisecond
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	if cache == nil {
		cache = NewResultCache()
	}

	o := &Orchestrator{
		registry:      make(map[string]*registeredDiscoverer),
		configs:       configs,
		jobs:          jobs,
		dedupe:        engine,
		limiter:       limiter,
		cache:         cache,
		maxConcurrent: maxConcurrent,
		jobTimeout:    jobTimeout,
		log:           log.WithComponent("sentinel"),
	}
	configs.OnChange(o.applySettings)
	return o
}

// Register admits a plugin into the registry. Settings come from the config
// manager; a plugin seen for the first time gets a disabled-by-default stub
// persisted so the operator can enable it later. A plugin that fails to
// initialize is not admitted.
func (o *Orchestrator) Register(ctx context.Context, plugin source.Discoverer) error {
	name := plugin.Name()

	o.mu.RLock()
	_, exists := o.registry[name]
	o.mu.RUnlock()
	if exists {
		return fmt.Errorf("source %s already registered", name)
	}

	settings, ok := o.configs.Get(name)
	if !ok {
		settings = models.SourceSettings{
			Name:     name,
			Type:     plugin.Type(),
			Enabled:  false,
			Priority: models.PriorityMedium,
		}
		if err := o.configs.Upsert(ctx, settings); err != nil {
			return fmt.Errorf("persist stub settings for %s: %w", name, err)
		}
	}

	if err := plugin.Initialize(ctx, settings); err != nil {
		return fmt.Errorf("initialize %s: %w", name, err)
	}
	if settings.RateLimitPerMinute > 0 {
		o.limiter.SetDomainLimit(name, settings.RateLimitPerMinute)
	}

	o.mu.Lock()
	o.registry[name] = &registeredDiscoverer{
		plugin:   plugin,
		settings: settings,
		order:    o.nextOrder,
	}
	o.nextOrder++
	o.mu.Unlock()

	o.log.Info().
		Str("source", name).
		Str("type", plugin.Type()).
		Bool("enabled", settings.Enabled).
		Msg("Registered discovery source")
	return nil
}

// Names returns the registered source names, sorted.
func (o *Orchestrator) Names() []string {
	o.mu.RLock()
	names := make([]string, 0, len(o.registry))
	for name := range o.registry {
		names = append(names, name)
	}
	o.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Stats returns a copy of the per-source run accounting.
func (o *Orchestrator) Stats() map[string]SourceStats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := make(map[string]SourceStats, len(o.registry))
	for name, entry := range o.registry {
		stats[name] = entry.stats
	}
	return stats
}

// PushQueries hands generated search queries to every plugin that accepts
// them and reports how many did.
func (o *Orchestrator) PushQueries(queries []string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n := 0
	for _, entry := range o.registry {
		if qc, ok := entry.plugin.(source.QueryConfigurable); ok {
			qc.SetQueries(queries)
			n++
		}
	}
	return n
}

// LastPass returns the cached result for a scope, ScopeAll for full passes.
func (o *Orchestrator) LastPass(scope string) (*PassResult, bool) {
	return o.cache.Get(scope)
}

// ClearResultCache drops all cached pass results.
func (o *Orchestrator) ClearResultCache() {
	o.cache.Clear()
}

// RunDiscovery executes a full pass over every enabled source.
func (o *Orchestrator) RunDiscovery(ctx context.Context) (*PassResult, error) {
	targets := o.enabledTargets()
	if len(targets) == 0 {
		o.log.Warn().Msg("No enabled discovery sources")
		result := &PassResult{PerSource: map[string]SourceCount{}}
		o.cache.Store(ScopeAll, result)
		return result, nil
	}

	o.log.Info().Int("sources", len(targets)).Msg("Starting discovery pass")
	result := o.runPass(ctx, targets)
	o.cache.Store(ScopeAll, result)

	o.log.Info().
		Int("found", result.TotalFound).
		Int("new", result.NewStored).
		Int("duplicates", result.DuplicatesRemoved).
		Int("errors", len(result.Errors)).
		Dur("elapsed", result.Elapsed).
		Msg("Discovery pass completed")
	return result, nil
}

// RunSpecific executes a pass over a named subset, regardless of the
// enabled flag. An unknown name becomes a per-name error in the result,
// never a pass failure.
func (o *Orchestrator) RunSpecific(ctx context.Context, names []string) (*PassResult, error) {
	var targets []runTarget
	var unknown []error

	o.mu.RLock()
	for _, name := range names {
		entry, ok := o.registry[name]
		if !ok {
			unknown = append(unknown, fmt.Errorf("source not registered: %s", name))
			continue
		}
		targets = append(targets, runTarget{plugin: entry.plugin, settings: entry.settings})
	}
	o.mu.RUnlock()

	result := o.runPass(ctx, targets)
	result.Errors = append(unknown, result.Errors...)
	o.cache.Store(strings.Join(names, ","), result)
	return result, nil
}

// Health probes every registered plugin. All probes must pass for a
// healthy status; any failure degrades the report without failing it.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	o.mu.RLock()
	plugins := make(map[string]source.Discoverer, len(o.registry))
	for name, entry := range o.registry {
		plugins[name] = entry.plugin
	}
	o.mu.RUnlock()

	report := HealthReport{Status: StatusHealthy, Sources: make(map[string]bool, len(plugins))}
	for name, plugin := range plugins {
		ok := plugin.IsHealthy(ctx)
		report.Sources[name] = ok
		if !ok {
			report.Status = StatusDegraded
		}
	}
	return report
}

// Cleanup shuts down every registered plugin, collecting rather than
// short-circuiting on errors.
func (o *Orchestrator) Cleanup() []error {
	o.mu.RLock()
	plugins := make(map[string]source.Discoverer, len(o.registry))
	for name, entry := range o.registry {
		plugins[name] = entry.plugin
	}
	o.mu.RUnlock()

	var errs []error
	for name, plugin := range plugins {
		if err := plugin.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", name, err))
		}
	}
	return errs
}

// enabledTargets snapshots the enabled registry entries sorted by priority,
// high first, stable by registration order within a tier.
func (o *Orchestrator) enabledTargets() []runTarget {
	o.mu.RLock()
	type ordered struct {
		target runTarget
		rank   int
		order  int
	}
	entries := make([]ordered, 0, len(o.registry))
	for _, entry := range o.registry {
		if !entry.settings.Enabled {
			continue
		}
		entries = append(entries, ordered{
			target: runTarget{plugin: entry.plugin, settings: entry.settings},
			rank:   entry.settings.Priority.Rank(),
			order:  entry.order,
		})
	}
	o.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rank != entries[j].rank {
			return entries[i].rank < entries[j].rank
		}
		return entries[i].order < entries[j].order
	})

	targets := make([]runTarget, len(entries))
	for i, e := range entries {
		targets[i] = e.target
	}
	return targets
}

type pluginOutcome struct {
	name         string
	candidates   []*models.OpportunityData
	errs         []error
	processingMs int64
}

// runPass drives the batched fan-out and the trailing deduplication step.
func (o *Orchestrator) runPass(ctx context.Context, targets []runTarget) *PassResult {
	start := time.Now()
	result := &PassResult{PerSource: make(map[string]SourceCount, len(targets))}
	var all []*models.OpportunityData

	for i := 0; i < len(targets); i += o.maxConcurrent {
		end := i + o.maxConcurrent
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[i:end]

		outcomes := make(chan pluginOutcome, len(batch))
		for _, t := range batch {
			go func(t runTarget) {
				outcomes <- o.runOne(ctx, t)
			}(t)
		}
		for range batch {
			out := <-outcomes
			result.TotalFound += len(out.candidates)
			all = append(all, out.candidates...)
			result.Errors = append(result.Errors, out.errs...)
			result.PerSource[out.name] = SourceCount{
				Found:        len(out.candidates),
				Errors:       len(out.errs),
				ProcessingMs: out.processingMs,
			}
		}
	}

	if len(all) > 0 {
		outcome := o.dedupe.ProcessBatch(ctx, all)
		result.NewStored = outcome.New
		result.DuplicatesRemoved = outcome.Duplicates
		result.Stored = outcome.Created
		if outcome.Failed > 0 {
			result.Errors = append(result.Errors, fmt.Errorf("%d candidates failed to store", outcome.Failed))
		}
	}

	result.Elapsed = time.Since(start)
	return result
}

// runOne executes a single plugin under its own job, rate-limit wait and
// timeout. A failing plugin contributes exactly one error to the pass.
func (o *Orchestrator) runOne(ctx context.Context, t runTarget) pluginOutcome {
	name := t.plugin.Name()
	out := pluginOutcome{name: name}

	job := o.jobs.CreateJob(t.settings.Name, models.SourceType(t.plugin.Type()), name)
	_ = o.jobs.UpdateStatus(job.ID, models.JobStatusRunning)

	start := time.Now()
	if err := o.limiter.WaitForAvailability(ctx, name); err != nil {
		out.errs = append(out.errs, o.failJob(job.ID, t, "rate limit wait", err))
		return out
	}

	timeout := o.jobTimeout
	if t.settings.TimeoutMs > 0 {
		timeout = t.settings.Timeout()
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := t.plugin.Discover(dctx)
	elapsed := time.Since(start).Milliseconds()
	o.recordRun(name, err == nil, elapsed)

	if err != nil {
		out.processingMs = elapsed
		out.errs = append(out.errs, o.failJob(job.ID, t, "discover", err))
		return out
	}

	out.candidates = res.Opportunities
	out.errs = append(out.errs, res.Errors...)
	out.processingMs = res.ProcessingMs
	if out.processingMs == 0 {
		out.processingMs = elapsed
	}

	_ = o.jobs.SetResult(job.ID, &models.DiscoveryJobResult{
		OpportunitiesFound: len(res.Opportunities),
		ProcessingMs:       out.processingMs,
	})
	_ = o.jobs.UpdateProgress(job.ID, 100)
	_ = o.jobs.UpdateStatus(job.ID, models.JobStatusCompleted)

	o.log.Debug().
		Str("source", name).
		Int("found", len(res.Opportunities)).
		Int64("processing_ms", out.processingMs).
		Msg("Source discovery finished")
	return out
}

// failJob marks the job failed and returns the attributed error.
func (o *Orchestrator) failJob(jobID string, t runTarget, op string, err error) error {
	derr := &source.DiscoveryError{
		SourceName: t.plugin.Name(),
		SourceType: t.plugin.Type(),
		Op:         op,
		Err:        err,
	}
	_ = o.jobs.SetError(jobID, derr.Error())
	_ = o.jobs.UpdateStatus(jobID, models.JobStatusFailed)

	o.log.Error().
		Str("source", t.plugin.Name()).
		Str("op", op).
		Err(err).
		Msg("Source discovery failed")
	return derr
}

// recordRun folds one invocation into the source's rolling statistics.
func (o *Orchestrator) recordRun(name string, success bool, ms int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.registry[name]
	if !ok {
		return
	}
	st := &entry.stats
	st.TotalRuns++
	if success {
		st.SuccessfulRuns++
	}
	if st.TotalRuns == 1 {
		st.AvgProcessingMs = ms
	} else {
		st.AvgProcessingMs = (st.AvgProcessingMs*int64(st.TotalRuns-1) + ms) / int64(st.TotalRuns)
	}
	st.LastRun = time.Now()
}

// applySettings propagates a settings change into the registry, the rate
// limiter and the running plugin. Registered as the config manager's
// OnChange hook.
func (o *Orchestrator) applySettings(s models.SourceSettings) {
	o.mu.Lock()
	entry, ok := o.registry[s.Name]
	if ok {
		entry.settings = s
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	if s.RateLimitPerMinute > 0 {
		o.limiter.SetDomainLimit(s.Name, s.RateLimitPerMinute)
	}
	if err := entry.plugin.UpdateConfig(s); err != nil {
		o.log.Warn().
			Str("source", s.Name).
			Err(err).
			Msg("Plugin rejected settings update")
	}
}
