package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/artscout-agent/internal/ai"
	"github.com/artscout-agent/internal/analyst"
	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/dedup"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/scoring"
	"github.com/artscout-agent/internal/sentinel"
	"github.com/artscout-agent/internal/source"
	"github.com/artscout-agent/internal/source/bookmark"
	"github.com/artscout-agent/internal/source/manual"
	"github.com/artscout-agent/internal/source/newsletter"
	"github.com/artscout-agent/internal/source/social"
	"github.com/artscout-agent/internal/source/websearch"
	"github.com/artscout-agent/internal/storage"
	"github.com/artscout-agent/internal/storage/sqlite"
	"github.com/artscout-agent/pkg/logger"
	"github.com/artscout-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "artscout-scheduler",
		Short: "Background scheduler for the artist opportunity scout",
		Long: `Runs scheduled discovery, analysis and maintenance tasks in the
background. This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting ArtScout Scheduler")

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize rate limiter with an idle-bucket janitor
	limiter := ratelimit.NewDomainLimiter(cfg.RateLimit.DefaultPerMinute)
	stopJanitor := limiter.StartJanitor(10*time.Minute, time.Hour)
	defer stopJanitor()

	// Source settings and discovery orchestration
	configs := sentinel.NewSourceConfigManager(repo, log)
	if err := configs.Load(ctx); err != nil {
		return fmt.Errorf("failed to load source settings: %w", err)
	}
	jobs := sentinel.NewJobManager(cfg.Discovery.HistoryLimit, log)
	engine := dedup.NewEngine(repo, cfg.Dedup, log)
	sent := sentinel.NewOrchestrator(configs, jobs, engine, limiter, nil, cfg.Discovery, log)

	registerSources(ctx, sent, limiter)
	defer func() {
		for _, err := range sent.Cleanup() {
			log.Warn().Err(err).Msg("Source cleanup failed")
		}
	}()

	// Analyst pipeline
	var gen ai.TextGenerator
	if cfg.Anthropic.APIKey != "" {
		gen = ai.NewClient(cfg.Anthropic, cfg.RateLimit.AnthropicRequestsPerMinute, limiter, log)
	}
	queries := ai.NewQueryGenerator(gen, cfg.Analyst.MaxQueries, log)
	embedder := ai.NewEmbedder(cfg.Embeddings, log)
	scorer := scoring.NewEngine(embedder, cfg.Scoring, log)
	analystOrch := analyst.NewOrchestrator(repo, sent, queries, scorer, cfg.Analyst, log)

	// Keep the most recent completed analysis for the health endpoint
	var lastAnalysis atomic.Value
	analystOrch.OnEvent(func(e analyst.Event) {
		if e.Name == analyst.EventCompleted && e.Result != nil {
			lastAnalysis.Store(e.Result)
		}
	})

	seedProfile(ctx)

	// Per-source schedules from the database
	runSource := func(ctx context.Context, name string) error {
		result, err := sent.RunSpecific(ctx, []string{name})
		if err != nil {
			return err
		}
		log.Info().
			Str("source", name).
			Int("found", result.TotalFound).
			Int("new", result.NewStored).
			Int("duplicates", result.DuplicatesRemoved).
			Msg("Scheduled source run completed")
		if len(result.Errors) > 0 {
			return result.Errors[0]
		}
		return nil
	}
	sched := sentinel.NewJobScheduler(repo, cfg.Scheduler, runSource, log)
	if err := sched.Load(ctx); err != nil {
		return fmt.Errorf("failed to load scheduled jobs: %w", err)
	}
	sched.Start(ctx)
	log.Info().Int("jobs", len(sched.Jobs())).Msg("Per-source scheduler started")

	// Built-in cron jobs
	c := cron.New(cron.WithLogger(cronLogger{log}))
	if cfg.Scheduler.EnableDefaults {
		if err := addDefaultJobs(ctx, c, analystOrch, engine, jobs); err != nil {
			return err
		}
	}
	c.Start()
	log.Info().Bool("defaults", cfg.Scheduler.EnableDefaults).Msg("Scheduler started")

	// Start health check server
	go startHealthServer(cfg.Scheduler.HealthAddr, analystOrch, jobs, &lastAnalysis)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	cancel()
	c.Stop()

	return nil
}

// registerSources constructs every statically enabled plugin and admits it
// into the orchestrator. A plugin that fails to register is skipped, not
// fatal; the rest of the daemon keeps running.
func registerSources(ctx context.Context, sent *sentinel.Orchestrator, limiter *ratelimit.DomainLimiter) {
	var plugins []source.Discoverer
	if cfg.Sources.Manual.Enabled {
		plugins = append(plugins, manual.New(log))
	}
	if cfg.Sources.Bookmark.Enabled {
		plugins = append(plugins, bookmark.New(cfg.Sources.Bookmark, limiter, log))
	}
	if cfg.Sources.Newsletter.Enabled {
		plugins = append(plugins, newsletter.New(cfg.Sources.Newsletter, limiter, log))
	}
	if cfg.Sources.WebSearch.Enabled {
		plugins = append(plugins, websearch.New(cfg.Sources.WebSearch, limiter, log))
	}
	if cfg.Sources.Social.Enabled {
		plugins = append(plugins, social.New(cfg.Sources.Social, limiter, log))
	}

	for _, plugin := range plugins {
		if err := sent.Register(ctx, plugin); err != nil {
			log.Warn().Err(err).Str("source", plugin.Name()).Msg("Skipping source that failed to register")
			continue
		}
		log.Info().Str("source", plugin.Name()).Msg("Registered source")
	}
}

// seedProfile installs the configured profile file on first boot. A missing
// profile is not fatal here, scheduled analyses will log the failure.
func seedProfile(ctx context.Context) {
	_, err := repo.GetProfile(ctx, cfg.Profile.ID)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Warn().Err(err).Msg("Failed to look up profile")
		return
	}
	if cfg.Profile.File == "" {
		log.Warn().
			Str("profile_id", cfg.Profile.ID).
			Msg("No profile stored and no profile file configured, scheduled analyses will fail")
		return
	}

	data, err := os.ReadFile(cfg.Profile.File)
	if err != nil {
		log.Warn().Err(err).Str("file", cfg.Profile.File).Msg("Failed to read profile file")
		return
	}
	var profile models.ArtistProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		log.Warn().Err(err).Str("file", cfg.Profile.File).Msg("Failed to parse profile file")
		return
	}
	if profile.ID == "" {
		profile.ID = cfg.Profile.ID
	}
	if err := repo.SaveProfile(ctx, &profile); err != nil {
		log.Warn().Err(err).Msg("Failed to save seeded profile")
		return
	}
	log.Info().Str("profile_id", profile.ID).Str("file", cfg.Profile.File).Msg("Seeded profile from file")
}

// addDefaultJobs wires the three built-in cron jobs: the full analysis pass,
// the fuzzy dedup sweep and the stuck-job cleanup.
func addDefaultJobs(ctx context.Context, c *cron.Cron, analystOrch *analyst.Orchestrator, engine *dedup.Engine, jobs *sentinel.DiscoveryJobManager) error {
	_, err := c.AddFunc(cfg.Scheduler.DiscoveryCron, func() {
		log.Info().Msg("Running scheduled analysis")

		result, err := analystOrch.Analyze(ctx, analyst.Request{ProfileID: cfg.Profile.ID})
		if err != nil {
			log.Error().Err(err).Msg("Scheduled analysis failed")
			return
		}

		log.Info().
			Int("discovered", result.OpportunitiesDiscovered).
			Int("new", result.NewOpportunities).
			Int("scored", result.OpportunitiesScored).
			Msg("Scheduled analysis completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule analysis job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.DiscoveryCron).Msg("Analysis job scheduled")

	_, err = c.AddFunc(cfg.Scheduler.DedupCron, func() {
		log.Info().Msg("Running scheduled dedup sweep")

		report, err := engine.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled dedup sweep failed")
			return
		}

		log.Info().
			Int("scanned", report.Scanned).
			Int("groups", report.Groups).
			Int("archived", report.Archived).
			Msg("Scheduled dedup sweep completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule dedup job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.DedupCron).Msg("Dedup job scheduled")

	stuckAge := time.Duration(cfg.Discovery.StuckJobAgeMin) * time.Minute
	_, err = c.AddFunc(cfg.Scheduler.CleanupCron, func() {
		failed := jobs.CleanupJobs(stuckAge)
		if failed > 0 {
			log.Warn().Int("failed", failed).Msg("Failed stuck discovery jobs")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.CleanupCron).Msg("Cleanup job scheduled")

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// healthPayload is the aggregated component health served on /health.
type healthPayload struct {
	Status          string                `json:"status"`
	Discovery       sentinel.HealthReport `json:"discovery"`
	Scoring         scoring.HealthReport  `json:"scoring"`
	QueryGeneration bool                  `json:"query_generation"`
	Jobs            sentinel.JobStats     `json:"jobs"`
	ActiveAnalyses  int                   `json:"active_analyses"`
	LastAnalysis    *analyst.Result       `json:"last_analysis,omitempty"`
}

// startHealthServer serves aggregated component health as JSON.
func startHealthServer(addr string, analystOrch *analyst.Orchestrator, jobs *sentinel.DiscoveryJobManager, lastAnalysis *atomic.Value) {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := analystOrch.Health(r.Context())
		payload := healthPayload{
			Status:          report.Status,
			Discovery:       report.Discovery,
			Scoring:         report.Scoring,
			QueryGeneration: report.QueryGeneration,
			Jobs:            jobs.Stats(),
			ActiveAnalyses:  analystOrch.Active(),
		}
		if result, ok := lastAnalysis.Load().(*analyst.Result); ok {
			payload.LastAnalysis = result
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("Failed to encode health payload")
		}
	})

	log.Info().Str("addr", addr).Msg("Health server starting")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
