package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

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
		Use:   "artscout",
		Short: "Artist opportunity scout powered by AI",
		Long: `An agent that discovers grants, residencies and open calls across
configured sources, removes duplicates and scores each listing against
an artist profile.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(opportunitiesCmd())
	rootCmd.AddCommand(dedupCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(profileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
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

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// pipeline bundles the collaborators a full discovery or analysis run needs.
type pipeline struct {
	configs *sentinel.SourceConfigManager
	jobs    *sentinel.DiscoveryJobManager
	sent    *sentinel.Orchestrator
	analyst *analyst.Orchestrator
	dedupe  *dedup.Engine
	manual  *manual.Source
}

func buildPipeline(ctx context.Context) (*pipeline, error) {
	limiter := ratelimit.NewDomainLimiter(cfg.RateLimit.DefaultPerMinute)

	configs := sentinel.NewSourceConfigManager(repo, log)
	if err := configs.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load source settings: %w", err)
	}

	jobs := sentinel.NewJobManager(cfg.Discovery.HistoryLimit, log)
	engine := dedup.NewEngine(repo, cfg.Dedup, log)
	sent := sentinel.NewOrchestrator(configs, jobs, engine, limiter, nil, cfg.Discovery, log)

	// Register the sources whose static config is enabled. The per-source
	// enabled flag in the settings store still decides pass participation.
	var plugins []source.Discoverer
	var manualSource *manual.Source
	if cfg.Sources.Manual.Enabled {
		manualSource = manual.New(log)
		plugins = append(plugins, manualSource)
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
		}
	}

	var gen ai.TextGenerator
	if cfg.Anthropic.APIKey != "" {
		gen = ai.NewClient(cfg.Anthropic, cfg.RateLimit.AnthropicRequestsPerMinute, limiter, log)
	}
	queries := ai.NewQueryGenerator(gen, cfg.Analyst.MaxQueries, log)
	embedder := ai.NewEmbedder(cfg.Embeddings, log)
	scorer := scoring.NewEngine(embedder, cfg.Scoring, log)
	analystOrch := analyst.NewOrchestrator(repo, sent, queries, scorer, cfg.Analyst, log)

	return &pipeline{
		configs: configs,
		jobs:    jobs,
		sent:    sent,
		analyst: analystOrch,
		dedupe:  engine,
		manual:  manualSource,
	}, nil
}

func closePipeline(pipe *pipeline) {
	for _, err := range pipe.sent.Cleanup() {
		log.Warn().Err(err).Msg("Source cleanup failed")
	}
}

// ensureProfile loads the profile, seeding it from the configured profile
// file on first use.
func ensureProfile(ctx context.Context, id string) (*models.ArtistProfile, error) {
	profile, err := repo.GetProfile(ctx, id)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if cfg.Profile.File == "" {
		return nil, fmt.Errorf("profile %q not found - import one with 'artscout profile import <file>'", id)
	}

	profile, err = loadProfileFile(cfg.Profile.File, id)
	if err != nil {
		return nil, err
	}
	if err := repo.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	log.Info().Str("profile_id", profile.ID).Str("file", cfg.Profile.File).Msg("Seeded profile from file")
	return profile, nil
}

func loadProfileFile(path, fallbackID string) (*models.ArtistProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var profile models.ArtistProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if profile.ID == "" {
		profile.ID = fallbackID
	}
	if profile.Name == "" {
		return nil, fmt.Errorf("profile file must include a name")
	}
	return &profile, nil
}

// ============ ANALYZE COMMAND ============

func analyzeCmd() *cobra.Command {
	var profileID string
	var sources []string
	var maxQueries int
	var priority string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full discovery and scoring pipeline for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if profileID == "" {
				profileID = cfg.Profile.ID
			}
			if _, err := ensureProfile(ctx, profileID); err != nil {
				return err
			}

			prio, err := models.ParsePriority(priority)
			if err != nil {
				return err
			}

			pipe, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer closePipeline(pipe)

			result, err := pipe.analyst.Analyze(ctx, analyst.Request{
				ProfileID:  profileID,
				Sources:    sources,
				MaxQueries: maxQueries,
				Priority:   prio,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Analysis Result ===\n")
			fmt.Printf("Request ID:  %s\n", result.RequestID)
			fmt.Printf("Profile:     %s\n", result.ProfileID)
			fmt.Printf("Queries:     %d\n", result.QueriesGenerated)
			fmt.Printf("Discovered:  %d\n", result.OpportunitiesDiscovered)
			fmt.Printf("New:         %d\n", result.NewOpportunities)
			fmt.Printf("Scored:      %d\n", result.OpportunitiesScored)
			fmt.Printf("Duration:    %dms\n", result.ProcessingMs)

			if len(result.Errors) > 0 {
				fmt.Printf("\nErrors:\n")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&profileID, "profile-id", "", "Artist profile to analyze for (default from config)")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Restrict discovery to these sources")
	cmd.Flags().IntVar(&maxQueries, "max-queries", 0, "Cap the number of generated search queries")
	cmd.Flags().StringVar(&priority, "priority", "medium", "Request priority (low, medium, high)")

	return cmd
}

// ============ DISCOVER COMMANDS ============

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Opportunity discovery commands",
	}

	cmd.AddCommand(discoverRunCmd())
	return cmd
}

func discoverRunCmd() *cobra.Command {
	var sourceName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a discovery pass without scoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pipe, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer closePipeline(pipe)

			var result *sentinel.PassResult
			if sourceName != "" {
				result, err = pipe.sent.RunSpecific(ctx, []string{sourceName})
			} else {
				result, err = pipe.sent.RunDiscovery(ctx)
			}
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Discovery Results ===\n")
			fmt.Printf("Found:      %d\n", result.TotalFound)
			fmt.Printf("New:        %d\n", result.NewStored)
			fmt.Printf("Duplicates: %d\n", result.DuplicatesRemoved)
			fmt.Printf("Duration:   %s\n", result.Elapsed.Round(time.Millisecond))

			if len(result.PerSource) > 0 {
				fmt.Printf("\nPer source:\n")
				for name, count := range result.PerSource {
					fmt.Printf("  %-12s found %d, errors %d, %dms\n", name, count.Found, count.Errors, count.ProcessingMs)
				}
			}

			if len(result.Errors) > 0 {
				fmt.Printf("\nErrors:\n")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sourceName, "source", "", "Run discovery for a specific source only")
	return cmd
}

// ============ SOURCES COMMANDS ============

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage discovery source settings",
	}

	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesInitCmd())
	cmd.AddCommand(sourcesEnableCmd())
	cmd.AddCommand(sourcesDisableCmd())
	cmd.AddCommand(sourcesExportCmd())
	cmd.AddCommand(sourcesImportCmd())
	return cmd
}

func loadConfigManager(ctx context.Context) (*sentinel.SourceConfigManager, error) {
	configs := sentinel.NewSourceConfigManager(repo, log)
	if err := configs.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load source settings: %w", err)
	}
	return configs, nil
}

func sourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			configs, err := loadConfigManager(ctx)
			if err != nil {
				return err
			}

			settings := configs.All()
			fmt.Printf("\n=== Sources (%d) ===\n\n", len(settings))
			for _, s := range settings {
				state := "disabled"
				if s.Enabled {
					state = "enabled"
				}
				fmt.Printf("%-12s %-10s %-8s priority=%-6s rate=%d/min timeout=%dms retries=%d\n",
					s.Name, s.Type, state, s.Priority, s.RateLimitPerMinute, s.TimeoutMs, s.RetryAttempts)
			}

			return nil
		},
	}
}

func sourcesInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Seed source settings from the static config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			configs, err := loadConfigManager(ctx)
			if err != nil {
				return err
			}

			applied := 0
			for _, s := range cfg.SourceSettings() {
				if err := configs.Upsert(ctx, s); err != nil {
					return fmt.Errorf("failed to apply settings for %s: %w", s.Name, err)
				}
				applied++
			}

			fmt.Printf("Applied settings for %d sources from config\n", applied)
			return nil
		},
	}
}

func sourcesEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable NAME",
		Short: "Enable a source for discovery passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			configs, err := loadConfigManager(ctx)
			if err != nil {
				return err
			}
			if err := configs.SetEnabled(ctx, args[0], true); err != nil {
				return err
			}

			fmt.Printf("Source %s enabled\n", args[0])
			return nil
		},
	}
}

func sourcesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable NAME",
		Short: "Exclude a source from discovery passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			configs, err := loadConfigManager(ctx)
			if err != nil {
				return err
			}
			if err := configs.SetEnabled(ctx, args[0], false); err != nil {
				return err
			}

			fmt.Printf("Source %s disabled\n", args[0])
			return nil
		},
	}
}

func sourcesExportCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export source settings as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			configs, err := loadConfigManager(ctx)
			if err != nil {
				return err
			}

			data, err := configs.Export(ctx)
			if err != nil {
				return err
			}

			if outFile == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(outFile, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}

			fmt.Printf("Exported source settings to %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "Write to file instead of stdout")
	return cmd
}

func sourcesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace source settings from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			configs, err := loadConfigManager(ctx)
			if err != nil {
				return err
			}
			if err := configs.Import(ctx, data); err != nil {
				return err
			}

			fmt.Printf("Imported settings for %d sources\n", len(configs.All()))
			return nil
		},
	}
}

// ============ OPPORTUNITIES COMMANDS ============

func opportunitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opportunities",
		Short: "List and manage discovered opportunities",
	}

	cmd.AddCommand(opportunitiesListCmd())
	cmd.AddCommand(opportunitiesTopCmd())
	cmd.AddCommand(opportunitiesSetStatusCmd())
	cmd.AddCommand(opportunitiesAddCmd())
	return cmd
}

func printOpportunity(o *models.Opportunity) {
	fmt.Printf("[%d] %.0f%% | %s\n", o.ID, o.RelevanceScore*100, o.Title)
	fmt.Printf("    Source: %s | Status: %s\n", o.SourceName, o.Status)
	if o.Organization != "" {
		fmt.Printf("    Organization: %s\n", o.Organization)
	}
	if o.Deadline != nil {
		fmt.Printf("    Deadline: %s\n", o.Deadline.Format("2006-01-02"))
	}
	fmt.Printf("    URL: %s\n", o.URL)
	if o.ScoreReasoning != "" {
		fmt.Printf("    Reasoning: %s\n", o.ScoreReasoning)
	}
	fmt.Println()
}

func opportunitiesListCmd() *cobra.Command {
	var status string
	var sourceType string
	var minScore float64
	var limit int
	var unprocessed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultOpportunityFilter()
			filter.Limit = limit

			if minScore > 0 {
				filter.MinScore = &minScore
			}
			if status != "" {
				s, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &s
			}
			if sourceType != "" {
				filter.SourceType = &sourceType
			}
			if unprocessed {
				p := false
				filter.Processed = &p
			}

			opps, err := repo.ListOpportunities(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Opportunities (%d) ===\n\n", len(opps))
			for _, o := range opps {
				printOpportunity(o)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (new, reviewing, applying, submitted, rejected, archived)")
	cmd.Flags().StringVar(&sourceType, "source-type", "", "Filter by source type")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum relevance score [0,1]")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum opportunities to show")
	cmd.Flags().BoolVar(&unprocessed, "unprocessed", false, "Show only unscored opportunities")

	return cmd
}

func opportunitiesTopCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the highest-scored open opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			processed := true
			statusNew := models.StatusNew
			filter := storage.DefaultOpportunityFilter()
			filter.Limit = limit
			filter.Processed = &processed
			filter.Status = &statusNew

			opps, err := repo.ListOpportunities(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Top Opportunities (%d) ===\n\n", len(opps))
			for _, o := range opps {
				printOpportunity(o)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum opportunities to show")
	return cmd
}

func opportunitiesSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status ID STATUS",
		Short: "Advance an opportunity through the application workflow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid opportunity id %q", args[0])
			}
			status, err := models.ParseStatus(args[1])
			if err != nil {
				return err
			}

			if err := repo.UpdateOpportunityStatus(ctx, uint(id), status); err != nil {
				if errors.Is(err, storage.ErrInvalidTransition) {
					return fmt.Errorf("cannot move opportunity %d to %s: %w", id, status, err)
				}
				return err
			}

			fmt.Printf("Opportunity %d moved to %s\n", id, status)
			return nil
		},
	}
}

func opportunitiesAddCmd() *cobra.Command {
	var title, url, description, organization, location, amount, deadline string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a listing through the manual source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pipe, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer closePipeline(pipe)

			if pipe.manual == nil {
				return fmt.Errorf("the manual source is disabled in config")
			}

			data := &models.OpportunityData{
				Title:        title,
				URL:          url,
				Description:  description,
				Organization: organization,
				Location:     location,
				Amount:       amount,
			}
			if deadline != "" {
				d, err := time.Parse("2006-01-02", deadline)
				if err != nil {
					return fmt.Errorf("invalid deadline %q, expected YYYY-MM-DD", deadline)
				}
				data.Deadline = &d
			}

			if err := pipe.manual.Submit(data); err != nil {
				return err
			}

			// Drain the submission through dedup and storage right away.
			result, err := pipe.sent.RunSpecific(ctx, []string{"manual"})
			if err != nil {
				return err
			}

			switch {
			case result.NewStored > 0:
				fmt.Printf("Stored %q as a new opportunity\n", title)
			case result.DuplicatesRemoved > 0:
				fmt.Printf("%q folded into an existing opportunity\n", title)
			default:
				fmt.Printf("Submission was not stored, check the errors below\n")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Listing title (required)")
	cmd.Flags().StringVar(&url, "url", "", "Listing URL (required)")
	cmd.Flags().StringVar(&description, "description", "", "Listing description")
	cmd.Flags().StringVar(&organization, "organization", "", "Hosting organization")
	cmd.Flags().StringVar(&location, "location", "", "Listing location")
	cmd.Flags().StringVar(&amount, "amount", "", "Award or fee amount")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Application deadline (YYYY-MM-DD)")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("url")

	return cmd
}

// ============ DEDUP COMMANDS ============

func dedupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Duplicate detection commands",
	}

	cmd.AddCommand(dedupRunCmd())
	return cmd
}

func dedupRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sweep stored opportunities for fuzzy duplicates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			engine := dedup.NewEngine(repo, cfg.Dedup, log)
			report, err := engine.Sweep(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Dedup Sweep ===\n")
			fmt.Printf("Scanned:  %d\n", report.Scanned)
			fmt.Printf("Groups:   %d\n", report.Groups)
			fmt.Printf("Archived: %d\n", report.Archived)

			return nil
		},
	}
}

// ============ SCHEDULE COMMANDS ============

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage per-source discovery schedules",
	}

	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(scheduleAddCmd())
	cmd.AddCommand(scheduleRemoveCmd())
	cmd.AddCommand(scheduleEnableCmd())
	cmd.AddCommand(scheduleDisableCmd())
	cmd.AddCommand(scheduleRunCmd())
	return cmd
}

func loadScheduler(ctx context.Context, run sentinel.RunFunc) (*sentinel.JobScheduler, error) {
	sched := sentinel.NewJobScheduler(repo, cfg.Scheduler, run, log)
	if err := sched.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load scheduled jobs: %w", err)
	}
	return sched, nil
}

func scheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled discovery jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			sched, err := loadScheduler(ctx, nil)
			if err != nil {
				return err
			}

			jobs := sched.Jobs()
			fmt.Printf("\n=== Scheduled Jobs (%d) ===\n\n", len(jobs))
			for _, j := range jobs {
				state := "disabled"
				if j.Enabled {
					state = "enabled"
				}
				lastRun := "never"
				if j.LastRun != nil {
					lastRun = j.LastRun.Format(time.RFC1123)
				}
				fmt.Printf("[%s] %s\n", j.ID, j.DiscovererName)
				fmt.Printf("    Cron: %s | %s | Last run: %s\n\n", j.CronExpr, state, lastRun)
			}

			return nil
		},
	}
}

func scheduleAddCmd() *cobra.Command {
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add SOURCE CRON",
		Short: "Schedule recurring discovery for a source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			sched, err := loadScheduler(ctx, nil)
			if err != nil {
				return err
			}

			job, err := sched.Add(ctx, args[0], args[1], !disabled)
			if err != nil {
				return err
			}

			fmt.Printf("Scheduled %s with cron %q (id %s)\n", job.DiscovererName, job.CronExpr, job.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule in a disabled state")
	return cmd
}

func scheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Delete a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			sched, err := loadScheduler(ctx, nil)
			if err != nil {
				return err
			}
			if err := sched.Remove(ctx, args[0]); err != nil {
				return err
			}

			fmt.Printf("Removed scheduled job %s\n", args[0])
			return nil
		},
	}
}

func scheduleEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			sched, err := loadScheduler(ctx, nil)
			if err != nil {
				return err
			}
			if err := sched.SetEnabled(ctx, args[0], true); err != nil {
				return err
			}

			fmt.Printf("Scheduled job %s enabled\n", args[0])
			return nil
		},
	}
}

func scheduleDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			sched, err := loadScheduler(ctx, nil)
			if err != nil {
				return err
			}
			if err := sched.SetEnabled(ctx, args[0], false); err != nil {
				return err
			}

			fmt.Printf("Scheduled job %s disabled\n", args[0])
			return nil
		},
	}
}

func scheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run ID",
		Short: "Run a scheduled job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pipe, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer closePipeline(pipe)

			run := func(ctx context.Context, name string) error {
				result, err := pipe.sent.RunSpecific(ctx, []string{name})
				if err != nil {
					return err
				}
				fmt.Printf("\n=== Discovery Results (%s) ===\n", name)
				fmt.Printf("Found:      %d\n", result.TotalFound)
				fmt.Printf("New:        %d\n", result.NewStored)
				fmt.Printf("Duplicates: %d\n", result.DuplicatesRemoved)
				if len(result.Errors) > 0 {
					return result.Errors[0]
				}
				return nil
			}

			sched, err := loadScheduler(ctx, run)
			if err != nil {
				return err
			}
			return sched.RunNow(ctx, args[0])
		},
	}
}

// ============ PROFILE COMMANDS ============

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the artist profile",
	}

	cmd.AddCommand(profileShowCmd())
	cmd.AddCommand(profileImportCmd())
	return cmd
}

func profileShowCmd() *cobra.Command {
	var profileID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored artist profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if profileID == "" {
				profileID = cfg.Profile.ID
			}
			profile, err := repo.GetProfile(ctx, profileID)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Profile %s ===\n", profile.ID)
			fmt.Printf("Name:       %s\n", profile.Name)
			fmt.Printf("Mediums:    %v\n", []string(profile.Mediums))
			fmt.Printf("Skills:     %v\n", []string(profile.Skills))
			fmt.Printf("Interests:  %v\n", []string(profile.Interests))
			fmt.Printf("Experience: %s\n", profile.Experience)
			fmt.Printf("Location:   %s\n", profile.Location)
			if profile.ArtistStatement != "" {
				fmt.Printf("\nStatement:\n%s\n", profile.ArtistStatement)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&profileID, "profile-id", "", "Profile to show (default from config)")
	return cmd
}

func profileImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import an artist profile from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			profile, err := loadProfileFile(args[0], cfg.Profile.ID)
			if err != nil {
				return err
			}
			if err := repo.SaveProfile(ctx, profile); err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}

			fmt.Printf("Imported profile %s (%s)\n", profile.ID, profile.Name)
			return nil
		},
	}
}
