package sentinel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/internal/storage"
	"github.com/artscout-agent/pkg/logger"
)

// RunFunc executes a discovery run for one named discoverer. The scheduler
// only triggers; it never knows how discovery executes.
type RunFunc func(ctx context.Context, discovererName string) error

// JobScheduler fires discovery runs from per-source cron schedules. Jobs
// persist through the repository so schedules survive restarts; due
// evaluation happens on a fixed tick, so enable/disable and reschedule take
// effect on the next tick rather than retroactively.
type JobScheduler struct {
	mu    sync.Mutex
	jobs  map[string]*models.ScheduledJob
	specs map[string]cron.Schedule
	run   RunFunc
	tick  time.Duration
	repo  storage.Repository
	log   *logger.Logger
}

// NewJobScheduler creates a scheduler that evaluates schedules every
// cfg.Tick() and triggers run for each due job.
func NewJobScheduler(repo storage.Repository, cfg config.SchedulerConfig, run RunFunc, log *logger.Logger) *JobScheduler {
	return &JobScheduler{
		jobs:  make(map[string]*models.ScheduledJob),
		specs: make(map[string]cron.Schedule),
		run:   run,
		tick:  cfg.Tick(),
		repo:  repo,
		log:   log.WithComponent("scheduler"),
	}
}

// Load restores persisted scheduled jobs. A row whose cron expression no
// longer parses is skipped with a warning instead of blocking the rest.
func (s *JobScheduler) Load(ctx context.Context) error {
	rows, err := s.repo.GetScheduledJobs(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range rows {
		spec, err := cron.ParseStandard(job.CronExpr)
		if err != nil {
			s.log.Warn().
				Str("job_id", job.ID).
				Str("cron", job.CronExpr).
				Err(err).
				Msg("Skipping scheduled job with invalid cron expression")
			continue
		}
		s.jobs[job.ID] = job
		s.specs[job.ID] = spec
	}

	s.log.Info().Int("jobs", len(s.jobs)).Msg("Loaded scheduled jobs")
	return nil
}

// Add registers and persists a new scheduled job. The first run fires on
// the first tick after its schedule comes due, never at Add time.
func (s *JobScheduler) Add(ctx context.Context, discovererName, cronExpr string, enabled bool) (*models.ScheduledJob, error) {
	if strings.TrimSpace(discovererName) == "" {
		return nil, fmt.Errorf("discoverer name is required")
	}
	spec, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	job := &models.ScheduledJob{
		ID:             uuid.NewString(),
		DiscovererName: discovererName,
		CronExpr:       cronExpr,
		Enabled:        enabled,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.SaveScheduledJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save scheduled job: %w", err)
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.specs[job.ID] = spec
	s.mu.Unlock()

	s.log.Info().
		Str("job_id", job.ID).
		Str("discoverer", discovererName).
		Str("cron", cronExpr).
		Msg("Added scheduled job")

	snapshot := *job
	return &snapshot, nil
}

// Remove deletes a scheduled job.
func (s *JobScheduler) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown scheduled job %q", id)
	}

	if err := s.repo.DeleteScheduledJob(ctx, id); err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}

	s.mu.Lock()
	delete(s.jobs, id)
	delete(s.specs, id)
	s.mu.Unlock()
	return nil
}

// SetEnabled flips a scheduled job on or off, effective next tick.
func (s *JobScheduler) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	var updated models.ScheduledJob
	if ok {
		job.Enabled = enabled
		updated = *job
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown scheduled job %q", id)
	}

	return s.repo.SaveScheduledJob(ctx, &updated)
}

// Reschedule swaps a job's cron expression, effective next tick. Invalid
// expressions are rejected without touching the job.
func (s *JobScheduler) Reschedule(ctx context.Context, id, cronExpr string) error {
	spec, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	var updated models.ScheduledJob
	if ok {
		job.CronExpr = cronExpr
		s.specs[id] = spec
		updated = *job
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown scheduled job %q", id)
	}

	return s.repo.SaveScheduledJob(ctx, &updated)
}

// Jobs returns snapshots of all scheduled jobs sorted by discoverer name.
func (s *JobScheduler) Jobs() []*models.ScheduledJob {
	s.mu.Lock()
	out := make([]*models.ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		out = append(out, &snapshot)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DiscovererName != out[j].DiscovererName {
			return out[i].DiscovererName < out[j].DiscovererName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Start launches the evaluation loop. It returns immediately; the loop runs
// until ctx is cancelled.
func (s *JobScheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		s.log.Info().Dur("tick", s.tick).Msg("Scheduler started")
		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("Scheduler stopped")
				return
			case now := <-ticker.C:
				s.runDue(ctx, now)
			}
		}
	}()
}

// RunNow triggers a job immediately, bypassing its schedule and enabled
// flag but routing through the same callback so accounting stays uniform.
func (s *JobScheduler) RunNow(ctx context.Context, id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	var name string
	if ok {
		now := time.Now()
		job.LastRun = &now
		name = job.DiscovererName
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown scheduled job %q", id)
	}

	if err := s.persistLastRun(ctx, id); err != nil {
		s.log.Warn().Str("job_id", id).Err(err).Msg("Failed to persist last run")
	}
	return s.run(ctx, name)
}

// runDue fires every enabled job whose schedule has come due since its last
// run. Triggers run in their own goroutines so one slow discoverer cannot
// hold back the tick.
func (s *JobScheduler) runDue(ctx context.Context, now time.Time) {
	type trigger struct {
		id   string
		name string
	}

	s.mu.Lock()
	var due []trigger
	for id, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		spec, ok := s.specs[id]
		if !ok {
			continue
		}
		base := job.CreatedAt
		if job.LastRun != nil {
			base = *job.LastRun
		}
		if !spec.Next(base).After(now) {
			job.LastRun = &now
			due = append(due, trigger{id: id, name: job.DiscovererName})
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		if err := s.persistLastRun(ctx, t.id); err != nil {
			s.log.Warn().Str("job_id", t.id).Err(err).Msg("Failed to persist last run")
		}
		go func(t trigger) {
			s.log.Info().
				Str("job_id", t.id).
				Str("discoverer", t.name).
				Msg("Scheduled discovery triggered")
			if err := s.run(ctx, t.name); err != nil {
				s.log.Error().
					Str("job_id", t.id).
					Str("discoverer", t.name).
					Err(err).
					Msg("Scheduled discovery failed")
			}
		}(t)
	}
}

func (s *JobScheduler) persistLastRun(ctx context.Context, id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	var updated models.ScheduledJob
	if ok {
		updated = *job
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown scheduled job %q", id)
	}
	return s.repo.SaveScheduledJob(ctx, &updated)
}
