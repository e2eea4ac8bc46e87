package sentinel

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artscout-agent/internal/models"
	"github.com/artscout-agent/pkg/logger"
)

// ErrJobNotFound is returned for job IDs the manager has never seen.
var ErrJobNotFound = errors.New("sentinel: job not found")

// ErrJobFinished is returned when an update targets a job that already
// reached a terminal status.
var ErrJobFinished = errors.New("sentinel: job already finished")

// DefaultHistoryLimit caps the terminal-job ring when no limit is configured.
const DefaultHistoryLimit = 1000

// DiscoveryJobManager tracks every discoverer invocation in memory. Active
// jobs live in a table keyed by ID; terminal jobs move to a bounded history
// ring, oldest trimmed first. Transitions are one-directional: once a job is
// completed, failed or cancelled it never changes again.
type DiscoveryJobManager struct {
	mu      sync.Mutex
	active  map[string]*models.DiscoveryJob
	history []*models.DiscoveryJob
	limit   int
	log     *logger.Logger
}

// NewJobManager creates a job manager whose history holds at most
// historyLimit terminal jobs. Zero or negative falls back to
// DefaultHistoryLimit.
func NewJobManager(historyLimit int, log *logger.Logger) *DiscoveryJobManager {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &DiscoveryJobManager{
		active: make(map[string]*models.DiscoveryJob),
		limit:  historyLimit,
		log:    log.WithComponent("jobs"),
	}
}

// CreateJob registers a new pending job and returns a snapshot of it.
func (m *DiscoveryJobManager) CreateJob(sourceID string, sourceType models.SourceType, sourceName string) *models.DiscoveryJob {
	job := &models.DiscoveryJob{
		ID:         uuid.NewString(),
		SourceID:   sourceID,
		SourceType: sourceType,
		SourceName: sourceName,
		Status:     models.JobStatusPending,
		Progress:   0,
		StartedAt:  time.Now(),
	}

	m.mu.Lock()
	m.active[job.ID] = job
	m.mu.Unlock()

	m.log.Debug().
		Str("job_id", job.ID).
		Str("source", sourceName).
		Msg("Created discovery job")

	snapshot := *job
	return &snapshot
}

// UpdateStatus moves a job forward through its lifecycle. Terminal statuses
// move the job into history; any further update returns ErrJobFinished.
func (m *DiscoveryJobManager) UpdateStatus(id string, status models.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.activeJob(id)
	if err != nil {
		return err
	}
	if !jobTransitionAllowed(job.Status, status) {
		return fmt.Errorf("sentinel: job %s cannot move from %s to %s", id, job.Status, status)
	}

	job.Status = status
	if models.IsTerminalJobStatus(status) {
		m.retire(job)
	}
	return nil
}

// UpdateProgress sets the completion percentage of an active job, clamped
// to [0,100].
func (m *DiscoveryJobManager) UpdateProgress(id string, pct int) error {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.activeJob(id)
	if err != nil {
		return err
	}
	job.Progress = pct
	return nil
}

// SetResult attaches the run summary to an active job.
func (m *DiscoveryJobManager) SetResult(id string, result *models.DiscoveryJobResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.activeJob(id)
	if err != nil {
		return err
	}
	job.Result = result
	return nil
}

// SetError records a failure message on an active job without changing its
// status.
func (m *DiscoveryJobManager) SetError(id string, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.activeJob(id)
	if err != nil {
		return err
	}
	job.Error = msg
	return nil
}

// CancelJob cancels a pending or running job.
func (m *DiscoveryJobManager) CancelJob(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.activeJob(id)
	if err != nil {
		return err
	}

	job.Status = models.JobStatusCancelled
	m.retire(job)

	m.log.Info().Str("job_id", id).Msg("Cancelled discovery job")
	return nil
}

// Get returns a snapshot of a job from the active table or history.
func (m *DiscoveryJobManager) Get(id string) (*models.DiscoveryJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.active[id]; ok {
		snapshot := *job
		return &snapshot, true
	}
	for _, job := range m.history {
		if job.ID == id {
			snapshot := *job
			return &snapshot, true
		}
	}
	return nil, false
}

// Active returns snapshots of all non-terminal jobs, oldest first.
func (m *DiscoveryJobManager) Active() []*models.DiscoveryJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]*models.DiscoveryJob, 0, len(m.active))
	for _, job := range m.active {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.Before(jobs[j].StartedAt) })
	return jobs
}

// History returns snapshots of terminal jobs, newest first, up to limit.
// Zero or negative limit returns everything retained.
func (m *DiscoveryJobManager) History(limit int) []*models.DiscoveryJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	jobs := make([]*models.DiscoveryJob, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		snapshot := *m.history[i]
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// CleanupJobs force-fails every non-terminal job that started before the
// cutoff and trims history to its cap. Returns how many jobs were failed.
// This is stuck-job recovery: a plugin that hangs past its timeout leaves a
// running job behind, and the janitor sweeps it up.
func (m *DiscoveryJobManager) CleanupJobs(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()

	failed := 0
	for _, job := range m.active {
		if job.StartedAt.Before(cutoff) {
			job.Status = models.JobStatusFailed
			job.Error = "exceeded maximum runtime"
			m.retire(job)
			failed++
		}
	}
	if failed > 0 {
		m.log.Warn().Int("failed", failed).Msg("Force-failed stuck discovery jobs")
	}
	return failed
}

// JobStats summarizes the manager's in-memory state. HourlyActivity buckets
// job starts over the trailing 24 hours, index 0 being the most recent hour.
type JobStats struct {
	Active         int           `json:"active"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	Cancelled      int           `json:"cancelled"`
	SuccessRate    float64       `json:"success_rate"`
	AvgDuration    time.Duration `json:"avg_duration"`
	HourlyActivity [24]int       `json:"hourly_activity"`
}

// Stats derives job statistics from the active table and history alone.
func (m *DiscoveryJobManager) Stats() JobStats {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := JobStats{Active: len(m.active)}

	var totalDuration time.Duration
	terminal := 0
	for _, job := range m.history {
		switch job.Status {
		case models.JobStatusCompleted:
			stats.Completed++
		case models.JobStatusFailed:
			stats.Failed++
		case models.JobStatusCancelled:
			stats.Cancelled++
		}
		terminal++
		totalDuration += job.Duration(now)
		bucketStart(&stats.HourlyActivity, now, job.StartedAt)
	}
	for _, job := range m.active {
		bucketStart(&stats.HourlyActivity, now, job.StartedAt)
	}

	if terminal > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(terminal)
		stats.AvgDuration = totalDuration / time.Duration(terminal)
	}
	return stats
}

// activeJob resolves an ID against the active table. Jobs found only in
// history report ErrJobFinished. Callers hold the mutex.
func (m *DiscoveryJobManager) activeJob(id string) (*models.DiscoveryJob, error) {
	if job, ok := m.active[id]; ok {
		return job, nil
	}
	for _, job := range m.history {
		if job.ID == id {
			return nil, ErrJobFinished
		}
	}
	return nil, ErrJobNotFound
}

// retire stamps the end time, moves the job to history and trims the ring.
// Callers hold the mutex.
func (m *DiscoveryJobManager) retire(job *models.DiscoveryJob) {
	ended := time.Now()
	job.EndedAt = &ended
	delete(m.active, job.ID)
	m.history = append(m.history, job)
	if over := len(m.history) - m.limit; over > 0 {
		m.history = append([]*models.DiscoveryJob(nil), m.history[over:]...)
	}
}

func jobTransitionAllowed(from, to models.JobStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case models.JobStatusPending:
		return to != models.JobStatusPending
	case models.JobStatusRunning:
		return to != models.JobStatusPending && to != models.JobStatusRunning
	}
	return false
}

func bucketStart(buckets *[24]int, now, startedAt time.Time) {
	age := now.Sub(startedAt)
	if age < 0 {
		return
	}
	idx := int(age.Hours())
	if idx >= 0 && idx < 24 {
		buckets[idx]++
	}
}
