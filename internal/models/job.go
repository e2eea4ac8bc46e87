package models

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a discovery job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminalJobStatus reports whether a job has finished for good
func IsTerminalJobStatus(s JobStatus) bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ParseJobStatus validates a raw job status string
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("unknown job status: %q", s)
}

// DiscoveryJobResult summarizes what a single discoverer invocation produced
type DiscoveryJobResult struct {
	OpportunitiesFound int   `json:"opportunities_found"`
	NewOpportunities   int   `json:"new_opportunities"`
	Duplicates         int   `json:"duplicates"`
	ProcessingMs       int64 `json:"processing_ms"`
}

// DiscoveryJob tracks one discoverer invocation. Transitions are
// one-directional: pending -> running -> {completed | failed | cancelled}.
// Jobs live in memory only and move to a bounded history ring once terminal.
type DiscoveryJob struct {
	ID         string              `json:"id"`
	SourceID   string              `json:"source_id"`
	SourceType SourceType          `json:"source_type"`
	SourceName string              `json:"source_name"`
	Status     JobStatus           `json:"status"`
	Progress   int                 `json:"progress"` // 0-100
	StartedAt  time.Time           `json:"started_at"`
	EndedAt    *time.Time          `json:"ended_at"`
	Error      string              `json:"error,omitempty"`
	Result     *DiscoveryJobResult `json:"result,omitempty"`
}

// Duration returns how long the job ran, or how long it has been running
func (j *DiscoveryJob) Duration(now time.Time) time.Duration {
	if j.EndedAt != nil {
		return j.EndedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}

// ScheduledJob is a recurring trigger for a named discoverer. Its lifecycle is
// independent of the DiscoveryJobs it spawns over time.
type ScheduledJob struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	DiscovererName string     `gorm:"not null" json:"discoverer_name"`
	CronExpr       string     `gorm:"not null" json:"cron_expr"`
	Enabled        bool       `gorm:"default:true" json:"enabled"`
	LastRun        *time.Time `json:"last_run"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
