package models

import (
	"fmt"
	"strings"
	"time"
)

// Priority orders sources within a discovery run. Higher priority sources
// are dispatched in earlier batches.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var priorityRank = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// Rank returns the batch order for the priority, high first. Unknown
// priorities sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// SourceSettings is the per-source runtime configuration. Rows persist so
// edits made through the CLI survive restarts.
type SourceSettings struct {
	Name               string    `gorm:"primaryKey" json:"name" mapstructure:"name"`
	Type               string    `gorm:"not null" json:"type" mapstructure:"type"`
	Enabled            bool      `gorm:"default:true" json:"enabled" mapstructure:"enabled"`
	Priority           Priority  `gorm:"default:'medium'" json:"priority" mapstructure:"priority"`
	RateLimitPerMinute int       `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	TimeoutMs          int       `json:"timeout_ms" mapstructure:"timeout_ms"`
	RetryAttempts      int       `json:"retry_attempts" mapstructure:"retry_attempts"`
	Metadata           JSON      `gorm:"type:json" json:"metadata" mapstructure:"metadata"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Validate checks a settings row before it is applied. Validation fails
// closed: a row that fails here must never reach a running source.
func (s SourceSettings) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if _, err := ParseSourceType(s.Type); err != nil {
		return fmt.Errorf("source %s: %w", s.Name, err)
	}
	if !s.Priority.Valid() {
		return fmt.Errorf("source %s: unknown priority %q", s.Name, s.Priority)
	}
	if s.RateLimitPerMinute < 0 {
		return fmt.Errorf("source %s: rate limit must be >= 0, got %d", s.Name, s.RateLimitPerMinute)
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("source %s: timeout must be >= 0, got %d", s.Name, s.TimeoutMs)
	}
	if s.RetryAttempts < 0 || s.RetryAttempts > 10 {
		return fmt.Errorf("source %s: retry attempts must be in [0,10], got %d", s.Name, s.RetryAttempts)
	}
	return nil
}

// Timeout converts the stored millisecond budget to a duration, falling back
// to a minute when unset.
func (s SourceSettings) Timeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return time.Minute
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}
