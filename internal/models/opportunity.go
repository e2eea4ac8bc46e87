package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OpportunityStatus represents the workflow state of an opportunity
type OpportunityStatus string

const (
	StatusNew       OpportunityStatus = "new"
	StatusReviewing OpportunityStatus = "reviewing"
	StatusApplying  OpportunityStatus = "applying"
	StatusSubmitted OpportunityStatus = "submitted"
	StatusRejected  OpportunityStatus = "rejected"
	StatusArchived  OpportunityStatus = "archived"
)

// ParseStatus validates a raw status string
func ParseStatus(s string) (OpportunityStatus, error) {
	switch status := OpportunityStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case StatusNew, StatusReviewing, StatusApplying, StatusSubmitted, StatusRejected, StatusArchived:
		return status, nil
	}
	return "", fmt.Errorf("unknown opportunity status: %q", s)
}

// IsTerminalStatus reports whether no further transitions are allowed.
// Archived records are kept forever; they are never hard-deleted.
func IsTerminalStatus(s OpportunityStatus) bool {
	return s == StatusArchived
}

// allowedTransitions is the forward application workflow plus rejection and
// archival, which are reachable from any non-terminal state.
var allowedTransitions = map[OpportunityStatus][]OpportunityStatus{
	StatusNew:       {StatusReviewing, StatusApplying, StatusRejected, StatusArchived},
	StatusReviewing: {StatusApplying, StatusRejected, StatusArchived},
	StatusApplying:  {StatusSubmitted, StatusRejected, StatusArchived},
	StatusSubmitted: {StatusArchived},
	StatusRejected:  {StatusArchived},
	StatusArchived:  {},
}

// IsTransitionAllowed reports whether from -> to is a legal status change
func IsTransitionAllowed(from, to OpportunityStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourceType identifies the kind of discoverer that produced an opportunity
type SourceType string

const (
	SourceWebSearch  SourceType = "websearch"
	SourceSocial     SourceType = "social"
	SourceBookmark   SourceType = "bookmark"
	SourceNewsletter SourceType = "newsletter"
	SourceManual     SourceType = "manual"
)

// ParseSourceType validates a raw source type string
func ParseSourceType(s string) (SourceType, error) {
	switch srcType := SourceType(strings.ToLower(strings.TrimSpace(s))); srcType {
	case SourceWebSearch, SourceSocial, SourceBookmark, SourceNewsletter, SourceManual:
		return srcType, nil
	}
	return "", fmt.Errorf("unknown source type: %q", s)
}

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), s)
}

// JSON is a custom type for storing arbitrary JSON data
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), j)
}

// Opportunity is a stored grant, residency or exhibition listing
type Opportunity struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CanonicalHash string     `gorm:"index" json:"canonical_hash"` // Normalized title+org+deadline digest
	Title         string     `gorm:"not null" json:"title"`
	Description   string     `json:"description"`
	URL           string     `gorm:"uniqueIndex;not null" json:"url"`
	Organization  string     `json:"organization"`
	Deadline      *time.Time `json:"deadline"`
	Amount        string     `json:"amount"`
	Location      string     `json:"location"`
	Tags          StringSlice `gorm:"type:json" json:"tags"`
	SourceType    SourceType  `gorm:"index;not null" json:"source_type"`
	SourceName    string      `json:"source_name"`
	SourceURL     string      `json:"source_url"`

	RelevanceScore float64 `json:"relevance_score"` // [0,1] weighted aggregate
	SemanticScore  float64 `json:"semantic_score"`
	KeywordScore   float64 `json:"keyword_score"`
	CategoryScore  float64 `json:"category_score"`
	ScoreReasoning string  `json:"score_reasoning"`

	Processed bool              `json:"processed"`
	Status    OpportunityStatus `gorm:"default:'new';index" json:"status"`
	Notes     string            `json:"notes"`

	DiscoveredAt time.Time `gorm:"autoCreateTime" json:"discovered_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsDeadlinePast reports whether the deadline has already elapsed
func (o *Opportunity) IsDeadlinePast(now time.Time) bool {
	return o.Deadline != nil && o.Deadline.Before(now)
}

// OpportunityData is a candidate record produced by a discoverer plugin or
// manual entry, before deduplication and storage
type OpportunityData struct {
	Title        string
	Description  string
	URL          string
	Organization string
	Deadline     *time.Time
	Amount       string
	Location     string
	Tags         []string
	SourceType   SourceType
	SourceName   string
	SourceURL    string
	Raw          map[string]interface{}
}

// OpportunitySource records an additional origin for an opportunity that was
// surfaced by more than one source. Exact duplicates fold into the master row
// by appending one of these instead of creating a second opportunity.
type OpportunitySource struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OpportunityID uint       `gorm:"index;not null" json:"opportunity_id"`
	SourceType    SourceType `json:"source_type"`
	SourceName    string     `json:"source_name"`
	SourceURL     string     `json:"source_url"`
	SeenAt        time.Time  `gorm:"autoCreateTime" json:"seen_at"`
}
