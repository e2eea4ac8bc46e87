package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SimilarityBreakdown holds the per-factor scores behind a fuzzy match
type SimilarityBreakdown struct {
	Title        float64 `json:"title"`
	Organization float64 `json:"organization"`
	Description  float64 `json:"description"`
	Deadline     float64 `json:"deadline"`
	URL          float64 `json:"url"`
}

func (b SimilarityBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *SimilarityBreakdown) Scan(value interface{}) error {
	if value == nil {
		*b = SimilarityBreakdown{}
		return nil
	}
	return json.Unmarshal(value.([]byte), b)
}

// DuplicateGroup records a master/duplicate relationship. Rows are immutable
// once written; merge decisions consult them but never rewrite them.
type DuplicateGroup struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	MasterID    uint                `gorm:"index;not null" json:"master_id"`
	DuplicateID uint                `gorm:"index;not null" json:"duplicate_id"`
	Similarity  float64             `json:"similarity"`
	Breakdown   SimilarityBreakdown `gorm:"type:json" json:"breakdown"`
	DetectedAt  time.Time           `gorm:"autoCreateTime" json:"detected_at"`
}
