package models

import "time"

// ArtistProfile is the read-only input to query generation and scoring. It is
// owned by the surrounding application; this pipeline only ever reads it.
type ArtistProfile struct {
	ID              string      `gorm:"primaryKey" json:"id"`
	Name            string      `json:"name"`
	Mediums         StringSlice `gorm:"type:json" json:"mediums"`
	Skills          StringSlice `gorm:"type:json" json:"skills"`
	Interests       StringSlice `gorm:"type:json" json:"interests"`
	Bio             string      `json:"bio"`
	ArtistStatement string      `json:"artist_statement"`
	Experience      string      `json:"experience"` // e.g. "emerging", "mid-career", "established"
	Location        string      `json:"location"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}
