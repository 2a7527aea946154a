package models

import (
	"time"

	"gorm.io/gorm"
)

// Track is a single analyzed audio file. Path is the stable identity used
// for cache lookups; Fingerprint combines path, size, and mtime so a
// re-analysis is only skipped when the file genuinely has not changed.
type Track struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Path            string         `gorm:"uniqueIndex;not null" json:"path"`
	Fingerprint     string         `gorm:"index;not null" json:"fingerprint"`
	Title           string         `json:"title,omitempty"`
	Artist          string         `json:"artist,omitempty"`
	Album           string         `json:"album,omitempty"`
	Year            int            `json:"year,omitempty"`
	ISRC            string         `gorm:"size:15" json:"isrc,omitempty"`
	BPM             float64        `json:"bpm,omitempty"`
	InitialKey      string         `json:"initial_key,omitempty"`
	CamelotKey      string         `json:"camelot_key,omitempty"`
	Energy          float64        `json:"energy,omitempty"`
	FileMTime       float64        `json:"file_mtime,omitempty"`
	AnalyzedAt      *time.Time     `json:"analyzed_at,omitempty"`
	EnrichmentState string         `gorm:"default:'pending';index" json:"enrichment_state"` // pending, ok, degraded, failed

	HammsRecord *HammsRecord `gorm:"foreignKey:TrackID" json:"hamms,omitempty"`
	Enrichment  *Enrichment  `gorm:"foreignKey:TrackID" json:"enrichment,omitempty"`
}

const (
	EnrichmentStatePending  = "pending"
	EnrichmentStateOK       = "ok"
	EnrichmentStateDegraded = "degraded"
	EnrichmentStateFailed   = "failed"
)

// HammsRecord stores the 12-dimension HAMMS vector for a track. Vector12D
// and DimensionScores are persisted as JSON text rather than native arrays
// to keep the column portable across the sqlite/postgres split the CLI and
// the service share.
type HammsRecord struct {
	TrackID         uint      `gorm:"primarykey" json:"track_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Vector12D       string    `gorm:"type:text;not null" json:"-"`
	DimensionScores string    `gorm:"type:text" json:"-"`
	Confidence      float64   `json:"confidence"`
	Method          string    `gorm:"size:32" json:"method"`
}

// Enrichment stores the provider-sourced metadata for a track: genre,
// mood, era, and the raw response kept for audit, mirroring what a
// human reviewer would need to second-guess a bad classification.
type Enrichment struct {
	TrackID           uint      `gorm:"primarykey" json:"track_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Genre             string    `gorm:"size:100" json:"genre,omitempty"`
	Subgenre          string    `gorm:"size:100" json:"subgenre,omitempty"`
	Mood              string    `gorm:"size:100" json:"mood,omitempty"`
	Era               string    `gorm:"size:50" json:"era,omitempty"`
	Tags              string    `gorm:"type:text" json:"-"`
	Confidence        float64   `json:"confidence"`
	Provider          string    `gorm:"size:32" json:"provider"`
	Model             string    `gorm:"size:64" json:"model"`
	RawResponse       string    `gorm:"type:text" json:"-"`
	InputTokens       int       `json:"input_tokens,omitempty"`
	OutputTokens      int       `json:"output_tokens,omitempty"`
	CostUSD           float64   `json:"cost_usd,omitempty"`
	ProcessingTimeMS  int       `json:"processing_time_ms,omitempty"`
	DateVerification  string    `gorm:"type:text" json:"-"` // JSON-encoded DateVerification, see internal/llm
	Fallback          bool      `json:"fallback"`
}
