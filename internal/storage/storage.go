// Package storage is the gorm-backed persistence layer for tracks, their
// HAMMS vectors, and their provider enrichments.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FmBlueSystem/mapof-analysis/internal/hamms"
	"github.com/FmBlueSystem/mapof-analysis/internal/llm"
	"github.com/FmBlueSystem/mapof-analysis/internal/models"
	"gorm.io/gorm"
)

// Storage wraps a gorm database handle with the track/HAMMS/enrichment
// repository operations the analyzer and HTTP layer need.
type Storage struct {
	db *gorm.DB
}

// New wraps db and runs AutoMigrate for every model this package owns.
func New(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&models.Track{}, &models.HammsRecord{}, &models.Enrichment{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// DB exposes the underlying handle for health checks and callers that need
// raw query access.
func (s *Storage) DB() *gorm.DB { return s.db }

// GetTrackByPath looks up a track by its file path, preloading its HAMMS
// vector and enrichment if present. Returns gorm.ErrRecordNotFound when no
// track exists at that path.
func (s *Storage) GetTrackByPath(path string) (*models.Track, error) {
	var track models.Track
	err := s.db.Preload("HammsRecord").Preload("Enrichment").
		Where("path = ?", path).First(&track).Error
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// UpsertTrack returns the existing track at path, or creates a new one. An
// existing track comes back with Fingerprint set to fingerprint in memory;
// WriteAnalysis persists it together with the new analysis.
func (s *Storage) UpsertTrack(path, fingerprint string) (*models.Track, error) {
	var track models.Track
	err := s.db.Where("path = ?", path).First(&track).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		track = models.Track{Path: path, Fingerprint: fingerprint, EnrichmentState: models.EnrichmentStatePending}
		if err := s.db.Create(&track).Error; err != nil {
			return nil, fmt.Errorf("creating track %s: %w", path, err)
		}
		return &track, nil
	case err != nil:
		return nil, fmt.Errorf("looking up track %s: %w", path, err)
	}
	track.Fingerprint = fingerprint
	return &track, nil
}

// GetCachedAnalysis returns the track's existing analysis if its
// fingerprint matches what the caller observed on disk, signalling the
// analyzer can skip re-running HAMMS and enrichment entirely.
func (s *Storage) GetCachedAnalysis(path, fingerprint string) (*models.Track, bool, error) {
	track, err := s.GetTrackByPath(path)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if track.Fingerprint != fingerprint || track.HammsRecord == nil {
		return nil, false, nil
	}
	return track, true, nil
}

// AnalysisWrite bundles everything WriteAnalysis persists for a track in a
// single transaction.
type AnalysisWrite struct {
	Track       *models.Track
	Vector      hamms.Vector
	Confidence  float64
	Enrichment  *llm.Response // nil when enrichment was skipped or disabled
}

// WriteAnalysis persists a track's HAMMS vector and (optionally) its
// enrichment transactionally: a track is never left referencing a HAMMS
// record that failed to save, or vice versa.
func (s *Storage) WriteAnalysis(w AnalysisWrite) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		vectorJSON, err := json.Marshal(w.Vector[:])
		if err != nil {
			return fmt.Errorf("marshalling vector: %w", err)
		}
		scoresJSON, err := json.Marshal(w.Vector.DimensionScores())
		if err != nil {
			return fmt.Errorf("marshalling dimension scores: %w", err)
		}

		record := models.HammsRecord{
			TrackID:         w.Track.ID,
			Vector12D:       string(vectorJSON),
			DimensionScores: string(scoresJSON),
			Confidence:      w.Confidence,
			Method:          "hamms_v3",
		}
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("saving hamms record: %w", err)
		}

		now := time.Now()
		updates := map[string]any{
			"analyzed_at": &now,
			"fingerprint": w.Track.Fingerprint,
		}

		if w.Enrichment != nil {
			tagsJSON, err := json.Marshal(w.Enrichment.Tags)
			if err != nil {
				return fmt.Errorf("marshalling tags: %w", err)
			}
			var dateVerificationJSON []byte
			if w.Enrichment.DateVerification != nil {
				dateVerificationJSON, err = json.Marshal(w.Enrichment.DateVerification)
				if err != nil {
					return fmt.Errorf("marshalling date verification: %w", err)
				}
			}

			enrichment := models.Enrichment{
				TrackID:          w.Track.ID,
				Genre:            w.Enrichment.Genre,
				Subgenre:         w.Enrichment.Subgenre,
				Mood:             w.Enrichment.Mood,
				Era:              w.Enrichment.Era,
				Tags:             string(tagsJSON),
				Confidence:       w.Enrichment.Confidence,
				Provider:         w.Enrichment.Provider,
				Model:            w.Enrichment.Model,
				RawResponse:      w.Enrichment.RawResponse,
				InputTokens:      w.Enrichment.InputTokens,
				OutputTokens:     w.Enrichment.OutputTokens,
				CostUSD:          w.Enrichment.CostUSD,
				ProcessingTimeMS: int(w.Enrichment.ElapsedMS),
				DateVerification: string(dateVerificationJSON),
				Fallback:         w.Enrichment.Fallback,
			}
			if err := tx.Save(&enrichment).Error; err != nil {
				return fmt.Errorf("saving enrichment: %w", err)
			}

			state := models.EnrichmentStateOK
			if w.Enrichment.Fallback {
				state = models.EnrichmentStateDegraded
			}
			updates["enrichment_state"] = state
		}

		if err := tx.Model(&models.Track{}).Where("id = ?", w.Track.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating track: %w", err)
		}
		return nil
	})
}

// MarkDegraded records that enrichment failed for a track without failing
// the whole analysis: the HAMMS vector is still usable on its own.
func (s *Storage) MarkDegraded(trackID uint) error {
	return s.db.Model(&models.Track{}).Where("id = ?", trackID).
		Update("enrichment_state", models.EnrichmentStateDegraded).Error
}

// VectorRow pairs a track identity with its decoded HAMMS vector, the shape
// KNearest consumes.
type VectorRow struct {
	TrackID uint
	Vector  hamms.Vector
}

// ListVectors loads every track's HAMMS vector for similarity search,
// excluding the seed track itself.
func (s *Storage) ListVectors(excludeTrackID uint) ([]VectorRow, error) {
	var records []models.HammsRecord
	if err := s.db.Where("track_id <> ?", excludeTrackID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing hamms vectors: %w", err)
	}

	rows := make([]VectorRow, 0, len(records))
	for _, r := range records {
		var raw []float64
		if err := json.Unmarshal([]byte(r.Vector12D), &raw); err != nil || len(raw) != 12 {
			continue
		}
		var v hamms.Vector
		copy(v[:], raw)
		rows = append(rows, VectorRow{TrackID: r.TrackID, Vector: v})
	}
	return rows, nil
}

// GetVector returns a single track's decoded HAMMS vector.
func (s *Storage) GetVector(trackID uint) (hamms.Vector, error) {
	var record models.HammsRecord
	if err := s.db.Where("track_id = ?", trackID).First(&record).Error; err != nil {
		return hamms.Vector{}, err
	}
	var raw []float64
	if err := json.Unmarshal([]byte(record.Vector12D), &raw); err != nil || len(raw) != 12 {
		return hamms.Vector{}, fmt.Errorf("corrupt hamms vector for track %d", trackID)
	}
	var v hamms.Vector
	copy(v[:], raw)
	return v, nil
}

// Summary reports aggregate catalog statistics, mirroring the original
// CLI's library-health snapshot.
type Summary struct {
	Tracks       int64
	WithAnalysis int64
	AvgBPM       *float64
}

// Summary computes catalog-wide counts for the health/metrics surface.
func (s *Storage) Summary() (Summary, error) {
	var out Summary
	if err := s.db.Model(&models.Track{}).Count(&out.Tracks).Error; err != nil {
		return out, err
	}
	if err := s.db.Model(&models.HammsRecord{}).Count(&out.WithAnalysis).Error; err != nil {
		return out, err
	}

	var avg float64
	row := s.db.Model(&models.Track{}).Where("bpm > 0").Select("AVG(bpm)").Row()
	if row.Scan(&avg) == nil && avg > 0 {
		out.AvgBPM = &avg
	}
	return out, nil
}
