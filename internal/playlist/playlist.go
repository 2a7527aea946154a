// Package playlist builds seeded, similarity-ordered track sequences from
// stored HAMMS vectors: BPM-windowed, genre-compatible, and shaped to a
// target energy-flow curve.
package playlist

import (
	"errors"
	"fmt"
	"sort"

	"github.com/FmBlueSystem/mapof-analysis/internal/config"
	"github.com/FmBlueSystem/mapof-analysis/internal/hamms"
	"github.com/FmBlueSystem/mapof-analysis/internal/models"
	"github.com/FmBlueSystem/mapof-analysis/internal/storage"
)

// ErrSeedMissing is returned when the requested seed track has no stored
// HAMMS vector to build a playlist from.
var ErrSeedMissing = errors.New("playlist: seed track has no stored analysis")

// EnergyCurve names one of the four energy-flow schedules a playlist can be
// shaped to.
type EnergyCurve string

const (
	CurveFlat       EnergyCurve = "flat"
	CurveAscending  EnergyCurve = "ascending"
	CurveDescending EnergyCurve = "descending"
	CurveArc        EnergyCurve = "arc"
)

const genreCompatDropThreshold = 0.6
const adjacentSwapEpsilon = 1e-6

// Request describes a playlist generation call.
type Request struct {
	SeedTrackID   uint
	Length        int
	BPMTolerance  float64 // fractional; 0 means use config default
	SubgenreFocus string  // optional
	EnergyCurve   EnergyCurve
}

// Entry is one selected track with the diagnostics that justified its slot.
type Entry struct {
	TrackID    uint
	Similarity hamms.Similarity
	GenreCompat float64
	EnergyFit  float64
	Score      float64
}

// Result is a generated playlist plus quality diagnostics.
type Result struct {
	Entries         []Entry
	Short           bool // fewer than Length tracks were available
	BPMAdherence    float64
	GenreCoherence  float64
	EnergyFlowScore float64
}

// Generator builds playlists against a Storage-backed candidate pool.
type Generator struct {
	storage *storage.Storage
	cfg     *config.Config
}

// New builds a Generator.
func New(st *storage.Storage, cfg *config.Config) *Generator {
	return &Generator{storage: st, cfg: cfg}
}

type candidate struct {
	track  *models.Track
	vector hamms.Vector
	sim    hamms.Similarity
}

// Generate runs the full seeded-playlist pipeline described by the reference
// generator: BPM windowing (widened once if the pool is too thin), genre
// compatibility filtering, weighted scoring against similarity/genre/energy,
// greedy selection, and a final adjacent-swap smoothing pass.
func (g *Generator) Generate(req Request) (*Result, error) {
	seed, err := g.loadByID(req.SeedTrackID)
	if err != nil {
		return nil, err
	}
	if seed.HammsRecord == nil {
		return nil, ErrSeedMissing
	}
	seedVector, err := g.storage.GetVector(seed.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedMissing, err)
	}

	rows, err := g.storage.ListVectors(seed.ID)
	if err != nil {
		return nil, fmt.Errorf("listing candidate vectors: %w", err)
	}

	length := req.Length
	if length <= 0 {
		length = 1
	}

	tolerance := req.BPMTolerance
	if tolerance <= 0 {
		tolerance = g.cfg.PlaylistBPMTolerance
	}

	pool := make([]candidate, 0, len(rows))
	for _, row := range rows {
		track, err := g.loadByID(row.TrackID)
		if err != nil {
			continue
		}
		if req.SubgenreFocus != "" {
			if track.Enrichment == nil || track.Enrichment.Subgenre != req.SubgenreFocus {
				continue
			}
		}
		sim := hamms.CalculateSimilarity(seedVector, row.Vector)
		pool = append(pool, candidate{track: track, vector: row.Vector, sim: sim})
	}

	windowed := filterByBPMWindow(pool, seed.BPM, tolerance)
	if len(windowed) < length && seed.BPM > 0 {
		windowed = filterByBPMWindow(pool, seed.BPM, tolerance*1.5)
	}
	pool = windowed

	seedSubgenre := ""
	if seed.Enrichment != nil {
		seedSubgenre = seed.Enrichment.Subgenre
	}
	pool = filterByGenreCompat(pool, seedSubgenre, length)

	curve := req.EnergyCurve
	if curve == "" {
		curve = CurveFlat
	}

	weights := g.cfg.PlaylistWeights

	sort.Slice(pool, func(i, j int) bool { return pool[i].track.ID < pool[j].track.ID })

	scored := make([]Entry, 0, len(pool))
	for i, c := range pool {
		position := 0.0
		if length > 1 {
			position = float64(i) / float64(length-1)
		}
		targetEnergy := energyAtPosition(curve, position)
		genreCompat := 1.0
		if seedSubgenre != "" {
			candidateSubgenre := ""
			if c.track.Enrichment != nil {
				candidateSubgenre = c.track.Enrichment.Subgenre
			}
			genreCompat = genreCompatibility(seedSubgenre, candidateSubgenre)
		}
		energyFit := 1 - abs(c.track.Energy-targetEnergy)
		score := weights.Similarity*c.sim.Overall + weights.Genre*genreCompat + weights.Energy*energyFit

		scored = append(scored, Entry{
			TrackID:     c.track.ID,
			Similarity:  c.sim,
			GenreCompat: genreCompat,
			EnergyFit:   energyFit,
			Score:       score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].TrackID < scored[j].TrackID
	})
	if len(scored) > length {
		scored = scored[:length]
	}

	bpmByID := make(map[uint]float64, len(pool))
	subgenreByID := make(map[uint]string, len(pool))
	for _, c := range pool {
		bpmByID[c.track.ID] = c.track.BPM
		if c.track.Enrichment != nil {
			subgenreByID[c.track.ID] = c.track.Enrichment.Subgenre
		}
	}
	smoothByAdjacentSwap(scored, bpmByID)

	result := &Result{Entries: scored, Short: len(scored) < length}
	result.BPMAdherence = averageBPMAdherence(scored, bpmByID, seed.BPM, tolerance)
	result.GenreCoherence = averageAdjacent(scored, func(a, b Entry) float64 {
		return genreCompatibility(subgenreByID[a.TrackID], subgenreByID[b.TrackID])
	})
	result.EnergyFlowScore = averageEnergyFit(scored)

	return result, nil
}

func (g *Generator) loadByID(id uint) (*models.Track, error) {
	var track models.Track
	if err := g.storage.DB().Preload("HammsRecord").Preload("Enrichment").First(&track, id).Error; err != nil {
		return nil, fmt.Errorf("loading track %d: %w", id, err)
	}
	return &track, nil
}

func filterByBPMWindow(pool []candidate, seedBPM, tolerance float64) []candidate {
	if seedBPM <= 0 {
		return pool
	}
	out := make([]candidate, 0, len(pool))
	for _, c := range pool {
		if c.track.BPM <= 0 {
			continue
		}
		if abs(c.track.BPM-seedBPM)/seedBPM <= tolerance {
			out = append(out, c)
		}
	}
	return out
}

func filterByGenreCompat(pool []candidate, seedSubgenre string, minKeep int) []candidate {
	if seedSubgenre == "" {
		return pool
	}
	kept := make([]candidate, 0, len(pool))
	dropped := make([]candidate, 0, len(pool))
	for _, c := range pool {
		candidateSubgenre := ""
		if c.track.Enrichment != nil {
			candidateSubgenre = c.track.Enrichment.Subgenre
		}
		if genreCompatibility(seedSubgenre, candidateSubgenre) >= genreCompatDropThreshold {
			kept = append(kept, c)
		} else {
			dropped = append(dropped, c)
		}
	}
	if len(kept) < minKeep/2 {
		return pool
	}
	return kept
}

// energyAtPosition evaluates the piecewise-linear energy-flow schedule for
// curve at normalized position p.
func energyAtPosition(curve EnergyCurve, p float64) float64 {
	switch curve {
	case CurveAscending:
		return p
	case CurveDescending:
		return 1 - p
	case CurveArc:
		if p <= 0.5 {
			return 2 * p
		}
		return 2 * (1 - p)
	default: // flat
		return 0.5
	}
}

// genreFamily groups subgenre vocabulary into the three families the
// compatibility matrix scores within vs across.
var genreFamily = map[string]string{
	"house": "electronic-dance", "techno": "electronic-dance", "trance": "electronic-dance",
	"dubstep": "electronic-dance", "disco": "electronic-dance", "funk": "electronic-dance",

	"pop": "rock-pop", "rock": "rock-pop", "hip-hop": "rock-pop",

	"ambient": "acoustic-jazz-classical", "jazz": "acoustic-jazz-classical", "classical": "acoustic-jazz-classical",
}

// genreAdjacency lists explicit pair scores that take precedence over the
// family-based score (0.75 within a family, 0.4 across families).
var genreAdjacency = map[[2]string]float64{
	{"disco", "house"}: 0.8,
	{"techno", "trance"}: 0.8,
	{"funk", "disco"}: 0.85,
}

func genreCompatibility(a, b string) float64 {
	if a == "" || b == "" {
		return 0.4
	}
	if a == b {
		return 1.0
	}
	if v, ok := genreAdjacency[[2]string{a, b}]; ok {
		return v
	}
	if v, ok := genreAdjacency[[2]string{b, a}]; ok {
		return v
	}
	famA, okA := genreFamily[a]
	famB, okB := genreFamily[b]
	if okA && okB && famA == famB {
		return 0.75
	}
	return 0.4
}

// smoothByAdjacentSwap runs a single pass swapping adjacent entries whose
// swap measurably reduces the total consecutive-BPM jump, per the reference
// generator's one-pass smoothing step.
func smoothByAdjacentSwap(entries []Entry, bpmByID map[uint]float64) {
	for i := 0; i+1 < len(entries); i++ {
		if i+2 >= len(entries) {
			continue
		}
		current := abs(bpmByID[entries[i].TrackID]-bpmByID[entries[i+1].TrackID]) +
			abs(bpmByID[entries[i+1].TrackID]-bpmByID[entries[i+2].TrackID])
		swapped := abs(bpmByID[entries[i].TrackID]-bpmByID[entries[i+2].TrackID]) +
			abs(bpmByID[entries[i+2].TrackID]-bpmByID[entries[i+1].TrackID])
		if current-swapped > adjacentSwapEpsilon {
			entries[i+1], entries[i+2] = entries[i+2], entries[i+1]
		}
	}
}

func averageBPMAdherence(entries []Entry, bpmByID map[uint]float64, seedBPM, tolerance float64) float64 {
	if len(entries) == 0 || seedBPM <= 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		deviation := abs(bpmByID[e.TrackID]-seedBPM) / seedBPM
		adherence := 1 - deviation/tolerance
		if adherence < 0 {
			adherence = 0
		}
		sum += adherence
	}
	return sum / float64(len(entries))
}

func averageAdjacent(entries []Entry, pairScore func(a, b Entry) float64) float64 {
	if len(entries) < 2 {
		return 1.0
	}
	sum := 0.0
	for i := 0; i+1 < len(entries); i++ {
		sum += pairScore(entries[i], entries[i+1])
	}
	return sum / float64(len(entries)-1)
}

func averageEnergyFit(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += e.EnergyFit
	}
	return sum / float64(len(entries))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
