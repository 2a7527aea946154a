package playlist

import (
	"math"
	"testing"

	"github.com/FmBlueSystem/mapof-analysis/internal/models"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEnergyAtPositionFlat(t *testing.T) {
	for _, p := range []float64{0, 0.3, 0.5, 1} {
		if got := energyAtPosition(CurveFlat, p); !approxEqual(got, 0.5) {
			t.Errorf("flat(%v) = %v, want 0.5", p, got)
		}
	}
}

func TestEnergyAtPositionAscendingDescending(t *testing.T) {
	if got := energyAtPosition(CurveAscending, 0.25); !approxEqual(got, 0.25) {
		t.Errorf("ascending(0.25) = %v, want 0.25", got)
	}
	if got := energyAtPosition(CurveDescending, 0.25); !approxEqual(got, 0.75) {
		t.Errorf("descending(0.25) = %v, want 0.75", got)
	}
}

func TestEnergyAtPositionArcPeaksAtMidpoint(t *testing.T) {
	if got := energyAtPosition(CurveArc, 0.5); !approxEqual(got, 1.0) {
		t.Errorf("arc(0.5) = %v, want 1.0 (peak)", got)
	}
	if got := energyAtPosition(CurveArc, 0); !approxEqual(got, 0) {
		t.Errorf("arc(0) = %v, want 0", got)
	}
	if got := energyAtPosition(CurveArc, 1); !approxEqual(got, 0) {
		t.Errorf("arc(1) = %v, want 0", got)
	}
	if got := energyAtPosition(CurveArc, 0.75); !approxEqual(got, 0.5) {
		t.Errorf("arc(0.75) = %v, want 0.5", got)
	}
}

func TestGenreCompatibilityIdentical(t *testing.T) {
	if got := genreCompatibility("house", "house"); got != 1.0 {
		t.Errorf("identical genre compat = %v, want 1.0", got)
	}
}

func TestGenreCompatibilitySameFamily(t *testing.T) {
	if got := genreCompatibility("house", "techno"); got != 0.75 {
		t.Errorf("same-family compat = %v, want 0.75", got)
	}
}

func TestGenreCompatibilityExplicitAdjacency(t *testing.T) {
	if got := genreCompatibility("disco", "house"); got != 0.8 {
		t.Errorf("disco/house compat = %v, want 0.8", got)
	}
	if got := genreCompatibility("house", "disco"); got != 0.8 {
		t.Errorf("compat should be symmetric, got %v", got)
	}
	if got := genreCompatibility("funk", "disco"); got != 0.85 {
		t.Errorf("funk/disco compat = %v, want 0.85", got)
	}
}

func TestGenreCompatibilityCrossFamilyDefault(t *testing.T) {
	if got := genreCompatibility("house", "jazz"); got != 0.4 {
		t.Errorf("cross-family default = %v, want 0.4", got)
	}
}

func TestGenreCompatibilityUnknownDefaultsTo04(t *testing.T) {
	if got := genreCompatibility("house", ""); got != 0.4 {
		t.Errorf("empty subgenre compat = %v, want 0.4", got)
	}
	if got := genreCompatibility("made-up-genre", "another-fake"); got != 0.4 {
		t.Errorf("unknown genres compat = %v, want 0.4", got)
	}
}

func TestFilterByBPMWindowKeepsWithinTolerance(t *testing.T) {
	pool := []candidate{
		{track: &models.Track{ID: 1, BPM: 128}},
		{track: &models.Track{ID: 2, BPM: 140}}, // 9.4% off, outside 0.08 tolerance
		{track: &models.Track{ID: 3, BPM: 130}}, // 1.6% off, within tolerance
	}
	filtered := filterByBPMWindow(pool, 128, 0.08)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 candidates within window, got %d", len(filtered))
	}
	for _, c := range filtered {
		if c.track.ID == 2 {
			t.Error("track 2 should have been filtered out as outside the BPM window")
		}
	}
}

func TestFilterByBPMWindowNoSeedBPMPassesThrough(t *testing.T) {
	pool := []candidate{{track: &models.Track{ID: 1, BPM: 128}}}
	filtered := filterByBPMWindow(pool, 0, 0.08)
	if len(filtered) != 1 {
		t.Fatalf("expected pool to pass through unchanged, got %d entries", len(filtered))
	}
}

func TestSmoothByAdjacentSwapReducesBPMJumps(t *testing.T) {
	bpmByID := map[uint]float64{1: 100, 2: 140, 3: 105}
	entries := []Entry{{TrackID: 1}, {TrackID: 2}, {TrackID: 3}}
	smoothByAdjacentSwap(entries, bpmByID)
	if entries[1].TrackID != 3 {
		t.Errorf("expected swap to move track 3 into the middle slot, got order %v",
			[]uint{entries[0].TrackID, entries[1].TrackID, entries[2].TrackID})
	}
}

func TestAverageEnergyFit(t *testing.T) {
	entries := []Entry{{EnergyFit: 0.8}, {EnergyFit: 1.0}, {EnergyFit: 0.6}}
	if got := averageEnergyFit(entries); !approxEqual(got, 0.8) {
		t.Errorf("average energy fit = %v, want 0.8", got)
	}
}
