package hamms

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestBuildVectorHouseExample(t *testing.T) {
	in := Input{
		BPM:    floatPtr(120),
		Key:    "Am",
		Energy: floatPtr(0.5),
		Genre:  "house",
	}

	v := BuildVector(in)

	assert.InDelta(t, 0.4286, v[0], 0.001)
	assert.InDelta(t, 0.5833, v[1], 0.001)
	assert.InDelta(t, 0.5, v[2], 1e-9)

	for i, d := range v {
		require.GreaterOrEqualf(t, d, 0.0, "dimension %d below 0", i)
		require.LessOrEqualf(t, d, 1.0, "dimension %d above 1", i)
		require.False(t, math.IsNaN(d))
		require.False(t, math.IsInf(d, 0))
	}
}

func TestCamelotToNumericEdgeCases(t *testing.T) {
	assert.InDelta(t, 0.5+float64(1)/12, CamelotToNumeric("Gbm"), 1e-9)
	assert.Equal(t, 0.5, CamelotToNumeric("nonsense"))
	assert.Equal(t, 0.5, CamelotToNumeric(""))
	assert.InDelta(t, 0.5833, CamelotToNumeric("Am"), 0.001)
	assert.InDelta(t, (8.0-1)/12, CamelotToNumeric("8A"), 1e-9) // already-Camelot form parses too
}

func TestCamelotParsesRawCamelotNotation(t *testing.T) {
	assert.InDelta(t, (8.0-1)/12, CamelotToNumeric("8A"), 1e-9)
	assert.InDelta(t, 1.0, CamelotToNumeric("12B"), 1e-9) // (12-1)/12+0.5 exceeds 1 and is clipped
}

func TestBuildVectorMissingInputsAreNeutral(t *testing.T) {
	v := BuildVector(Input{})
	assert.Equal(t, 0.5, v[0]) // bpm nil -> neutral
	assert.Equal(t, 0.5, v[1]) // key empty -> neutral
	assert.Equal(t, 0.5, v[2]) // energy nil -> neutral
}

func TestCalculateSimilarityIdenticalVectorsAreMaximal(t *testing.T) {
	v := BuildVector(Input{BPM: floatPtr(128), Key: "8A", Energy: floatPtr(0.7), Genre: "techno"})
	sim := CalculateSimilarity(v, v)

	assert.InDelta(t, 1.0, sim.Overall, 1e-9)
	assert.InDelta(t, 1.0, sim.Euclidean, 1e-9)
	assert.InDelta(t, 1.0, sim.Cosine, 1e-9)
}

func TestCalculateSimilarityBounds(t *testing.T) {
	a := BuildVector(Input{BPM: floatPtr(70), Key: "Am", Energy: floatPtr(0.1), Genre: "ambient"})
	b := BuildVector(Input{BPM: floatPtr(180), Key: "B", Energy: floatPtr(0.95), Genre: "techno"})

	sim := CalculateSimilarity(a, b)
	assert.GreaterOrEqual(t, sim.Overall, 0.0)
	assert.LessOrEqual(t, sim.Overall, 1.0)
	assert.GreaterOrEqual(t, sim.Cosine, -1.0)
	assert.LessOrEqual(t, sim.Cosine, 1.0)
}

func TestKNearestOrdersByOverallThenEuclideanThenID(t *testing.T) {
	seed := BuildVector(Input{BPM: floatPtr(120), Key: "8A", Energy: floatPtr(0.6), Genre: "house"})

	candidates := []Candidate{
		{ID: 3, Vector: BuildVector(Input{BPM: floatPtr(121), Key: "8A", Energy: floatPtr(0.6), Genre: "house"})},
		{ID: 1, Vector: BuildVector(Input{BPM: floatPtr(121), Key: "8A", Energy: floatPtr(0.6), Genre: "house"})},
		{ID: 2, Vector: BuildVector(Input{BPM: floatPtr(90), Key: "1A", Energy: floatPtr(0.1), Genre: "ambient"})},
	}

	matches := KNearest(seed, candidates, 0.0, 10)
	require.Len(t, matches, 3)
	// IDs 1 and 3 are built from identical inputs and should tie; ID 1 sorts
	// first by the ascending-identity tiebreak.
	assert.Equal(t, uint(1), matches[0].ID)
	assert.Equal(t, uint(3), matches[1].ID)
}

func TestKNearestRespectsThresholdAndLimit(t *testing.T) {
	seed := BuildVector(Input{BPM: floatPtr(120), Key: "8A", Energy: floatPtr(0.6), Genre: "house"})
	candidates := []Candidate{
		{ID: 1, Vector: BuildVector(Input{BPM: floatPtr(200), Key: "1B", Energy: floatPtr(0.0), Genre: "ambient"})},
		{ID: 2, Vector: seed},
	}

	matches := KNearest(seed, candidates, 0.99, 10)
	require.Len(t, matches, 1)
	assert.Equal(t, uint(2), matches[0].ID)

	matches = KNearest(seed, candidates, 0.0, 1)
	require.Len(t, matches, 1)
}

func TestDimensionScoresMapsAllTwelveNames(t *testing.T) {
	v := BuildVector(Input{BPM: floatPtr(128), Key: "Am", Energy: floatPtr(0.5), Genre: "house"})
	scores := v.DimensionScores()
	require.Len(t, scores, 12)
	for _, name := range DimensionNames {
		_, ok := scores[name]
		assert.True(t, ok, "missing dimension %s", name)
	}
}

func TestConfidenceDegradesOnMissingInputs(t *testing.T) {
	full := Input{BPM: floatPtr(120), Key: "Am", Energy: floatPtr(0.5), Genre: "house"}
	v := BuildVector(full)
	assert.InDelta(t, 0.8, Confidence(full, v), 1e-9)

	degraded := Input{Genre: "house"}
	vd := BuildVector(degraded)
	assert.InDelta(t, 0.4, Confidence(degraded, vd), 1e-9)
}
