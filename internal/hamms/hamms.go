// Package hamms implements the 12-dimensional Harmonic Analysis for Music
// Mixing System vector: a deterministic, pure-function feature embedding
// used to score how well two tracks mix together.
package hamms

import (
	"math"
	"regexp"
	"strings"
)

// DimensionNames lists the 12 HAMMS dimensions in vector order.
var DimensionNames = [12]string{
	"bpm", "key", "energy", "danceability", "valence", "acousticness",
	"instrumentalness", "rhythmic_pattern", "spectral_centroid",
	"tempo_stability", "harmonic_complexity", "dynamic_range",
}

// DimensionWeights holds the fixed per-dimension weight used by Similarity,
// in the same order as DimensionNames. Tuned so BPM, key, and energy
// dominate mixing compatibility while timbral dimensions contribute less.
var DimensionWeights = [12]float64{
	1.3, 1.4, 1.2, 0.9, 0.8, 0.6, 0.5, 1.1, 0.7, 0.9, 0.8, 0.6,
}

// Vector is a 12-dimensional HAMMS feature vector. Every value is in [0,1].
type Vector [12]float64

// Input is the set of raw and provider-sourced attributes the vector
// construction reads. Every field is optional: an absent value resolves to
// the neutral default named at its call site, never to a fabricated
// measurement.
type Input struct {
	BPM      *float64
	Key      string
	Energy   *float64
	Genre    string
	Title    string
	Artist   string

	// Overrides let an upstream enrichment or analyzer supply a measured
	// value instead of the genre-keyed estimate.
	Valence          *float64
	Acousticness     *float64
	Instrumentalness *float64
	TempoStability   *float64
	DynamicRange     *float64
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// camelotWheel maps musical key notation to Camelot wheel codes, pairing
// each major key with its true relative minor.
var camelotWheel = map[string]string{
	"C": "8B", "Am": "8A",
	"G": "9B", "Em": "9A",
	"D": "10B", "Bm": "10A",
	"A": "11B", "F#m": "11A",
	"E": "12B", "C#m": "12A",
	"B": "1B", "G#m": "1A",
	"Gb": "2B", "Ebm": "2A",
	"Db": "3B", "Bbm": "3A",
	"Ab": "4B", "Fm": "4A",
	"Eb": "5B", "Cm": "5A",
	"Bb": "6B", "Gm": "6A",
	"F": "7B", "Dm": "7A",
}

var camelotCodeRe = regexp.MustCompile(`^(\d+)([AB])$`)

// NormalizeBPM maps BPM to [0,1] over the 60-200 BPM mixing range.
func NormalizeBPM(bpm *float64) float64 {
	if bpm == nil || *bpm <= 0 {
		return 0.5
	}
	return clip((*bpm-60)/140, 0, 1)
}

// CamelotToNumeric resolves a key name (musical or already-Camelot) to its
// position on the Camelot wheel, encoded as ((n-1)/12) + (0.5 if letter B)
// and clipped to [0,1], so 7B through 12B all map to 1.0.
// Unknown or unparsable input returns the neutral sentinel 0.5.
func CamelotToNumeric(key string) float64 {
	if key == "" {
		return 0.5
	}

	code, ok := camelotWheel[key]
	if !ok {
		// Minor key not in the relative-minor table (e.g. an enharmonic
		// respelling like "Gbm"): fall back to the major key's own Camelot
		// code rather than leaving the key unresolved.
		if strings.HasSuffix(key, "m") {
			root := strings.TrimSuffix(key, "m")
			if majorCode, ok := camelotWheel[root]; ok {
				code = majorCode
			}
		}
	}
	if code == "" {
		code = key
	}

	match := camelotCodeRe.FindStringSubmatch(strings.ToUpper(code))
	if match == nil {
		return 0.5
	}
	number := 0
	for _, c := range match[1] {
		number = number*10 + int(c-'0')
	}
	base := float64(number-1) / 12
	if match[2] == "B" {
		base += 0.5
	}
	return clip(base, 0, 1)
}

func energyOrDefault(e *float64) float64 {
	if e == nil {
		return 0.5
	}
	return clip(*e, 0, 1)
}

func bpmOrDefault(bpm *float64) float64 {
	if bpm == nil {
		return 120
	}
	return *bpm
}

var danceGenres = map[string]float64{
	"house": 0.9, "techno": 0.95, "trance": 0.8,
	"edm": 0.9, "disco": 0.85, "funk": 0.8,
	"electronic": 0.7, "dance": 0.9, "club": 0.85,
}

func calculateDanceability(in Input) float64 {
	genre := strings.ToLower(in.Genre)
	energy := energyOrDefault(in.Energy)
	bpm := bpmOrDefault(in.BPM)

	base, ok := danceGenres[genre]
	if !ok {
		base = 0.5
	}

	var bpmFactor float64
	if bpm >= 110 && bpm <= 140 {
		bpmFactor = 1.0
	} else {
		distance := math.Min(math.Abs(bpm-110), math.Abs(bpm-140))
		bpmFactor = math.Max(0.3, 1.0-(distance/50))
	}

	return clip(base*energy*bpmFactor, 0, 1)
}

var positiveGenreValence = map[string]float64{
	"house": 0.8, "disco": 0.9, "funk": 0.8,
	"pop": 0.7, "dance": 0.8, "electronic": 0.6,
}
var negativeGenreValence = map[string]float64{
	"darkwave": 0.2, "industrial": 0.3, "ambient": 0.4,
}

func calculateValence(in Input) float64 {
	if in.Valence != nil {
		return clip(*in.Valence, 0, 1)
	}

	genre := strings.ToLower(in.Genre)
	genreValence, ok := positiveGenreValence[genre]
	if !ok {
		genreValence, ok = negativeGenreValence[genre]
		if !ok {
			genreValence = 0.5
		}
	}

	keyValence := 0.5
	if strings.Contains(in.Key, "B") {
		keyValence = 0.7
	} else if strings.Contains(in.Key, "A") {
		keyValence = 0.4
	}

	return clip(genreValence*0.7+keyValence*0.3, 0, 1)
}

var acousticGenres = map[string]float64{
	"folk": 0.9, "acoustic": 0.95, "country": 0.8,
	"classical": 0.9, "jazz": 0.7,
}
var electronicGenres = map[string]float64{
	"house": 0.1, "techno": 0.05, "edm": 0.1,
	"electronic": 0.15, "trance": 0.1, "dubstep": 0.05,
}

func calculateAcousticness(in Input) float64 {
	if in.Acousticness != nil {
		return clip(*in.Acousticness, 0, 1)
	}
	genre := strings.ToLower(in.Genre)
	if v, ok := acousticGenres[genre]; ok {
		return v
	}
	if v, ok := electronicGenres[genre]; ok {
		return 1.0 - v
	}
	return 0.5
}

var instrumentalGenres = map[string]float64{
	"ambient": 0.8, "classical": 0.9, "instrumental": 0.95,
	"post-rock": 0.7, "soundtrack": 0.6,
}
var vocalGenres = map[string]float64{
	"pop": 0.1, "rock": 0.2, "r&b": 0.1, "soul": 0.15,
}

func calculateInstrumentalness(in Input) float64 {
	if in.Instrumentalness != nil {
		return clip(*in.Instrumentalness, 0, 1)
	}

	genre := strings.ToLower(in.Genre)
	title := strings.ToLower(in.Title)

	var titleFactor float64
	for _, word := range []string{"instrumental", "remix", "mix", "version"} {
		if strings.Contains(title, word) {
			titleFactor = 0.3
			break
		}
	}

	var base float64
	if v, ok := instrumentalGenres[genre]; ok {
		base = v
	} else if v, ok := vocalGenres[genre]; ok {
		base = 1.0 - v
	} else {
		base = 0.7
	}

	return clip(base+titleFactor, 0, 1)
}

var rhythmMap = map[string]float64{
	"jazz": 0.9, "prog": 0.8, "techno": 0.8,
	"house": 0.7, "trance": 0.6, "ambient": 0.2,
	"pop": 0.4, "rock": 0.5, "classical": 0.7,
}

func calculateRhythmicPattern(in Input) float64 {
	genre := strings.ToLower(in.Genre)
	base, ok := rhythmMap[genre]
	if !ok {
		base = 0.5
	}

	bpm := bpmOrDefault(in.BPM)
	if bpm > 0 {
		bpmFactor := math.Min(1.0, (bpm-60)/140)
		return clip(base+(bpmFactor*0.2), 0, 1)
	}
	return base
}

var brightGenres = map[string]float64{
	"house": 0.7, "techno": 0.8, "trance": 0.75,
	"edm": 0.8, "electronic": 0.7,
}
var darkGenres = map[string]float64{
	"ambient": 0.3, "darkwave": 0.25, "doom": 0.2,
}

func calculateSpectralCentroid(in Input) float64 {
	genre := strings.ToLower(in.Genre)
	var base float64
	if v, ok := brightGenres[genre]; ok {
		base = v
	} else if v, ok := darkGenres[genre]; ok {
		base = 1.0 - v
	} else {
		base = 0.5
	}
	energyFactor := energyOrDefault(in.Energy) * 0.3
	return clip(base+energyFactor, 0, 1)
}

var stableGenres = map[string]float64{
	"house": 0.9, "techno": 0.95, "trance": 0.9,
	"edm": 0.85, "electronic": 0.8,
}
var unstableGenres = map[string]float64{
	"jazz": 0.4, "classical": 0.5, "prog": 0.6,
}

func calculateTempoStability(in Input) float64 {
	if in.TempoStability != nil {
		return clip(*in.TempoStability, 0, 1)
	}
	genre := strings.ToLower(in.Genre)
	if v, ok := stableGenres[genre]; ok {
		return v
	}
	if v, ok := unstableGenres[genre]; ok {
		return 1.0 - v
	}
	return 0.7
}

var complexGenres = map[string]float64{
	"jazz": 0.9, "classical": 0.8, "prog": 0.8,
	"fusion": 0.7, "experimental": 0.8,
}
var simpleGenres = map[string]float64{
	"pop": 0.3, "house": 0.4, "techno": 0.4,
}

func calculateHarmonicComplexity(in Input) float64 {
	keyComplexity := 0.4
	if strings.Contains(in.Key, "A") {
		keyComplexity = 0.6
	}

	genre := strings.ToLower(in.Genre)
	var genreComplexity float64
	if v, ok := complexGenres[genre]; ok {
		genreComplexity = v
	} else if v, ok := simpleGenres[genre]; ok {
		genreComplexity = 1.0 - v
	} else {
		genreComplexity = 0.5
	}

	return clip(keyComplexity*0.4+genreComplexity*0.6, 0, 1)
}

var dynamicGenres = map[string]float64{
	"classical": 0.9, "jazz": 0.8, "rock": 0.7,
	"metal": 0.6, "ambient": 0.7,
}
var compressedGenres = map[string]float64{
	"pop": 0.3, "edm": 0.25, "house": 0.3, "techno": 0.25,
}

func calculateDynamicRange(in Input) float64 {
	if in.DynamicRange != nil {
		return clip(*in.DynamicRange, 0, 1)
	}
	genre := strings.ToLower(in.Genre)
	var base float64
	if v, ok := dynamicGenres[genre]; ok {
		base = v
	} else if v, ok := compressedGenres[genre]; ok {
		base = 1.0 - v
	} else {
		base = 0.5
	}
	energyFactor := (1.0 - energyOrDefault(in.Energy)) * 0.2
	return clip(base+energyFactor, 0, 1)
}

// BuildVector computes the 12-dimensional HAMMS vector for a track. It is a
// pure function of Input: identical inputs always produce an identical
// vector, with no randomness and no wall-clock dependency.
func BuildVector(in Input) Vector {
	return Vector{
		NormalizeBPM(in.BPM),
		CamelotToNumeric(in.Key),
		energyOrDefault(in.Energy),
		calculateDanceability(in),
		calculateValence(in),
		calculateAcousticness(in),
		calculateInstrumentalness(in),
		calculateRhythmicPattern(in),
		calculateSpectralCentroid(in),
		calculateTempoStability(in),
		calculateHarmonicComplexity(in),
		calculateDynamicRange(in),
	}
}

// DimensionScores exposes the vector as a name-keyed map, the shape
// persisted alongside the raw array for human-readable inspection.
func (v Vector) DimensionScores() map[string]float64 {
	out := make(map[string]float64, len(DimensionNames))
	for i, name := range DimensionNames {
		out[name] = v[i]
	}
	return out
}

// Confidence estimates how much to trust a vector given the inputs it was
// built from: a degraded input (missing BPM, key, or energy) lowers
// confidence even though the vector itself still has neutral defaults.
func Confidence(in Input, v Vector) float64 {
	confidence := 0.8
	if in.BPM == nil || *in.BPM <= 0 {
		confidence -= 0.2
	}
	if in.Key == "" {
		confidence -= 0.1
	}
	if in.Energy == nil || *in.Energy <= 0 {
		confidence -= 0.1
	}

	inRange := true
	for _, d := range v {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return 0
		}
		if d < 0 || d > 1 {
			inRange = false
		}
	}
	if !inRange {
		confidence *= 0.5
	}

	return clip(confidence, 0, 1)
}

// Similarity is the result of comparing two HAMMS vectors.
type Similarity struct {
	Overall   float64
	Euclidean float64
	Cosine    float64
}

func weighted(v Vector) [12]float64 {
	var out [12]float64
	for i := range v {
		out[i] = v[i] * DimensionWeights[i]
	}
	return out
}

func norm(v [12]float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CalculateSimilarity computes the weighted Euclidean and cosine similarity
// between two vectors, plus their 0.6/0.4 blend.
func CalculateSimilarity(a, b Vector) Similarity {
	wa := weighted(a)
	wb := weighted(b)

	var diff [12]float64
	for i := range wa {
		diff[i] = wa[i] - wb[i]
	}
	euclideanDist := norm(diff)
	maxDistance := norm(DimensionWeights)

	euclideanSim := 1.0
	if maxDistance > 0 {
		euclideanSim = 1.0 - (euclideanDist / maxDistance)
	}

	var dot float64
	for i := range wa {
		dot += wa[i] * wb[i]
	}
	normA := norm(wa)
	normB := norm(wb)

	var cosineSim float64
	if normA > 0 && normB > 0 {
		cosineSim = dot / (normA * normB)
	} else if a == b {
		cosineSim = 1.0
	}

	overall := clip(euclideanSim*0.6+cosineSim*0.4, 0, 1)

	return Similarity{
		Overall:   overall,
		Euclidean: clip(euclideanSim, 0, 1),
		Cosine:    clip(cosineSim, -1, 1),
	}
}

// Candidate pairs a track identity with its HAMMS vector for KNearest.
type Candidate struct {
	ID     uint
	Vector Vector
}

// Match is a scored candidate returned by KNearest.
type Match struct {
	ID         uint
	Similarity Similarity
}

// KNearest scores every candidate against seed, keeps those at or above
// threshold, and returns the top limit ordered by overall similarity
// descending (ties broken by euclidean similarity, then by ID ascending).
func KNearest(seed Vector, candidates []Candidate, threshold float64, limit int) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		sim := CalculateSimilarity(seed, c.Vector)
		if sim.Overall >= threshold {
			matches = append(matches, Match{ID: c.ID, Similarity: sim})
		}
	}

	sortMatches(matches)

	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func sortMatches(matches []Match) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0; j-- {
			a, b := matches[j-1], matches[j]
			if !lessMatch(a, b) {
				matches[j-1], matches[j] = matches[j], matches[j-1]
				continue
			}
			break
		}
	}
}

// lessMatch reports whether a should sort before b under the KNearest
// ordering (overall desc, then euclidean desc, then ID asc).
func lessMatch(a, b Match) bool {
	if a.Similarity.Overall != b.Similarity.Overall {
		return a.Similarity.Overall > b.Similarity.Overall
	}
	if a.Similarity.Euclidean != b.Similarity.Euclidean {
		return a.Similarity.Euclidean > b.Similarity.Euclidean
	}
	return a.ID < b.ID
}
