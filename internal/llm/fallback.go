package llm

import "fmt"

// FallbackResponse produces a deterministic, low-confidence classification
// (genre from BPM, era from the tagged year, mood always "neutral") when
// every JSON-extraction strategy on a provider's reply has
// failed. It guarantees analysis always terminates with a usable (if
// low-confidence) Enrichment rather than leaving the track unclassified.
func FallbackResponse(features RawFeatures) *Response {
	bpm := features.BPM
	if bpm <= 0 {
		bpm = 120
	}

	var genre, subgenre string
	switch {
	case bpm > 140:
		genre, subgenre = "electronic", "high-energy"
	case bpm >= 120:
		genre, subgenre = "pop", "dance-pop"
	case bpm >= 90:
		genre, subgenre = "rock", "mid-tempo"
	default:
		genre, subgenre = "ballad", "slow"
	}

	era := "2020s"
	if features.Year > 0 {
		era = fmt.Sprintf("%ds", features.Year/10*10)
	}

	return &Response{
		Genre:    genre,
		Subgenre: subgenre,
		Mood:     "neutral",
		Era:      era,
		Tags:     []string{genre, fmt.Sprintf("%dbpm", int(bpm))},
		Confidence: 0.3,
		DateVerification: &DateVerification{
			VerificationNotes: "fallback classification",
		},
		AnalysisNotes: "fallback classification based on BPM and tagged year; no provider response could be parsed",
		Fallback:      true,
	}
}
