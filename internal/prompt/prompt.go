// Package prompt builds the system and user prompts sent to enrichment
// providers. It is a leaf package: it knows nothing about any particular
// provider's request/response types, so providers can depend on it without
// creating an import cycle.
package prompt

import (
	"fmt"
	"strings"
)

// SystemPrompt is sent once per request as the provider's system/developer
// message; it never varies per track.
const SystemPrompt = "You are a music analysis expert. Respond with valid JSON only."

// TrackFeatures is the subset of a track's measured and tagged attributes
// the prompt needs. Callers (the provider implementations) translate their
// own feature type into this shape.
type TrackFeatures struct {
	Title  string
	Artist string
	BPM    float64
	Key    string
	Energy float64
	Year   int
}

// BuildAnalysisPrompt renders the per-track user prompt asking a provider
// to classify genre, mood, era, and verify the tagged release date.
func BuildAnalysisPrompt(features TrackFeatures, hammsVector []float64) string {
	title := orUnknown(features.Title)
	artist := orUnknown(features.Artist)
	date := "Unknown"
	if features.Year > 0 {
		date = fmt.Sprintf("%d", features.Year)
	}

	var hammsInfo string
	if len(hammsVector) > 0 {
		formatted := make([]string, len(hammsVector))
		for i, v := range hammsVector {
			formatted[i] = fmt.Sprintf("%.3f", v)
		}
		hammsInfo = fmt.Sprintf("\nHAMMS Vector: [%s]", strings.Join(formatted, ", "))
	}

	return fmt.Sprintf(`Analyze this music track and return ONLY a JSON response:

Track: %s - %s
BPM: %v
Key: %s
Energy: %.2f
Date: %s%s

CRITICAL: Determine the original release year if you know this artist/track, then classify accurately.

Required JSON format:
{
    "date_verification": {
        "artist_known": true/false,
        "track_known": true/false,
        "known_original_year": "1979" or null,
        "metadata_year": "%s",
        "is_likely_reissue": true/false,
        "verification_notes": "Brief explanation"
    },
    "genre": "specific primary genre",
    "subgenre": "more specific classification",
    "mood": "emotional mood/atmosphere",
    "era": "decade (1970s/1980s/1990s/2000s/2010s/2020s)",
    "tags": ["descriptive", "keywords", "style"],
    "confidence": 0.85,
    "analysis_notes": "Brief explanation"
}

Genre Classification Guidelines:
- 1970s: disco, funk, soul, prog rock, punk
- 1980s: new wave, synth-pop, post-punk, hip-hop
- 1990s: house, techno, grunge, trip-hop
- 2000s+: electro house, dubstep, indie rock

Use your knowledge to verify dates and classify accurately. Return ONLY valid JSON.`,
		artist, title, features.BPM, orUnknown(features.Key), features.Energy, date, hammsInfo, date)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
