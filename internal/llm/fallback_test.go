package llm

import "testing"

func TestFallbackResponseBandsByBPM(t *testing.T) {
	cases := []struct {
		bpm      float64
		genre    string
		subgenre string
	}{
		{bpm: 150, genre: "electronic", subgenre: "high-energy"},
		{bpm: 128, genre: "pop", subgenre: "dance-pop"},
		{bpm: 100, genre: "rock", subgenre: "mid-tempo"},
		{bpm: 70, genre: "ballad", subgenre: "slow"},
		{bpm: 0, genre: "pop", subgenre: "dance-pop"}, // defaults to 120bpm
	}

	for _, tc := range cases {
		resp := FallbackResponse(RawFeatures{BPM: tc.bpm})
		if resp.Genre != tc.genre || resp.Subgenre != tc.subgenre {
			t.Errorf("bpm=%v: got genre=%s subgenre=%s, want genre=%s subgenre=%s",
				tc.bpm, resp.Genre, resp.Subgenre, tc.genre, tc.subgenre)
		}
		if !resp.Fallback {
			t.Error("expected Fallback to be true")
		}
		if resp.Confidence != 0.3 {
			t.Errorf("confidence = %v, want 0.3", resp.Confidence)
		}
	}
}

func TestFallbackResponseTagsIncludeGenreAndBPM(t *testing.T) {
	resp := FallbackResponse(RawFeatures{BPM: 128})
	if len(resp.Tags) != 2 || resp.Tags[0] != "pop" || resp.Tags[1] != "128bpm" {
		t.Errorf("tags = %v, want [pop 128bpm]", resp.Tags)
	}
}
