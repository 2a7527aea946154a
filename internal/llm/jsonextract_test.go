package llm

import "testing"

func TestExtractJSONDirect(t *testing.T) {
	obj, ok := ExtractJSON(`{"genre": "house", "confidence": 0.9}`)
	if !ok {
		t.Fatal("expected direct JSON to parse")
	}
	if obj["genre"] != "house" {
		t.Errorf("genre = %v, want house", obj["genre"])
	}
}

func TestExtractJSONFencedMarkdown(t *testing.T) {
	text := "Here is the classification:\n```json\n{\"genre\": \"techno\"}\n```\nHope that helps."
	obj, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected fenced JSON to parse")
	}
	if obj["genre"] != "techno" {
		t.Errorf("genre = %v, want techno", obj["genre"])
	}
}

func TestExtractJSONBraceSpan(t *testing.T) {
	text := `Sure thing! {"genre": "trance", "mood": "uplifting"} let me know if you need more.`
	obj, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected brace-span JSON to parse")
	}
	if obj["mood"] != "uplifting" {
		t.Errorf("mood = %v, want uplifting", obj["mood"])
	}
}

func TestExtractJSONEnvelopeTag(t *testing.T) {
	text := "preamble <json>{\"genre\": \"disco\"}</json> trailer"
	obj, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected <json> envelope to parse")
	}
	if obj["genre"] != "disco" {
		t.Errorf("genre = %v, want disco", obj["genre"])
	}
}

func TestExtractJSONNestedBraces(t *testing.T) {
	text := `noise before {"genre": "pop", "date_verification": {"artist_known": true}} noise after`
	obj, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected nested-brace JSON to parse")
	}
	nested, ok := obj["date_verification"].(map[string]any)
	if !ok {
		t.Fatal("expected date_verification to be a nested object")
	}
	if nested["artist_known"] != true {
		t.Errorf("artist_known = %v, want true", nested["artist_known"])
	}
}

func TestExtractJSONNoneMatch(t *testing.T) {
	_, ok := ExtractJSON("I cannot classify this track, sorry.")
	if ok {
		t.Fatal("expected no strategy to match plain prose")
	}
}
