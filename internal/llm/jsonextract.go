package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// extractionStrategy tries to pull a JSON object out of raw provider text.
// Strategies run in order; the first to succeed wins.
type extractionStrategy func(text string) (map[string]any, bool)

var jsonExtractionStrategies = []extractionStrategy{
	extractDirectJSON,
	extractFencedJSON,
	extractBraceSpan,
	extractJSONEnvelope,
	extractNestedBraceRegex,
}

// ExtractJSON runs every extraction strategy over text in order and
// returns the first successful parse. Mirrors the defensive multi-strategy
// parsing a provider needs because models routinely wrap JSON in prose,
// markdown fences, or stray commentary despite being asked for raw JSON.
func ExtractJSON(text string) (map[string]any, bool) {
	for _, strategy := range jsonExtractionStrategies {
		if obj, ok := strategy(text); ok {
			return obj, true
		}
	}
	return nil, false
}

func extractDirectJSON(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

func extractFencedJSON(text string) (map[string]any, bool) {
	match := fencedJSONRe.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(match[1]), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func extractBraceSpan(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// jsonEnvelopeRe matches an XML-like <json>...</json> wrapper. Some models
// asked for strict JSON will instead wrap it this way when a system prompt
// also demands well-formed XML elsewhere in the conversation.
var jsonEnvelopeRe = regexp.MustCompile(`(?s)<json>\s*(\{.*?\})\s*</json>`)

func extractJSONEnvelope(text string) (map[string]any, bool) {
	match := jsonEnvelopeRe.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(match[1]), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

var (
	nestedBraceRe = regexp.MustCompile(`(?s)\{(?:[^{}]|\{[^{}]*\})*\}`)
	simpleBraceRe = regexp.MustCompile(`(?s)\{[^{}]*\}`)
)

func extractNestedBraceRegex(text string) (map[string]any, bool) {
	for _, re := range []*regexp.Regexp{nestedBraceRe, simpleBraceRe} {
		for _, candidate := range re.FindAllString(text, -1) {
			var obj map[string]any
			if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
				return obj, true
			}
		}
	}
	return nil, false
}
