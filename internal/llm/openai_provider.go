package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/FmBlueSystem/mapof-analysis/internal/observability"
	"github.com/FmBlueSystem/mapof-analysis/internal/prompt"
	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const providerNameOpenAI = "openai"

func init() {
	Register(providerNameOpenAI, func(_ context.Context, cfg Config) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		return NewOpenAIProvider(cfg), nil
	})
}

// OpenAIProvider implements the Provider interface using OpenAI's Responses
// API with structured JSON output.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	maxRetries  int
	rateLimiter *RateLimiter
}

// NewOpenAIProvider creates an OpenAI-backed provider bound to cfg.Model.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OpenAIProvider{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       model,
		maxRetries:  maxRetries,
		rateLimiter: NewRateLimiter(cfg.RateLimitRPM),
	}
}

// Name returns the provider's registration name.
func (p *OpenAIProvider) Name() string { return providerNameOpenAI }

// Model returns the model this instance targets.
func (p *OpenAIProvider) Model() string { return p.model }

var enrichmentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"genre":          map[string]any{"type": "string"},
		"subgenre":       map[string]any{"type": "string"},
		"mood":           map[string]any{"type": "string"},
		"era":            map[string]any{"type": "string"},
		"tags":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"confidence":     map[string]any{"type": "number"},
		"analysis_notes": map[string]any{"type": "string"},
		"date_verification": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"artist_known":        map[string]any{"type": "boolean"},
				"track_known":         map[string]any{"type": "boolean"},
				"known_original_year": map[string]any{"type": "string"},
				"metadata_year":       map[string]any{"type": "string"},
				"is_likely_reissue":   map[string]any{"type": "boolean"},
				"verification_notes":  map[string]any{"type": "string"},
			},
		},
	},
	"required": []string{"genre", "mood", "confidence"},
}

// Analyze sends RawFeatures to OpenAI and parses the returned classification.
func (p *OpenAIProvider) Analyze(ctx context.Context, features RawFeatures) (*Response, error) {
	start := time.Now()
	log.Printf("🎵 OPENAI ANALYZE REQUEST STARTED (model=%s, track=%s - %s)", p.model, features.Artist, features.Title)

	transaction := sentry.StartTransaction(ctx, "openai.analyze")
	defer transaction.Finish()
	transaction.SetTag("model", p.model)
	transaction.SetTag("provider", providerNameOpenAI)

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	userPrompt := prompt.BuildAnalysisPrompt(prompt.TrackFeatures{
		Title:  features.Title,
		Artist: features.Artist,
		BPM:    features.BPM,
		Key:    features.Key,
		Energy: features.Energy,
		Year:   features.Year,
	}, nil)

	params := responses.ResponseNewParams{
		Model: p.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(userPrompt),
		},
		Instructions: openai.String(prompt.SystemPrompt),
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(
				"track_enrichment", enrichmentSchema, responses.ResponseFormatTextJSONSchemaConfigParam{
					Description: openai.String("Structured music analysis"),
					Strict:      openai.Bool(false),
				},
			),
		},
	}

	var resp *responses.Response
	span := transaction.StartChild("openai.api_call")
	err := RetryWithBackoff(ctx, p.maxRetries, isRateLimitError, func() error {
		var callErr error
		resp, callErr = p.client.Responses.New(ctx, params)
		return callErr
	})
	span.Finish()

	if err != nil {
		log.Printf("❌ OPENAI REQUEST FAILED after %v: %v", time.Since(start), err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	result := p.processResponse(resp, features, start)
	transaction.SetTag("success", "true")
	return result, nil
}

func (p *OpenAIProvider) processResponse(resp *responses.Response, features RawFeatures, start time.Time) *Response {
	text := resp.OutputText()
	log.Printf("📥 OPENAI RESPONSE: output_length=%d", len(text))

	parsed, ok := ExtractJSON(text)
	if !ok {
		log.Printf("⚠️  OPENAI: all JSON extraction strategies failed, using BPM fallback")
		fallback := FallbackResponse(features)
		fallback.Provider = providerNameOpenAI
		fallback.Model = p.model
		fallback.RawResponse = text
		fallback.ElapsedMS = time.Since(start).Milliseconds()
		return fallback
	}

	result := responseFromParsedJSON(parsed)
	result.Provider = providerNameOpenAI
	result.Model = p.model
	result.RawResponse = text
	result.InputTokens = int(resp.Usage.InputTokens)
	result.OutputTokens = int(resp.Usage.OutputTokens)
	result.CostUSD = observability.CalculateOpenAICost(p.model, resp.Usage)
	result.ElapsedMS = time.Since(start).Milliseconds()

	log.Printf("✅ OPENAI ANALYZE COMPLETED in %v (genre=%s, confidence=%.2f)",
		time.Since(start), result.Genre, result.Confidence)

	return result
}

// TestConnection performs a minimal round-trip call to verify the API key
// and model are usable without running a full track analysis.
func (p *OpenAIProvider) TestConnection(ctx context.Context) error {
	_, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: p.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String("Reply with the single word: ok"),
		},
	})
	return err
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

// responseFromParsedJSON maps a provider's generic JSON object onto the
// unified Response shape, tolerating missing or wrongly-typed fields the
// way a hand-rolled JSON decode must when the source is an LLM, not a
// typed API contract.
func responseFromParsedJSON(obj map[string]any) *Response {
	r := &Response{}
	r.Genre, _ = obj["genre"].(string)
	r.Subgenre, _ = obj["subgenre"].(string)
	r.Mood, _ = obj["mood"].(string)
	r.Era, _ = obj["era"].(string)
	r.AnalysisNotes, _ = obj["analysis_notes"].(string)

	if conf, ok := obj["confidence"].(float64); ok {
		r.Confidence = conf
	} else {
		r.Confidence = 0.5
	}

	if rawTags, ok := obj["tags"].([]any); ok {
		for _, t := range rawTags {
			if s, ok := t.(string); ok {
				r.Tags = append(r.Tags, strings.ToLower(strings.TrimSpace(s)))
			}
		}
	}

	if dv, ok := obj["date_verification"].(map[string]any); ok {
		verification := &DateVerification{}
		verification.ArtistKnown, _ = dv["artist_known"].(bool)
		verification.TrackKnown, _ = dv["track_known"].(bool)
		verification.IsLikelyReissue, _ = dv["is_likely_reissue"].(bool)
		verification.VerificationNotes, _ = dv["verification_notes"].(string)
		r.DateVerification = verification
	}

	return r
}
