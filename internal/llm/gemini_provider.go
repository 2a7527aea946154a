package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/FmBlueSystem/mapof-analysis/internal/observability"
	"github.com/FmBlueSystem/mapof-analysis/internal/prompt"
	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	providerNameGemini = "gemini"
	mimeTypeJSON       = "application/json"
)

func init() {
	Register(providerNameGemini, func(ctx context.Context, cfg Config) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		return NewGeminiProvider(ctx, cfg)
	})
}

// GeminiProvider implements the Provider interface using Google's Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxRetries  int
	rateLimiter *RateLimiter
}

// NewGeminiProvider creates a Gemini-backed provider bound to cfg.Model.
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		maxRetries:  maxRetries,
		rateLimiter: NewRateLimiter(cfg.RateLimitRPM),
	}, nil
}

// Name returns the provider's registration name.
func (p *GeminiProvider) Name() string { return providerNameGemini }

// Model returns the model this instance targets.
func (p *GeminiProvider) Model() string { return p.model }

var geminiEnrichmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"genre":          {Type: genai.TypeString},
		"subgenre":       {Type: genai.TypeString},
		"mood":           {Type: genai.TypeString},
		"era":            {Type: genai.TypeString},
		"tags":           {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"confidence":     {Type: genai.TypeNumber},
		"analysis_notes": {Type: genai.TypeString},
		"date_verification": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"artist_known":        {Type: genai.TypeBoolean},
				"track_known":         {Type: genai.TypeBoolean},
				"known_original_year": {Type: genai.TypeString},
				"metadata_year":       {Type: genai.TypeString},
				"is_likely_reissue":   {Type: genai.TypeBoolean},
				"verification_notes":  {Type: genai.TypeString},
			},
		},
	},
	Required: []string{"genre", "mood", "confidence"},
}

// Analyze sends RawFeatures to Gemini and parses the returned classification.
func (p *GeminiProvider) Analyze(ctx context.Context, features RawFeatures) (*Response, error) {
	start := time.Now()
	log.Printf("🎵 GEMINI ANALYZE REQUEST STARTED (model=%s, track=%s - %s)", p.model, features.Artist, features.Title)

	transaction := sentry.StartTransaction(ctx, "gemini.analyze")
	defer transaction.Finish()
	transaction.SetTag("model", p.model)
	transaction.SetTag("provider", providerNameGemini)

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
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: userPrompt}},
	}}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: prompt.SystemPrompt}},
		},
		ResponseMIMEType: mimeTypeJSON,
		ResponseSchema:   geminiEnrichmentSchema,
	}

	var result *genai.GenerateContentResponse
	span := transaction.StartChild("gemini.api_call")
	err := RetryWithBackoff(ctx, p.maxRetries, isRateLimitError, func() error {
		var callErr error
		result, callErr = p.client.Models.GenerateContent(ctx, p.model, contents, config)
		return callErr
	})
	span.Finish()

	if err != nil {
		log.Printf("❌ GEMINI REQUEST FAILED after %v: %v", time.Since(start), err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	response := p.processResponse(result, features, start)
	transaction.SetTag("success", "true")
	return response, nil
}

func (p *GeminiProvider) processResponse(result *genai.GenerateContentResponse, features RawFeatures, start time.Time) *Response {
	var text string
	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		text = result.Candidates[0].Content.Parts[0].Text
	}
	log.Printf("📥 GEMINI RESPONSE: output_length=%d", len(text))

	parsed, ok := ExtractJSON(text)
	if !ok {
		log.Printf("⚠️  GEMINI: all JSON extraction strategies failed, using BPM fallback")
		fallback := FallbackResponse(features)
		fallback.Provider = providerNameGemini
		fallback.Model = p.model
		fallback.RawResponse = text
		fallback.ElapsedMS = time.Since(start).Milliseconds()
		return fallback
	}

	response := responseFromParsedJSON(parsed)
	response.Provider = providerNameGemini
	response.Model = p.model
	response.RawResponse = text
	if result.UsageMetadata != nil {
		response.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		response.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	response.CostUSD = observability.CalculateGeminiCost(p.model, response.InputTokens, response.OutputTokens)
	response.ElapsedMS = time.Since(start).Milliseconds()

	log.Printf("✅ GEMINI ANALYZE COMPLETED in %v (genre=%s, confidence=%.2f)",
		time.Since(start), response.Genre, response.Confidence)

	return response
}

// TestConnection performs a minimal round-trip call to verify credentials.
func (p *GeminiProvider) TestConnection(ctx context.Context) error {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: "Reply with the single word: ok"}},
	}}
	_, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	return err
}
