package llm

import "context"

// Provider is the abstraction every enrichment backend implements. A
// Provider is stateless with respect to tracks: all per-call state lives in
// RawFeatures and Response, so the same Provider instance is safe to reuse
// (and is cached by the registry) across many tracks.
type Provider interface {
	// Analyze asks the provider to classify a track from its extracted
	// features and returns the unified Response shape.
	Analyze(ctx context.Context, features RawFeatures) (*Response, error)

	// Name returns the provider's short registration name (e.g. "openai").
	Name() string

	// Model returns the specific model identifier this instance targets.
	Model() string

	// TestConnection performs a minimal round-trip call to verify
	// credentials and connectivity without charging a full analysis.
	TestConnection(ctx context.Context) error
}

// RawFeatures is the subset of a track's measured and tagged attributes a
// provider uses to build its prompt. Every field is optional: a provider
// must not assume any of them are present.
type RawFeatures struct {
	Title     string
	Artist    string
	Album     string
	Year      int
	BPM       float64
	Key       string
	Energy    float64
	GenreHint string
}

// DateVerification captures a provider's judgement on whether the track's
// tagged release year matches the original recording, surfaced so a
// reissue or compilation doesn't get classified by its repress date.
type DateVerification struct {
	ArtistKnown       bool   `json:"artist_known"`
	TrackKnown        bool   `json:"track_known"`
	KnownOriginalYear int    `json:"known_original_year,omitempty"`
	MetadataYear      int    `json:"metadata_year,omitempty"`
	IsLikelyReissue   bool   `json:"is_likely_reissue"`
	VerificationNotes string `json:"verification_notes,omitempty"`
}

// Response is the unified result of a provider analysis call, mirroring the
// persisted Enrichment record plus call accounting used for cost tracking
// and observability.
type Response struct {
	Genre            string
	Subgenre         string
	Mood             string
	Era              string
	Tags             []string
	Confidence       float64
	DateVerification *DateVerification
	AnalysisNotes    string

	Provider     string
	Model        string
	RawResponse  string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	ElapsedMS    int64
	Fallback     bool
	Err          error
}
