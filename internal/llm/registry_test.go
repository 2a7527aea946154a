package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubProvider struct {
	name  string
	model string
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.model }
func (s *stubProvider) Analyze(ctx context.Context, features RawFeatures) (*Response, error) {
	return &Response{Genre: "stub"}, nil
}
func (s *stubProvider) TestConnection(ctx context.Context) error { return nil }

func TestRegistryGetCachesByNameModelAndKeyPrefix(t *testing.T) {
	Register("stub-registry-test", func(ctx context.Context, cfg Config) (Provider, error) {
		return &stubProvider{name: "stub-registry-test", model: cfg.Model}, nil
	})

	r := NewRegistry()
	ctx := context.Background()

	p1, err := r.Get(ctx, "stub-registry-test", Config{Model: "v1", APIKey: "abcdefghij"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := r.Get(ctx, "stub-registry-test", Config{Model: "v1", APIKey: "abcdefghij"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != p2 {
		t.Error("expected same (name, model, key) to return cached instance")
	}

	p3, err := r.Get(ctx, "stub-registry-test", Config{Model: "v2", APIKey: "abcdefghij"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p3 == p1 {
		t.Error("expected a different model to produce a distinct instance")
	}
}

func TestRegistryGetUnknownProviderListsAvailable(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(context.Background(), "does-not-exist", Config{})
	if err == nil {
		t.Fatal("expected an error for an unregistered provider name")
	}
	if !strings.Contains(err.Error(), "available providers") {
		t.Errorf("expected the error to list available providers, got %q", err.Error())
	}
}

func TestRateLimiterWaitsMinInterval(t *testing.T) {
	limiter := NewRateLimiter(600) // 100ms between calls
	ctx := context.Background()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("expected at least ~100ms between two calls, got %v", elapsed)
	}
}

func TestRateLimiterDisabledWithNonPositiveRPM(t *testing.T) {
	limiter := NewRateLimiter(0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("expected no throttling, took %v", elapsed)
	}
}

func TestRetryWithBackoffStopsOnNonRateLimitError(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 5, func(error) bool { return false }, func() error {
		attempts++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if attempts != 1 {
		t.Errorf("expected exactly one attempt, got %d", attempts)
	}
}

func TestRetryWithBackoffRetriesTransientNetworkErrorsWithoutBackoff(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := RetryWithBackoff(context.Background(), 2, func(error) bool { return false }, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected no backoff delay for transient errors, took %v", elapsed)
	}
}

func TestRetryWithBackoffRetriesRateLimitedErrors(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 1, func(error) bool { return true }, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("rate limited")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts (1 + 1 retry), got %d", attempts)
	}
}
