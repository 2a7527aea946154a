package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"
)

// Config carries the per-provider settings a Constructor needs: API
// credentials plus the rate-limit and retry knobs every provider respects
// identically so none of them can starve the others' quota.
type Config struct {
	APIKey        string
	Model         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	MaxRetries    int
	RateLimitRPM  int
}

// Constructor builds a Provider instance for a given Config. Providers
// register one of these under a short name at package init time instead of
// the factory importing every provider package directly.
type Constructor func(ctx context.Context, cfg Config) (Provider, error)

var (
	registryMu    sync.RWMutex
	constructors  = map[string]Constructor{}
)

// Register adds a provider constructor under name. Called from each
// provider's init() so the registry never needs to know the concrete
// provider types at compile time.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	constructors[name] = ctor
}

// ListRegistered returns the names of every constructor registered so far,
// sorted for deterministic error messages and listings.
func ListRegistered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry caches one Provider instance per (name, model, credential)
// triple, so repeated lookups for the same provider+model+key reuse a
// single rate-limited client instead of spinning up a new one per track.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Provider
}

// NewRegistry creates an empty provider instance cache.
func NewRegistry() *Registry {
	return &Registry{instances: map[string]Provider{}}
}

func cacheKey(name string, cfg Config) string {
	credentialTag := "nokey"
	if len(cfg.APIKey) >= 8 {
		credentialTag = cfg.APIKey[:8]
	} else if cfg.APIKey != "" {
		credentialTag = cfg.APIKey
	}
	return name + "_" + cfg.Model + "_" + credentialTag
}

// Get returns the cached provider for (name, cfg), constructing and caching
// one on first use. Returns an error listing available names if name was
// never registered.
func (r *Registry) Get(ctx context.Context, name string, cfg Config) (Provider, error) {
	key := cacheKey(name, cfg)

	r.mu.RLock()
	if p, ok := r.instances[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	registryMu.RLock()
	ctor, ok := constructors[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q, available providers: %v", name, ListRegistered())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[key]; ok {
		return p, nil
	}

	provider, err := ctor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing provider %q: %w", name, err)
	}
	r.instances[key] = provider
	return provider, nil
}

// RateLimiter enforces a minimum interval between calls derived from a
// requests-per-minute budget, mirroring the sleep-based throttle every
// provider implementation shares.
type RateLimiter struct {
	mu           sync.Mutex
	minInterval  time.Duration
	lastRequest  time.Time
}

// NewRateLimiter builds a limiter for the given requests-per-minute budget.
// A non-positive rpm disables throttling.
func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{minInterval: time.Minute / time.Duration(rpm)}
}

// Wait blocks until enough time has passed since the last call to respect
// the configured rate, or until ctx is cancelled.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.minInterval <= 0 {
		return nil
	}

	l.mu.Lock()
	elapsed := time.Since(l.lastRequest)
	var wait time.Duration
	if elapsed < l.minInterval {
		wait = l.minInterval - elapsed
	}
	l.lastRequest = time.Now().Add(wait)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isTransientNetworkError reports whether err looks like a timeout or
// connectivity failure rather than a permanent rejection (bad request, auth
// failure, malformed response): the kind of error that is usually gone on
// the very next attempt, so it is retried without backoff.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "timed out", "connection refused", "connection reset", "eof", "no such host", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RetryWithBackoff retries fn up to maxRetries times. A rate-limit error
// (identified by isRateLimited) is retried with exponential backoff of
// 2^attempt seconds (1s, 2s, 4s, ...); a
// transient network error (timeout, connection reset, and the like) is
// retried immediately without backoff; anything else is permanent and
// returns on the first failure.
func RetryWithBackoff(ctx context.Context, maxRetries int, isRateLimited func(error) bool, fn func() error) error {
	var err error
	backoff := time.Second
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || attempt == maxRetries {
			return err
		}

		rateLimited := isRateLimited(err)
		if !rateLimited && !isTransientNetworkError(err) {
			return err
		}

		if !rateLimited {
			// Transient network error: retry immediately, no backoff.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			continue
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}
