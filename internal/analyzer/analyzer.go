// Package analyzer orchestrates the full per-track analysis pipeline: tag
// extraction, HAMMS vector computation, optional provider enrichment, and
// persistence, with graceful degradation when enrichment fails.
package analyzer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/FmBlueSystem/mapof-analysis/internal/config"
	"github.com/FmBlueSystem/mapof-analysis/internal/features"
	"github.com/FmBlueSystem/mapof-analysis/internal/hamms"
	"github.com/FmBlueSystem/mapof-analysis/internal/llm"
	"github.com/FmBlueSystem/mapof-analysis/internal/logger"
	"github.com/FmBlueSystem/mapof-analysis/internal/models"
	"github.com/FmBlueSystem/mapof-analysis/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Progress statuses reported for each provider attempt during failover.
const (
	ProgressAnalyzing = "analyzing"
	ProgressSuccess   = "success"
	ProgressFailed    = "failed"
)

// ProgressEvent reports a single provider attempt during multi-provider
// failover, emitted synchronously between attempts so a caller can surface
// live enrichment progress.
type ProgressEvent struct {
	Provider string
	Status   string
}

// Result is a single track's outcome from the pipeline, successful or not.
type Result struct {
	TrackPath string
	Success   bool
	Track     *models.Track
	Vector    hamms.Vector
	Cached    bool
	Error     error
}

// Analyzer runs the HAMMS + enrichment pipeline against a storage backend.
type Analyzer struct {
	storage    *storage.Storage
	extractor  features.Extractor
	registry   *llm.Registry
	cfg        *config.Config
	locks      sync.Map // fingerprint -> *sync.Mutex, serializes concurrent re-analysis of one file
	onProgress func(ProgressEvent)
}

// New builds an Analyzer. Enrichment is skipped when cfg.EnableEnrichment
// is false; when it is on but no provider in cfg.ProviderOrder has an API
// key, enrichment fails for every track and the track is marked degraded.
func New(st *storage.Storage, extractor features.Extractor, registry *llm.Registry, cfg *config.Config) *Analyzer {
	return &Analyzer{storage: st, extractor: extractor, registry: registry, cfg: cfg}
}

// OnProgress registers a sink that receives a ProgressEvent for every
// provider attempt made during enrichment failover. Passing nil reverts to
// the default log-only behavior. Not safe to call concurrently with
// in-flight analysis.
func (a *Analyzer) OnProgress(sink func(ProgressEvent)) {
	a.onProgress = sink
}

// emitProgress reports a provider attempt, synchronously, to the registered
// sink (if any) and always to the logger.
func (a *Analyzer) emitProgress(event ProgressEvent) {
	logger.Info("enrichment provider attempt", logger.Fields{
		"provider": event.Provider,
		"status":   event.Status,
	})
	if a.onProgress != nil {
		a.onProgress(event)
	}
}

func (a *Analyzer) fileLock(fingerprint string) *sync.Mutex {
	lock, _ := a.locks.LoadOrStore(fingerprint, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// AnalyzeTrack runs the full pipeline for a single file. When forceReanalysis
// is false and the stored fingerprint still matches the file on disk, the
// cached HAMMS vector and enrichment are returned without re-running either.
func (a *Analyzer) AnalyzeTrack(ctx context.Context, path string, forceReanalysis bool) Result {
	fingerprint, err := features.FileFingerprint(path)
	if err != nil {
		return Result{TrackPath: path, Success: false, Error: fmt.Errorf("fingerprinting %s: %w", path, err)}
	}

	lock := a.fileLock(fingerprint)
	lock.Lock()
	defer lock.Unlock()

	if !forceReanalysis {
		if cached, ok, err := a.storage.GetCachedAnalysis(path, fingerprint); err == nil && ok {
			vector, verr := a.storage.GetVector(cached.ID)
			if verr == nil {
				return Result{TrackPath: path, Success: true, Track: cached, Vector: vector, Cached: true}
			}
		}
	}

	tagInfo, err := a.extractor.Extract(path)
	if err != nil {
		log.Printf("⚠️  analyzer: tag extraction failed for %s: %v", filepath.Base(path), err)
	}

	track, err := a.storage.UpsertTrack(path, fingerprint)
	if err != nil {
		return Result{TrackPath: path, Success: false, Error: fmt.Errorf("upserting track %s: %w", path, err)}
	}

	var bpmPtr, energyPtr *float64
	if track.BPM > 0 {
		bpm := track.BPM
		bpmPtr = &bpm
	}
	if track.Energy > 0 {
		e := track.Energy
		energyPtr = &e
	}
	key := track.InitialKey

	vector := hamms.BuildVector(hamms.Input{
		BPM:    bpmPtr,
		Key:    key,
		Energy: energyPtr,
		Title:  tagInfo.Title,
		Artist: tagInfo.Artist,
	})
	confidence := hamms.Confidence(hamms.Input{BPM: bpmPtr, Key: key, Energy: energyPtr}, vector)

	write := storage.AnalysisWrite{Track: track, Vector: vector, Confidence: confidence}

	if a.cfg.EnableEnrichment && a.registry != nil {
		log.Printf("🎵 analyzer: enriching %s", filepath.Base(path))
		response, err := a.enrich(ctx, tagInfo, track)
		if err != nil {
			log.Printf("⚠️  analyzer: enrichment failed for %s, keeping HAMMS-only result: %v", filepath.Base(path), err)
			if markErr := a.storage.MarkDegraded(track.ID); markErr != nil {
				log.Printf("⚠️  analyzer: failed to mark %s degraded: %v", filepath.Base(path), markErr)
			}
		} else {
			write.Enrichment = response
		}
	}

	if err := a.storage.WriteAnalysis(write); err != nil {
		return Result{TrackPath: path, Success: false, Error: fmt.Errorf("persisting analysis for %s: %w", path, err)}
	}

	return Result{TrackPath: path, Success: true, Track: track, Vector: vector}
}

// enrich calls each configured provider in order, falling back to the next
// on failure, until one succeeds or the list is exhausted.
func (a *Analyzer) enrich(ctx context.Context, tagInfo llm.RawFeatures, track *models.Track) (*llm.Response, error) {
	rawFeatures := tagInfo
	rawFeatures.BPM = track.BPM
	rawFeatures.Key = track.InitialKey
	rawFeatures.Energy = track.Energy

	cfg := llm.Config{
		Model:        "",
		MaxTokens:    1024,
		Timeout:      time.Duration(a.cfg.ProviderTimeout) * time.Second,
		MaxRetries:   a.cfg.ProviderRetries,
		RateLimitRPM: a.cfg.ProviderRPM,
	}

	var lastErr error
	for _, name := range a.cfg.ProviderOrder {
		providerCfg := cfg
		switch name {
		case "openai":
			providerCfg.APIKey = a.cfg.OpenAIAPIKey
		case "gemini":
			providerCfg.APIKey = a.cfg.GeminiAPIKey
		}
		if providerCfg.APIKey == "" {
			continue
		}

		a.emitProgress(ProgressEvent{Provider: name, Status: ProgressAnalyzing})

		provider, err := a.registry.Get(ctx, name, providerCfg)
		if err != nil {
			lastErr = err
			a.emitProgress(ProgressEvent{Provider: name, Status: ProgressFailed})
			continue
		}
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if providerCfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, providerCfg.Timeout)
		}
		response, err := provider.Analyze(callCtx, rawFeatures)
		cancel()
		if err != nil {
			lastErr = err
			a.emitProgress(ProgressEvent{Provider: name, Status: ProgressFailed})
			continue
		}
		a.emitProgress(ProgressEvent{Provider: name, Status: ProgressSuccess})
		return response, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no enrichment provider configured")
	}
	return nil, lastErr
}

// BatchAnalyze analyzes every path in paths with bounded concurrency,
// pausing briefly between dispatches so provider rate limits aren't
// hammered by a burst of simultaneous requests. Results preserve input
// order.
func (a *Analyzer) BatchAnalyze(ctx context.Context, paths []string, forceReanalysis bool) []Result {
	if len(paths) == 0 {
		return nil
	}

	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	concurrency := a.cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = a.AnalyzeTrack(gctx, path, forceReanalysis)
			if a.cfg.EnableEnrichment {
				time.Sleep(500 * time.Millisecond)
			}
			return nil
		})
	}
	_ = g.Wait()

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	log.Printf("analyzer: batch complete %d/%d tracks successful", successful, len(results))

	return results
}
