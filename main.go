package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/FmBlueSystem/mapof-analysis/internal/analyzer"
	"github.com/FmBlueSystem/mapof-analysis/internal/api"
	"github.com/FmBlueSystem/mapof-analysis/internal/config"
	"github.com/FmBlueSystem/mapof-analysis/internal/features"
	"github.com/FmBlueSystem/mapof-analysis/internal/llm"
	"github.com/FmBlueSystem/mapof-analysis/internal/observability"
	"github.com/FmBlueSystem/mapof-analysis/internal/playlist"
	"github.com/FmBlueSystem/mapof-analysis/internal/storage"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize Sentry (optional)
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "mapof-analysis@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            cfg.Environment != environmentProduction,
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	// Initialize Langfuse for LLM observability (optional)
	if cfg.LangfuseEnabled && cfg.LangfuseSecretKey != "" {
		os.Setenv("LANGFUSE_PUBLIC_KEY", cfg.LangfusePublicKey)
		os.Setenv("LANGFUSE_SECRET_KEY", cfg.LangfuseSecretKey)
		if cfg.LangfuseHost != "" {
			os.Setenv("LANGFUSE_HOST", cfg.LangfuseHost)
		}
	}
	observability.InitializeLangfuse(context.Background(), cfg)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	st, err := storage.New(db)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	extractor := features.NewTagExtractor()
	registry := llm.NewRegistry()
	az := analyzer.New(st, extractor, registry, cfg)
	pg := playlist.New(st, cfg)

	if cfg.EnableEnrichment {
		log.Printf("🎵 Enrichment enabled, provider order: %v", cfg.ProviderOrder)
	} else {
		log.Println("⚠️  Enrichment disabled (ENABLE_ENRICHMENT=false)")
	}

	// Set Gin mode
	if cfg.Environment == environmentProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(cfg, GetVersion(), st, az, pg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Starting mapof-analysis on port %s", port)
	if err := router.Run(":" + port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
