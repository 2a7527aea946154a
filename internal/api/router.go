package api

import (
	"github.com/FmBlueSystem/mapof-analysis/internal/analyzer"
	"github.com/FmBlueSystem/mapof-analysis/internal/api/handlers"
	"github.com/FmBlueSystem/mapof-analysis/internal/api/middleware"
	"github.com/FmBlueSystem/mapof-analysis/internal/config"
	"github.com/FmBlueSystem/mapof-analysis/internal/playlist"
	"github.com/FmBlueSystem/mapof-analysis/internal/storage"
	"github.com/gin-gonic/gin"
)

// SetupRouter wires every HTTP endpoint to its handler, with the same
// middleware stack (recovery, Sentry, request tracking, CORS) and
// conditional auth the reference router used.
func SetupRouter(cfg *config.Config, version string, st *storage.Storage, az *analyzer.Analyzer, pg *playlist.Generator) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoverWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.RequestTracking())
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(st.DB())
	router.GET("/health", healthHandler.HealthCheck)

	metricsHandler := handlers.NewMetricsHandler(version)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	tracksHandler := handlers.NewTracksHandler(az, st)
	playlistsHandler := handlers.NewPlaylistsHandler(pg)

	v1 := router.Group("/api/v1")
	v1.Use(getAuthMiddleware(cfg))
	{
		v1.POST("/tracks/analyze", tracksHandler.Analyze)
		v1.POST("/tracks/batch-analyze", tracksHandler.BatchAnalyze)
		v1.GET("/tracks/:id/similar", tracksHandler.Similar)

		v1.POST("/playlists", playlistsHandler.Create)
	}

	return router
}

// getAuthMiddleware returns the appropriate auth middleware based on AUTH_MODE.
func getAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	switch cfg.AuthMode {
	case "gateway":
		return middleware.GatewayAuth()
	default:
		return middleware.NoAuth()
	}
}
