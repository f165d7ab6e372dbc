package handlers

import (
	"github.com/gin-gonic/gin"

	"spreadsheet-data-cleaner/internal/logger"
)

// RouterConfig holds the handlers the router mounts. A nil handler leaves its
// routes unregistered.
type RouterConfig struct {
	Log                *logger.Logger
	CORSAllowedOrigins []string

	CleaningHandler *CleaningHandler
	RunsHandler     *RunsHandler
	HealthHandler   *HealthHandler
}

// NewRouter builds the gin engine with logging, recovery and optional CORS
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Log))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(CORS(cfg.CORSAllowedOrigins))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/metrics", cfg.HealthHandler.Metrics)
		r.POST("/metrics/reset", cfg.HealthHandler.ResetMetrics)
	}

	// Upload, clean, download
	if cfg.CleaningHandler != nil {
		r.POST("/upload_template", cfg.CleaningHandler.UploadTemplate)
		r.POST("/upload_messy", cfg.CleaningHandler.UploadMessy)
		r.GET("/map_and_clean", cfg.CleaningHandler.MapAndClean)
		r.POST("/map_and_clean_async", cfg.CleaningHandler.MapAndCleanAsync)
		r.GET("/download_cleaned", cfg.CleaningHandler.DownloadCleaned)
		r.GET("/download_rejected", cfg.CleaningHandler.DownloadRejected)
	}

	// Run history
	if cfg.RunsHandler != nil {
		r.GET("/runs", cfg.RunsHandler.ListRuns)
		r.GET("/runs/:id", cfg.RunsHandler.GetRun)
	}

	return r
}
