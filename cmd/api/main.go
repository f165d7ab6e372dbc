package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"spreadsheet-data-cleaner/internal/app"
	"spreadsheet-data-cleaner/internal/config"
	"spreadsheet-data-cleaner/internal/handlers"
	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	if cfg.LogMode == "production" || cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize", "error", err)
	}
	defer application.Close()

	slots, err := services.NewFileSlots(cfg.UploadFolder)
	if err != nil {
		log.Fatal("Failed to prepare upload folder", "error", err)
	}

	dispatcher, err := application.NewDispatcher(ctx)
	if err != nil {
		log.Fatal("Failed to initialize async dispatcher", "error", err)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Log:                log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CleaningHandler:    handlers.NewCleaningHandler(log, slots, application.Pipeline, dispatcher, application.History),
		RunsHandler:        handlers.NewRunsHandler(log, application.History),
		HealthHandler:      handlers.NewHealthHandler(application.Metrics, application.Gateway),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Starting HTTP server", "addr", srv.Addr, "upload_folder", slots.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
}
