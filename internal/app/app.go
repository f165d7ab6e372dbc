// Package app wires configuration, clients and the cleaning pipeline shared
// by every binary.
package app

import (
	"context"
	"errors"
	"fmt"

	"spreadsheet-data-cleaner/internal/config"
	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
	"spreadsheet-data-cleaner/internal/services"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Gateway  *services.OpenAIClient
	Store    *services.SpreadsheetStore
	Metrics  *services.CleaningMetrics
	Archive  *services.S3Client
	History  *services.RunHistoryStore
	Pipeline *services.CleaningPipeline
}

// New builds the shared services. S3 and DynamoDB are optional: when they are
// not configured the pipeline runs without archiving or history.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if !cfg.LLMConfigured() {
		return nil, fmt.Errorf("language model credentials are not configured")
	}

	gateway, err := services.NewOpenAIClient(services.OpenAIConfigFromConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("init language model client: %w", err)
	}
	log.Info("Language model client ready", "model", gateway.GetModel(), "azure", cfg.UseAzure())

	a := &App{
		Log:     log,
		Cfg:     cfg,
		Gateway: gateway,
		Store:   services.NewSpreadsheetStore(),
		Metrics: services.NewCleaningMetrics(log),
	}

	a.Archive, err = services.NewS3ClientWithConfig(ctx, services.S3Config{
		BucketName: cfg.S3Bucket,
		Region:     cfg.AWSRegion,
	})
	if err := optional(log, "S3 archive", err); err != nil {
		return nil, err
	}

	a.History, err = services.NewRunHistoryStoreFromConfig(ctx, cfg.RunsTable, cfg.AWSRegion)
	if err := optional(log, "run history", err); err != nil {
		return nil, err
	}

	a.Pipeline, err = services.NewCleaningPipeline(gateway, a.Store, services.PipelineOptions{
		SparsityThreshold: cfg.SparsityThreshold,
		PreviewRows:       cfg.PreviewRows,
		Archive:           a.Archive,
		History:           a.History,
		Metrics:           a.Metrics,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	return a, nil
}

// NewDispatcher builds the async dispatcher, or returns nil when async
// cleaning is not configured
func (a *App) NewDispatcher(ctx context.Context) (*services.AsyncDispatcher, error) {
	dispatcher, err := services.NewAsyncDispatcherFromConfig(ctx, a.Cfg.CleaningFunctionName, a.Cfg.AWSRegion, a.Archive, a.Log)
	if err := optional(a.Log, "async cleaning", err); err != nil {
		return nil, err
	}
	return dispatcher, nil
}

func (a *App) Close() {
	a.Log.Sync()
}

// optional swallows ErrNotConfigured so a backend can be left out
func optional(log *logger.Logger, name string, err error) error {
	switch {
	case err == nil:
		log.Info("Backend enabled", "backend", name)
		return nil
	case errors.Is(err, models.ErrNotConfigured):
		log.Info("Backend disabled", "backend", name, "reason", err.Error())
		return nil
	default:
		return fmt.Errorf("init %s: %w", name, err)
	}
}
