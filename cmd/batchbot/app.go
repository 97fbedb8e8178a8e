package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
	"github.com/noah-isme/batch-extractor-bot/internal/repository"
	"github.com/noah-isme/batch-extractor-bot/internal/service"
	"github.com/noah-isme/batch-extractor-bot/pkg/config"
	"github.com/noah-isme/batch-extractor-bot/pkg/courseapi"
	"github.com/noah-isme/batch-extractor-bot/pkg/storage"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *service.MetricsService
	catalog   *repository.CatalogRepository
	client    *courseapi.Client
	summaries *service.SummaryService
	exports   *service.ExportService
	format    models.ExportFormat
}

func newApp(cfg *config.Config, logr *zap.Logger) (*app, error) {
	catalog, err := repository.LoadCatalogFile(cfg.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.Catalog.File, err)
	}
	logr.Info("catalog loaded", zap.String("file", cfg.Catalog.File), zap.Int("batches", catalog.Len()))

	format, err := models.ParseExportFormat(cfg.Exports.DefaultFormat)
	if err != nil {
		return nil, fmt.Errorf("EXPORTS_DEFAULT_FORMAT: %w", err)
	}

	metrics := service.NewMetricsService()
	client := courseapi.NewClient(courseapi.Options{
		BaseURL:            cfg.CourseAPI.BaseURL,
		Timeout:            cfg.CourseAPI.Timeout,
		UserAgent:          cfg.CourseAPI.UserAgent,
		RequestsPerSecond:  cfg.CourseAPI.RequestsPerSecond,
		ResolveConcurrency: cfg.CourseAPI.ResolveConcurrency,
		MaxRetries:         cfg.CourseAPI.MaxRetries,
		Headers:            cfg.CourseAPI.Headers,
		Logger:             logr.Named("courseapi"),
		Observer:           metrics,
	})

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	summaries := service.NewSummaryService(client, nil, service.SummaryConfig{FreshnessWindow: cfg.Chat.FreshnessWindow}, logr.Named("summary"))
	exports := service.NewExportService(client, store, signer, service.ExportConfig{
		APIPrefix:     cfg.APIPrefix,
		PublicBaseURL: cfg.Exports.PublicBaseURL,
		Concurrency:   cfg.Exports.Concurrency,
		ResultTTL:     cfg.Exports.SignedURLTTL,
	}, metrics, logr.Named("export"))

	return &app{
		cfg:       cfg,
		logger:    logr,
		metrics:   metrics,
		catalog:   catalog,
		client:    client,
		summaries: summaries,
		exports:   exports,
		format:    format,
	}, nil
}

// lookupBatch resolves a catalog id for the one-shot commands.
func (a *app) lookupBatch(id string) (models.BatchRecord, error) {
	record, ok := a.catalog.Get(id)
	if !ok {
		return models.BatchRecord{}, fmt.Errorf("batch %q is not in the catalog", id)
	}
	return record, nil
}
