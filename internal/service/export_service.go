package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
	"github.com/noah-isme/batch-extractor-bot/pkg/export"
	"github.com/noah-isme/batch-extractor-bot/pkg/jobs"
	"github.com/noah-isme/batch-extractor-bot/pkg/storage"
)

// JobTypeDeleteReport removes a report file once it has been delivered.
const JobTypeDeleteReport = "report.delete"

// Delivery outcomes recorded in metrics.
const (
	DeliveryServed    = "served"
	DeliveryDeleted   = "deleted"
	DeliveryExpired   = "expired"
	DeliveryDeleteErr = "delete_failed"
)

type lessonFetcher interface {
	FetchSubjects(ctx context.Context, batchID string) []models.Subject
	FetchLessonVideos(ctx context.Context, classID string) (string, []models.VideoEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Stat(filename string) (os.FileInfo, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
	Path(filename string) string
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix     string
	PublicBaseURL string
	Concurrency   int
	ResultTTL     time.Duration
}

// ExportDownload is an opened report ready to stream.
type ExportDownload struct {
	File      *os.File
	RelPath   string
	Filename  string
	Format    models.ExportFormat
	Size      int64
	ExpiresAt time.Time
}

// ExportService aggregates a batch into a report and persists the rendered file.
type ExportService struct {
	client  lessonFetcher
	storage fileStorage
	signer  *storage.SignedURLSigner
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(client lessonFetcher, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = signer.TTL()
	}
	return &ExportService{
		client:  client,
		storage: store,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UseQueue routes post-delivery deletions through q instead of deleting inline.
func (s *ExportService) UseQueue(q jobEnqueuer) {
	s.queue = q
}

// BuildReport fetches the batch's subjects once and each subject's lesson
// once. Lessons may load concurrently but the report keeps classroom order.
// The first lesson failure cancels the rest and is returned.
func (s *ExportService) BuildReport(ctx context.Context, batchID, batchName string) (models.BatchReport, error) {
	subjects := s.client.FetchSubjects(ctx, batchID)
	reports := make([]models.SubjectReport, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, subject := range subjects {
		i, subject := i, subject
		g.Go(func() error {
			lessonName, videos, err := s.client.FetchLessonVideos(gctx, subject.ID)
			if err != nil {
				return err
			}
			reports[i] = models.SubjectReport{Subject: subject, LessonName: lessonName, Videos: videos}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.BatchReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.BatchReport{}, err
	}

	return models.BatchReport{
		BatchID:     batchID,
		BatchName:   batchName,
		GeneratedAt: s.now(),
		Subjects:    reports,
	}, nil
}

// ExportBatch renders the batch report, writes it to storage and signs a
// download link. Remote failures abort the export before anything is
// written and surface as ErrExportFailed.
func (s *ExportService) ExportBatch(ctx context.Context, batchID, batchName string, format models.ExportFormat) (*models.ExportResult, error) {
	if format == "" {
		format = models.ExportFormatText
	}
	start := time.Now()
	result, err := s.exportBatch(ctx, batchID, batchName, format)
	if err != nil {
		s.metrics.RecordExport(string(format), ExportOutcomeFailed, 0, time.Since(start))
		s.logger.Warn("batch export failed",
			zap.String("batch_id", batchID), zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordExport(string(format), ExportOutcomeSuccess, result.TotalEntries, time.Since(start))
	s.logger.Info("batch exported",
		zap.String("batch_id", batchID),
		zap.String("file", result.RelativePath),
		zap.Int("entries", result.TotalEntries),
		zap.Int("subjects", result.SubjectCount),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

func (s *ExportService) exportBatch(ctx context.Context, batchID, batchName string, format models.ExportFormat) (*models.ExportResult, error) {
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}

	report, err := s.BuildReport(ctx, batchID, batchName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrExportFailed.Code, appErrors.ErrExportFailed.Status, appErrors.ErrExportFailed.Message)
	}

	payload, err := renderer.RenderReport(report)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	relPath, err := s.storage.Save(ReportFilename(batchID, batchName, format), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	id := uuid.NewString()
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	return &models.ExportResult{
		ID:           id,
		BatchID:      batchID,
		BatchName:    batchName,
		Path:         s.storage.Path(relPath),
		RelativePath: relPath,
		Filename:     relPath,
		Format:       format,
		TotalEntries: report.TotalEntries(),
		SubjectCount: len(report.Subjects),
		SizeBytes:    int64(len(payload)),
		Token:        token,
		URL:          s.downloadURL(token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ReportFilename is the sanitized batch title plus the format extension. A
// title that sanitizes to nothing falls back to the batch id.
func ReportFilename(batchID, batchName string, format models.ExportFormat) string {
	base := strings.TrimSpace(export.SanitizeFilename(batchName))
	if base == "" || strings.Trim(base, ".") == "" {
		base = "batch_" + export.SanitizeFilename(batchID)
	}
	return base + format.Extension()
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s%s/exports/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), prefix, token)
}

// ResolveDownload validates token and opens the stored report.
func (s *ExportService) ResolveDownload(token string) (*ExportDownload, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	info, err := s.storage.Stat(grant.RelPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report is no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report")
	}
	file, err := s.storage.Open(grant.RelPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report")
	}
	format, err := models.ParseExportFormat(strings.TrimPrefix(filepath.Ext(grant.RelPath), "."))
	if err != nil {
		format = models.ExportFormatText
	}
	return &ExportDownload{
		File:      file,
		RelPath:   grant.RelPath,
		Filename:  filepath.Base(grant.RelPath),
		Format:    format,
		Size:      info.Size(),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Open returns a handle to a stored report.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored report.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// MarkDelivered schedules removal of a report that has been handed to the
// user. Without a queue, or when the queue refuses the job, the file is
// removed inline.
func (s *ExportService) MarkDelivered(relPath string) {
	s.metrics.RecordDelivery(DeliveryServed)
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeDeleteReport, Payload: relPath})
		if err == nil {
			return
		}
		s.logger.Warn("could not queue report deletion, deleting inline", zap.String("file", relPath), zap.Error(err))
	}
	if err := s.deleteDelivered(relPath); err != nil {
		s.logger.Error("failed to delete delivered report", zap.String("file", relPath), zap.Error(err))
	}
}

// HandleDeleteJob is the queue handler for JobTypeDeleteReport.
func (s *ExportService) HandleDeleteJob(ctx context.Context, job jobs.Job) error {
	relPath, ok := job.Payload.(string)
	if !ok || relPath == "" {
		return fmt.Errorf("delete job %s: payload must be a file name", job.ID)
	}
	return s.deleteDelivered(relPath)
}

func (s *ExportService) deleteDelivered(relPath string) error {
	if err := s.storage.Delete(relPath); err != nil {
		s.metrics.RecordDelivery(DeliveryDeleteErr)
		return err
	}
	s.metrics.RecordDelivery(DeliveryDeleted)
	return nil
}

// Cleanup removes reports older than ttl (defaults to the configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	for range removed {
		s.metrics.RecordDelivery(DeliveryExpired)
	}
	return removed, nil
}

// StartCleanup sweeps undelivered reports every interval until ctx is done.
func (s *ExportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Cleanup(0)
				if err != nil {
					s.logger.Warn("report cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("expired reports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}
