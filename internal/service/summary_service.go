package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
)

const defaultFreshnessWindow = 30 * 24 * time.Hour

type subjectFetcher interface {
	FetchSubjects(ctx context.Context, batchID string) []models.Subject
}

// FreshnessSource reports when a batch last received new content.
type FreshnessSource interface {
	LastUpdate(ctx context.Context, batchID string) (time.Time, error)
}

// ClockFreshness reports the current instant for every batch. The course API
// exposes no update timestamp, so every batch renders as ongoing.
type ClockFreshness struct {
	Now func() time.Time
}

// LastUpdate implements FreshnessSource.
func (c ClockFreshness) LastUpdate(ctx context.Context, batchID string) (time.Time, error) {
	if c.Now == nil {
		return time.Now().UTC(), nil
	}
	return c.Now(), nil
}

// SummaryConfig tunes summary rendering.
type SummaryConfig struct {
	FreshnessWindow time.Duration
}

// SummaryService renders the short batch preview shown after a selection.
type SummaryService struct {
	subjects  subjectFetcher
	freshness FreshnessSource
	window    time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewSummaryService constructs a SummaryService. A nil freshness source falls back to ClockFreshness.
func NewSummaryService(subjects subjectFetcher, freshness FreshnessSource, cfg SummaryConfig, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = defaultFreshnessWindow
	}
	svc := &SummaryService{
		subjects: subjects,
		window:   cfg.FreshnessWindow,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	if freshness == nil {
		freshness = ClockFreshness{Now: func() time.Time { return svc.now() }}
	}
	svc.freshness = freshness
	return svc
}

// BuildSummary lists the batch's subjects with their video and note counts.
func (s *SummaryService) BuildSummary(ctx context.Context, batchID, batchName string) (string, error) {
	subjects := s.subjects.FetchSubjects(ctx, batchID)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(subjects) == 0 {
		return fmt.Sprintf("📘 Batch: %s\nNo subjects found.", batchName), nil
	}

	now := s.now()
	lastUpdate, err := s.freshness.LastUpdate(ctx, batchID)
	if err != nil {
		s.logger.Warn("freshness lookup failed, assuming now", zap.String("batch_id", batchID), zap.Error(err))
		lastUpdate = now
	}
	status := "❌ Inactive"
	if now.Sub(lastUpdate) < s.window {
		status = "✅ Ongoing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📘 Selected: %s\n", batchName)
	fmt.Fprintf(&b, "📅 Updated: %s — %s\n\n", lastUpdate.Format(models.DisplayDateLayout), status)
	fmt.Fprintf(&b, "📚 Subjects: %d\n", len(subjects))
	for _, subject := range subjects {
		fmt.Fprintf(&b, "➡️ %s (%d videos, %d notes)\n", subject.Name, subject.VideosCount, subject.NotesCount)
	}
	return strings.TrimSpace(b.String()), nil
}
