package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
)

type subjectsStub map[string][]models.Subject

func (s subjectsStub) FetchSubjects(ctx context.Context, batchID string) []models.Subject {
	if subjects, ok := s[batchID]; ok {
		return subjects
	}
	return []models.Subject{}
}

type freshnessStub struct {
	at  time.Time
	err error
}

func (f freshnessStub) LastUpdate(ctx context.Context, batchID string) (time.Time, error) {
	return f.at, f.err
}

var fixedNow = time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)

func newSummaryServiceForTest(freshness FreshnessSource) *SummaryService {
	svc := NewSummaryService(subjectsStub{
		"1": {
			{ID: "101", Name: "Physics", VideosCount: 12, NotesCount: 4},
			{ID: "102", Name: "Maths", VideosCount: 3, NotesCount: 0},
		},
	}, freshness, SummaryConfig{}, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestBuildSummaryListsSubjects(t *testing.T) {
	svc := newSummaryServiceForTest(nil)
	summary, err := svc.BuildSummary(context.Background(), "1", "Physics Batch")
	require.NoError(t, err)

	want := "📘 Selected: Physics Batch\n" +
		"📅 Updated: 20 May 2024 — ✅ Ongoing\n\n" +
		"📚 Subjects: 2\n" +
		"➡️ Physics (12 videos, 4 notes)\n" +
		"➡️ Maths (3 videos, 0 notes)"
	assert.Equal(t, want, summary)
}

func TestBuildSummaryNoSubjects(t *testing.T) {
	svc := newSummaryServiceForTest(nil)
	summary, err := svc.BuildSummary(context.Background(), "404", "Ghost Batch")
	require.NoError(t, err)
	assert.Equal(t, "📘 Batch: Ghost Batch\nNo subjects found.", summary)
}

func TestBuildSummaryFreshnessWindow(t *testing.T) {
	stale := newSummaryServiceForTest(freshnessStub{at: fixedNow.Add(-31 * 24 * time.Hour)})
	summary, err := stale.BuildSummary(context.Background(), "1", "Physics Batch")
	require.NoError(t, err)
	assert.Contains(t, summary, "📅 Updated: 19 Apr 2024 — ❌ Inactive")

	recent := newSummaryServiceForTest(freshnessStub{at: fixedNow.Add(-29 * 24 * time.Hour)})
	summary, err = recent.BuildSummary(context.Background(), "1", "Physics Batch")
	require.NoError(t, err)
	assert.Contains(t, summary, "✅ Ongoing")

	failing := newSummaryServiceForTest(freshnessStub{err: errors.New("boom")})
	summary, err = failing.BuildSummary(context.Background(), "1", "Physics Batch")
	require.NoError(t, err)
	assert.Contains(t, summary, "20 May 2024 — ✅ Ongoing")
}

func TestBuildSummaryCancelled(t *testing.T) {
	svc := newSummaryServiceForTest(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.BuildSummary(ctx, "1", "Physics Batch")
	assert.ErrorIs(t, err, context.Canceled)
}
