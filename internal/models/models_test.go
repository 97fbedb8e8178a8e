package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExportFormat(t *testing.T) {
	cases := map[string]ExportFormat{"": ExportFormatText, "TXT": ExportFormatText, " csv ": ExportFormatCSV, "pdf": ExportFormatPDF}
	for raw, want := range cases {
		got, err := ParseExportFormat(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParseExportFormat("docx")
	assert.Error(t, err)
	assert.Equal(t, ".csv", ExportFormatCSV.Extension())
}

func TestBatchReportTotalEntries(t *testing.T) {
	report := BatchReport{Subjects: []SubjectReport{
		{Videos: []VideoEntry{{ID: "1", PDFs: []PDFLink{{URL: "a"}, {URL: "b"}}}, {ID: "2"}}},
		{},
		{Videos: []VideoEntry{{ID: "3"}}},
	}}
	assert.Equal(t, 3, report.TotalEntries())
}

func TestVideoEntryPublishedLabel(t *testing.T) {
	published := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "05 Mar 2024", VideoEntry{PublishedAt: &published}.PublishedLabel())
	assert.Equal(t, UnknownDate, VideoEntry{}.PublishedLabel())
}

func TestSessionKinds(t *testing.T) {
	now := time.Now()
	results := []BatchRecord{{ID: "1", Title: "Physics Batch"}}
	session := NewResultsSession(results, now)
	results[0].Title = "mutated"

	assert.True(t, session.HasResults())
	assert.False(t, session.HasSelection())
	assert.Equal(t, "Physics Batch", session.Results[0].Title)

	selected := NewSelectedSession(BatchRecord{ID: "1", Title: "Physics Batch"}, now)
	assert.True(t, selected.HasSelection())
	assert.Nil(t, selected.Results)

	var missing *Session
	assert.False(t, missing.HasResults())
}

func TestSubjectReportDisplayName(t *testing.T) {
	assert.Equal(t, "Lesson", SubjectReport{Subject: Subject{Name: "Subject"}, LessonName: "Lesson"}.DisplayName())
	assert.Equal(t, "Subject", SubjectReport{Subject: Subject{Name: "Subject"}}.DisplayName())
}
