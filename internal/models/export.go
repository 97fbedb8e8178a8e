package models

import (
	"fmt"
	"strings"
	"time"
)

// ExportFormat identifies the report encoding.
type ExportFormat string

const (
	ExportFormatText ExportFormat = "txt"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
)

// ParseExportFormat normalises user input; empty input maps to text.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatText:
		return ExportFormatText, nil
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Extension returns the file suffix including the dot.
func (f ExportFormat) Extension() string {
	return "." + string(f)
}

// MimeType returns the content type used when serving the report.
func (f ExportFormat) MimeType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv; charset=utf-8"
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ExportResult describes a written report.
type ExportResult struct {
	ID           string       `json:"id"`
	BatchID      string       `json:"batch_id"`
	BatchName    string       `json:"batch_name"`
	Path         string       `json:"-"`
	RelativePath string       `json:"relative_path"`
	Filename     string       `json:"filename"`
	Format       ExportFormat `json:"format"`
	TotalEntries int          `json:"total_entries"`
	SubjectCount int          `json:"subject_count"`
	SizeBytes    int64        `json:"size_bytes"`
	Token        string       `json:"-"`
	URL          string       `json:"url,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
}
