package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Report columns shared by the CSV and PDF renderers.
const (
	ColumnSubject   = "Subject"
	ColumnKind      = "Kind"
	ColumnTitle     = "Title"
	ColumnPublished = "Published"
	ColumnURL       = "URL"
)

// ReportDataset flattens a report into one row per video and per PDF.
func ReportDataset(report models.BatchReport) Dataset {
	data := Dataset{Headers: []string{ColumnSubject, ColumnKind, ColumnTitle, ColumnPublished, ColumnURL}}
	for _, subject := range report.Subjects {
		name := subject.DisplayName()
		for _, video := range subject.Videos {
			data.Rows = append(data.Rows, map[string]string{
				ColumnSubject:   name,
				ColumnKind:      "video",
				ColumnTitle:     video.Title,
				ColumnPublished: video.PublishedLabel(),
				ColumnURL:       video.PlayableURL,
			})
			for _, pdf := range video.PDFs {
				data.Rows = append(data.Rows, map[string]string{
					ColumnSubject: name,
					ColumnKind:    "pdf",
					ColumnTitle:   pdf.Title,
					ColumnURL:     pdf.URL,
				})
			}
		}
	}
	return data
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// RenderReport renders the flattened report.
func (e *CSVExporter) RenderReport(report models.BatchReport) ([]byte, error) {
	return e.Render(ReportDataset(report))
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
