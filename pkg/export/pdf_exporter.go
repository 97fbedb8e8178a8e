package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
)

// PDFExporter renders a batch report as a paginated A4 document. Core fonts
// only cover cp1252, so headings use plain labels instead of emoji.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderReport lays out the batch title, then each subject with its videos and notes.
func (e *PDFExporter) RenderReport(report models.BatchReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr("Batch: "+report.BatchName), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	if len(report.Subjects) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 8, "No subjects found.", "", 1, "L", false, 0, "")
	}

	for _, subject := range report.Subjects {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		pdf.MultiCell(0, 7, tr("Subject: "+subjectHeader(subject)), "", "L", true)
		pdf.Ln(1)

		for _, video := range subject.Videos {
			pdf.SetFont("Arial", "", 10)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Video: %s (%s)", video.Title, video.PublishedLabel())), "", "L", false)
			pdf.SetFont("Arial", "", 8)
			pdf.SetTextColor(0, 0, 160)
			pdf.MultiCell(0, 4, tr(video.PlayableURL), "", "L", false)
			for _, note := range video.PDFs {
				pdf.SetFont("Arial", "", 9)
				pdf.SetTextColor(60, 60, 60)
				pdf.MultiCell(0, 5, tr("    Notes: "+note.Title), "", "L", false)
				pdf.SetFont("Arial", "", 8)
				pdf.SetTextColor(0, 0, 160)
				pdf.MultiCell(0, 4, tr("    "+note.URL), "", "L", false)
			}
			pdf.Ln(2)
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(3)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
