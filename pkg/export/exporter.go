package export

import (
	"fmt"
	"strings"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
)

// ReportRenderer turns an aggregated batch report into file bytes.
type ReportRenderer interface {
	RenderReport(report models.BatchReport) ([]byte, error)
}

// RendererFor returns the renderer registered for format.
func RendererFor(format models.ExportFormat) (ReportRenderer, error) {
	switch format {
	case models.ExportFormatText, "":
		return NewTextExporter(), nil
	case models.ExportFormatCSV:
		return NewCSVExporter(), nil
	case models.ExportFormatPDF:
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("no renderer for format %q", format)
	}
}

var unsafeFilenameChars = strings.NewReplacer(
	`\`, "_", "/", "_", "*", "_", "?", "_", ":", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename replaces every filesystem-unsafe character with an
// underscore. Applying it twice yields the same result as applying it once.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.Replace(name)
}

func subjectHeader(subject models.SubjectReport) string {
	return fmt.Sprintf("%s (%d videos, %d notes)",
		subject.DisplayName(), subject.Subject.VideosCount, subject.Subject.NotesCount)
}
