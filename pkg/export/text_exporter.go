package export

import (
	"strings"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
)

// TextExporter renders the plain UTF-8 report delivered to chats.
type TextExporter struct{}

// NewTextExporter builds a text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// RenderReport writes the batch header followed by one block per subject.
// Within a subject, video blocks are separated by a blank line; subjects are
// separated by two.
func (e *TextExporter) RenderReport(report models.BatchReport) ([]byte, error) {
	var b strings.Builder
	b.WriteString("📘 Batch: ")
	b.WriteString(report.BatchName)
	b.WriteString("\n\n")

	blocks := make([]string, 0, len(report.Subjects))
	for _, subject := range report.Subjects {
		parts := make([]string, 0, len(subject.Videos)+1)
		parts = append(parts, "📂 Subject: "+subjectHeader(subject))
		for _, video := range subject.Videos {
			parts = append(parts, videoBlock(video))
		}
		blocks = append(blocks, strings.Join(parts, "\n\n"))
	}
	if len(blocks) > 0 {
		b.WriteString(strings.Join(blocks, "\n\n\n"))
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

func videoBlock(video models.VideoEntry) string {
	var b strings.Builder
	b.WriteString("🎥 ")
	b.WriteString(video.Title)
	b.WriteString(" (")
	b.WriteString(video.PublishedLabel())
	b.WriteString(")\n")
	b.WriteString(video.PlayableURL)
	for _, pdf := range video.PDFs {
		b.WriteString("\n📄 ")
		b.WriteString(pdf.Title)
		b.WriteString("\n")
		b.WriteString(pdf.URL)
	}
	return b.String()
}
