package models

import "time"

// UnknownDate is rendered for videos without a parseable publication timestamp.
const UnknownDate = "Unknown Date"

// DisplayDateLayout formats publication and update dates in chat replies and reports.
const DisplayDateLayout = "02 Jan 2006"

// BatchRecord is one catalog entry.
type BatchRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Subject is a classroom entry of a batch.
type Subject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NotesCount  int    `json:"notes"`
	VideosCount int    `json:"videos"`
}

// PDFLink is a note attached to a lesson video.
type PDFLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// VideoEntry is a lesson video whose playable URL has been resolved.
type VideoEntry struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	PublishedRaw string     `json:"published_raw,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	PlayableURL  string     `json:"playable_url"`
	PDFs         []PDFLink  `json:"pdfs,omitempty"`
}

// PublishedLabel returns the display date or the UnknownDate sentinel.
func (v VideoEntry) PublishedLabel() string {
	if v.PublishedAt == nil {
		return UnknownDate
	}
	return v.PublishedAt.Format(DisplayDateLayout)
}

// SubjectReport holds the resolved lesson of one subject.
type SubjectReport struct {
	Subject    Subject      `json:"subject"`
	LessonName string       `json:"lesson_name"`
	Videos     []VideoEntry `json:"videos"`
}

// DisplayName prefers the lesson name reported by the lesson endpoint.
func (s SubjectReport) DisplayName() string {
	if s.LessonName != "" {
		return s.LessonName
	}
	return s.Subject.Name
}

// BatchReport aggregates every subject of a batch in classroom order.
type BatchReport struct {
	BatchID     string          `json:"batch_id"`
	BatchName   string          `json:"batch_name"`
	GeneratedAt time.Time       `json:"generated_at"`
	Subjects    []SubjectReport `json:"subjects"`
}

// TotalEntries counts resolved videos across all subjects. PDFs are not counted.
func (r BatchReport) TotalEntries() int {
	total := 0
	for _, subject := range r.Subjects {
		total += len(subject.Videos)
	}
	return total
}
