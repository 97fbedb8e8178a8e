package models

import "time"

// SessionKind tags which half of the selection flow a chat is in.
type SessionKind string

const (
	SessionKindResults  SessionKind = "results"
	SessionKindSelected SessionKind = "selected"
)

// Session is the per-chat selection state: either a list of search results
// awaiting an index, or a single selected batch awaiting /extract.
type Session struct {
	Kind      SessionKind   `json:"kind"`
	Results   []BatchRecord `json:"results,omitempty"`
	Selected  *BatchRecord  `json:"selected,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewResultsSession builds a session holding search results.
func NewResultsSession(results []BatchRecord, now time.Time) Session {
	copied := make([]BatchRecord, len(results))
	copy(copied, results)
	return Session{Kind: SessionKindResults, Results: copied, UpdatedAt: now}
}

// NewSelectedSession builds a session holding a committed selection.
func NewSelectedSession(record BatchRecord, now time.Time) Session {
	return Session{Kind: SessionKindSelected, Selected: &record, UpdatedAt: now}
}

// HasResults reports whether the session awaits an index selection.
func (s *Session) HasResults() bool {
	return s != nil && s.Kind == SessionKindResults
}

// HasSelection reports whether the session holds a selected batch.
func (s *Session) HasSelection() bool {
	return s != nil && s.Kind == SessionKindSelected && s.Selected != nil
}
