package models

import "time"

// AnalysisEvent is published after every analyzed image, success or not.
// ID is unique per event; AnalysisID repeats when a cached analysis is served.
type AnalysisEvent struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Status     string    `json:"status"`
	Category   string    `json:"category,omitempty"`
	Confidence int       `json:"confidence,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Model      string    `json:"model"`
	Cached     bool      `json:"cached"`
	DurationMS int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}
