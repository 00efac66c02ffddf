package models

import "time"

// IngestedDocument records one course document that was indexed, keyed
// by its content hash for dedupe across restarts.
type IngestedDocument struct {
	ContentHash string
	FileName    string
	CourseTitle string
	LessonCount int
	ChunkCount  int
	CreatedAt   time.Time
}

// QueryRecord is one answered query, kept for the history endpoint and
// offline analysis.
type QueryRecord struct {
	ID        string
	SessionID string
	QueryText string
	Answer    string
	ToolUsed  bool
	LatencyMS int
	CreatedAt time.Time
}

// QuerySource is one provenance row attached to a query record.
type QuerySource struct {
	ID           int
	QueryID      string
	CourseTitle  string
	LessonNumber *int
	Link         string
}
