package job

import "time"

// ProcessJob tracks one pipeline run. ProcessedRows only ever grows, and
// advancing is keyed by row id so repeated advances for the same row cannot
// double-count.
type ProcessJob struct {
	ID            string
	TotalRows     int
	ProcessedRows int
	StartedAt     time.Time
	CompletedAt   *time.Time
}
