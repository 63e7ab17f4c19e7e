package job

import "context"

// Repo defines persistence operations for run tracking.
type Repo interface {
	// CreateJob records a new run and returns its id.
	CreateJob(ctx context.Context, totalRows int) (string, error)

	// Advance marks a row processed within a job. Advancing the same row
	// twice is a no-op for the counter.
	Advance(ctx context.Context, jobID, rowID string) error

	// Complete stamps the job's completion time. Calling it again
	// overwrites the stamp, which is harmless.
	Complete(ctx context.Context, jobID string) error

	// Get returns the job, or ErrNotFound.
	Get(ctx context.Context, jobID string) (ProcessJob, error)
}
