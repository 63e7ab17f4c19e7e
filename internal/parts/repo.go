package parts

import "context"

// Repo defines persistence operations for input rows.
type Repo interface {
	// Insert adds a new input row.
	Insert(ctx context.Context, part Part) error

	// ListPending returns unprocessed rows for a job type in insertion order
	// and bumps each returned row's run counter.
	ListPending(ctx context.Context, jobType string) ([]Part, error)

	// MarkProcessed flags a row so later runs skip it. Only set once the
	// row's upsert resolved to created or patched, never on a bare conflict.
	MarkProcessed(ctx context.Context, id string) error
}
