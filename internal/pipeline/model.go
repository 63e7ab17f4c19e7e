package pipeline

import (
	"context"

	"partsync-backend/internal/remote"
)

// RemoteClient is the subset of the remote upsert client the pipeline uses.
type RemoteClient interface {
	Login(ctx context.Context) error
	Create(ctx context.Context, rec remote.Record) (remote.CreateOutcome, error)
	FetchExisting(ctx context.Context, key string) (remote.Record, error)
	Patch(ctx context.Context, key string, purchasePrice, salesPrice float64) error
}

// ConflictRecord captures a create attempt that found an existing remote
// record. It lives only for the duration of a run: a successful patch
// resolves it, anything else leaves it in the end-of-run summary.
type ConflictRecord struct {
	RowID            string
	ExternalKey      string
	OldPurchasePrice float64
	OldSalesPrice    float64
	NewPurchasePrice float64
	NewSalesPrice    float64
	SelectedForPatch bool
}

// RowFailure records one row that could not be upserted.
type RowFailure struct {
	RowID       string
	ExternalKey string
	Reason      string
}

// RunConfig carries everything a run needs explicitly; nothing is read from
// ambient globals.
type RunConfig struct {
	JobType       string
	MarginPercent float64
	DefaultUnit   string
	ContextHint   string
	Categories    []string

	// SelectConflicts decides which conflicts get patched after the main
	// pass. Nil selects none.
	SelectConflicts func(conflicts []ConflictRecord) []ConflictRecord
}

// Summary is the end-of-run report.
type Summary struct {
	JobID         string
	TotalRows     int
	Created       int
	Patched       int
	ConflictCount int
	Unresolved    []ConflictRecord
	Failed        []RowFailure
	Enrichment    EnrichStats
}

// EnrichStats mirrors the enrichment result for reporting.
type EnrichStats struct {
	Requested      int
	Cached         int
	Submitted      int
	Applied        int
	Calls          int
	DroppedBatches int
	FailedBatches  int
}

// SuccessCount is the number of rows that reached the remote system.
func (s Summary) SuccessCount() int {
	return s.Created + s.Patched
}

// FailureCount is the number of rows that did not: hard failures plus
// conflicts left unpatched.
func (s Summary) FailureCount() int {
	return len(s.Failed) + s.ConflictCount - s.Patched
}

// SelectAllConflicts is a RunConfig.SelectConflicts that patches everything.
func SelectAllConflicts(conflicts []ConflictRecord) []ConflictRecord {
	out := make([]ConflictRecord, len(conflicts))
	copy(out, conflicts)
	for i := range out {
		out[i].SelectedForPatch = true
	}
	return out
}
