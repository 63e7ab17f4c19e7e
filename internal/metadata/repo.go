package metadata

import "context"

// Repo defines persistence operations for the enrichment cache.
//
// Keys are matched case-insensitively; blank or whitespace-only keys are
// ignored on lookup and rejected on write. Storage errors are always
// returned to the caller: a failed cache write must never pass as
// "enriched".
type Repo interface {
	// LookupMany reports which of the given keys already have a cached
	// entry. The returned set contains normalized keys.
	LookupMany(ctx context.Context, keys []string) (map[string]struct{}, error)

	// Upsert inserts or updates an entry. isManual is OR-combined with any
	// existing manual flag so automation can never clear a manual edit.
	// EnrichedAt is always refreshed.
	Upsert(ctx context.Context, key, description, category string, isManual bool) error

	// Get returns the cached entry for a key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Reset removes every cached entry. This is the only delete path.
	Reset(ctx context.Context) error
}
