package metadata

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for tests and local development.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time

	// UpsertErr, when set, is returned by Upsert to simulate storage failure.
	UpsertErr error
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

func (r *MemoryRepo) LookupMany(ctx context.Context, keys []string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	found := make(map[string]struct{})
	for _, key := range keys {
		norm := NormalizeKey(key)
		if norm == "" {
			continue
		}
		if _, ok := r.entries[norm]; ok {
			found[norm] = struct{}{}
		}
	}
	return found, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, key, description, category string, isManual bool) error {
	if r.UpsertErr != nil {
		return r.UpsertErr
	}
	norm := NormalizeKey(key)
	if norm == "" {
		return ErrBlankKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.entries[norm]
	r.entries[norm] = Entry{
		Key:              norm,
		Description:      description,
		Category:         category,
		IsManuallyEdited: prev.IsManuallyEdited || isManual,
		EnrichedAt:       r.now().UTC(),
	}
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, key string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[NormalizeKey(key)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (r *MemoryRepo) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]Entry)
	return nil
}

// Len reports the number of cached entries.
func (r *MemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var _ Repo = (*MemoryRepo)(nil)
