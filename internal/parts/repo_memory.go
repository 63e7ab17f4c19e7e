package parts

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repo for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	items   []Part
	lastSeq int64
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Insert(ctx context.Context, part Part) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeq++
	part.Seq = r.lastSeq
	r.items = append(r.items, part)
	return nil
}

func (r *MemoryRepo) ListPending(ctx context.Context, jobType string) ([]Part, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Part
	for i := range r.items {
		if r.items[i].JobType != jobType || r.items[i].Processed {
			continue
		}
		r.items[i].RunCount++
		out = append(out, r.items[i])
	}
	return out, nil
}

func (r *MemoryRepo) MarkProcessed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].Processed = true
			return nil
		}
	}
	return ErrNotFound
}

// Get returns a row by id, for test assertions.
func (r *MemoryRepo) Get(id string) (Part, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID == id {
			return p, true
		}
	}
	return Part{}, false
}

var _ Repo = (*MemoryRepo)(nil)
