package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repo for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	jobs map[string]*ProcessJob
	rows map[string]map[string]struct{}
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jobs: make(map[string]*ProcessJob),
		rows: make(map[string]map[string]struct{}),
		now:  time.Now,
	}
}

func (r *MemoryRepo) CreateJob(ctx context.Context, totalRows int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.jobs[id] = &ProcessJob{
		ID:        id,
		TotalRows: totalRows,
		StartedAt: r.now().UTC(),
	}
	r.rows[id] = make(map[string]struct{})
	return id, nil
}

func (r *MemoryRepo) Advance(ctx context.Context, jobID, rowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if _, done := r.rows[jobID][rowID]; done {
		return nil
	}
	r.rows[jobID][rowID] = struct{}{}
	j.ProcessedRows++
	return nil
}

func (r *MemoryRepo) Complete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	completed := r.now().UTC()
	j.CompletedAt = &completed
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, jobID string) (ProcessJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ProcessJob{}, ErrNotFound
	}
	return *j, nil
}

var _ Repo = (*MemoryRepo)(nil)
