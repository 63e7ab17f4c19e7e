package job

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateJob records a new run.
func (r *PGRepo) CreateJob(ctx context.Context, totalRows int) (string, error) {
	id := uuid.NewString()
	const query = `
INSERT INTO process_jobs (id, total_rows, processed_rows, started_at)
VALUES ($1, $2, 0, $3)`
	if _, err := r.DB.ExecContext(ctx, query, id, totalRows, time.Now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

// Advance inserts the (job, row) pair and bumps the counter only when the
// pair is new, so duplicate advances cannot double-count.
func (r *PGRepo) Advance(ctx context.Context, jobID, rowID string) error {
	const insertRow = `
INSERT INTO process_job_rows (job_id, row_id, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (job_id, row_id) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, insertRow, jobID, rowID, time.Now().UTC())
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}
	_, err = r.DB.ExecContext(ctx, `UPDATE process_jobs SET processed_rows = processed_rows + 1 WHERE id = $1`, jobID)
	return err
}

// Complete stamps the completion time.
func (r *PGRepo) Complete(ctx context.Context, jobID string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE process_jobs SET completed_at = $1 WHERE id = $2`, time.Now().UTC(), jobID)
	return err
}

// Get returns a job by id.
func (r *PGRepo) Get(ctx context.Context, jobID string) (ProcessJob, error) {
	const query = `
SELECT id, total_rows, processed_rows, started_at, completed_at
FROM process_jobs
WHERE id = $1`
	var j ProcessJob
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, jobID).Scan(
		&j.ID,
		&j.TotalRows,
		&j.ProcessedRows,
		&j.StartedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProcessJob{}, ErrNotFound
		}
		return ProcessJob{}, err
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return j, nil
}

var _ Repo = (*PGRepo)(nil)
