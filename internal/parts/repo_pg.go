package parts

import (
	"context"
	"database/sql"
	"sort"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Insert adds a new input row. The seq column is assigned by the database so
// input order survives bulk loads whose created_at timestamps tie.
func (r *PGRepo) Insert(ctx context.Context, part Part) error {
	const query = `
INSERT INTO parts (id, external_key, display_name, unit, purchase_price, job_type, processed, run_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.DB.ExecContext(
		ctx,
		query,
		part.ID,
		part.ExternalKey,
		part.DisplayName,
		part.Unit,
		part.PurchasePrice,
		part.JobType,
		part.Processed,
		part.RunCount,
		part.CreatedAt,
	)
	return err
}

// ListPending returns unprocessed rows for a job type in insertion order and
// bumps their run counter in the same statement.
func (r *PGRepo) ListPending(ctx context.Context, jobType string) ([]Part, error) {
	const query = `
UPDATE parts SET run_count = run_count + 1
WHERE job_type = $1 AND processed = FALSE
RETURNING id, seq, external_key, display_name, unit, purchase_price, job_type, processed, run_count, created_at`

	rows, err := r.DB.QueryContext(ctx, query, jobType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(
			&p.ID,
			&p.Seq,
			&p.ExternalKey,
			&p.DisplayName,
			&p.Unit,
			&p.PurchasePrice,
			&p.JobType,
			&p.Processed,
			&p.RunCount,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING order is not guaranteed for UPDATE; restore insertion order.
	sortBySeq(out)
	return out, nil
}

// MarkProcessed flags a row as done.
func (r *PGRepo) MarkProcessed(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE parts SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func sortBySeq(items []Part) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Seq < items[j].Seq
	})
}

var _ Repo = (*PGRepo)(nil)
