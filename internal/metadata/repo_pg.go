package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// LookupMany returns the subset of keys that already have a cached entry.
func (r *PGRepo) LookupMany(ctx context.Context, keys []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})

	normalized := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		norm := NormalizeKey(key)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		normalized = append(normalized, norm)
	}
	if len(normalized) == 0 {
		return found, nil
	}

	placeholders := make([]string, len(normalized))
	args := make([]any, len(normalized))
	for i, key := range normalized {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = key
	}
	query := fmt.Sprintf(`SELECT key FROM part_metadata WHERE key IN (%s)`, strings.Join(placeholders, ", "))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		found[key] = struct{}{}
	}
	return found, rows.Err()
}

// Upsert inserts or updates an entry. The manual flag is OR-combined in SQL
// so a concurrent writer cannot clear it either.
func (r *PGRepo) Upsert(ctx context.Context, key, description, category string, isManual bool) error {
	norm := NormalizeKey(key)
	if norm == "" {
		return ErrBlankKey
	}
	const query = `
INSERT INTO part_metadata (key, description, category, is_manual, enriched_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE SET
    description = EXCLUDED.description,
    category    = EXCLUDED.category,
    is_manual   = part_metadata.is_manual OR EXCLUDED.is_manual,
    enriched_at = EXCLUDED.enriched_at`
	_, err := r.DB.ExecContext(ctx, query, norm, description, category, isManual, time.Now().UTC())
	return err
}

// Get returns the cached entry for a key, or ErrNotFound.
func (r *PGRepo) Get(ctx context.Context, key string) (Entry, error) {
	norm := NormalizeKey(key)
	if norm == "" {
		return Entry{}, ErrNotFound
	}
	const query = `
SELECT key, description, category, is_manual, enriched_at
FROM part_metadata
WHERE key = $1`
	var entry Entry
	err := r.DB.QueryRowContext(ctx, query, norm).Scan(
		&entry.Key,
		&entry.Description,
		&entry.Category,
		&entry.IsManuallyEdited,
		&entry.EnrichedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// Reset removes every cached entry.
func (r *PGRepo) Reset(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM part_metadata`)
	return err
}

var _ Repo = (*PGRepo)(nil)
