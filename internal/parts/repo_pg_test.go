package parts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoListPendingBumpsRunCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	earlier := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Minute)
	rows := sqlmock.NewRows([]string{
		"id", "seq", "external_key", "display_name", "unit", "purchase_price", "job_type", "processed", "run_count", "created_at",
	}).
		AddRow("p2", 2, "KEY-2", "Part two", "pcs", 2.0, "item_upsert", false, 2, later).
		AddRow("p1", 1, "KEY-1", "Part one", "pcs", 1.0, "item_upsert", false, 2, earlier)

	mock.ExpectQuery(`UPDATE parts SET run_count = run_count \+ 1`).
		WithArgs("item_upsert").
		WillReturnRows(rows)

	pending, err := repo.ListPending(context.Background(), "item_upsert")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d rows, want 2", len(pending))
	}
	if pending[0].ID != "p1" || pending[1].ID != "p2" {
		t.Fatalf("rows out of insertion order: %s, %s", pending[0].ID, pending[1].ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListPendingOrdersBySeqOnTiedTimestamps(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	// A bulk load inserts all rows in one transaction, so the created_at
	// default (now()) is identical for every row. Order must come from seq.
	loaded := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "seq", "external_key", "display_name", "unit", "purchase_price", "job_type", "processed", "run_count", "created_at",
	}).
		AddRow("p3", 3, "KEY-3", "Part three", "pcs", 3.0, "item_upsert", false, 1, loaded).
		AddRow("p1", 1, "KEY-1", "Part one", "pcs", 1.0, "item_upsert", false, 1, loaded).
		AddRow("p2", 2, "KEY-2", "Part two", "pcs", 2.0, "item_upsert", false, 1, loaded)

	mock.ExpectQuery(`UPDATE parts SET run_count = run_count \+ 1`).
		WithArgs("item_upsert").
		WillReturnRows(rows)

	pending, err := repo.ListPending(context.Background(), "item_upsert")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d rows, want 3", len(pending))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if pending[i].ID != want {
			t.Fatalf("row %d = %s, want %s", i, pending[i].ID, want)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkProcessedUnknownRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec(`UPDATE parts SET processed = TRUE`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkProcessed(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestMemoryRepoResumeSkipsProcessed(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	for _, p := range []Part{
		{ID: "p1", ExternalKey: "K1", JobType: "item_upsert"},
		{ID: "p2", ExternalKey: "K2", JobType: "item_upsert"},
		{ID: "p3", ExternalKey: "K3", JobType: "other"},
	} {
		if err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	pending, err := repo.ListPending(ctx, "item_upsert")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	if err := repo.MarkProcessed(ctx, "p1"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	pending, err = repo.ListPending(ctx, "item_upsert")
	if err != nil {
		t.Fatalf("ListPending rerun: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "p2" {
		t.Fatalf("rerun pending = %+v, want only p2", pending)
	}
	if pending[0].RunCount != 2 {
		t.Fatalf("run count = %d after two listings, want 2", pending[0].RunCount)
	}
}
