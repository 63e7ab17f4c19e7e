package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"partsync-backend/internal/enrich"
	"partsync-backend/internal/job"
	"partsync-backend/internal/llm"
	"partsync-backend/internal/metadata"
	"partsync-backend/internal/parts"
	"partsync-backend/internal/remote"
)

type fakeLLM struct{}

func (f *fakeLLM) Classify(ctx context.Context, in llm.ClassifyInput) (llm.ClassifyResult, error) {
	items := make([]map[string]any, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, map[string]any{
			"key":         it.Key,
			"description": "desc for " + it.Key,
			"category":    "hardware",
		})
	}
	body, err := json.Marshal(items)
	if err != nil {
		return llm.ClassifyResult{}, err
	}
	return llm.ClassifyResult{Content: string(body), Model: "test"}, nil
}

type patchCall struct {
	purchase float64
	sales    float64
}

type fakeRemoteClient struct {
	logins   int
	existing map[string]remote.Record
	created  []remote.Record
	patched  map[string]patchCall

	createErr map[string]error
	fetchErr  map[string]error
	patchErr  map[string]error
	expireOne bool
}

func newFakeRemoteClient() *fakeRemoteClient {
	return &fakeRemoteClient{
		existing: make(map[string]remote.Record),
		patched:  make(map[string]patchCall),
	}
}

func (f *fakeRemoteClient) Login(ctx context.Context) error {
	f.logins++
	return nil
}

func (f *fakeRemoteClient) Create(ctx context.Context, rec remote.Record) (remote.CreateOutcome, error) {
	if f.expireOne {
		f.expireOne = false
		return remote.OutcomeFailed, fmt.Errorf("create: %w", remote.ErrSessionExpired)
	}
	if err := f.createErr[rec.ExternalKey]; err != nil {
		return remote.OutcomeFailed, err
	}
	if _, ok := f.existing[rec.ExternalKey]; ok {
		return remote.OutcomeExists, nil
	}
	f.existing[rec.ExternalKey] = rec
	f.created = append(f.created, rec)
	return remote.OutcomeCreated, nil
}

func (f *fakeRemoteClient) FetchExisting(ctx context.Context, key string) (remote.Record, error) {
	if err := f.fetchErr[key]; err != nil {
		return remote.Record{}, err
	}
	rec, ok := f.existing[key]
	if !ok {
		return remote.Record{}, remote.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRemoteClient) Patch(ctx context.Context, key string, purchasePrice, salesPrice float64) error {
	if err := f.patchErr[key]; err != nil {
		return err
	}
	f.patched[key] = patchCall{purchase: purchasePrice, sales: salesPrice}
	return nil
}

func newTestService(t *testing.T, client RemoteClient) (*Service, *parts.MemoryRepo, *job.MemoryRepo, *metadata.MemoryRepo) {
	t.Helper()
	partsRepo := parts.NewMemoryRepo()
	jobs := job.NewMemoryRepo()
	cache := metadata.NewMemoryRepo()
	enricher := enrich.NewService(cache, &fakeLLM{})
	return NewService(partsRepo, cache, enricher, client, jobs), partsRepo, jobs, cache
}

func insertRows(t *testing.T, repo *parts.MemoryRepo, jobType string, keys ...string) {
	t.Helper()
	for i, key := range keys {
		err := repo.Insert(context.Background(), parts.Part{
			ID:            fmt.Sprintf("row-%d", i+1),
			ExternalKey:   key,
			DisplayName:   "Part " + key,
			Unit:          "pcs",
			PurchasePrice: 10,
			JobType:       jobType,
		})
		if err != nil {
			t.Fatalf("insert %q: %v", key, err)
		}
	}
}

func baseConfig() RunConfig {
	return RunConfig{
		JobType:       "parts",
		MarginPercent: 20,
		DefaultUnit:   "pcs",
		Categories:    []string{"hardware", "consumable"},
	}
}

func TestRunCreatesRowsAndCompletesJob(t *testing.T) {
	client := newFakeRemoteClient()
	svc, partsRepo, jobs, _ := newTestService(t, client)
	insertRows(t, partsRepo, "parts", "ab-100", "ab-200", "ab-300")

	sum, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Created != 3 || sum.SuccessCount() != 3 || sum.FailureCount() != 0 {
		t.Fatalf("summary = created %d success %d failure %d, want 3/3/0",
			sum.Created, sum.SuccessCount(), sum.FailureCount())
	}
	if client.logins != 1 {
		t.Fatalf("logins = %d, want 1", client.logins)
	}
	for _, rec := range client.created {
		if rec.Category != "hardware" {
			t.Fatalf("record %q category = %q, want enriched category", rec.ExternalKey, rec.Category)
		}
		if rec.SalesPrice != 12 {
			t.Fatalf("record %q sales price = %v, want 12 (20%% over 10)", rec.ExternalKey, rec.SalesPrice)
		}
	}

	j, err := jobs.Get(context.Background(), sum.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if j.TotalRows != 3 || j.ProcessedRows != 3 {
		t.Fatalf("job rows = %d/%d, want 3/3", j.ProcessedRows, j.TotalRows)
	}
	if j.CompletedAt == nil {
		t.Fatal("job not completed")
	}

	pending, err := partsRepo.ListPending(context.Background(), "parts")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after run = %d, want 0", len(pending))
	}
}

func TestRunPatchesSelectedConflicts(t *testing.T) {
	client := newFakeRemoteClient()
	client.existing["ab-100"] = remote.Record{
		ExternalKey:   "ab-100",
		DisplayName:   "Old name",
		PurchasePrice: 8,
		SalesPrice:    9.6,
	}
	svc, partsRepo, jobs, _ := newTestService(t, client)
	insertRows(t, partsRepo, "parts", "ab-100")

	cfg := baseConfig()
	cfg.SelectConflicts = SelectAllConflicts

	sum, err := svc.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.ConflictCount != 1 || sum.Patched != 1 || len(sum.Unresolved) != 0 {
		t.Fatalf("conflicts %d patched %d unresolved %d, want 1/1/0",
			sum.ConflictCount, sum.Patched, len(sum.Unresolved))
	}
	if sum.SuccessCount() != 1 || sum.FailureCount() != 0 {
		t.Fatalf("success %d failure %d, want 1/0", sum.SuccessCount(), sum.FailureCount())
	}

	call, ok := client.patched["ab-100"]
	if !ok {
		t.Fatal("conflict was not patched")
	}
	if call.purchase != 10 || call.sales != 12 {
		t.Fatalf("patched prices = %v/%v, want 10/12", call.purchase, call.sales)
	}

	j, _ := jobs.Get(context.Background(), sum.JobID)
	if j.ProcessedRows != 1 {
		t.Fatalf("job processed = %d, want 1", j.ProcessedRows)
	}
	if row, _ := partsRepo.Get("row-1"); !row.Processed {
		t.Fatal("patched row should be marked processed")
	}
}

func TestRunLeavesUnselectedConflictsPending(t *testing.T) {
	client := newFakeRemoteClient()
	client.existing["ab-100"] = remote.Record{ExternalKey: "ab-100", PurchasePrice: 8}
	svc, partsRepo, jobs, _ := newTestService(t, client)
	insertRows(t, partsRepo, "parts", "ab-100")

	sum, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.ConflictCount != 1 || sum.Patched != 0 || len(sum.Unresolved) != 1 {
		t.Fatalf("conflicts %d patched %d unresolved %d, want 1/0/1",
			sum.ConflictCount, sum.Patched, len(sum.Unresolved))
	}
	if sum.FailureCount() != 1 {
		t.Fatalf("failure count = %d, want 1", sum.FailureCount())
	}

	// The row is not advanced and not processed: the next run picks it up.
	j, _ := jobs.Get(context.Background(), sum.JobID)
	if j.ProcessedRows != 0 {
		t.Fatalf("job processed = %d, want 0", j.ProcessedRows)
	}
	if row, _ := partsRepo.Get("row-1"); row.Processed {
		t.Fatal("conflicted row must stay pending")
	}

	rerun, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if rerun.TotalRows != 1 || rerun.ConflictCount != 1 {
		t.Fatalf("rerun rows %d conflicts %d, want 1/1", rerun.TotalRows, rerun.ConflictCount)
	}
	if row, _ := partsRepo.Get("row-1"); row.RunCount != 2 {
		t.Fatalf("run count = %d, want 2", row.RunCount)
	}
}

func TestRunRowFailureDoesNotAbortRun(t *testing.T) {
	client := newFakeRemoteClient()
	client.createErr = map[string]error{"ab-200": errors.New("remote 500")}
	svc, partsRepo, jobs, _ := newTestService(t, client)
	insertRows(t, partsRepo, "parts", "ab-100", "ab-200", "ab-300")

	sum, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Created != 2 || len(sum.Failed) != 1 {
		t.Fatalf("created %d failed %d, want 2/1", sum.Created, len(sum.Failed))
	}
	if sum.Failed[0].ExternalKey != "ab-200" {
		t.Fatalf("failed key = %q, want ab-200", sum.Failed[0].ExternalKey)
	}
	if sum.SuccessCount() != 2 || sum.FailureCount() != 1 {
		t.Fatalf("success %d failure %d, want 2/1", sum.SuccessCount(), sum.FailureCount())
	}

	// Failed rows still advance the job; they just stay unprocessed.
	j, _ := jobs.Get(context.Background(), sum.JobID)
	if j.ProcessedRows != 3 {
		t.Fatalf("job processed = %d, want 3", j.ProcessedRows)
	}
	if row, _ := partsRepo.Get("row-2"); row.Processed {
		t.Fatal("failed row must stay pending")
	}
}

func TestRunRecoversOnceFromExpiredSession(t *testing.T) {
	client := newFakeRemoteClient()
	client.expireOne = true
	svc, partsRepo, _, _ := newTestService(t, client)
	insertRows(t, partsRepo, "parts", "ab-100")

	sum, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if client.logins != 2 {
		t.Fatalf("logins = %d, want initial login plus one re-login", client.logins)
	}
	if sum.Created != 1 || len(sum.Failed) != 0 {
		t.Fatalf("created %d failed %d, want 1/0", sum.Created, len(sum.Failed))
	}
}

func TestRunDemotesUnreadableConflictToFailure(t *testing.T) {
	client := newFakeRemoteClient()
	client.existing["ab-100"] = remote.Record{ExternalKey: "ab-100"}
	client.fetchErr = map[string]error{"ab-100": errors.New("remote 500")}
	svc, partsRepo, jobs, _ := newTestService(t, client)
	insertRows(t, partsRepo, "parts", "ab-100")

	sum, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.ConflictCount != 0 || len(sum.Failed) != 1 {
		t.Fatalf("conflicts %d failed %d, want 0/1", sum.ConflictCount, len(sum.Failed))
	}
	j, _ := jobs.Get(context.Background(), sum.JobID)
	if j.ProcessedRows != 1 {
		t.Fatalf("job processed = %d, want 1", j.ProcessedRows)
	}
}

func TestRunFailedPatchStaysUnresolved(t *testing.T) {
	client := newFakeRemoteClient()
	client.existing["ab-100"] = remote.Record{ExternalKey: "ab-100", PurchasePrice: 8}
	client.patchErr = map[string]error{"ab-100": errors.New("remote 500")}
	svc, partsRepo, _, _ := newTestService(t, client)
	insertRows(t, partsRepo, "parts", "ab-100")

	cfg := baseConfig()
	cfg.SelectConflicts = SelectAllConflicts

	sum, err := svc.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Patched != 0 || len(sum.Unresolved) != 1 {
		t.Fatalf("patched %d unresolved %d, want 0/1", sum.Patched, len(sum.Unresolved))
	}
	if row, _ := partsRepo.Get("row-1"); row.Processed {
		t.Fatal("row with failed patch must stay pending")
	}
}

func TestRunEmptyJobCompletesWithoutLogin(t *testing.T) {
	client := newFakeRemoteClient()
	svc, _, jobs, _ := newTestService(t, client)

	sum, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.TotalRows != 0 || sum.SuccessCount() != 0 || sum.FailureCount() != 0 {
		t.Fatalf("summary not empty: %+v", sum)
	}
	if client.logins != 0 {
		t.Fatalf("logins = %d, want 0 for an empty run", client.logins)
	}
	j, _ := jobs.Get(context.Background(), sum.JobID)
	if j.CompletedAt == nil {
		t.Fatal("empty job should still complete")
	}
}

func TestRunUsesCachedDescriptionForBlankDisplayName(t *testing.T) {
	client := newFakeRemoteClient()
	svc, partsRepo, _, cache := newTestService(t, client)
	if err := cache.Upsert(context.Background(), "ab-100", "Hex bolt M8", "hardware", true); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	err := partsRepo.Insert(context.Background(), parts.Part{
		ID:            "row-1",
		ExternalKey:   "AB-100",
		PurchasePrice: 10,
		JobType:       "parts",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	sum, err := svc.Run(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("created = %d, want 1", sum.Created)
	}
	rec := client.created[0]
	if rec.DisplayName != "Hex bolt M8" {
		t.Fatalf("display name = %q, want cached description", rec.DisplayName)
	}
	if rec.UnitOfMeasure != "pcs" {
		t.Fatalf("unit = %q, want run default", rec.UnitOfMeasure)
	}
}
