package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"partsync-backend/internal/enrich"
	"partsync-backend/internal/job"
	"partsync-backend/internal/metadata"
	"partsync-backend/internal/parts"
	"partsync-backend/internal/remote"
	"partsync-backend/internal/shared/metrics"
	"partsync-backend/internal/shared/telemetry"
)

// Service drives one sync run end to end: list pending rows, enrich their
// metadata, upsert each row against the remote system in order, then patch
// the conflicts selected for update. Per-row remote failures never abort the
// run; only storage and context errors do.
type Service struct {
	Parts    parts.Repo
	Cache    metadata.Repo
	Enricher *enrich.Service
	Remote   RemoteClient
	Jobs     job.Repo

	// now is injected by tests.
	now func() time.Time
}

// NewService wires the pipeline from its collaborators.
func NewService(partsRepo parts.Repo, cache metadata.Repo, enricher *enrich.Service, client RemoteClient, jobs job.Repo) *Service {
	return &Service{
		Parts:    partsRepo,
		Cache:    cache,
		Enricher: enricher,
		Remote:   client,
		Jobs:     jobs,
	}
}

// Run executes one full pass over the pending rows of cfg.JobType.
func (s *Service) Run(ctx context.Context, cfg RunConfig) (Summary, error) {
	started := s.clock()

	rows, err := s.Parts.ListPending(ctx, cfg.JobType)
	if err != nil {
		return Summary{}, fmt.Errorf("list pending rows: %w", err)
	}

	jobID, err := s.Jobs.CreateJob(ctx, len(rows))
	if err != nil {
		return Summary{}, fmt.Errorf("create job: %w", err)
	}
	sum := Summary{JobID: jobID, TotalRows: len(rows)}

	telemetry.Info("run.started", map[string]any{
		"job_id":   jobID,
		"job_type": cfg.JobType,
		"rows":     len(rows),
	})

	if len(rows) > 0 {
		if err := s.Remote.Login(ctx); err != nil {
			return sum, fmt.Errorf("remote login: %w", err)
		}

		keys := make([]string, 0, len(rows))
		for _, row := range rows {
			keys = append(keys, row.ExternalKey)
		}
		enriched, err := s.Enricher.EnrichMissing(ctx, keys, enrich.Options{
			ContextHint: cfg.ContextHint,
			Categories:  cfg.Categories,
		})
		if err != nil {
			return sum, fmt.Errorf("enrich: %w", err)
		}
		sum.Enrichment = EnrichStats(enriched)
	}

	var conflicts []ConflictRecord
	reloggedIn := false
	for _, row := range rows {
		rec := s.buildRecord(ctx, row, cfg)

		outcome, err := s.Remote.Create(ctx, rec)
		if err != nil && errors.Is(err, remote.ErrSessionExpired) && !reloggedIn {
			// One re-login per run, then one retry of the row that hit it.
			reloggedIn = true
			if loginErr := s.Remote.Login(ctx); loginErr != nil {
				telemetry.Error("run.relogin.failed", map[string]any{
					"job_id": jobID,
					"error":  loginErr.Error(),
				})
			} else {
				outcome, err = s.Remote.Create(ctx, rec)
			}
		}

		switch {
		case err != nil:
			if ferr := s.failRow(ctx, jobID, row, &sum, err.Error()); ferr != nil {
				return sum, ferr
			}
		case outcome == remote.OutcomeCreated:
			if err := s.Parts.MarkProcessed(ctx, row.ID); err != nil {
				return sum, fmt.Errorf("mark processed %q: %w", row.ID, err)
			}
			if err := s.Jobs.Advance(ctx, jobID, row.ID); err != nil {
				return sum, fmt.Errorf("advance job: %w", err)
			}
			sum.Created++
			metrics.IncRecordsCreated()
		case outcome == remote.OutcomeExists:
			existing, err := s.Remote.FetchExisting(ctx, rec.ExternalKey)
			if err != nil {
				// A conflict we cannot inspect is a failure, not a conflict.
				if ferr := s.failRow(ctx, jobID, row, &sum, fmt.Sprintf("fetch existing: %v", err)); ferr != nil {
					return sum, ferr
				}
				continue
			}
			conflicts = append(conflicts, ConflictRecord{
				RowID:            row.ID,
				ExternalKey:      rec.ExternalKey,
				OldPurchasePrice: existing.PurchasePrice,
				OldSalesPrice:    existing.SalesPrice,
				NewPurchasePrice: rec.PurchasePrice,
				NewSalesPrice:    rec.SalesPrice,
			})
			metrics.IncRecordsConflict()
		}
	}
	sum.ConflictCount = len(conflicts)

	unresolved, patched, err := s.patchConflicts(ctx, jobID, conflicts, cfg)
	if err != nil {
		return sum, err
	}
	sum.Unresolved = unresolved
	sum.Patched = patched

	if err := s.Jobs.Complete(ctx, jobID); err != nil {
		return sum, fmt.Errorf("complete job: %w", err)
	}

	elapsed := s.clock().Sub(started)
	metrics.ObserveRunDurationMs(float64(elapsed.Milliseconds()))
	telemetry.Info("run.summary", map[string]any{
		"job_id":      jobID,
		"job_type":    cfg.JobType,
		"rows":        sum.TotalRows,
		"created":     sum.Created,
		"conflicts":   sum.ConflictCount,
		"patched":     sum.Patched,
		"failed":      len(sum.Failed),
		"success":     sum.SuccessCount(),
		"failure":     sum.FailureCount(),
		"duration_ms": elapsed.Milliseconds(),
	})
	return sum, nil
}

// buildRecord merges an input row with its cached enrichment and the run's
// pricing policy into the record the remote system expects.
func (s *Service) buildRecord(ctx context.Context, row parts.Part, cfg RunConfig) remote.Record {
	rec := remote.Record{
		ExternalKey:   row.ExternalKey,
		DisplayName:   row.DisplayName,
		UnitOfMeasure: row.Unit,
		PurchasePrice: row.PurchasePrice,
		SalesPrice:    salesPrice(row.PurchasePrice, cfg.MarginPercent),
	}
	if rec.UnitOfMeasure == "" {
		rec.UnitOfMeasure = cfg.DefaultUnit
	}

	entry, err := s.Cache.Get(ctx, row.ExternalKey)
	if err != nil {
		// Not cached (batch dropped, provider down): the row still ships,
		// just without enrichment.
		return rec
	}
	rec.Category = entry.Category
	if rec.DisplayName == "" {
		rec.DisplayName = entry.Description
	}
	return rec
}

// patchConflicts runs the post-pass patch phase. Patch failures leave the
// conflict unresolved; they never abort the run.
func (s *Service) patchConflicts(ctx context.Context, jobID string, conflicts []ConflictRecord, cfg RunConfig) ([]ConflictRecord, int, error) {
	if len(conflicts) == 0 {
		return nil, 0, nil
	}

	selected := make(map[string]bool, len(conflicts))
	if cfg.SelectConflicts != nil {
		for _, c := range cfg.SelectConflicts(conflicts) {
			if c.SelectedForPatch {
				selected[c.ExternalKey] = true
			}
		}
	}

	var unresolved []ConflictRecord
	patched := 0
	for _, c := range conflicts {
		if !selected[c.ExternalKey] {
			unresolved = append(unresolved, c)
			continue
		}
		if err := s.Remote.Patch(ctx, c.ExternalKey, c.NewPurchasePrice, c.NewSalesPrice); err != nil {
			telemetry.Error("run.patch.failed", map[string]any{
				"job_id": jobID,
				"key":    c.ExternalKey,
				"error":  err.Error(),
			})
			unresolved = append(unresolved, c)
			continue
		}
		if err := s.Parts.MarkProcessed(ctx, c.RowID); err != nil {
			return unresolved, patched, fmt.Errorf("mark processed %q: %w", c.RowID, err)
		}
		if err := s.Jobs.Advance(ctx, jobID, c.RowID); err != nil {
			return unresolved, patched, fmt.Errorf("advance job: %w", err)
		}
		patched++
		metrics.IncRecordsPatched()
	}
	return unresolved, patched, nil
}

// failRow records a hard failure and advances the job so the run keeps going.
// The row stays unprocessed for the next run.
func (s *Service) failRow(ctx context.Context, jobID string, row parts.Part, sum *Summary, reason string) error {
	sum.Failed = append(sum.Failed, RowFailure{
		RowID:       row.ID,
		ExternalKey: row.ExternalKey,
		Reason:      reason,
	})
	metrics.IncRecordsFailed()
	telemetry.Error("run.row.failed", map[string]any{
		"job_id": jobID,
		"key":    row.ExternalKey,
		"error":  reason,
	})
	if err := s.Jobs.Advance(ctx, jobID, row.ID); err != nil {
		return fmt.Errorf("advance job: %w", err)
	}
	return nil
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// salesPrice derives the sales price from the purchase price and margin,
// rounded to cents.
func salesPrice(purchase, marginPercent float64) float64 {
	return math.Round(purchase*(1+marginPercent/100)*100) / 100
}
