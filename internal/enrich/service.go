package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"partsync-backend/internal/llm"
	"partsync-backend/internal/metadata"
	"partsync-backend/internal/shared/metrics"
	"partsync-backend/internal/shared/telemetry"
)

const (
	defaultBatchSize = 20
	maxAttempts      = 3
)

// backoffDelays holds the fixed waits between rate-limited attempts.
var backoffDelays = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// Service groups uncached keys into bounded batches and drives them through
// the classification provider under the shared single-slot throttle.
type Service struct {
	Cache     metadata.Repo
	LLM       llm.Client
	Throttle  *Throttle
	BatchSize int

	// sleep is injected by tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService constructs an enrichment service using the shared throttle.
func NewService(cache metadata.Repo, client llm.Client) *Service {
	return &Service{
		Cache:     cache,
		LLM:       client,
		Throttle:  SharedThrottle,
		BatchSize: defaultBatchSize,
	}
}

// Options carries per-run classification inputs.
type Options struct {
	ContextHint string
	Categories  []string
}

// Result summarizes one EnrichMissing pass.
type Result struct {
	Requested      int // distinct non-blank input keys
	Cached         int // already present, never submitted
	Submitted      int // keys sent to the provider
	Applied        int // items written to the cache
	Calls          int // provider invocations, retries included
	DroppedBatches int // batches dropped on malformed responses
	FailedBatches  int // batches that failed after retry or without it
}

// EnrichMissing dedupes and trims the given keys, subtracts the cache, and
// submits the remainder in batches of at most BatchSize keys, in the order
// keys were first encountered. Malformed responses and provider failures are
// logged and reflected in the Result; only storage and context errors
// propagate.
func (s *Service) EnrichMissing(ctx context.Context, keys []string, opts Options) (Result, error) {
	var res Result

	distinct := dedupeKeys(keys)
	res.Requested = len(distinct)
	if len(distinct) == 0 {
		return res, nil
	}

	cached, err := s.Cache.LookupMany(ctx, distinct)
	if err != nil {
		return res, fmt.Errorf("cache lookup: %w", err)
	}
	res.Cached = len(cached)

	var missing []string
	for _, key := range distinct {
		if _, ok := cached[key]; !ok {
			missing = append(missing, key)
		}
	}
	res.Submitted = len(missing)

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		applied, err := s.callWithRetry(ctx, batch, opts, &res)
		switch {
		case err == nil:
			res.Applied += applied
		case errors.Is(err, ErrMalformedResponse):
			res.DroppedBatches++
			metrics.IncEnrichBatchesDropped()
			telemetry.Error("enrich.batch.dropped", map[string]any{
				"batch_size": len(batch),
				"error":      err.Error(),
			})
		case errors.Is(err, llm.ErrRateLimited), errors.Is(err, llm.ErrUnavailable):
			res.FailedBatches++
			telemetry.Error("enrich.batch.failed", map[string]any{
				"batch_size": len(batch),
				"error":      err.Error(),
			})
		default:
			// Storage or context failure: a dropped cache write must not
			// silently count as enriched.
			return res, err
		}
	}
	return res, nil
}

// callWithRetry holds the throttle slot for the whole attempt sequence and
// retries only rate-limited failures, waiting the fixed backoff between
// attempts. Any other failure aborts the batch immediately.
func (s *Service) callWithRetry(ctx context.Context, batch []string, opts Options, res *Result) (int, error) {
	throttle := s.Throttle
	if throttle == nil {
		throttle = SharedThrottle
	}
	if err := throttle.Acquire(ctx); err != nil {
		return 0, err
	}
	defer throttle.Release()

	items := make([]llm.BatchItem, 0, len(batch))
	for _, key := range batch {
		items = append(items, llm.BatchItem{Key: key, ContextHint: opts.ContextHint})
	}
	input := llm.ClassifyInput{Items: items, Categories: opts.Categories}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Calls++
		metrics.IncEnrichCalls()
		out, err := s.LLM.Classify(ctx, input)
		if err == nil {
			s.logUsage(out, len(batch))
			return s.parseAndApply(ctx, out.Content, batch)
		}
		lastErr = err
		if !errors.Is(err, llm.ErrRateLimited) || attempt == maxAttempts {
			return 0, lastErr
		}
		telemetry.Info("enrich.retry", map[string]any{
			"attempt":    attempt,
			"batch_size": len(batch),
			"delay_ms":   backoffDelays[attempt-1].Milliseconds(),
		})
		if err := s.wait(ctx, backoffDelays[attempt-1]); err != nil {
			return 0, err
		}
	}
	return 0, lastErr
}

type classifiedItem struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsManual    bool   `json:"isManual"`
}

// parseAndApply extracts the JSON array between the first '[' and the last
// ']' (the provider is prompted to return a bare array but may wrap it in
// prose) and writes every decoded item to the cache. A decode failure drops
// the whole batch: nothing is written.
func (s *Service) parseAndApply(ctx context.Context, content string, batch []string) (int, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return 0, fmt.Errorf("%w: no JSON array in content", ErrMalformedResponse)
	}

	var decoded []classifiedItem
	if err := json.Unmarshal([]byte(content[start:end+1]), &decoded); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	applied := 0
	for _, item := range decoded {
		if metadata.NormalizeKey(item.Key) == "" {
			continue
		}
		if err := s.Cache.Upsert(ctx, item.Key, item.Description, item.Category, item.IsManual); err != nil {
			return applied, fmt.Errorf("cache upsert %q: %w", item.Key, err)
		}
		applied++
	}
	telemetry.Debug("enrich.batch.applied", map[string]any{
		"batch_size": len(batch),
		"decoded":    len(decoded),
		"applied":    applied,
	})
	return applied, nil
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) logUsage(out llm.ClassifyResult, batchSize int) {
	fields := map[string]any{
		"model":      out.Model,
		"feature":    "part_classification",
		"batch_size": batchSize,
	}
	if out.Usage != nil {
		fields["prompt_tokens"] = out.Usage.PromptTokens
		fields["completion_tokens"] = out.Usage.CompletionTokens
		fields["total_tokens"] = out.Usage.TotalTokens
	}
	telemetry.Info("enrich.usage", fields)
}

// dedupeKeys trims, normalizes, and drops blank or repeated keys while
// preserving first-encounter order.
func dedupeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, key := range keys {
		norm := metadata.NormalizeKey(key)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
