package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	enrichCallsTotal          atomic.Uint64
	enrichBatchesDroppedTotal atomic.Uint64
	recordsCreatedTotal       atomic.Uint64
	recordsConflictTotal      atomic.Uint64
	recordsPatchedTotal       atomic.Uint64
	recordsFailedTotal        atomic.Uint64

	runDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 300000})
)

// IncEnrichCalls increments the external classification call counter.
func IncEnrichCalls() {
	enrichCallsTotal.Add(1)
}

// IncEnrichBatchesDropped increments the malformed-batch drop counter.
func IncEnrichBatchesDropped() {
	enrichBatchesDroppedTotal.Add(1)
}

// IncRecordsCreated increments the created-record counter.
func IncRecordsCreated() {
	recordsCreatedTotal.Add(1)
}

// IncRecordsConflict increments the conflict counter.
func IncRecordsConflict() {
	recordsConflictTotal.Add(1)
}

// IncRecordsPatched increments the patched-record counter.
func IncRecordsPatched() {
	recordsPatchedTotal.Add(1)
}

// IncRecordsFailed increments the failed-record counter.
func IncRecordsFailed() {
	recordsFailedTotal.Add(1)
}

// ObserveRunDurationMs records a pipeline run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "enrich_calls_total", "Total external classification calls", enrichCallsTotal.Load())
	writeCounter(&buf, "enrich_batches_dropped_total", "Total classification batches dropped as malformed", enrichBatchesDroppedTotal.Load())
	writeCounter(&buf, "records_created_total", "Total remote records created", recordsCreatedTotal.Load())
	writeCounter(&buf, "records_conflict_total", "Total remote create conflicts", recordsConflictTotal.Load())
	writeCounter(&buf, "records_patched_total", "Total conflicts resolved by patch", recordsPatchedTotal.Load())
	writeCounter(&buf, "records_failed_total", "Total failed record upserts", recordsFailedTotal.Load())
	writeHistogram(&buf, "run_duration_ms", "Pipeline run duration in milliseconds", runDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
