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
	uploadsAcceptedTotal atomic.Uint64
	uploadsRejectedTotal atomic.Uint64

	jobsReceivedTotal       atomic.Uint64
	jobsCompletedTotal      atomic.Uint64
	jobsRetriedTotal        atomic.Uint64
	jobsFailedTotal         atomic.Uint64
	jobsDroppedInvalidTotal atomic.Uint64
	analysisStartedTotal    atomic.Uint64
	analysisCompletedTotal  atomic.Uint64
	analysisDegradedTotal   atomic.Uint64
	analysisFailedTotal     atomic.Uint64
	cleanupDeletedTotal     atomic.Uint64
	cleanupFileErrorsTotal  atomic.Uint64

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

func IncUploadsAccepted() { uploadsAcceptedTotal.Add(1) }
func IncUploadsRejected() { uploadsRejectedTotal.Add(1) }

func IncJobsReceived()       { jobsReceivedTotal.Add(1) }
func IncJobsCompleted()      { jobsCompletedTotal.Add(1) }
func IncJobsRetried()        { jobsRetriedTotal.Add(1) }
func IncJobsFailed()         { jobsFailedTotal.Add(1) }
func IncJobsDroppedInvalid() { jobsDroppedInvalidTotal.Add(1) }

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() { analysisStartedTotal.Add(1) }

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() { analysisCompletedTotal.Add(1) }

// IncAnalysisDegraded counts completed analyses that stored a placeholder record.
func IncAnalysisDegraded() { analysisDegradedTotal.Add(1) }

// IncAnalysisFailed increments the terminal failure counter.
func IncAnalysisFailed() { analysisFailedTotal.Add(1) }

// AddCleanupDeleted adds n to the retention cleanup counter.
func AddCleanupDeleted(n int) {
	if n > 0 {
		cleanupDeletedTotal.Add(uint64(n))
	}
}

func IncCleanupFileErrors() { cleanupFileErrorsTotal.Add(1) }

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
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
	writeCounter(&buf, "resume_uploads_accepted_total", "Uploads accepted", uploadsAcceptedTotal.Load())
	writeCounter(&buf, "resume_uploads_rejected_total", "Uploads rejected by validation", uploadsRejectedTotal.Load())
	writeCounter(&buf, "analysis_jobs_received_total", "Queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Queue messages acknowledged", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_retried_total", "Jobs rescheduled with backoff", jobsRetriedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Jobs left on the queue after a handler error", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_dropped_invalid_total", "Undecodable messages dropped", jobsDroppedInvalidTotal.Load())
	writeCounter(&buf, "analysis_started_total", "Analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_degraded_total", "Analyses completed with a placeholder result", analysisDegradedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Analyses marked failed", analysisFailedTotal.Load())
	writeCounter(&buf, "cleanup_deleted_total", "Records removed by retention cleanup", cleanupDeletedTotal.Load())
	writeCounter(&buf, "cleanup_file_errors_total", "Stored files that could not be removed", cleanupFileErrorsTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
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

// Observe records value in the first bucket that holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
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
