package handler

import (
	"fmt"
	"net/http"

	"github.com/jobsift/jobsift/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "jobsift_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "jobsift_user_update_conflicts_total %d\n", snap.UserUpdateConflicts)

	writeMetric(w, "jobsift_filter_attachments_total{result=\"created\"} %d\n", snap.FiltersCreated)
	writeMetric(w, "jobsift_filter_attachments_total{result=\"reused\"} %d\n", snap.FiltersReused)
	writeMetric(w, "jobsift_filter_attachments_total{result=\"duplicate\"} %d\n", snap.FiltersDuplicate)
	writeMetric(w, "jobsift_filter_detachments_total %d\n", snap.FiltersDetached)

	writeMetric(w, "jobsift_jobs_applied_total %d\n", snap.JobsApplied)
	writeMetric(w, "jobsift_job_listing_size_count %d\n", snap.JobListings)
	writeMetric(w, "jobsift_job_listing_size_sum %d\n", snap.JobsListedTotal)

	writeMetric(w, "jobsift_filter_events_published_total{result=\"success\"} %d\n", snap.FilterEventsPublished)
	writeMetric(w, "jobsift_filter_events_published_total{result=\"dropped\"} %d\n", snap.FilterEventsDropped)
	writeMetric(w, "jobsift_ingest_records_total{result=\"imported\"} %d\n", snap.IngestImported)
	writeMetric(w, "jobsift_ingest_records_total{result=\"dead_lettered\"} %d\n", snap.IngestDeadLettered)
	writeMetric(w, "jobsift_ingest_records_total{result=\"failed\"} %d\n", snap.IngestFailed)
	writeMetric(w, "jobsift_ingest_queue_depth %d\n", snap.IngestQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
