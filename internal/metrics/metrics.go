package metrics

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	UploadURLsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longsorn_upload_urls_issued_total",
			Help: "Total number of presigned upload URLs issued",
		},
		[]string{"status"},
	)

	UploadConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longsorn_upload_confirmations_total",
			Help: "Total number of upload confirmations",
		},
		[]string{"status"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longsorn_extractions_total",
			Help: "Total number of audio extraction jobs by outcome",
		},
		[]string{"status"},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "longsorn_extraction_duration_seconds",
			Help:    "Duration of audio extraction stages in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	StorageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_bytes_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobs_processing_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type", "stage"},
	)

	OutboxMessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longsorn_outbox_messages_sent_total",
			Help: "Total number of outbox messages published to the queue",
		},
	)

	OutboxDrainErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longsorn_outbox_drain_errors_total",
			Help: "Total number of failed outbox drain attempts",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_active_jobs",
			Help: "Number of jobs currently being processed by workers",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "environment", "service"},
	)
)

// NormalizePath collapses resource IDs so path labels stay low-cardinality.
func NormalizePath(path string) string {
	return uuidRegex.ReplaceAllString(path, ":id")
}

func SetAppInfo(version, environment, service string) {
	AppInfo.WithLabelValues(version, environment, service).Set(1)
}

func RecordUploadURLIssued(status string) {
	UploadURLsIssuedTotal.WithLabelValues(status).Inc()
}

func RecordUploadConfirmation(status string) {
	UploadConfirmationsTotal.WithLabelValues(status).Inc()
}

func RecordJobEnqueued(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func RecordExtraction(status string, durationSeconds float64) {
	ExtractionsTotal.WithLabelValues(status).Inc()
	ExtractionDuration.WithLabelValues("total").Observe(durationSeconds)
}
