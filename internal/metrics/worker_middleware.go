package metrics

import (
	"time"
)

// PrometheusCollector implements the job-queue MetricsCollector interface
// using Prometheus metrics for job processing statistics.
type PrometheusCollector struct{}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{}
}

func (c *PrometheusCollector) JobStarted(jobType, queue string) {
	WorkerPoolActiveJobs.Inc()
}

func (c *PrometheusCollector) JobCompleted(jobType, queue string, duration time.Duration) {
	WorkerPoolActiveJobs.Dec()
	JobsProcessedTotal.WithLabelValues(jobType, "success").Inc()
	JobsProcessingDuration.WithLabelValues(jobType, "total").Observe(duration.Seconds())
}

func (c *PrometheusCollector) JobFailed(jobType, queue string, duration time.Duration) {
	WorkerPoolActiveJobs.Dec()
	JobsProcessedTotal.WithLabelValues(jobType, "error").Inc()
	JobsProcessingDuration.WithLabelValues(jobType, "total").Observe(duration.Seconds())
}

func (c *PrometheusCollector) JobRetrying(jobType, queue string, attempt int) {
	JobsProcessedTotal.WithLabelValues(jobType, "retry").Inc()
}
