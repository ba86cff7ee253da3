package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated; a partially
// registered sink still functions.
type PrometheusSink struct {
	ticksTotal       prometheus.Counter
	claimErrorsTotal prometheus.Counter

	jobsClaimedTotal   *prometheus.CounterVec
	jobsCompletedTotal *prometheus.CounterVec
	jobsFailedTotal    *prometheus.CounterVec
	jobsDeadTotal      *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec

	exportsBuiltTotal *prometheus.CounterVec
	exportBytes       *prometheus.HistogramVec
	exportDuration    *prometheus.HistogramVec
}

// NewPrometheusSink creates and registers the worker metric set.
func NewPrometheusSink(reg prometheus.Registerer, logger *slog.Logger) *PrometheusSink {
	if logger == nil {
		logger = slog.Default()
	}

	s := &PrometheusSink{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expensio_worker_ticks_total",
			Help: "Total number of poll loop ticks.",
		}),
		claimErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expensio_worker_claim_errors_total",
			Help: "Total number of errors in the claim/poll machinery itself.",
		}),
		jobsClaimedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expensio_worker_jobs_claimed_total",
			Help: "Total number of jobs claimed, by type.",
		}, []string{"type"}),
		jobsCompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expensio_worker_jobs_completed_total",
			Help: "Total number of jobs completed successfully, by type.",
		}, []string{"type"}),
		jobsFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expensio_worker_jobs_failed_total",
			Help: "Total number of job failures scheduled for retry, by type.",
		}, []string{"type"}),
		jobsDeadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expensio_worker_jobs_dead_total",
			Help: "Total number of jobs that exhausted their retry budget, by type.",
		}, []string{"type"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expensio_worker_job_duration_seconds",
			Help:    "Handler execution time in seconds, by type.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
		}, []string{"type"}),
		exportsBuiltTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expensio_worker_exports_built_total",
			Help: "Total number of export artifacts built, by artifact type.",
		}, []string{"type"}),
		exportBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expensio_worker_export_bytes",
			Help:    "Size of built export artifacts in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"type"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expensio_worker_export_duration_seconds",
			Help:    "Time to assemble and upload an export artifact.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"type"}),
	}

	register(reg, logger, s.ticksTotal, "expensio_worker_ticks_total")
	register(reg, logger, s.claimErrorsTotal, "expensio_worker_claim_errors_total")
	register(reg, logger, s.jobsClaimedTotal, "expensio_worker_jobs_claimed_total")
	register(reg, logger, s.jobsCompletedTotal, "expensio_worker_jobs_completed_total")
	register(reg, logger, s.jobsFailedTotal, "expensio_worker_jobs_failed_total")
	register(reg, logger, s.jobsDeadTotal, "expensio_worker_jobs_dead_total")
	register(reg, logger, s.jobDuration, "expensio_worker_job_duration_seconds")
	register(reg, logger, s.exportsBuiltTotal, "expensio_worker_exports_built_total")
	register(reg, logger, s.exportBytes, "expensio_worker_export_bytes")
	register(reg, logger, s.exportDuration, "expensio_worker_export_duration_seconds")

	return s
}

func register(reg prometheus.Registerer, logger *slog.Logger, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		logger.Warn("Failed to register metric",
			slog.String("name", name),
			slog.Any("error", err),
		)
	}
}

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) ClaimError() {
	s.claimErrorsTotal.Inc()
}

func (s *PrometheusSink) JobClaimed(jobType string) {
	s.jobsClaimedTotal.WithLabelValues(jobType).Inc()
}

func (s *PrometheusSink) JobCompleted(jobType string, duration time.Duration) {
	s.jobsCompletedTotal.WithLabelValues(jobType).Inc()
	s.jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

func (s *PrometheusSink) JobFailed(jobType string, dead bool) {
	s.jobsFailedTotal.WithLabelValues(jobType).Inc()
	if dead {
		s.jobsDeadTotal.WithLabelValues(jobType).Inc()
	}
}

func (s *PrometheusSink) ExportBuilt(exportType string, size int64, duration time.Duration) {
	s.exportsBuiltTotal.WithLabelValues(exportType).Inc()
	s.exportBytes.WithLabelValues(exportType).Observe(float64(size))
	s.exportDuration.WithLabelValues(exportType).Observe(duration.Seconds())
}
