package metrics

import "time"

// Sink defines the interface for recording worker metrics.
// All methods are fire-and-forget: implementations must not block or
// propagate errors.
type Sink interface {
	// Poll loop metrics
	TickStarted()
	ClaimError()

	// Job lifecycle metrics
	JobClaimed(jobType string)
	JobCompleted(jobType string, duration time.Duration)
	JobFailed(jobType string, dead bool)

	// Export pipeline metrics
	ExportBuilt(exportType string, size int64, duration time.Duration)
}
