package metrics

import "time"

// NoopSink is a no-op implementation of Sink, used when metrics are
// disabled to avoid nil checks at call sites.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                {}
func (n *NoopSink) ClaimError()                                                 {}
func (n *NoopSink) JobClaimed(jobType string)                                   {}
func (n *NoopSink) JobCompleted(jobType string, duration time.Duration)         {}
func (n *NoopSink) JobFailed(jobType string, dead bool)                         {}
func (n *NoopSink) ExportBuilt(exportType string, size int64, d time.Duration)  {}
