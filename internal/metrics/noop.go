package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncUserRegistered is a no-op.
func (n *NoopRecorder) IncUserRegistered() {}

// IncUserUpdateConflict is a no-op.
func (n *NoopRecorder) IncUserUpdateConflict() {}

// IncFilterCreated is a no-op.
func (n *NoopRecorder) IncFilterCreated() {}

// IncFilterReused is a no-op.
func (n *NoopRecorder) IncFilterReused() {}

// IncFilterDuplicate is a no-op.
func (n *NoopRecorder) IncFilterDuplicate() {}

// IncFilterDetached is a no-op.
func (n *NoopRecorder) IncFilterDetached() {}

// IncJobApplied is a no-op.
func (n *NoopRecorder) IncJobApplied() {}

// ObserveJobsListed is a no-op.
func (n *NoopRecorder) ObserveJobsListed(count int) {}

// IncFilterEventPublished is a no-op.
func (n *NoopRecorder) IncFilterEventPublished(result string) {}

// IncIngestRecord is a no-op.
func (n *NoopRecorder) IncIngestRecord(result string) {}

// SetIngestQueueDepth is a no-op.
func (n *NoopRecorder) SetIngestQueueDepth(depth int64) {}
