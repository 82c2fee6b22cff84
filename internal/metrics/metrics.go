// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// User metrics
	IncUserRegistered()
	IncUserUpdateConflict()

	// Filter metrics
	IncFilterCreated()
	IncFilterReused()
	IncFilterDuplicate()
	IncFilterDetached()

	// Job feed metrics
	IncJobApplied()
	ObserveJobsListed(count int)

	// Stream metrics
	IncFilterEventPublished(result string)
	IncIngestRecord(result string)
	SetIngestQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
