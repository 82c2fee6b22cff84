package metrics

import "sync/atomic"

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered     uint64
	UserUpdateConflicts uint64
	FiltersCreated      uint64
	FiltersReused       uint64
	FiltersDuplicate    uint64
	FiltersDetached     uint64
	JobsApplied         uint64
	JobListings         uint64
	JobsListedTotal     uint64

	FilterEventsPublished uint64
	FilterEventsDropped   uint64
	IngestImported        uint64
	IngestDeadLettered    uint64
	IngestFailed          uint64
	IngestQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	usersRegistered     uint64
	userUpdateConflicts uint64
	filtersCreated      uint64
	filtersReused       uint64
	filtersDuplicate    uint64
	filtersDetached     uint64
	jobsApplied         uint64
	jobListings         uint64
	jobsListedTotal     uint64

	filterEventsPublished uint64
	filterEventsDropped   uint64
	ingestImported        uint64
	ingestDeadLettered    uint64
	ingestFailed          uint64
	ingestQueueDepth      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:     atomic.LoadUint64(&m.usersRegistered),
		UserUpdateConflicts: atomic.LoadUint64(&m.userUpdateConflicts),
		FiltersCreated:      atomic.LoadUint64(&m.filtersCreated),
		FiltersReused:       atomic.LoadUint64(&m.filtersReused),
		FiltersDuplicate:    atomic.LoadUint64(&m.filtersDuplicate),
		FiltersDetached:     atomic.LoadUint64(&m.filtersDetached),
		JobsApplied:         atomic.LoadUint64(&m.jobsApplied),
		JobListings:         atomic.LoadUint64(&m.jobListings),
		JobsListedTotal:     atomic.LoadUint64(&m.jobsListedTotal),

		FilterEventsPublished: atomic.LoadUint64(&m.filterEventsPublished),
		FilterEventsDropped:   atomic.LoadUint64(&m.filterEventsDropped),
		IngestImported:        atomic.LoadUint64(&m.ingestImported),
		IngestDeadLettered:    atomic.LoadUint64(&m.ingestDeadLettered),
		IngestFailed:          atomic.LoadUint64(&m.ingestFailed),
		IngestQueueDepth:      atomic.LoadInt64(&m.ingestQueueDepth),
	}
}

// IncUserRegistered increments the registered users counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	atomic.AddUint64(&m.usersRegistered, 1)
}

// IncUserUpdateConflict counts optimistic-lock retries on user writes.
func (m *InMemoryRecorder) IncUserUpdateConflict() {
	atomic.AddUint64(&m.userUpdateConflicts, 1)
}

// IncFilterCreated increments the new shared filter counter.
func (m *InMemoryRecorder) IncFilterCreated() {
	atomic.AddUint64(&m.filtersCreated, 1)
}

// IncFilterReused increments the counter of attachments to an existing filter.
func (m *InMemoryRecorder) IncFilterReused() {
	atomic.AddUint64(&m.filtersReused, 1)
}

// IncFilterDuplicate increments the rejected re-attachment counter.
func (m *InMemoryRecorder) IncFilterDuplicate() {
	atomic.AddUint64(&m.filtersDuplicate, 1)
}

// IncFilterDetached increments the filter removal counter.
func (m *InMemoryRecorder) IncFilterDetached() {
	atomic.AddUint64(&m.filtersDetached, 1)
}

// IncJobApplied increments the applied jobs counter.
func (m *InMemoryRecorder) IncJobApplied() {
	atomic.AddUint64(&m.jobsApplied, 1)
}

// ObserveJobsListed records the size of one job listing.
func (m *InMemoryRecorder) ObserveJobsListed(count int) {
	atomic.AddUint64(&m.jobListings, 1)
	atomic.AddUint64(&m.jobsListedTotal, uint64(count))
}

// IncFilterEventPublished counts filter announcements by result ("success" or "dropped").
func (m *InMemoryRecorder) IncFilterEventPublished(result string) {
	switch result {
	case "success":
		atomic.AddUint64(&m.filterEventsPublished, 1)
	case "dropped":
		atomic.AddUint64(&m.filterEventsDropped, 1)
	}
}

// IncIngestRecord counts ingested stream records by result.
func (m *InMemoryRecorder) IncIngestRecord(result string) {
	switch result {
	case "imported":
		atomic.AddUint64(&m.ingestImported, 1)
	case "dead_lettered":
		atomic.AddUint64(&m.ingestDeadLettered, 1)
	case "failed":
		atomic.AddUint64(&m.ingestFailed, 1)
	}
}

// SetIngestQueueDepth records the pending plus unread records of the ingest stream.
func (m *InMemoryRecorder) SetIngestQueueDepth(depth int64) {
	atomic.StoreInt64(&m.ingestQueueDepth, depth)
}
