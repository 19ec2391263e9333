package metrics

import (
	"sync/atomic"
	"time"
)

// Registry counts pipeline and key-service activity. All fields are atomics
// so workers and HTTP handlers update them without coordination.
type Registry struct {
	QueuedJobs           atomic.Int64
	ActiveJobs           atomic.Int64
	CompletedJobs        atomic.Int64
	FailedJobs           atomic.Int64
	DuplicatesSuppressed atomic.Int64
	ChunksPublished      atomic.Int64
	KeysServed           atomic.Int64
	Workers              atomic.Int64
	QueueCapacity        atomic.Int64
	UptimeStart          time.Time
}

func NewRegistry() *Registry {
	return &Registry{UptimeStart: time.Now()}
}

func (r *Registry) UptimeSeconds() int64 {
	return int64(time.Since(r.UptimeStart).Seconds())
}

// Snapshot is the JSON shape served at /metrics.
type Snapshot struct {
	QueuedJobs           int64 `json:"queued_jobs"`
	ActiveJobs           int64 `json:"active_jobs"`
	CompletedJobs        int64 `json:"completed_jobs"`
	FailedJobs           int64 `json:"failed_jobs"`
	DuplicatesSuppressed int64 `json:"duplicates_suppressed"`
	ChunksPublished      int64 `json:"chunks_published"`
	KeysServed           int64 `json:"keys_served"`
	Workers              int64 `json:"workers"`
	QueueCapacity        int64 `json:"queue_capacity"`
	UptimeSeconds        int64 `json:"uptime_seconds"`
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		QueuedJobs:           r.QueuedJobs.Load(),
		ActiveJobs:           r.ActiveJobs.Load(),
		CompletedJobs:        r.CompletedJobs.Load(),
		FailedJobs:           r.FailedJobs.Load(),
		DuplicatesSuppressed: r.DuplicatesSuppressed.Load(),
		ChunksPublished:      r.ChunksPublished.Load(),
		KeysServed:           r.KeysServed.Load(),
		Workers:              r.Workers.Load(),
		QueueCapacity:        r.QueueCapacity.Load(),
		UptimeSeconds:        r.UptimeSeconds(),
	}
}
