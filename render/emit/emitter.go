// Package emit delivers render pipeline observability events to pluggable
// backends: plain logs, in-memory history and OpenTelemetry traces.
package emit

// Emitter receives observability events from render jobs.
//
// Implementations must be safe for concurrent use (workers emit from their
// own goroutines), must not block the pipeline for long and must not panic.
type Emitter interface {
	// Emit sends an event to the configured backend.
	Emit(event Event)
}

// Event names emitted by render jobs.
const (
	MsgJobStart       = "job_start"
	MsgTaskDone       = "task_done"
	MsgTaskFailed     = "task_failed"
	MsgFrameDelivered = "frame_delivered"
	MsgCacheEvict     = "cache_evict"
	MsgJobAbort       = "job_abort"
	MsgJobFailed      = "job_failed"
	MsgJobDone        = "job_done"
)
