package emit

// Event is one observability record of a render job.
type Event struct {
	// JobID identifies the render job that emitted this event.
	JobID string

	// Seq is the output frame position the event refers to.
	// -1 for job-level events.
	Seq int

	// TaskKey identifies the task involved; empty for job-level events.
	TaskKey string

	// Msg names the event (see the Msg* constants).
	Msg string

	// Meta carries event specific data. Common keys:
	//   - "duration_ms": processing time of a unit
	//   - "error": error text of a failed task or job
	//   - "role": cache role of an evicted entry
	//   - "frames": frame count of a job
	Meta map[string]interface{}
}
