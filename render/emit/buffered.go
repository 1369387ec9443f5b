package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by job, and answers
// history queries. Intended for tests, previews and post-run analysis; it
// grows without bound, so call Clear for long-lived processes.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // jobID -> events
}

// HistoryFilter selects events. Zero-valued fields do not filter; set fields
// are combined with AND.
type HistoryFilter struct {
	TaskKey string
	Msg     string
	MinSeq  *int
	MaxSeq  *int
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores the event.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.JobID] = append(b.events[event.JobID], event)
}

// GetHistory returns a copy of all events of a job in emission order.
func (b *BufferedEmitter) GetHistory(jobID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[jobID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter returns the events of a job that match filter.
//
// Example:
//
//	delivered := emitter.GetHistoryWithFilter(jobID, emit.HistoryFilter{Msg: emit.MsgFrameDelivered})
func (b *BufferedEmitter) GetHistoryWithFilter(jobID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[jobID] {
		if matchesFilter(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.TaskKey != "" && event.TaskKey != filter.TaskKey {
		return false
	}
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}
	if filter.MinSeq != nil && event.Seq < *filter.MinSeq {
		return false
	}
	if filter.MaxSeq != nil && event.Seq > *filter.MaxSeq {
		return false
	}
	return true
}

// Counts returns how many events of each kind a job has emitted.
func (b *BufferedEmitter) Counts(jobID string) map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[string]int)
	for _, event := range b.events[jobID] {
		counts[event.Msg]++
	}
	return counts
}

// Clear removes the events of jobID, or of every job when jobID is empty.
func (b *BufferedEmitter) Clear(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if jobID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, jobID)
}
