package engine

import "sync"

// DefaultRecorderCapacity bounds how many recent events a Recorder keeps.
const DefaultRecorderCapacity = 1000

// pendingPerRecent sizes the undrained queue relative to the recent window.
const pendingPerRecent = 10

// Recorder keeps the most recent events for observers and queues recorded
// events until they are drained for persistence. The queue holds at most
// ten times the recent capacity; once full, the oldest undrained event is
// dropped and counted. Safe for concurrent readers while the scheduler
// goroutine records.
type Recorder struct {
	mu         sync.Mutex
	capacity   int
	maxPending int
	recent     []Event
	pending    []Event
	dropped    int
}

// NewRecorder creates a recorder keeping at most capacity recent events.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	return &Recorder{capacity: capacity, maxPending: capacity * pendingPerRecent}
}

// Attach subscribes the recorder to the given event types on s, or to the
// three lifecycle events when none are given.
func (r *Recorder) Attach(s *Scheduler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = []string{EventStart, EventTick, EventStop}
	}
	for _, t := range eventTypes {
		s.RegisterEventListener(t, r.Record)
	}
}

// Record stores one event. It never fails; the signature matches Listener.
func (r *Recorder) Record(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, e)
	// Trim old events to prevent unbounded growth.
	if len(r.recent) > r.capacity {
		r.recent = append(r.recent[:0:0], r.recent[len(r.recent)-r.capacity:]...)
	}
	if len(r.pending) >= r.maxPending {
		r.pending = r.pending[len(r.pending)-r.maxPending+1:]
		r.dropped++
	}
	r.pending = append(r.pending, e)
	return nil
}

// Pending reports how many events await Drain.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Dropped reports how many undrained events were discarded because the
// queue was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Recent returns up to n of the latest events, oldest first. n <= 0 means all.
func (r *Recorder) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := 0
	if n > 0 && len(r.recent) > n {
		start = len(r.recent) - n
	}
	return append([]Event(nil), r.recent[start:]...)
}

// Drain returns every event recorded since the previous Drain.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}
