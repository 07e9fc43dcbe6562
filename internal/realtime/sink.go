package realtime

// defaultSinkBuffer is the per-connection event buffer. A connection whose
// buffer stays full is treated as dead and pruned.
const defaultSinkBuffer = 16

// eventSink is the write side of one connection's event channel. Only the
// broadcaster goroutine touches it, so no locking is needed.
type eventSink struct {
	ch     chan Event
	closed bool
}

func newEventSink(buffer int) *eventSink {
	return &eventSink{ch: make(chan Event, buffer)}
}

// tryPush delivers an event without blocking. It reports false when the sink
// is closed or its buffer is full; callers treat both as a dead consumer.
// Pushing after close is a failure signal, never a panic.
func (s *eventSink) tryPush(ev Event) bool {
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// close terminates delivery. The read side observes channel closure as
// end-of-stream. Idempotent.
func (s *eventSink) close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
