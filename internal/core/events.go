package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// EventSink receives committed lifecycle events. Sink errors are reported to
// the log only; protocol state never depends on a sink succeeding.
type EventSink interface {
	Append(event Event) error
}

// EventLog is the in-process append-only event log. Sequence numbers are
// assigned at append time and never reused.
type EventLog struct {
	mu     sync.RWMutex
	seq    uint64
	events []Event
	sink   EventSink
	logger Logger
}

// NewEventLog constructs an event log. sink may be nil.
func NewEventLog(sink EventSink, logger Logger) *EventLog {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventLog{sink: sink, logger: logger}
}

// Append assigns the next sequence number and appends the event. The sink is
// written best-effort after the in-memory append.
func (l *EventLog) Append(event Event) Event {
	l.mu.Lock()
	l.seq++
	event.Seq = l.seq
	l.events = append(l.events, event)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		if err := sink.Append(event); err != nil {
			l.logger.Warn("event sink append failed", "kind", event.Kind, "seq", event.Seq, "error", err)
		}
	}
	return event
}

// Events returns a copy of all appended events in order.
func (l *EventLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// JSONLEventSink appends events as JSON lines to a file, creating it lazily.
type JSONLEventSink struct {
	mu   sync.Mutex
	path string
}

// NewJSONLEventSink constructs a sink writing to path.
func NewJSONLEventSink(path string) *JSONLEventSink {
	return &JSONLEventSink{path: path}
}

// Append implements EventSink.
func (s *JSONLEventSink) Append(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
