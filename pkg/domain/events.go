package domain

import "time"

// EventKind names a lifecycle transition recorded in the event log.
type EventKind string

// Lifecycle transitions, one per state-machine edge.
const (
	// EventRecordCreated is emitted once per successful registration.
	EventRecordCreated EventKind = "record_created"
	// EventReconstructionRequested is emitted when a correlation id is
	// issued and the payload handed to the oracle.
	EventReconstructionRequested EventKind = "reconstruction_requested"
	// EventReconstructionCompleted is emitted once proof verification
	// succeeds and the result is stored.
	EventReconstructionCompleted EventKind = "reconstruction_completed"
	// EventReconstructionCancelled is emitted when an in-flight request is
	// explicitly abandoned.
	EventReconstructionCancelled EventKind = "reconstruction_cancelled"
)

// Event is a single append-only event log entry. Purely observational; no
// component reads its own past emissions to make decisions.
type Event struct {
	Seq           uint64    `json:"seq"`
	Kind          EventKind `json:"kind"`
	RecordID      uint64    `json:"record_id"`
	Owner         string    `json:"owner,omitempty"`
	CorrelationID uint64    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
