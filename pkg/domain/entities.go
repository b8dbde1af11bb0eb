// Package domain defines the persistent entities, lifecycle states, and
// rule evaluation primitives shared by the vault core and its storage
// backends.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityRecord identifies an encrypted record.
	EntityRecord EntityType = "record"
	// EntityResult identifies a reconstruction result.
	EntityResult EntityType = "result"
	// EntityBinding identifies an in-flight correlation binding.
	EntityBinding EntityType = "binding"
)

// RecordState is the lifecycle state of a record, derived from the stored
// processed flag and the in-flight correlation table. It is never persisted
// as its own column; reads decorate records with it.
type RecordState string

// Lifecycle states. Transitions only ever move forward:
// Created -> RequestSent -> Completed.
const (
	// StateCreated is the initial state after registration.
	StateCreated RecordState = "created"
	// StateRequestSent means a correlation id has been issued and the
	// payload handed to the oracle; no further request may be issued.
	StateRequestSent RecordState = "request_sent"
	// StateCompleted is terminal; the verified result is stored.
	StateCompleted RecordState = "completed"
)

// PayloadRef points at the opaque encrypted payload bytes held in the blob
// store. The vault never inspects the bytes behind it.
type PayloadRef struct {
	Key  string `json:"key"`
	Size int64  `json:"size_bytes"`
}

// Record is an encrypted payload registered by a submitter. Owner is set
// exactly once at creation and never changes. Processed flips to true exactly
// once, when a verified oracle callback stores the result, and never reverts.
type Record struct {
	ID        uint64      `json:"id"`
	Owner     string      `json:"owner"`
	Payload   PayloadRef  `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
	Processed bool        `json:"processed"`
	State     RecordState `json:"state,omitempty"`
}

// ReconstructionResult holds the wrapped oracle output for a completed
// record. Exists iff the record's Processed flag is true; never mutated or
// deleted afterward.
type ReconstructionResult struct {
	RecordID    uint64    `json:"record_id"`
	Handle      string    `json:"handle"`
	CompletedAt time.Time `json:"completed_at"`
}

// CorrelationBinding ties an issued oracle request to the record it was
// issued for. Correlation ids are drawn from their own sequence and are never
// reused, so a delayed or duplicated callback cannot be mis-attributed to a
// newer request. A binding is released only by a verified callback or an
// explicit cancel.
type CorrelationBinding struct {
	CorrelationID uint64    `json:"correlation_id"`
	RecordID      uint64    `json:"record_id"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID uint64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
