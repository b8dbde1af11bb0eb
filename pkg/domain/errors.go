package domain

import "fmt"

// ErrNotFound is returned when no record exists for an id.
type ErrNotFound struct {
	Entity EntityType
	ID     uint64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ErrOwnerRequired is returned when a record is registered without a caller
// identity.
type ErrOwnerRequired struct{}

func (ErrOwnerRequired) Error() string {
	return "owner identity required"
}

// ErrNotAuthorized is returned when the caller is not the record owner.
type ErrNotAuthorized struct {
	RecordID uint64
	Caller   string
}

func (e ErrNotAuthorized) Error() string {
	return fmt.Sprintf("caller %q is not the owner of record %d", e.Caller, e.RecordID)
}

// ErrAlreadyProcessed is returned on a re-request or re-completion of a
// terminal record. Permanent for that id.
type ErrAlreadyProcessed struct {
	RecordID uint64
}

func (e ErrAlreadyProcessed) Error() string {
	return fmt.Sprintf("record %d already processed", e.RecordID)
}

// ErrAlreadyRequested is returned when a reconstruction request is issued
// while another is still in flight for the same record.
type ErrAlreadyRequested struct {
	RecordID      uint64
	CorrelationID uint64
}

func (e ErrAlreadyRequested) Error() string {
	return fmt.Sprintf("record %d already has reconstruction request %d in flight", e.RecordID, e.CorrelationID)
}

// ErrNoRequestInFlight is returned when a cancellation targets a record with
// no pending reconstruction request.
type ErrNoRequestInFlight struct {
	RecordID uint64
}

func (e ErrNoRequestInFlight) Error() string {
	return fmt.Sprintf("record %d has no reconstruction request in flight", e.RecordID)
}

// ErrUnknownRequest is returned for a callback carrying a correlation id that
// was never issued, was already consumed, or was cancelled.
type ErrUnknownRequest struct {
	CorrelationID uint64
}

func (e ErrUnknownRequest) Error() string {
	return fmt.Sprintf("no reconstruction request bound to correlation id %d", e.CorrelationID)
}

// ErrInvalidProof is returned when the verifier rejects a callback's proof.
// The correlation binding survives, so a later callback with a valid proof
// for the same correlation id can still succeed.
type ErrInvalidProof struct {
	CorrelationID uint64
}

func (e ErrInvalidProof) Error() string {
	return fmt.Sprintf("proof verification failed for correlation id %d", e.CorrelationID)
}

// ErrNotReady is returned when a result is read before completion.
type ErrNotReady struct {
	RecordID uint64
	State    RecordState
}

func (e ErrNotReady) Error() string {
	return fmt.Sprintf("record %d has no result yet (state %s)", e.RecordID, e.State)
}
