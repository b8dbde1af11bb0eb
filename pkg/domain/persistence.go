package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Every mutating protocol operation runs
// inside exactly one transaction; a failed transaction leaves no partial
// mutation behind.
type Transaction interface {
	Snapshot() TransactionView
	CreateRecord(owner string, payload PayloadRef) (Record, error)
	IssueCorrelation(recordID uint64) (CorrelationBinding, error)
	ReleaseCorrelation(correlationID uint64) (CorrelationBinding, error)
	MarkProcessed(recordID uint64, handle string) (Record, ReconstructionResult, error)
	FindRecord(id uint64) (Record, bool)
	FindBinding(correlationID uint64) (CorrelationBinding, bool)
	InFlight(recordID uint64) (CorrelationBinding, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// metadata reads.
type TransactionView interface {
	ListRecords() []Record
	FindRecord(id uint64) (Record, bool)
	FindResult(recordID uint64) (ReconstructionResult, bool)
	ListBindings() []CorrelationBinding
	OwnedBy(owner string) []uint64
}

// RuleView is the read-only view handed to rules at commit time.
type RuleView = TransactionView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRecord(id uint64) (Record, bool)
	GetResult(recordID uint64) (ReconstructionResult, bool)
	ListRecords() []Record
	OwnedBy(owner string) []uint64
}
