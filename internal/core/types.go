package core

import "oraclevault/pkg/domain"

type (
	EntityType           = domain.EntityType
	RecordState          = domain.RecordState
	Severity             = domain.Severity
	Record               = domain.Record
	PayloadRef           = domain.PayloadRef
	ReconstructionResult = domain.ReconstructionResult
	CorrelationBinding   = domain.CorrelationBinding
	Change               = domain.Change
	Action               = domain.Action
	Violation            = domain.Violation
	Result               = domain.Result
	RuleViolationError   = domain.RuleViolationError
	RulesEngine          = domain.RulesEngine
	Rule                 = domain.Rule
	RuleView             = domain.RuleView
	Event                = domain.Event
	EventKind            = domain.EventKind
)

const (
	EntityRecord  = domain.EntityRecord
	EntityResult  = domain.EntityResult
	EntityBinding = domain.EntityBinding
)

const (
	StateCreated     = domain.StateCreated
	StateRequestSent = domain.StateRequestSent
	StateCompleted   = domain.StateCompleted
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

const (
	EventRecordCreated           = domain.EventRecordCreated
	EventReconstructionRequested = domain.EventReconstructionRequested
	EventReconstructionCompleted = domain.EventReconstructionCompleted
	EventReconstructionCancelled = domain.EventReconstructionCancelled
)

// NewRulesEngine re-exports the domain constructor.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
