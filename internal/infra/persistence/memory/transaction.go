package memory

import (
	"sort"
	"time"

	"oraclevault/pkg/domain"
)

var (
	_ Transaction     = (*transaction)(nil)
	_ TransactionView = (*transactionView)(nil)
)

// transaction mutates a cloned copy of the store state. Mutations become
// visible only when RunInTransaction commits.
type transaction struct {
	store   *Store
	state   vaultState
	changes []Change
	now     time.Time
}

func (t *transaction) recordChange(entity domain.EntityType, action domain.Action, before, after any) {
	t.changes = append(t.changes, Change{
		Entity: entity,
		Action: action,
		Before: before,
		After:  after,
	})
}

// Snapshot exposes a read-only view over the transaction's pending state.
func (t *transaction) Snapshot() TransactionView {
	return newTransactionView(&t.state)
}

// CreateRecord allocates the next record id and registers the record under
// its owner. Ids are dense and strictly increasing across the store lifetime.
func (t *transaction) CreateRecord(owner string, payload PayloadRef) (Record, error) {
	record := Record{
		ID:        t.state.nextRecordID,
		Owner:     owner,
		Payload:   payload,
		CreatedAt: t.now,
	}
	t.state.nextRecordID++
	t.state.records[record.ID] = record
	t.state.owners[owner] = append(t.state.owners[owner], record.ID)
	t.recordChange(domain.EntityRecord, domain.ActionCreate, nil, record)
	return deriveState(&t.state, record), nil
}

// IssueCorrelation binds a fresh correlation id to the record. At most one
// binding may exist per record, and the record must not be processed yet.
func (t *transaction) IssueCorrelation(recordID uint64) (CorrelationBinding, error) {
	record, ok := t.state.records[recordID]
	if !ok {
		return CorrelationBinding{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: recordID}
	}
	if record.Processed {
		return CorrelationBinding{}, domain.ErrAlreadyProcessed{RecordID: recordID}
	}
	if existing, inFlight := bindingForRecord(&t.state, recordID); inFlight {
		return CorrelationBinding{}, domain.ErrAlreadyRequested{RecordID: recordID, CorrelationID: existing.CorrelationID}
	}

	binding := CorrelationBinding{
		CorrelationID: t.state.nextCorrelationID,
		RecordID:      recordID,
		IssuedAt:      t.now,
	}
	t.state.nextCorrelationID++
	t.state.bindings[binding.CorrelationID] = binding
	t.recordChange(domain.EntityBinding, domain.ActionCreate, nil, binding)
	return binding, nil
}

// ReleaseCorrelation removes the binding for correlationID and returns it.
func (t *transaction) ReleaseCorrelation(correlationID uint64) (CorrelationBinding, error) {
	binding, ok := t.state.bindings[correlationID]
	if !ok {
		return CorrelationBinding{}, domain.ErrUnknownRequest{CorrelationID: correlationID}
	}
	delete(t.state.bindings, correlationID)
	t.recordChange(domain.EntityBinding, domain.ActionDelete, binding, nil)
	return binding, nil
}

// MarkProcessed flips the record's processed flag and stores its result
// handle. A record can be processed exactly once.
func (t *transaction) MarkProcessed(recordID uint64, handle string) (Record, ReconstructionResult, error) {
	record, ok := t.state.records[recordID]
	if !ok {
		return Record{}, ReconstructionResult{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: recordID}
	}
	if record.Processed {
		return Record{}, ReconstructionResult{}, domain.ErrAlreadyProcessed{RecordID: recordID}
	}

	before := record
	record.Processed = true
	t.state.records[recordID] = record

	result := ReconstructionResult{
		RecordID:    recordID,
		Handle:      handle,
		CompletedAt: t.now,
	}
	t.state.results[recordID] = result

	t.recordChange(domain.EntityRecord, domain.ActionUpdate, before, record)
	t.recordChange(domain.EntityResult, domain.ActionCreate, nil, result)
	return deriveState(&t.state, record), result, nil
}

// FindRecord returns the pending-state record for id.
func (t *transaction) FindRecord(id uint64) (Record, bool) {
	record, ok := t.state.records[id]
	if !ok {
		return Record{}, false
	}
	return deriveState(&t.state, record), true
}

// FindBinding returns the binding registered under correlationID.
func (t *transaction) FindBinding(correlationID uint64) (CorrelationBinding, bool) {
	binding, ok := t.state.bindings[correlationID]
	return binding, ok
}

// InFlight returns the binding currently held by recordID, if any.
func (t *transaction) InFlight(recordID uint64) (CorrelationBinding, bool) {
	return bindingForRecord(&t.state, recordID)
}

// transactionView provides the read-only surface shared by transactions,
// the rules engine, and Store.View callers.
type transactionView struct {
	state *vaultState
}

func newTransactionView(state *vaultState) *transactionView {
	return &transactionView{state: state}
}

func (v *transactionView) ListRecords() []Record {
	out := make([]Record, 0, len(v.state.records))
	for _, r := range v.state.records {
		out = append(out, deriveState(v.state, r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *transactionView) FindRecord(id uint64) (Record, bool) {
	record, ok := v.state.records[id]
	if !ok {
		return Record{}, false
	}
	return deriveState(v.state, record), true
}

func (v *transactionView) FindResult(recordID uint64) (ReconstructionResult, bool) {
	result, ok := v.state.results[recordID]
	return result, ok
}

func (v *transactionView) ListBindings() []CorrelationBinding {
	out := make([]CorrelationBinding, 0, len(v.state.bindings))
	for _, b := range v.state.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CorrelationID < out[j].CorrelationID })
	return out
}

func (v *transactionView) OwnedBy(owner string) []uint64 {
	return append([]uint64(nil), v.state.owners[owner]...)
}
