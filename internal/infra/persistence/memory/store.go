// Package memory provides an in-memory implementation of the vault
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"oraclevault/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Record aliases domain.Record for in-memory persistence operations.
	Record = domain.Record
	// ReconstructionResult aliases domain.ReconstructionResult.
	ReconstructionResult = domain.ReconstructionResult
	// CorrelationBinding aliases domain.CorrelationBinding.
	CorrelationBinding = domain.CorrelationBinding
	// PayloadRef aliases domain.PayloadRef.
	PayloadRef = domain.PayloadRef
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type vaultState struct {
	records  map[uint64]Record
	results  map[uint64]ReconstructionResult
	bindings map[uint64]CorrelationBinding // keyed by correlation id
	owners   map[string][]uint64

	nextRecordID      uint64
	nextCorrelationID uint64
}

// Snapshot captures a point-in-time clone of the store state. Sequence
// counters travel with it so a restored store never reuses an id.
type Snapshot struct {
	Records           map[uint64]Record               `json:"records"`
	Results           map[uint64]ReconstructionResult `json:"results"`
	Bindings          map[uint64]CorrelationBinding   `json:"bindings"`
	Owners            map[string][]uint64             `json:"owners"`
	NextRecordID      uint64                          `json:"next_record_id"`
	NextCorrelationID uint64                          `json:"next_correlation_id"`
}

func newVaultState() vaultState {
	return vaultState{
		records:           make(map[uint64]Record),
		results:           make(map[uint64]ReconstructionResult),
		bindings:          make(map[uint64]CorrelationBinding),
		owners:            make(map[string][]uint64),
		nextRecordID:      1,
		nextCorrelationID: 1,
	}
}

func (s vaultState) clone() vaultState {
	cloned := newVaultState()
	for id, r := range s.records {
		cloned.records[id] = r
	}
	for id, res := range s.results {
		cloned.results[id] = res
	}
	for id, b := range s.bindings {
		cloned.bindings[id] = b
	}
	for owner, ids := range s.owners {
		cloned.owners[owner] = append([]uint64(nil), ids...)
	}
	cloned.nextRecordID = s.nextRecordID
	cloned.nextCorrelationID = s.nextCorrelationID
	return cloned
}

func snapshotFromVaultState(state vaultState) Snapshot {
	snap := Snapshot{
		Records:           make(map[uint64]Record, len(state.records)),
		Results:           make(map[uint64]ReconstructionResult, len(state.results)),
		Bindings:          make(map[uint64]CorrelationBinding, len(state.bindings)),
		Owners:            make(map[string][]uint64, len(state.owners)),
		NextRecordID:      state.nextRecordID,
		NextCorrelationID: state.nextCorrelationID,
	}
	for id, r := range state.records {
		r.State = ""
		snap.Records[id] = r
	}
	for id, res := range state.results {
		snap.Results[id] = res
	}
	for id, b := range state.bindings {
		snap.Bindings[id] = b
	}
	for owner, ids := range state.owners {
		snap.Owners[owner] = append([]uint64(nil), ids...)
	}
	return snap
}

func vaultStateFromSnapshot(snap Snapshot) vaultState {
	state := newVaultState()
	for id, r := range snap.Records {
		r.State = ""
		state.records[id] = r
	}
	for id, res := range snap.Results {
		state.results[id] = res
	}
	for id, b := range snap.Bindings {
		state.bindings[id] = b
	}
	for owner, ids := range snap.Owners {
		state.owners[owner] = append([]uint64(nil), ids...)
	}
	state.nextRecordID = snap.NextRecordID
	state.nextCorrelationID = snap.NextCorrelationID
	return state
}

// migrateSnapshot normalizes snapshots written by older layouts: nil maps
// become empty, an absent owner index is rebuilt from the records in creation
// order, and sequence counters are advanced past every id in use.
func migrateSnapshot(snap Snapshot) Snapshot {
	if snap.Records == nil {
		snap.Records = map[uint64]Record{}
	}
	if snap.Results == nil {
		snap.Results = map[uint64]ReconstructionResult{}
	}
	if snap.Bindings == nil {
		snap.Bindings = map[uint64]CorrelationBinding{}
	}
	if len(snap.Owners) == 0 {
		snap.Owners = map[string][]uint64{}
		ids := make([]uint64, 0, len(snap.Records))
		for id := range snap.Records {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			r := snap.Records[id]
			snap.Owners[r.Owner] = append(snap.Owners[r.Owner], id)
		}
	}
	for id, b := range snap.Bindings {
		if _, ok := snap.Records[b.RecordID]; !ok {
			delete(snap.Bindings, id)
		}
	}
	for id := range snap.Records {
		if snap.NextRecordID <= id {
			snap.NextRecordID = id + 1
		}
	}
	for id := range snap.Bindings {
		if snap.NextCorrelationID <= id {
			snap.NextCorrelationID = id + 1
		}
	}
	if snap.NextRecordID == 0 {
		snap.NextRecordID = 1
	}
	if snap.NextCorrelationID == 0 {
		snap.NextCorrelationID = 1
	}
	return snap
}

// deriveState decorates a record copy with its lifecycle state. The state is
// never stored; it follows from the processed flag and the binding table.
func deriveState(state *vaultState, r Record) Record {
	switch {
	case r.Processed:
		r.State = domain.StateCompleted
	case recordInFlight(state, r.ID):
		r.State = domain.StateRequestSent
	default:
		r.State = domain.StateCreated
	}
	return r
}

func recordInFlight(state *vaultState, recordID uint64) bool {
	for _, b := range state.bindings {
		if b.RecordID == recordID {
			return true
		}
	}
	return false
}

func bindingForRecord(state *vaultState, recordID uint64) (CorrelationBinding, bool) {
	for _, b := range state.bindings {
		if b.RecordID == recordID {
			return b, true
		}
	}
	return CorrelationBinding{}, false
}

// Store provides an in-memory transactional store for the vault domain. A
// single mutex serializes transactions, which gives every record the
// per-id critical section the protocol requires.
type Store struct {
	mu     sync.RWMutex
	state  vaultState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newVaultState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromVaultState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = vaultStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetRecord returns the record for id, decorated with its derived state.
func (s *Store) GetRecord(id uint64) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.records[id]
	if !ok {
		return Record{}, false
	}
	return deriveState(&s.state, r), true
}

// GetResult returns the reconstruction result for a completed record.
func (s *Store) GetResult(recordID uint64) (ReconstructionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.state.results[recordID]
	return res, ok
}

// ListRecords returns every record ordered by id.
func (s *Store) ListRecords() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.state.records))
	for _, r := range s.state.records {
		out = append(out, deriveState(&s.state, r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OwnedBy returns the append-ordered record ids created by owner.
func (s *Store) OwnedBy(owner string) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uint64(nil), s.state.owners[owner]...)
}
