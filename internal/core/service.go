// Package core implements the vault service: encrypted record registration,
// the oracle request/response protocol, result reads, and the event log.
package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"oraclevault/internal/blob"
	"oraclevault/internal/infra/persistence/memory"
	"oraclevault/internal/oracle"
	"oraclevault/pkg/domain"
)

// Service exposes the protocol operations over a persistent store, a blob
// store, and the oracle boundary. All state transitions run inside store
// transactions; the oracle gateway is only invoked after a commit.
type Service struct {
	store     PersistentStore
	blobs     blob.Store
	gateway   oracle.Gateway
	verifier  oracle.Verifier
	events    *EventLog
	eventSink EventSink
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	clock     Clock
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		gateway:  oracle.Discard{},
		verifier: oracle.DenyAll{},
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		audit:    noopAuditRecorder{},
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.blobs == nil {
		s.blobs = blob.NewMemory()
	}
	s.events = NewEventLog(s.eventSink, s.logger)
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Events returns all committed lifecycle events in order.
func (s *Service) Events() []Event { return s.events.Events() }

// payloadKey content-addresses payload bytes so a failed transaction leaves
// at worst an orphan blob and a duplicate payload is stored once.
func payloadKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "payloads/" + hex.EncodeToString(sum[:])
}

func resultKey(recordID uint64) string {
	return fmt.Sprintf("results/%d", recordID)
}

const wrapPrefix = "wrapped:v1:"

// wrapResult seals oracle cleartext into the opaque handle stored for the
// owner. The envelope is versioned so the transform can change later.
func wrapResult(cleartext []byte) []byte {
	return []byte(wrapPrefix + base64.StdEncoding.EncodeToString(cleartext))
}

// UnwrapResult reverses wrapResult. Exposed for clients that hold a handle.
func UnwrapResult(handle []byte) ([]byte, error) {
	text := string(handle)
	if !strings.HasPrefix(text, wrapPrefix) {
		return nil, fmt.Errorf("unrecognized result envelope")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(text, wrapPrefix))
}

// CreateRecord registers an opaque encrypted payload under the caller's
// identity and returns the new record.
func (s *Service) CreateRecord(ctx context.Context, owner string, payload []byte) (Record, Result, error) {
	var created Record
	res, err := s.instrument(ctx, "create_record", EntityRecord, ActionCreate, owner, func(ctx context.Context) (uint64, Result, error) {
		if owner == "" {
			return 0, Result{}, domain.ErrOwnerRequired{}
		}
		key := payloadKey(payload)
		if _, err := s.blobs.Head(ctx, key); err != nil {
			if _, err := s.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/octet-stream"}); err != nil {
				return 0, Result{}, fmt.Errorf("store payload: %w", err)
			}
		}
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateRecord(owner, PayloadRef{Key: key, Size: int64(len(payload))})
			return err
		})
		if err != nil {
			return 0, res, err
		}
		s.events.Append(Event{
			Kind:      EventRecordCreated,
			RecordID:  created.ID,
			Owner:     created.Owner,
			Timestamp: s.clock.Now(),
		})
		return created.ID, res, nil
	})
	if err != nil {
		return Record{}, res, err
	}
	return created, res, nil
}

// GetRecord returns the record with its derived lifecycle state.
func (s *Service) GetRecord(ctx context.Context, id uint64) (Record, error) {
	record, ok := s.store.GetRecord(id)
	if !ok {
		return Record{}, domain.ErrNotFound{Entity: EntityRecord, ID: id}
	}
	return record, nil
}

// ListOwned returns the ids of every record the owner created, in creation
// order.
func (s *Service) ListOwned(_ context.Context, owner string) []uint64 {
	return s.store.OwnedBy(owner)
}

// ListRecords returns every record ordered by id.
func (s *Service) ListRecords(_ context.Context) []Record {
	return s.store.ListRecords()
}

// RequestReconstruction issues a correlation id for the record and hands its
// payload to the oracle gateway. Only the owner may request; a record accepts
// at most one in-flight request and cannot be re-requested once completed.
func (s *Service) RequestReconstruction(ctx context.Context, id uint64, caller string) (CorrelationBinding, Result, error) {
	var (
		binding CorrelationBinding
		record  Record
	)
	res, err := s.instrument(ctx, "request_reconstruction", EntityBinding, ActionCreate, caller, func(ctx context.Context) (uint64, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var ok bool
			record, ok = tx.FindRecord(id)
			if !ok {
				return domain.ErrNotFound{Entity: EntityRecord, ID: id}
			}
			if err := requireOwner(record, caller); err != nil {
				return err
			}
			var issueErr error
			binding, issueErr = tx.IssueCorrelation(id)
			return issueErr
		})
		if err != nil {
			return id, res, err
		}
		s.events.Append(Event{
			Kind:          EventReconstructionRequested,
			RecordID:      id,
			Owner:         record.Owner,
			CorrelationID: binding.CorrelationID,
			Timestamp:     s.clock.Now(),
		})
		s.submitToOracle(ctx, binding, record)
		return id, res, nil
	})
	if err != nil {
		return CorrelationBinding{}, res, err
	}
	return binding, res, nil
}

// submitToOracle is fire-and-forget: the request is committed either way, and
// the oracle contract allows resubmission of the same correlation id.
func (s *Service) submitToOracle(ctx context.Context, binding CorrelationBinding, record Record) {
	_, rc, err := s.blobs.Get(ctx, record.Payload.Key)
	if err != nil {
		s.logger.Warn("payload fetch for oracle submission failed", "record", record.ID, "correlation", binding.CorrelationID, "error", err)
		return
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Warn("payload read for oracle submission failed", "record", record.ID, "correlation", binding.CorrelationID, "error", err)
		return
	}
	if err := s.gateway.SubmitForDecryption(ctx, binding.CorrelationID, payload); err != nil {
		s.logger.Warn("oracle submission failed", "record", record.ID, "correlation", binding.CorrelationID, "error", err)
	}
}

// HandleCallback processes an oracle response. The verifier verdict gates
// everything: an invalid proof leaves the binding intact so a later valid
// proof for the same correlation id still completes the record.
func (s *Service) HandleCallback(ctx context.Context, correlationID uint64, cleartext, proof []byte) (Record, Result, error) {
	var completed Record
	res, err := s.instrument(ctx, "handle_callback", EntityRecord, ActionUpdate, "", func(ctx context.Context) (uint64, Result, error) {
		var recordID uint64
		err := s.store.View(ctx, func(view TransactionView) error {
			for _, b := range view.ListBindings() {
				if b.CorrelationID == correlationID {
					recordID = b.RecordID
					return nil
				}
			}
			return domain.ErrUnknownRequest{CorrelationID: correlationID}
		})
		if err != nil {
			return 0, Result{}, err
		}

		valid, err := s.verifier.Verify(ctx, correlationID, cleartext, proof)
		if err != nil {
			return recordID, Result{}, fmt.Errorf("verify proof: %w", err)
		}
		if !valid {
			return recordID, Result{}, domain.ErrInvalidProof{CorrelationID: correlationID}
		}

		handle := resultKey(recordID)
		wrote := false
		if _, err := s.blobs.Head(ctx, handle); err != nil {
			if _, err := s.blobs.Put(ctx, handle, bytes.NewReader(wrapResult(cleartext)), blob.PutOptions{ContentType: "application/octet-stream"}); err != nil {
				return recordID, Result{}, fmt.Errorf("store result: %w", err)
			}
			wrote = true
		}

		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			binding, ok := tx.FindBinding(correlationID)
			if !ok {
				return domain.ErrUnknownRequest{CorrelationID: correlationID}
			}
			var err error
			completed, _, err = tx.MarkProcessed(binding.RecordID, handle)
			if err != nil {
				return err
			}
			_, err = tx.ReleaseCorrelation(correlationID)
			return err
		})
		if err != nil {
			// Compensate only for a blob this call created and that no
			// committed result points at. A duplicate callback losing the
			// race to a concurrent completion must leave the winner's
			// result blob in place.
			if _, committed := s.store.GetResult(recordID); wrote && !committed {
				if _, delErr := s.blobs.Delete(ctx, handle); delErr != nil {
					s.logger.Warn("orphan result cleanup failed", "key", handle, "error", delErr)
				}
			}
			return recordID, res, err
		}
		s.events.Append(Event{
			Kind:          EventReconstructionCompleted,
			RecordID:      completed.ID,
			Owner:         completed.Owner,
			CorrelationID: correlationID,
			Timestamp:     s.clock.Now(),
		})
		return completed.ID, res, nil
	})
	if err != nil {
		return Record{}, res, err
	}
	return completed, res, nil
}

// ReadResult returns the stored result metadata and the wrapped handle bytes.
// Only the owner may read, and only once the record is Completed.
func (s *Service) ReadResult(ctx context.Context, id uint64, caller string) (ReconstructionResult, []byte, error) {
	record, ok := s.store.GetRecord(id)
	if !ok {
		return ReconstructionResult{}, nil, domain.ErrNotFound{Entity: EntityRecord, ID: id}
	}
	if err := requireOwner(record, caller); err != nil {
		return ReconstructionResult{}, nil, err
	}
	if !record.Processed {
		return ReconstructionResult{}, nil, domain.ErrNotReady{RecordID: id, State: record.State}
	}
	result, ok := s.store.GetResult(id)
	if !ok {
		return ReconstructionResult{}, nil, domain.ErrNotFound{Entity: EntityResult, ID: id}
	}
	_, rc, err := s.blobs.Get(ctx, result.Handle)
	if err != nil {
		return ReconstructionResult{}, nil, fmt.Errorf("fetch result: %w", err)
	}
	defer func() { _ = rc.Close() }()
	handle, err := io.ReadAll(rc)
	if err != nil {
		return ReconstructionResult{}, nil, fmt.Errorf("read result: %w", err)
	}
	return result, handle, nil
}

// CancelRequest abandons an in-flight reconstruction, releasing the binding
// and returning the record to Created. The consumed correlation id is never
// reissued. Owner only.
func (s *Service) CancelRequest(ctx context.Context, id uint64, caller string) (Record, Result, error) {
	var (
		record  Record
		binding CorrelationBinding
	)
	res, err := s.instrument(ctx, "cancel_request", EntityBinding, ActionDelete, caller, func(ctx context.Context) (uint64, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var ok bool
			record, ok = tx.FindRecord(id)
			if !ok {
				return domain.ErrNotFound{Entity: EntityRecord, ID: id}
			}
			if err := requireOwner(record, caller); err != nil {
				return err
			}
			binding, ok = tx.InFlight(id)
			if !ok {
				return domain.ErrNoRequestInFlight{RecordID: id}
			}
			if _, err := tx.ReleaseCorrelation(binding.CorrelationID); err != nil {
				return err
			}
			record, _ = tx.FindRecord(id)
			return nil
		})
		if err != nil {
			return id, res, err
		}
		s.events.Append(Event{
			Kind:          EventReconstructionCancelled,
			RecordID:      id,
			Owner:         record.Owner,
			CorrelationID: binding.CorrelationID,
			Timestamp:     s.clock.Now(),
		})
		return id, res, nil
	})
	if err != nil {
		return Record{}, res, err
	}
	return record, res, nil
}

// instrument wraps an operation with tracing, metrics, logging, and audit.
func (s *Service) instrument(ctx context.Context, operation string, entity EntityType, action Action, caller string, fn func(context.Context) (uint64, Result, error)) (Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	entityID, res, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)

	entry := AuditEntry{
		Operation: operation,
		Entity:    entity,
		Action:    action,
		EntityID:  entityID,
		Caller:    caller,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("operation failed", "operation", operation, "entity_id", entityID, "error", err)
	} else {
		s.logger.Debug("operation completed", "operation", operation, "entity_id", entityID, "duration", duration)
	}
	s.audit.Record(ctx, entry)
	return res, err
}
