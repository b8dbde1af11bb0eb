package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"oraclevault/internal/infra/persistence/memory"
	"oraclevault/pkg/domain"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	var record domain.Record
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		record, err = tx.CreateRecord("alice", domain.PayloadRef{Key: "payloads/abc", Size: 16})
		if err != nil {
			return err
		}
		_, err = tx.IssueCorrelation(record.ID)
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok := reopened.GetRecord(record.ID)
	if !ok {
		t.Fatalf("record missing after reopen")
	}
	if got.Owner != "alice" || got.Payload.Key != "payloads/abc" {
		t.Fatalf("unexpected record after reopen: %+v", got)
	}
	if got.State != domain.StateRequestSent {
		t.Fatalf("expected in-flight state restored, got %q", got.State)
	}
	if ids := reopened.OwnedBy("alice"); len(ids) != 1 || ids[0] != record.ID {
		t.Fatalf("owner index not restored: %v", ids)
	}

	// Sequence counters survive the reopen.
	var next domain.Record
	if _, err := reopened.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		next, err = tx.CreateRecord("bob", domain.PayloadRef{Key: "payloads/def", Size: 8})
		return err
	}); err != nil {
		t.Fatalf("transaction after reopen: %v", err)
	}
	if next.ID != record.ID+1 {
		t.Fatalf("expected id %d after reopen, got %d", record.ID+1, next.ID)
	}
}

func TestStoreDefaultsPathAndLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "nested", "vault.db"), nil)
	if err != nil {
		t.Fatalf("open store with nested path: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.Path() == "" {
		t.Fatalf("expected configured path")
	}
	if got := store.ListRecords(); len(got) != 0 {
		t.Fatalf("expected empty store, got %d records", len(got))
	}
}

func TestBlockedTransactionIsNotPersisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.db")

	engine := domain.NewRulesEngine()
	engine.Register(rejectAllRule{})
	store, err := NewStore(path, engine)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRecord("alice", domain.PayloadRef{Key: "payloads/x", Size: 1})
		return err
	}); err == nil {
		t.Fatalf("expected rule violation")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if got := reopened.ListRecords(); len(got) != 0 {
		t.Fatalf("blocked transaction leaked to disk: %d records", len(got))
	}
}

type rejectAllRule struct{}

func (rejectAllRule) Name() string { return "reject_all" }

func (rejectAllRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "reject_all",
		Severity: domain.SeverityBlock,
		Message:  "rejected",
	}}}, nil
}

func TestBucketLayoutDecodes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "vault.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRecord("alice", domain.PayloadRef{Key: "payloads/abc", Size: 3})
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	var payload []byte
	if err := store.DB().QueryRow(`SELECT payload FROM state WHERE bucket = 'records'`).Scan(&payload); err != nil {
		t.Fatalf("query records bucket: %v", err)
	}
	var records map[uint64]memory.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		t.Fatalf("decode records bucket: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(records))
	}
}
