package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"oraclevault/internal/infra/persistence/postgres/testutil"
	"oraclevault/pkg/domain"
)

func openStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore("postgres://stub/oraclevault", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	_, conn := openStubStore(t)
	found := false
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS state") {
			found = true
		}
	}
	if !found {
		t.Fatalf("state table DDL not issued, execs: %v", conn.Execs)
	}
}

func TestTransactionSnapshotsAllBuckets(t *testing.T) {
	store, conn := openStubStore(t)

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		record, err := tx.CreateRecord("alice", domain.PayloadRef{Key: "payloads/abc", Size: 3})
		if err != nil {
			return err
		}
		_, err = tx.IssueCorrelation(record.ID)
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	for _, bucket := range postgresBuckets {
		if _, ok := conn.Buckets[bucket]; !ok {
			t.Fatalf("bucket %q not persisted, got %v", bucket, conn.Buckets)
		}
	}
}

func TestStoreHydratesFromExistingSnapshot(t *testing.T) {
	first, _ := openStubStore(t)
	var record domain.Record
	if _, err := first.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		record, err = tx.CreateRecord("alice", domain.PayloadRef{Key: "payloads/abc", Size: 3})
		return err
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	// The stub connection retains buckets, so hydration sees the prior state.
	db := first.DB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	second, err := NewStore("postgres://stub/oraclevault", nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	got, ok := second.GetRecord(record.ID)
	if !ok || got.Owner != "alice" {
		t.Fatalf("hydrated record mismatch: %+v ok=%v", got, ok)
	}
}

func TestPersistFailureSurfacesError(t *testing.T) {
	store, conn := openStubStore(t)
	conn.FailExec = true
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRecord("alice", domain.PayloadRef{Key: "payloads/x", Size: 1})
		return err
	}); err == nil {
		t.Fatalf("expected persist error")
	}
}

func TestNewStoreFailsOnPing(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore("", nil); err == nil {
		t.Fatalf("expected ping error")
	}
}
