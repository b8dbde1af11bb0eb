package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAssertNoDirectImportsFindsViolation(t *testing.T) {
	dir := t.TempDir()
	src := `package sample

import (
	"fmt"
	"oraclevault/internal/infra/persistence/sqlite"
)

var _ = fmt.Sprint
var _ = sqlite.NewStore
`
	if err := os.WriteFile(filepath.Join(dir, "sample.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	probe := &recordingTB{TB: t}
	AssertNoDirectImports(probe, dir, PersistenceImportForbidden, "adapters use domain interfaces")
	if !probe.failed {
		t.Fatalf("expected violation to be reported")
	}
}

func TestAssertNoDirectImportsIgnoresTestFiles(t *testing.T) {
	dir := t.TempDir()
	src := `package sample

import "oraclevault/internal/infra/blob/s3"

var _ = s3.New
`
	if err := os.WriteFile(filepath.Join(dir, "sample_test.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	probe := &recordingTB{TB: t}
	AssertNoDirectImports(probe, dir, BlobInfraImportForbidden, "only the facade touches blob infra")
	if probe.failed {
		t.Fatalf("test files must be exempt")
	}
}

type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(string, ...any) { r.failed = true }
