// Package testutil provides helpers for enforcing package boundary
// invariants across the repository.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoDirectImports scans all non-test .go files in dir (typically "."
// from within the package) and fails if any import path satisfies the
// forbidden predicate. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	fset := token.NewFileSet()
	var viols []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			if forbidden(importPath) {
				viols = append(viols, name+" imports "+importPath)
			}
		}
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden imports (%s):\n  %s", reason, strings.Join(viols, "\n  "))
	}
}

// PersistenceImportForbidden matches import paths reaching into the concrete
// persistence backends. Callers outside the core package go through the
// domain interfaces instead.
func PersistenceImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/persistence/")
}

// BlobInfraImportForbidden matches import paths reaching into the concrete
// blob backends rather than the blob facade.
func BlobInfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/blob/")
}
