// Package backendtest provides a conformance test suite for backend.Adapter
// implementations. Each adapter package runs the suite against a factory
// that builds a fresh store per test.
package backendtest

import (
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
)

// AdapterFactory creates a fresh Adapter instance for each test.
// The factory receives *testing.T so it can use t.TempDir() for adapters
// that need filesystem paths and t.Cleanup() for teardown.
type AdapterFactory func(t *testing.T) backend.Adapter

// RunConformanceSuite runs the full conformance test suite against the
// provided adapter factory. Each test gets a fresh adapter for isolation.
//
// The suite covers two categories:
//   - FileOps: content round trips, overwrite, rename, remove, stat
//   - DirOps: creation, enumeration, nesting, subtree rename and removal
//
// Writes are always followed by Flush before enumeration assertions, so
// adapters that stage new entries until Flush pass the same suite as
// adapters that apply writes immediately.
func RunConformanceSuite(t *testing.T, factory AdapterFactory) {
	t.Helper()

	t.Run("FileOps", func(t *testing.T) {
		runFileOpsTests(t, factory)
	})

	t.Run("DirOps", func(t *testing.T) {
		runDirOpsTests(t, factory)
	})
}

// writeTestFile writes a file and flushes so it is visible to enumeration.
func writeTestFile(t *testing.T, a backend.Adapter, rel string, data []byte) {
	t.Helper()

	ctx := t.Context()

	if err := a.WriteFile(ctx, rel, data, testModTime); err != nil {
		t.Fatalf("WriteFile(%q) failed: %v", rel, err)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
}

// makeTestDir creates a directory, failing the test on error.
func makeTestDir(t *testing.T, a backend.Adapter, rel string) {
	t.Helper()

	if err := a.Mkdir(t.Context(), rel); err != nil {
		t.Fatalf("Mkdir(%q) failed: %v", rel, err)
	}
}

// findEntry returns the entry with the given name, or nil.
func findEntry(entries []backend.Entry, name string) *backend.Entry {
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i]
		}
	}
	return nil
}
