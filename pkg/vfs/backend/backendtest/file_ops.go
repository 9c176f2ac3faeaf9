package backendtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// testModTime is a fixed modification time used by suite writes.
var testModTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// runFileOpsTests runs all file operation conformance tests.
func runFileOpsTests(t *testing.T, factory AdapterFactory) {
	t.Run("WriteReadRoundTrip", func(t *testing.T) { testWriteReadRoundTrip(t, factory) })
	t.Run("OverwriteFile", func(t *testing.T) { testOverwriteFile(t, factory) })
	t.Run("EmptyFile", func(t *testing.T) { testEmptyFile(t, factory) })
	t.Run("ReadMissingFile", func(t *testing.T) { testReadMissingFile(t, factory) })
	t.Run("StatFile", func(t *testing.T) { testStatFile(t, factory) })
	t.Run("RenameFile", func(t *testing.T) { testRenameFile(t, factory) })
	t.Run("RemoveFile", func(t *testing.T) { testRemoveFile(t, factory) })
	t.Run("NestedFile", func(t *testing.T) { testNestedFile(t, factory) })
}

func testWriteReadRoundTrip(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	want := []byte("hello backend")
	writeTestFile(t, a, "greeting.txt", want)

	got, err := a.ReadFile(t.Context(), "greeting.txt")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadFile() = %q, want %q", got, want)
	}
}

func testOverwriteFile(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	writeTestFile(t, a, "file.bin", []byte("first version, longer"))
	writeTestFile(t, a, "file.bin", []byte("second"))

	got, err := a.ReadFile(t.Context(), "file.bin")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("ReadFile() = %q, want %q", got, "second")
	}

	entry, err := a.Stat(t.Context(), "file.bin")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if entry.Size != int64(len("second")) {
		t.Errorf("Size = %d, want %d", entry.Size, len("second"))
	}
}

func testEmptyFile(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	writeTestFile(t, a, "empty", nil)

	got, err := a.ReadFile(t.Context(), "empty")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadFile() returned %d bytes, want 0", len(got))
	}
}

func testReadMissingFile(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	_, err := a.ReadFile(t.Context(), "missing.txt")
	if !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("ReadFile(missing) error = %v, want NotFound", err)
	}
}

func testStatFile(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	writeTestFile(t, a, "stat-me", []byte("12345"))

	entry, err := a.Stat(t.Context(), "stat-me")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if entry.Kind != backend.KindFile {
		t.Errorf("Kind = %v, want KindFile", entry.Kind)
	}
	if entry.Size != 5 {
		t.Errorf("Size = %d, want 5", entry.Size)
	}
}

func testRenameFile(t *testing.T, factory AdapterFactory) {
	a := factory(t)
	ctx := t.Context()

	writeTestFile(t, a, "old-name", []byte("payload"))

	if err := a.Rename(ctx, "old-name", "new-name"); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}

	got, err := a.ReadFile(ctx, "new-name")
	if err != nil {
		t.Fatalf("ReadFile(new-name) failed: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("ReadFile(new-name) = %q, want %q", got, "payload")
	}

	if _, err := a.ReadFile(ctx, "old-name"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("ReadFile(old-name) error = %v, want NotFound", err)
	}
}

func testRemoveFile(t *testing.T, factory AdapterFactory) {
	a := factory(t)
	ctx := t.Context()

	writeTestFile(t, a, "doomed", []byte("x"))

	if err := a.Remove(ctx, "doomed"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	if _, err := a.Stat(ctx, "doomed"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Stat(doomed) error = %v, want NotFound", err)
	}
}

func testNestedFile(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	makeTestDir(t, a, "a")
	makeTestDir(t, a, "a/b")
	writeTestFile(t, a, "a/b/deep.txt", []byte("deep content"))

	got, err := a.ReadFile(t.Context(), "a/b/deep.txt")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(got) != "deep content" {
		t.Errorf("ReadFile() = %q, want %q", got, "deep content")
	}

	entries, err := a.ReadDir(t.Context(), "a/b")
	if err != nil {
		t.Fatalf("ReadDir(a/b) failed: %v", err)
	}
	if findEntry(entries, "deep.txt") == nil {
		t.Error("ReadDir(a/b) missing deep.txt")
	}
}
