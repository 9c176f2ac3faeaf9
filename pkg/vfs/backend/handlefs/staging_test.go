package handlefs_test

import (
	"testing"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/handlefs"
)

// New files must stay out of directory enumeration until Flush promotes
// them, while remaining readable through their own handle.
func TestNewFileHiddenUntilFlush(t *testing.T) {
	store, err := handlefs.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := t.Context()

	if err := store.WriteFile(ctx, "fresh.txt", []byte("not yet visible"), time.Now()); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	entries, err := store.ReadDir(ctx, "")
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	for _, e := range entries {
		if e.Name == "fresh.txt" {
			t.Fatal("staged file visible in ReadDir before Flush")
		}
	}

	// The creator can still read it back through the handle.
	data, err := store.ReadFile(ctx, "fresh.txt")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(data) != "not yet visible" {
		t.Errorf("ReadFile() = %q, want %q", data, "not yet visible")
	}

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	entries, err = store.ReadDir(ctx, "")
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Name == "fresh.txt" {
			found = true
		}
	}
	if !found {
		t.Error("file not visible in ReadDir after Flush")
	}
}

// Updating an existing file reuses the cached row handle and is visible
// without another Flush.
func TestExistingFileUpdateVisibleImmediately(t *testing.T) {
	store, err := handlefs.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := t.Context()

	if err := store.WriteFile(ctx, "file.txt", []byte("v1"), time.Now()); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	if err := store.WriteFile(ctx, "file.txt", []byte("v2"), time.Now()); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	data, err := store.ReadFile(ctx, "file.txt")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(data) != "v2" {
		t.Errorf("ReadFile() = %q, want %q", data, "v2")
	}

	entries, err := store.ReadDir(ctx, "")
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	for _, e := range entries {
		if e.Name == "file.txt" && e.Size != 2 {
			t.Errorf("Size = %d, want 2", e.Size)
		}
	}
}

// Dropping the cached handle on close must not orphan the row: the next
// write re-resolves it by path and updates in place.
func TestFileClosedDropsCachedHandle(t *testing.T) {
	store, err := handlefs.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := t.Context()

	if err := store.WriteFile(ctx, "session.txt", []byte("one"), time.Now()); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	store.FileClosed("session.txt")

	if err := store.WriteFile(ctx, "session.txt", []byte("two"), time.Now()); err != nil {
		t.Fatalf("WriteFile() after close failed: %v", err)
	}
	data, err := store.ReadFile(ctx, "session.txt")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("expected rewritten content 'two', got %q", data)
	}

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	entries, err := store.ReadDir(ctx, "")
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.Name == "session.txt" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one session.txt entry, got %d", count)
	}
}

func TestStoreIsWriteThrough(t *testing.T) {
	store, err := handlefs.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if !backend.IsWriteThrough(store) {
		t.Error("expected handle store to report write-through")
	}
}
