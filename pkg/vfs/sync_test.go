package vfs

import (
	"errors"
	"strings"
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend/memory"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

func TestFlushUnmountRemountRoundTrip(t *testing.T) {
	adapter := memory.New()

	fs := New()
	if _, err := fs.Mount(t.Context(), "/mnt/mem", adapter); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if err := fs.MkdirTree(t.Context(), "/mnt/mem/docs/notes"); err != nil {
		t.Fatalf("MkdirTree failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/mem/docs/notes/a.txt", []byte("alpha")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/mem/top.txt", []byte("top")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := fs.Unmount("/mnt/mem"); err != nil {
		t.Fatalf("Unmount failed: %v", err)
	}
	fs.Close()

	// A fresh filesystem over the same backend sees everything after populate.
	fs2 := New()
	defer fs2.Close()
	if _, err := fs2.Mount(t.Context(), "/mnt/mem", adapter.Reopen()); err != nil {
		t.Fatalf("Remount failed: %v", err)
	}
	if err := fs2.Syncfs(t.Context(), true); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	got, err := fs2.ReadFile(t.Context(), "/mnt/mem/docs/notes/a.txt")
	if err != nil {
		t.Fatalf("ReadFile after remount failed: %v", err)
	}
	if string(got) != "alpha" {
		t.Errorf("Expected 'alpha', got %q", got)
	}
	if _, err := fs2.Stat(t.Context(), "/mnt/mem/top.txt"); err != nil {
		t.Errorf("Expected top.txt after remount, got: %v", err)
	}
}

func TestLargeFileRoundTrip(t *testing.T) {
	adapter := memory.New()

	fs := New()
	if _, err := fs.Mount(t.Context(), "/mnt/mem", adapter); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	const size = 1 << 20
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i & 0xff)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/mem/big.bin", data); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := fs.Unmount("/mnt/mem"); err != nil {
		t.Fatalf("Unmount failed: %v", err)
	}
	fs.Close()

	fs2 := New()
	defer fs2.Close()
	if _, err := fs2.Mount(t.Context(), "/mnt/mem", adapter.Reopen()); err != nil {
		t.Fatalf("Remount failed: %v", err)
	}
	if err := fs2.Syncfs(t.Context(), true); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	got, err := fs2.ReadFile(t.Context(), "/mnt/mem/big.bin")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(got) != size {
		t.Fatalf("Expected %d bytes, got %d", size, len(got))
	}
	for i := 0; i < size; i += 4096 {
		if got[i] != byte(i&0xff) {
			t.Fatalf("Pattern mismatch at offset %d: expected %d, got %d", i, byte(i&0xff), got[i])
		}
	}
}

func TestSyncIdempotent(t *testing.T) {
	fs := New()
	defer fs.Close()
	adapter := mountMemory(t, fs, "/mnt/mem")

	if err := fs.WriteFile(t.Context(), "/mnt/mem/f.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("First flush failed: %v", err)
	}

	// With nothing dirty, a second flush must not touch the backend at all.
	// An armed failure would surface if it did.
	adapter.FailNextWrite(errors.New("unexpected backend write"))
	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Second flush was not idempotent: %v", err)
	}
	adapter.FailNextWrite(nil)
}

func TestFlushFirstErrorAbortsAndRetries(t *testing.T) {
	fs := New()
	defer fs.Close()
	adapter := mountMemory(t, fs, "/mnt/mem")

	if err := fs.WriteFile(t.Context(), "/mnt/mem/a.txt", []byte("a")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/mem/b.txt", []byte("b")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	boom := errors.New("backend write refused")
	adapter.FailNextWrite(boom)

	err := fs.Syncfs(t.Context(), false)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected armed failure to surface, got: %v", err)
	}

	// The failure is transient; a retry completes the flush.
	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Retry flush failed: %v", err)
	}
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := adapter.Stat(t.Context(), name); err != nil {
			t.Errorf("Expected %s in backend after retry, got: %v", name, err)
		}
	}
}

func TestSyncBusy(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	m, ok := fs.MountFor("/mnt/mem")
	if !ok {
		t.Fatal("Expected mount for /mnt/mem")
	}

	fs.mu.Lock()
	m.busy = true
	fs.mu.Unlock()

	err := m.Syncfs(t.Context(), false)
	if !fserrors.IsCode(err, fserrors.ErrIO) {
		t.Fatalf("Expected IOError while sync in progress, got: %v", err)
	}
	if !strings.Contains(err.Error(), "sync already in progress") {
		t.Errorf("Unexpected busy message: %v", err)
	}

	fs.mu.Lock()
	m.busy = false
	fs.mu.Unlock()

	if err := m.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Sync after busy cleared failed: %v", err)
	}
}

func TestFlushReplaysRemovalsAndRenames(t *testing.T) {
	fs := New()
	defer fs.Close()
	adapter := mountMemory(t, fs, "/mnt/mem")

	if err := fs.WriteFile(t.Context(), "/mnt/mem/old.txt", []byte("move me")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/mem/gone.txt", []byte("delete me")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if err := fs.Rename(t.Context(), "/mnt/mem/old.txt", "/mnt/mem/new.txt"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if err := fs.Unlink(t.Context(), "/mnt/mem/gone.txt"); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Second flush failed: %v", err)
	}

	if _, err := adapter.Stat(t.Context(), "new.txt"); err != nil {
		t.Errorf("Expected new.txt in backend, got: %v", err)
	}
	if _, err := adapter.Stat(t.Context(), "old.txt"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Expected old.txt gone from backend, got: %v", err)
	}
	if _, err := adapter.Stat(t.Context(), "gone.txt"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Expected gone.txt gone from backend, got: %v", err)
	}
}

func TestPopulateMergesExternalChanges(t *testing.T) {
	fs := New()
	defer fs.Close()
	adapter := mountMemory(t, fs, "/mnt/mem")

	if err := fs.WriteFile(t.Context(), "/mnt/mem/f.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Mutate the backend behind the mount's back.
	if err := adapter.Remove(t.Context(), "f.txt"); err != nil {
		t.Fatalf("Backend remove failed: %v", err)
	}

	m, _ := fs.MountFor("/mnt/mem")
	m.Invalidate()
	if err := fs.Syncfs(t.Context(), true); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	if _, err := fs.Stat(t.Context(), "/mnt/mem/f.txt"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Expected externally removed file pruned, got: %v", err)
	}
}

func TestPopulatePreservesLocalUnsyncedState(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	// Never flushed: the backend has no idea this file exists.
	if err := fs.WriteFile(t.Context(), "/mnt/mem/local.txt", []byte("unflushed")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m, _ := fs.MountFor("/mnt/mem")
	m.Invalidate()
	if err := fs.Syncfs(t.Context(), true); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	got, err := fs.ReadFile(t.Context(), "/mnt/mem/local.txt")
	if err != nil {
		t.Fatalf("Expected unsynced file to survive populate, got: %v", err)
	}
	if string(got) != "unflushed" {
		t.Errorf("Expected 'unflushed', got %q", got)
	}
}
