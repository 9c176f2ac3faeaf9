package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/handlefs"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/hostdir"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/memory"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// mountMemory attaches a fresh in-memory adapter at path.
func mountMemory(t *testing.T, fs *FS, path string) *memory.Adapter {
	t.Helper()
	adapter := memory.New()
	if _, err := fs.Mount(t.Context(), path, adapter); err != nil {
		t.Fatalf("Mount(%s) failed: %v", path, err)
	}
	return adapter
}

func TestWriteReadFile(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	data := []byte("hello virtual world")
	if err := fs.WriteFile(t.Context(), "/mnt/mem/hello.txt", data); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := fs.ReadFile(t.Context(), "/mnt/mem/hello.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Expected %q, got %q", data, got)
	}
}

func TestReadFileNotFound(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	_, err := fs.ReadFile(t.Context(), "/mnt/mem/missing.txt")
	if !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Expected NotFound, got: %v", err)
	}
}

func TestMkdirReadDir(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	if err := fs.Mkdir(t.Context(), "/mnt/mem/sub"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/mem/a.txt", []byte("a")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	entries, err := fs.ReadDir(t.Context(), "/mnt/mem")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "a.txt" || entries[0].Kind != backend.KindFile {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[1].Name != "sub" || entries[1].Kind != backend.KindDirectory {
		t.Errorf("Unexpected second entry: %+v", entries[1])
	}
}

func TestMkdirExisting(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	if err := fs.Mkdir(t.Context(), "/mnt/mem/sub"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	err := fs.Mkdir(t.Context(), "/mnt/mem/sub")
	if !fserrors.IsCode(err, fserrors.ErrAlreadyExists) {
		t.Errorf("Expected AlreadyExists, got: %v", err)
	}
}

func TestRmdirNonEmpty(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	if err := fs.MkdirTree(t.Context(), "/mnt/mem/a/b"); err != nil {
		t.Fatalf("MkdirTree failed: %v", err)
	}

	err := fs.Rmdir(t.Context(), "/mnt/mem/a")
	if !fserrors.IsCode(err, fserrors.ErrNotEmpty) {
		t.Errorf("Expected DirectoryNotEmpty, got: %v", err)
	}

	if err := fs.Rmdir(t.Context(), "/mnt/mem/a/b"); err != nil {
		t.Fatalf("Rmdir empty dir failed: %v", err)
	}
	if err := fs.Rmdir(t.Context(), "/mnt/mem/a"); err != nil {
		t.Fatalf("Rmdir after emptying failed: %v", err)
	}
}

func TestUnlinkDirectory(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	if err := fs.Mkdir(t.Context(), "/mnt/mem/sub"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	err := fs.Unlink(t.Context(), "/mnt/mem/sub")
	if !fserrors.IsCode(err, fserrors.ErrIsDirectory) {
		t.Errorf("Expected IsADirectory, got: %v", err)
	}
}

func TestRenameReplacesFile(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	if err := fs.WriteFile(t.Context(), "/mnt/mem/src.txt", []byte("source")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/mem/dst.txt", []byte("old destination")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := fs.Rename(t.Context(), "/mnt/mem/src.txt", "/mnt/mem/dst.txt"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if _, err := fs.Stat(t.Context(), "/mnt/mem/src.txt"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Expected source gone, got: %v", err)
	}
	got, err := fs.ReadFile(t.Context(), "/mnt/mem/dst.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "source" {
		t.Errorf("Expected replaced content 'source', got %q", got)
	}
}

func TestRenameDirectoryOntoNonEmpty(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	if err := fs.Mkdir(t.Context(), "/mnt/mem/src"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := fs.MkdirTree(t.Context(), "/mnt/mem/dst/inner"); err != nil {
		t.Fatalf("MkdirTree failed: %v", err)
	}

	err := fs.Rename(t.Context(), "/mnt/mem/src", "/mnt/mem/dst")
	if !fserrors.IsCode(err, fserrors.ErrNotEmpty) {
		t.Errorf("Expected DirectoryNotEmpty, got: %v", err)
	}
}

func TestRenameAcrossMounts(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/a")
	mountMemory(t, fs, "/mnt/b")

	if err := fs.WriteFile(t.Context(), "/mnt/a/file.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	err := fs.Rename(t.Context(), "/mnt/a/file.txt", "/mnt/b/file.txt")
	if !fserrors.IsCode(err, fserrors.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for cross-mount rename, got: %v", err)
	}
}

func TestTruncateGrowZeroFills(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	if err := fs.WriteFile(t.Context(), "/mnt/mem/f.bin", []byte("abc")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Truncate(t.Context(), "/mnt/mem/f.bin", 8); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}

	got, err := fs.ReadFile(t.Context(), "/mnt/mem/f.bin")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	want := []byte{'a', 'b', 'c', 0, 0, 0, 0, 0}
	if string(got) != string(want) {
		t.Errorf("Expected zero-filled growth %v, got %v", want, got)
	}

	if err := fs.Truncate(t.Context(), "/mnt/mem/f.bin", -1); !fserrors.IsCode(err, fserrors.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for negative size, got: %v", err)
	}
}

func TestWriteThroughMirrorsImmediately(t *testing.T) {
	hostPath := t.TempDir()
	adapter, err := hostdir.New(hostPath)
	if err != nil {
		t.Fatalf("hostdir.New failed: %v", err)
	}

	fs := New()
	defer fs.Close()
	if _, err := fs.Mount(t.Context(), "/mnt/host", adapter); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	if err := fs.WriteFile(t.Context(), "/mnt/host/mirror.txt", []byte("through")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// No sync: the host copy must already exist.
	got, err := os.ReadFile(filepath.Join(hostPath, "mirror.txt"))
	if err != nil {
		t.Fatalf("Host file missing after write-through: %v", err)
	}
	if string(got) != "through" {
		t.Errorf("Expected host content 'through', got %q", got)
	}

	if err := fs.Unlink(t.Context(), "/mnt/host/mirror.txt"); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(hostPath, "mirror.txt")); !os.IsNotExist(err) {
		t.Errorf("Expected host file removed, got: %v", err)
	}
}

func TestHandleStoreMirroredImmediately(t *testing.T) {
	store, err := handlefs.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}

	fs := New()
	defer fs.Close()
	if _, err := fs.Mount(t.Context(), "/mnt/opfs", store); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	if err := fs.WriteFile(t.Context(), "/mnt/opfs/report.txt", []byte("draft")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// No sync: the row must already be in the store, readable by path.
	got, err := store.ReadFile(t.Context(), "report.txt")
	if err != nil {
		t.Fatalf("Store copy missing after write-through: %v", err)
	}
	if string(got) != "draft" {
		t.Errorf("Expected store content 'draft', got %q", got)
	}

	// Staged rows stay hidden from enumeration until a flush promotes them.
	entries, err := store.ReadDir(t.Context(), "")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name == "report.txt" {
			t.Fatalf("Staged file visible to enumeration before flush")
		}
	}

	if err := fs.Syncfs(t.Context(), false); err != nil {
		t.Fatalf("Syncfs failed: %v", err)
	}
	entries, err = store.ReadDir(t.Context(), "")
	if err != nil {
		t.Fatalf("ReadDir after flush failed: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Name == "report.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected report.txt listed after flush, got %v", entries)
	}
}

func TestPathOutsideAnyMount(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/mem")

	// Paths outside mounts live in the plain in-memory tree.
	if err := fs.MkdirTree(t.Context(), "/tmp/scratch"); err != nil {
		t.Fatalf("MkdirTree outside mounts failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/tmp/scratch/f.txt", []byte("local")); err != nil {
		t.Fatalf("WriteFile outside mounts failed: %v", err)
	}
	got, err := fs.ReadFile(t.Context(), "/tmp/scratch/f.txt")
	if err != nil || string(got) != "local" {
		t.Errorf("Expected 'local', got %q (err: %v)", got, err)
	}
}
