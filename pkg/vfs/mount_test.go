package vfs

import (
	"sync"
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend/memory"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

func TestMountOnExistingEmptyDirectory(t *testing.T) {
	fs := New()
	defer fs.Close()

	if err := fs.MkdirTree(t.Context(), "/mnt/data"); err != nil {
		t.Fatalf("MkdirTree failed: %v", err)
	}
	if _, err := fs.Mount(t.Context(), "/mnt/data", memory.New()); err != nil {
		t.Fatalf("Mount on empty directory failed: %v", err)
	}
}

func TestMountTwiceAlreadyMounted(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/data")

	_, err := fs.Mount(t.Context(), "/mnt/data", memory.New())
	if !fserrors.IsCode(err, fserrors.ErrAlreadyMounted) {
		t.Errorf("Expected AlreadyMounted, got: %v", err)
	}
}

func TestMountNonEmptyDirectoryLeavesTreeUnchanged(t *testing.T) {
	fs := New()
	defer fs.Close()

	if err := fs.MkdirTree(t.Context(), "/mnt/data"); err != nil {
		t.Fatalf("MkdirTree failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/data/keep.txt", []byte("keep")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := fs.Mount(t.Context(), "/mnt/data", memory.New())
	if !fserrors.IsCode(err, fserrors.ErrNotEmpty) {
		t.Fatalf("Expected DirectoryNotEmpty, got: %v", err)
	}

	// The failed mount must not have touched the existing content.
	got, err := fs.ReadFile(t.Context(), "/mnt/data/keep.txt")
	if err != nil {
		t.Fatalf("ReadFile after failed mount: %v", err)
	}
	if string(got) != "keep" {
		t.Errorf("Expected content preserved, got %q", got)
	}
}

func TestMountOnFile(t *testing.T) {
	fs := New()
	defer fs.Close()

	if err := fs.MkdirTree(t.Context(), "/mnt"); err != nil {
		t.Fatalf("MkdirTree failed: %v", err)
	}
	if err := fs.WriteFile(t.Context(), "/mnt/file", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := fs.Mount(t.Context(), "/mnt/file", memory.New())
	if !fserrors.IsCode(err, fserrors.ErrNotDirectory) {
		t.Errorf("Expected NotADirectory, got: %v", err)
	}

	got, err := fs.ReadFile(t.Context(), "/mnt/file")
	if err != nil {
		t.Fatalf("ReadFile after failed mount: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("Expected file content unchanged, got %q", got)
	}
}

func TestConcurrentMountsSingleWinner(t *testing.T) {
	fs := New()
	defer fs.Close()

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fs.Mount(t.Context(), "/mnt/race", memory.New())
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case fserrors.IsCode(err, fserrors.ErrAlreadyMounted):
		default:
			t.Errorf("Racer %d: unexpected error: %v", i, err)
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly one successful mount, got %d", wins)
	}
}

func TestUnmountLeavesEmptyDirectory(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/data")

	if err := fs.WriteFile(t.Context(), "/mnt/data/f.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.Unmount("/mnt/data"); err != nil {
		t.Fatalf("Unmount failed: %v", err)
	}

	entries, err := fs.ReadDir(t.Context(), "/mnt/data")
	if err != nil {
		t.Fatalf("ReadDir after unmount failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty directory after unmount, got %d entries", len(entries))
	}
}

func TestUnmountNotMounted(t *testing.T) {
	fs := New()
	defer fs.Close()

	err := fs.Unmount("/mnt/nothing")
	if !fserrors.IsCode(err, fserrors.ErrNotMounted) {
		t.Errorf("Expected NotMounted, got: %v", err)
	}
}

func TestMountPathsSorted(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt/b")
	mountMemory(t, fs, "/mnt/a")

	paths := fs.MountPaths()
	if len(paths) != 2 || paths[0] != "/mnt/a" || paths[1] != "/mnt/b" {
		t.Errorf("Expected sorted mount paths, got %v", paths)
	}
}

func TestMountForLongestPrefix(t *testing.T) {
	fs := New()
	defer fs.Close()
	mountMemory(t, fs, "/mnt")
	mountMemory(t, fs, "/mnt/inner")

	m, ok := fs.MountFor("/mnt/inner/file.txt")
	if !ok {
		t.Fatal("Expected a mount for /mnt/inner/file.txt")
	}
	if m.Path() != "/mnt/inner" {
		t.Errorf("Expected longest-prefix mount /mnt/inner, got %s", m.Path())
	}
}
