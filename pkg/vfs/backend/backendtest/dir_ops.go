package backendtest

import (
	"testing"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// runDirOpsTests runs all directory operation conformance tests.
func runDirOpsTests(t *testing.T, factory AdapterFactory) {
	t.Run("MkdirAndReadDir", func(t *testing.T) { testMkdirAndReadDir(t, factory) })
	t.Run("MkdirExisting", func(t *testing.T) { testMkdirExisting(t, factory) })
	t.Run("NestedDirectories", func(t *testing.T) { testNestedDirectories(t, factory) })
	t.Run("ReadDirDirectChildrenOnly", func(t *testing.T) { testReadDirDirectChildrenOnly(t, factory) })
	t.Run("RemoveDirectory", func(t *testing.T) { testRemoveDirectory(t, factory) })
	t.Run("RenameDirectorySubtree", func(t *testing.T) { testRenameDirectorySubtree(t, factory) })
	t.Run("StatDirectory", func(t *testing.T) { testStatDirectory(t, factory) })
	t.Run("RootAlwaysExists", func(t *testing.T) { testRootAlwaysExists(t, factory) })
}

func testMkdirAndReadDir(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	makeTestDir(t, a, "docs")

	entries, err := a.ReadDir(t.Context(), "")
	if err != nil {
		t.Fatalf("ReadDir(root) failed: %v", err)
	}

	entry := findEntry(entries, "docs")
	if entry == nil {
		t.Fatal("ReadDir(root) missing docs")
	}
	if entry.Kind != backend.KindDirectory {
		t.Errorf("Kind = %v, want KindDirectory", entry.Kind)
	}
}

func testMkdirExisting(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	makeTestDir(t, a, "dup")

	err := a.Mkdir(t.Context(), "dup")
	if !fserrors.IsCode(err, fserrors.ErrAlreadyExists) {
		t.Errorf("Mkdir(dup) error = %v, want AlreadyExists", err)
	}
}

func testNestedDirectories(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	makeTestDir(t, a, "x")
	makeTestDir(t, a, "x/y")
	makeTestDir(t, a, "x/y/z")

	entries, err := a.ReadDir(t.Context(), "x/y")
	if err != nil {
		t.Fatalf("ReadDir(x/y) failed: %v", err)
	}
	if findEntry(entries, "z") == nil {
		t.Error("ReadDir(x/y) missing z")
	}
}

func testReadDirDirectChildrenOnly(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	makeTestDir(t, a, "top")
	makeTestDir(t, a, "top/mid")
	writeTestFile(t, a, "top/mid/leaf.txt", []byte("leaf"))
	writeTestFile(t, a, "top/sibling.txt", []byte("sib"))

	entries, err := a.ReadDir(t.Context(), "top")
	if err != nil {
		t.Fatalf("ReadDir(top) failed: %v", err)
	}

	if len(entries) != 2 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		t.Fatalf("ReadDir(top) = %v, want exactly [mid sibling.txt]", names)
	}
	if findEntry(entries, "mid") == nil || findEntry(entries, "sibling.txt") == nil {
		t.Error("ReadDir(top) missing direct children")
	}
}

func testRemoveDirectory(t *testing.T, factory AdapterFactory) {
	a := factory(t)
	ctx := t.Context()

	makeTestDir(t, a, "gone")

	if err := a.Remove(ctx, "gone"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	if _, err := a.Stat(ctx, "gone"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Stat(gone) error = %v, want NotFound", err)
	}
}

func testRenameDirectorySubtree(t *testing.T, factory AdapterFactory) {
	a := factory(t)
	ctx := t.Context()

	makeTestDir(t, a, "src")
	makeTestDir(t, a, "src/inner")
	writeTestFile(t, a, "src/inner/file.txt", []byte("moved along"))

	if err := a.Rename(ctx, "src", "dst"); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}

	got, err := a.ReadFile(ctx, "dst/inner/file.txt")
	if err != nil {
		t.Fatalf("ReadFile(dst/inner/file.txt) failed: %v", err)
	}
	if string(got) != "moved along" {
		t.Errorf("ReadFile() = %q, want %q", got, "moved along")
	}

	if _, err := a.Stat(ctx, "src"); !fserrors.IsCode(err, fserrors.ErrNotFound) {
		t.Errorf("Stat(src) error = %v, want NotFound", err)
	}
}

func testStatDirectory(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	makeTestDir(t, a, "meta")

	entry, err := a.Stat(t.Context(), "meta")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if entry.Kind != backend.KindDirectory {
		t.Errorf("Kind = %v, want KindDirectory", entry.Kind)
	}
}

func testRootAlwaysExists(t *testing.T, factory AdapterFactory) {
	a := factory(t)

	entry, err := a.Stat(t.Context(), "")
	if err != nil {
		t.Fatalf("Stat(root) failed: %v", err)
	}
	if entry.Kind != backend.KindDirectory {
		t.Errorf("Kind = %v, want KindDirectory", entry.Kind)
	}

	if _, err := a.ReadDir(t.Context(), ""); err != nil {
		t.Errorf("ReadDir(root) failed: %v", err)
	}
}
