// Package backend defines the adapter interface a storage backend implements
// to be mountable into the virtual filesystem.
//
// The core never inspects an adapter's internals: backend-specific handles
// (a BadgerDB instance, a host directory path, a database connection, an S3
// client) stay opaque behind this interface. All paths passed to an adapter
// are mount-relative, slash-separated, and never begin with "/". The empty
// string denotes the mount root.
package backend

import (
	"context"
	"time"
)

// Kind distinguishes files from directories in adapter entries.
type Kind int

const (
	// KindFile is a regular file.
	KindFile Kind = iota

	// KindDirectory is a directory.
	KindDirectory
)

// String returns a human-readable name for the entry kind.
func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Entry describes one file or directory as seen by a backend.
type Entry struct {
	// Name is the entry's base name within its parent directory.
	Name string

	// Kind reports whether the entry is a file or a directory.
	Kind Kind

	// Size is the file size in bytes (0 for directories).
	Size int64

	// ModTime is the backend's last-modification timestamp.
	ModTime time.Time
}

// Adapter is the capability interface every storage backend implements.
//
// The sync engine is the only caller for deferred-sync backends; for
// write-through backends (see WriteThrougher) the core additionally mirrors
// namespace operations as they happen. Adapters surface errors using the
// fserrors taxonomy so the core can map them uniformly.
type Adapter interface {
	// ReadDir enumerates the entries of the directory at rel.
	// Returns ErrNotFound if rel does not exist, ErrNotDirectory if it is
	// a file.
	ReadDir(ctx context.Context, rel string) ([]Entry, error)

	// ReadFile returns the full content of the file at rel.
	ReadFile(ctx context.Context, rel string) ([]byte, error)

	// WriteFile creates or replaces the file at rel with the given content
	// and modification time. Parent directories must already exist.
	WriteFile(ctx context.Context, rel string, data []byte, modTime time.Time) error

	// Mkdir creates the directory at rel. Returns ErrAlreadyExists if an
	// entry already exists there.
	Mkdir(ctx context.Context, rel string) error

	// Remove deletes the file or empty directory at rel.
	// Returns ErrNotEmpty for a non-empty directory.
	Remove(ctx context.Context, rel string) error

	// Rename moves the entry at oldRel to newRel, replacing any existing
	// file at newRel.
	Rename(ctx context.Context, oldRel, newRel string) error

	// Stat describes the entry at rel. The returned Entry's Name is the
	// base name of rel ("" for the mount root).
	Stat(ctx context.Context, rel string) (Entry, error)

	// Flush forces any buffered writes to be visible to other viewers of
	// the backing store. Deferred-sync backends may use it to commit a
	// batch; write-through backends flush their content buffers here.
	Flush(ctx context.Context) error

	// Close releases backend resources. Called on unmount. Close does not
	// flush; callers sync first if persistence is desired.
	Close() error
}

// WriteThrougher is implemented by adapters whose namespace operations
// (create, remove, rename, mkdir) must be mirrored to the backend at the
// moment they happen rather than at the next sync. File content writes may
// still be buffered until Flush.
type WriteThrougher interface {
	// WriteThrough reports whether the adapter wants immediate mirroring.
	WriteThrough() bool
}

// CloseNotifier is implemented by adapters that track open-file lifecycles.
// The core invokes FileClosed when the last descriptor referencing a backend
// file is closed.
type CloseNotifier interface {
	// FileClosed notifies the adapter that rel has no more open descriptors.
	FileClosed(rel string)
}

// ChangeDetector is implemented by adapters that can observe external
// mutation of their backing store (e.g. a host directory watched with
// fsnotify). The sync engine uses it to keep populate idempotent: a clean
// mount whose adapter reports no external change is skipped entirely.
type ChangeDetector interface {
	// Stale reports whether the backing store changed since ClearStale.
	Stale() bool

	// ClearStale resets the change flag. Called after a populate pass.
	ClearStale()
}

// IsWriteThrough reports whether the adapter asked for immediate mirroring
// of namespace operations.
func IsWriteThrough(a Adapter) bool {
	if wt, ok := a.(WriteThrougher); ok {
		return wt.WriteThrough()
	}
	return false
}
